// Package main provides the entry point for armemu.
// armemu is a functional interpreter for a subset of 32-bit ARM with a
// direct-mapped instruction cache model.
//
// For the full CLI, use: go run ./cmd/armemu
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("armemu - ARM subset interpreter with instruction cache model")
	fmt.Println("")
	fmt.Println("Usage: armemu [options]")
	fmt.Println("       armemu [options] -elf file.elf -sym name [-args a,b,c,d]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -c         Instruction cache size in slots (8-1024)")
	fmt.Println("  -config    Path to run configuration JSON file")
	fmt.Println("  -j         Number of workers")
	fmt.Println("  -v         Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/armemu -h' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/armemu' instead.")
	}
}
