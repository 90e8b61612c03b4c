// Package emu provides functional emulation of a 32-bit ARM subset.
package emu

import (
	"fmt"
	"strings"
)

// Register indices with a fixed role.
const (
	SP = 13 // Stack pointer
	LR = 14 // Link register
	PC = 15 // Program counter

	NumRegs = 16
)

// Comparison outcomes held in the top nibble of CPSR.
const (
	FlagsEqual   uint32 = 0b0000 << 28
	FlagsLess    uint32 = 0b1011 << 28
	FlagsGreater uint32 = 0b1100 << 28
)

// RegFile represents the ARM register file.
// It contains 16 registers (R0-R15) and the CPSR.
type RegFile struct {
	// R holds R0-R15. R13 is SP, R14 is LR and R15 is PC.
	R [NumRegs]uint32

	// CPSR holds the outcome of the most recent CMP in its top nibble.
	CPSR uint32
}

// ReadReg reads a register value.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	return r.R[reg&0xF]
}

// WriteReg writes a value to a register.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	r.R[reg&0xF] = value
}

// PC returns the program counter.
func (r *RegFile) PC() uint32 {
	return r.R[PC]
}

// SetPC sets the program counter.
func (r *RegFile) SetPC(value uint32) {
	r.R[PC] = value
}

// AdvancePC moves the program counter by delta bytes.
func (r *RegFile) AdvancePC(delta int32) {
	r.R[PC] = uint32(int32(r.R[PC]) + delta)
}

// Flags returns the top nibble of CPSR.
func (r *RegFile) Flags() uint8 {
	return uint8(r.CPSR >> 28)
}

// Reset zeroes every register and the CPSR.
func (r *RegFile) Reset() {
	*r = RegFile{}
}

// String dumps the register file, one register per line.
func (r *RegFile) String() string {
	var sb strings.Builder
	for i, v := range r.R {
		fmt.Fprintf(&sb, "reg[%d] = %d\n", i, int32(v))
	}
	fmt.Fprintf(&sb, "cpsr = %X\n", r.CPSR)
	return sb.String()
}
