// Package insts provides ARM instruction definitions and decoding.
//
// This package decodes 32-bit ARM machine code into structured instruction
// representations. It supports the subset executed by the emu package:
//   - Data Processing: ADD, SUB, CMP, MOV (register or 8-bit immediate)
//   - Multiply: MUL
//   - Single Data Transfer: LDR, STR, LDRB, STRB
//   - Branch instructions: B, BL, BX
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0xE2810004) // ADD R0, R1, #4
//	fmt.Printf("Op: %v, Rd: %d, Rn: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rn, inst.Imm)
package insts
