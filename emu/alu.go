// Package emu provides functional emulation of a 32-bit ARM subset.
package emu

// ALU implements the data-processing and multiply operations.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// ADD performs Rd = Rn + op2.
func (a *ALU) ADD(rd, rn uint8, op2 uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rn)+op2)
}

// SUB performs Rd = Rn - op2.
func (a *ALU) SUB(rd, rn uint8, op2 uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rn)-op2)
}

// MOV performs Rd = op2.
func (a *ALU) MOV(rd uint8, op2 uint32) {
	a.regFile.WriteReg(rd, op2)
}

// CMP compares Rn with op2 and records the outcome in CPSR.
// The difference is taken modulo 2^32 and read as signed, so operands
// whose true difference overflows 32 bits compare by the wrapped result.
func (a *ALU) CMP(rn uint8, op2 uint32) {
	diff := int32(a.regFile.ReadReg(rn) - op2)

	switch {
	case diff == 0:
		a.regFile.CPSR = FlagsEqual
	case diff < 0:
		a.regFile.CPSR = FlagsLess
	default:
		a.regFile.CPSR = FlagsGreater
	}
}

// MUL performs Rd = Rm * Rs, keeping the low 32 bits.
func (a *ALU) MUL(rd, rm, rs uint8) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rm)*a.regFile.ReadReg(rs))
}
