// Package emu provides functional emulation of a 32-bit ARM subset.
package emu

import "github.com/sarchlab/armemu/insts"

// pipelineOffset is the distance between a branch and the PC value its
// offset is relative to.
const pipelineOffset = 8

// BranchUnit implements the branch operations.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// B branches to PC + 8 + offset. With link set, LR receives PC + 4 first.
func (b *BranchUnit) B(offset int32, link bool) {
	pc := b.regFile.PC()
	if link {
		b.regFile.WriteReg(LR, pc+4)
	}
	b.regFile.SetPC(uint32(int32(pc) + pipelineOffset + offset))
}

// BX branches to the address held in Rm.
func (b *BranchUnit) BX(rm uint8) {
	b.regFile.SetPC(b.regFile.ReadReg(rm))
}

// CheckCondition evaluates a condition code against the comparison
// outcome held in CPSR.
//
// Only EQ, NE, LT and GT depend on the flags; AL always holds. Every other
// code never holds.
func (b *BranchUnit) CheckCondition(cond insts.Cond) bool {
	flags := b.regFile.CPSR & 0xF0000000

	switch cond {
	case insts.CondEQ:
		return flags == FlagsEqual
	case insts.CondNE:
		return flags == FlagsLess || flags == FlagsGreater
	case insts.CondLT:
		return flags == FlagsLess
	case insts.CondGT:
		return flags == FlagsGreater
	case insts.CondAL:
		return true
	default:
		return false
	}
}
