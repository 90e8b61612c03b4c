// Package emu provides functional emulation of a 32-bit ARM subset.
package emu

// LoadStoreUnit implements the single data transfer operations.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// EffectiveAddress returns Rn + offset.
func (lsu *LoadStoreUnit) EffectiveAddress(rn uint8, offset uint32) uint32 {
	return lsu.regFile.ReadReg(rn) + offset
}

// LDR performs a word load: Rd = mem[addr]
func (lsu *LoadStoreUnit) LDR(rd uint8, addr uint32) error {
	value, err := lsu.memory.Read32(addr)
	if err != nil {
		return err
	}
	lsu.regFile.WriteReg(rd, value)
	return nil
}

// LDRB loads a byte with zero extension: Rd = zero_extend(mem[addr])
func (lsu *LoadStoreUnit) LDRB(rd uint8, addr uint32) error {
	value, err := lsu.memory.Read8(addr)
	if err != nil {
		return err
	}
	lsu.regFile.WriteReg(rd, uint32(value))
	return nil
}

// STR performs a word store: mem[addr] = Rd
func (lsu *LoadStoreUnit) STR(rd uint8, addr uint32) error {
	return lsu.memory.Write32(addr, lsu.regFile.ReadReg(rd))
}

// STRB stores a byte: mem[addr] = Rd[7:0]
func (lsu *LoadStoreUnit) STRB(rd uint8, addr uint32) error {
	return lsu.memory.Write8(addr, uint8(lsu.regFile.ReadReg(rd)))
}
