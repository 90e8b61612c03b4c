package insts

import "encoding/binary"

// Instruction encoding helpers. Each is the inverse of the matching
// decode path; fields are masked to their encoded width.

// EncodeDPImm encodes a data-processing instruction with an 8-bit
// immediate operand. Immediates 0x90-0x9F produce a word that decodes as
// MUL; the assembler refuses them.
func EncodeDPImm(cond Cond, opcode uint8, rd, rn uint8, imm uint8) uint32 {
	var inst uint32
	inst |= uint32(cond&0xF) << 28
	inst |= 1 << 25 // I = 1 (immediate)
	inst |= uint32(opcode&0xF) << 21
	inst |= uint32(rn&0xF) << 16
	inst |= uint32(rd&0xF) << 12
	inst |= uint32(imm)
	return inst
}

// EncodeDPReg encodes a data-processing instruction with a register
// operand.
func EncodeDPReg(cond Cond, opcode uint8, rd, rn, rm uint8) uint32 {
	var inst uint32
	inst |= uint32(cond&0xF) << 28
	inst |= uint32(opcode&0xF) << 21
	inst |= uint32(rn&0xF) << 16
	inst |= uint32(rd&0xF) << 12
	inst |= uint32(rm & 0xF)
	return inst
}

// EncodeADDImm encodes ADD Rd, Rn, #imm.
func EncodeADDImm(rd, rn uint8, imm uint8) uint32 {
	return EncodeDPImm(CondAL, dpOpcodeADD, rd, rn, imm)
}

// EncodeADDReg encodes ADD Rd, Rn, Rm.
func EncodeADDReg(rd, rn, rm uint8) uint32 {
	return EncodeDPReg(CondAL, dpOpcodeADD, rd, rn, rm)
}

// EncodeSUBImm encodes SUB Rd, Rn, #imm.
func EncodeSUBImm(rd, rn uint8, imm uint8) uint32 {
	return EncodeDPImm(CondAL, dpOpcodeSUB, rd, rn, imm)
}

// EncodeSUBReg encodes SUB Rd, Rn, Rm.
func EncodeSUBReg(rd, rn, rm uint8) uint32 {
	return EncodeDPReg(CondAL, dpOpcodeSUB, rd, rn, rm)
}

// EncodeCMPImm encodes CMP Rn, #imm. The S bit is set as an assembler
// would emit it.
func EncodeCMPImm(rn uint8, imm uint8) uint32 {
	return EncodeDPImm(CondAL, dpOpcodeCMP, 0, rn, imm) | 1<<20
}

// EncodeCMPReg encodes CMP Rn, Rm.
func EncodeCMPReg(rn, rm uint8) uint32 {
	return EncodeDPReg(CondAL, dpOpcodeCMP, 0, rn, rm) | 1<<20
}

// EncodeMOVImm encodes MOV Rd, #imm.
func EncodeMOVImm(rd uint8, imm uint8) uint32 {
	return EncodeDPImm(CondAL, dpOpcodeMOV, rd, 0, imm)
}

// EncodeMOVReg encodes MOV Rd, Rm.
func EncodeMOVReg(rd, rm uint8) uint32 {
	return EncodeDPReg(CondAL, dpOpcodeMOV, rd, 0, rm)
}

// EncodeMUL encodes MUL Rd, Rm, Rs.
func EncodeMUL(rd, rm, rs uint8) uint32 {
	var inst uint32
	inst |= uint32(CondAL) << 28
	inst |= uint32(rd&0xF) << 16
	inst |= uint32(rs&0xF) << 8
	inst |= 0b1001 << 4
	inst |= uint32(rm & 0xF)
	return inst
}

// EncodeLoadStoreImm encodes LDR/STR{B} Rd, [Rn, #offset].
func EncodeLoadStoreImm(load, byteSize bool, rd, rn uint8, offset uint16) uint32 {
	var inst uint32
	inst |= uint32(CondAL) << 28
	inst |= 0b01 << 26
	inst |= 1 << 24 // P = 1 (pre-indexed)
	inst |= 1 << 23 // U = 1 (add offset)
	if byteSize {
		inst |= 1 << 22
	}
	if load {
		inst |= 1 << 20
	}
	inst |= uint32(rn&0xF) << 16
	inst |= uint32(rd&0xF) << 12
	inst |= uint32(offset & 0xFFF)
	return inst
}

// EncodeLoadStoreReg encodes LDR/STR{B} Rd, [Rn, Rm].
func EncodeLoadStoreReg(load, byteSize bool, rd, rn, rm uint8) uint32 {
	var inst uint32
	inst |= uint32(CondAL) << 28
	inst |= 0b01 << 26
	inst |= 1 << 25 // I = 1 (register offset)
	inst |= 1 << 24
	inst |= 1 << 23
	if byteSize {
		inst |= 1 << 22
	}
	if load {
		inst |= 1 << 20
	}
	inst |= uint32(rn&0xF) << 16
	inst |= uint32(rd&0xF) << 12
	inst |= uint32(rm & 0xF)
	return inst
}

// EncodeLDRImm encodes LDR Rd, [Rn, #offset].
func EncodeLDRImm(rd, rn uint8, offset uint16) uint32 {
	return EncodeLoadStoreImm(true, false, rd, rn, offset)
}

// EncodeSTRImm encodes STR Rd, [Rn, #offset].
func EncodeSTRImm(rd, rn uint8, offset uint16) uint32 {
	return EncodeLoadStoreImm(false, false, rd, rn, offset)
}

// EncodeLDRBImm encodes LDRB Rd, [Rn, #offset].
func EncodeLDRBImm(rd, rn uint8, offset uint16) uint32 {
	return EncodeLoadStoreImm(true, true, rd, rn, offset)
}

// EncodeSTRBImm encodes STRB Rd, [Rn, #offset].
func EncodeSTRBImm(rd, rn uint8, offset uint16) uint32 {
	return EncodeLoadStoreImm(false, true, rd, rn, offset)
}

// EncodeBranch encodes B{L}{cond} with a byte offset relative to PC + 8.
// The offset must be a multiple of four within +/-32MB.
func EncodeBranch(cond Cond, link bool, offset int32) uint32 {
	var inst uint32
	inst |= uint32(cond&0xF) << 28
	inst |= 0b101 << 25
	if link {
		inst |= 1 << 24
	}
	inst |= uint32(offset>>2) & 0xFFFFFF
	return inst
}

// EncodeBranchTo encodes B{L}{cond} at address from targeting address to.
func EncodeBranchTo(cond Cond, link bool, from, to uint32) uint32 {
	return EncodeBranch(cond, link, int32(to-from-8))
}

// EncodeBX encodes BX Rm.
func EncodeBX(rm uint8) uint32 {
	return uint32(CondAL)<<28 | bxPattern<<4 | uint32(rm&0xF)
}

// BuildProgram assembles instruction words into a little-endian byte slice.
func BuildProgram(instrs ...uint32) []byte {
	program := make([]byte, len(instrs)*4)
	for i, inst := range instrs {
		binary.LittleEndian.PutUint32(program[i*4:], inst)
	}
	return program
}
