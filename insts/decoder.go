package insts

// Op represents an ARM opcode.
type Op uint16

// ARM opcodes.
const (
	OpUnknown Op = iota
	OpADD
	OpSUB
	OpCMP
	OpMOV
	OpDPNop // data-processing opcode outside the supported set
	OpMUL
	OpLDR
	OpSTR
	OpB
	OpBL
	OpBX
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown        Format = iota
	FormatDataProcessing        // Data Processing
	FormatMultiply              // Multiply
	FormatLoadStore             // Single Data Transfer
	FormatBranch                // Branch / Branch with Link
	FormatBranchExchange        // Branch and Exchange
)

// Cond represents an ARM condition code (bits [31:28]).
type Cond uint8

// ARM condition codes.
const (
	CondEQ Cond = 0b0000 // Equal
	CondNE Cond = 0b0001 // Not equal
	CondCS Cond = 0b0010
	CondCC Cond = 0b0011
	CondMI Cond = 0b0100
	CondPL Cond = 0b0101
	CondVS Cond = 0b0110
	CondVC Cond = 0b0111
	CondHI Cond = 0b1000
	CondLS Cond = 0b1001
	CondGE Cond = 0b1010
	CondLT Cond = 0b1011 // Signed less than
	CondGT Cond = 0b1100 // Signed greater than
	CondLE Cond = 0b1101
	CondAL Cond = 0b1110 // Always
	CondNV Cond = 0b1111
)

// Data-processing opcodes, bits [24:21].
const (
	dpOpcodeSUB = 0b0010
	dpOpcodeADD = 0b0100
	dpOpcodeCMP = 0b1010
	dpOpcodeMOV = 0b1101
)

// bxPattern is bits [27:4] of every BX encoding.
const bxPattern = 0b000100101111111111110001

// Instruction represents a decoded ARM instruction.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Encoding format
	Raw    uint32 // Instruction word as fetched
	Cond   Cond   // Condition code

	Rd uint8 // Destination register (source register for stores)
	Rn uint8 // Base / first operand register
	Rm uint8 // Register operand
	Rs uint8 // Multiply second operand register

	// Immediate is true when the second operand (or memory offset)
	// is an immediate rather than Rm.
	Immediate bool
	Imm       uint32 // Immediate value

	// Data-processing opcode, bits [24:21].
	Opcode uint8

	// Memory fields
	Load bool // LDR when true, STR otherwise
	Byte bool // Byte transfer when true

	// Branch fields
	Link         bool  // BL
	BranchOffset int32 // Signed byte offset, added to PC + 8
}

// Decoder decodes ARM machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new ARM instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit ARM instruction word.
//
// The encodings overlap, so the checks run in a fixed order: BX and MUL
// are special cases of the data-processing space and must be tested
// before it.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Op:     OpUnknown,
		Format: FormatUnknown,
		Raw:    word,
		Cond:   Cond(word >> 28),
	}

	switch {
	case d.isBranchExchange(word):
		d.decodeBranchExchange(word, inst)
	case d.isMultiply(word):
		d.decodeMultiply(word, inst)
	case d.isLoadStore(word):
		d.decodeLoadStore(word, inst)
	case d.isDataProcessing(word):
		d.decodeDataProcessing(word, inst)
	case d.isBranch(word):
		d.decodeBranch(word, inst)
	}

	return inst
}

// opClass returns bits [27:26].
func opClass(word uint32) uint32 {
	return (word >> 26) & 0b11
}

// isBranchExchange checks bits [27:4] against the BX pattern.
func (d *Decoder) isBranchExchange(word uint32) bool {
	return (word>>4)&0xFFFFFF == bxPattern
}

// decodeBranchExchange decodes BX Rm.
// Format: cond | 0001 0010 1111 1111 1111 0001 | Rm
func (d *Decoder) decodeBranchExchange(word uint32, inst *Instruction) {
	inst.Format = FormatBranchExchange
	inst.Op = OpBX
	inst.Rm = uint8(word & 0xF)
}

// isMultiply checks for op class 0 with bits [7:4] == 0b1001.
func (d *Decoder) isMultiply(word uint32) bool {
	return opClass(word) == 0 && (word>>4)&0xF == 0b1001
}

// decodeMultiply decodes MUL Rd, Rm, Rs.
// Format: cond | 000000 | A | S | Rd | Rn | Rs | 1001 | Rm
func (d *Decoder) decodeMultiply(word uint32, inst *Instruction) {
	inst.Format = FormatMultiply
	inst.Op = OpMUL
	inst.Rd = uint8((word >> 16) & 0xF)
	inst.Rn = uint8((word >> 12) & 0xF)
	inst.Rs = uint8((word >> 8) & 0xF)
	inst.Rm = uint8(word & 0xF)
}

// isLoadStore checks for op class 1.
func (d *Decoder) isLoadStore(word uint32) bool {
	return opClass(word) == 1
}

// decodeLoadStore decodes single data transfers.
// Format: cond | 01 | I | P | U | B | W | L | Rn | Rd | offset12
func (d *Decoder) decodeLoadStore(word uint32, inst *Instruction) {
	inst.Format = FormatLoadStore

	inst.Load = (word>>20)&0x1 == 1
	inst.Byte = (word>>22)&0x1 == 1
	inst.Rn = uint8((word >> 16) & 0xF)
	inst.Rd = uint8((word >> 12) & 0xF)

	// Bit 25 set selects a register offset.
	if (word>>25)&0x1 == 1 {
		inst.Rm = uint8(word & 0xF)
	} else {
		inst.Immediate = true
		inst.Imm = word & 0xFFF
	}

	if inst.Load {
		inst.Op = OpLDR
	} else {
		inst.Op = OpSTR
	}
}

// isDataProcessing checks for op class 0.
func (d *Decoder) isDataProcessing(word uint32) bool {
	return opClass(word) == 0
}

// decodeDataProcessing decodes ADD, SUB, CMP and MOV.
// Format: cond | 00 | I | opcode | S | Rn | Rd | operand2
func (d *Decoder) decodeDataProcessing(word uint32, inst *Instruction) {
	inst.Format = FormatDataProcessing

	opcode := (word >> 21) & 0xF
	inst.Opcode = uint8(opcode)
	inst.Rn = uint8((word >> 16) & 0xF)
	inst.Rd = uint8((word >> 12) & 0xF)

	if (word>>25)&0x1 == 1 {
		inst.Immediate = true
		inst.Imm = word & 0xFF
	} else {
		inst.Rm = uint8(word & 0xF)
	}

	switch opcode {
	case dpOpcodeADD:
		inst.Op = OpADD
	case dpOpcodeSUB:
		inst.Op = OpSUB
	case dpOpcodeCMP:
		inst.Op = OpCMP
	case dpOpcodeMOV:
		inst.Op = OpMOV
	default:
		inst.Op = OpDPNop
	}
}

// isBranch checks bits [27:25] == 0b101.
func (d *Decoder) isBranch(word uint32) bool {
	return (word>>25)&0b111 == 0b101
}

// decodeBranch decodes B and BL.
// Format: cond | 101 | L | imm24
func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	inst.Format = FormatBranch
	inst.Link = (word>>24)&0x1 == 1
	inst.BranchOffset = BranchOffset(word)

	if inst.Link {
		inst.Op = OpBL
	} else {
		inst.Op = OpB
	}
}

// BranchOffset extracts the signed byte offset of a B/BL word: imm24
// shifted left by two and sign-extended from bit 25.
func BranchOffset(word uint32) int32 {
	// Move imm24 to the top of the word, then shift back arithmetically:
	// net left shift of 2 with sign extension.
	return int32(word<<8) >> 6
}
