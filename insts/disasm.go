package insts

import "fmt"

var condSuffix = [16]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "", "nv",
}

// String returns the condition mnemonic suffix ("" for AL).
func (c Cond) String() string {
	return condSuffix[c&0xF]
}

// RegName returns the assembler name of a register.
func RegName(r uint8) string {
	switch r {
	case 13:
		return "sp"
	case 14:
		return "lr"
	case 15:
		return "pc"
	default:
		return fmt.Sprintf("r%d", r)
	}
}

func (inst *Instruction) operand2() string {
	if inst.Immediate {
		return fmt.Sprintf("#%d", inst.Imm)
	}
	return RegName(inst.Rm)
}

// String disassembles the instruction.
func (inst *Instruction) String() string {
	cond := inst.Cond.String()

	switch inst.Op {
	case OpADD:
		return fmt.Sprintf("add%s %s, %s, %s", cond, RegName(inst.Rd), RegName(inst.Rn), inst.operand2())
	case OpSUB:
		return fmt.Sprintf("sub%s %s, %s, %s", cond, RegName(inst.Rd), RegName(inst.Rn), inst.operand2())
	case OpCMP:
		return fmt.Sprintf("cmp%s %s, %s", cond, RegName(inst.Rn), inst.operand2())
	case OpMOV:
		return fmt.Sprintf("mov%s %s, %s", cond, RegName(inst.Rd), inst.operand2())
	case OpDPNop:
		return fmt.Sprintf("dp%s #%d", cond, inst.Opcode)
	case OpMUL:
		return fmt.Sprintf("mul%s %s, %s, %s", cond, RegName(inst.Rd), RegName(inst.Rm), RegName(inst.Rs))
	case OpLDR, OpSTR:
		name := "str"
		if inst.Load {
			name = "ldr"
		}
		if inst.Byte {
			name += "b"
		}
		return fmt.Sprintf("%s%s %s, [%s, %s]", name, cond, RegName(inst.Rd), RegName(inst.Rn), inst.operand2())
	case OpB, OpBL:
		name := "b"
		if inst.Link {
			name = "bl"
		}
		return fmt.Sprintf("%s%s %+d", name, cond, inst.BranchOffset)
	case OpBX:
		return fmt.Sprintf("bx%s %s", cond, RegName(inst.Rm))
	default:
		return fmt.Sprintf(".word 0x%08x", inst.Raw)
	}
}
