// Package asm assembles the ARM subset understood by the emulator from
// text.
//
// The accepted syntax is conventional ARM assembly restricted to the
// supported instructions:
//
//	loop:   cmp   r0, #0          @ comment
//	        beq   done            ; also a comment
//	        ldr   r2, [r1, #4]
//	        ldrb  r2, [r1, r3]
//	        add   r0, r0, #-1     ; negative immediates flip add/sub
//	done:   bx    lr
//	table:  .word 1, 2, done
//
// Registers are r0-r15 with the aliases sp, lr and pc. Branch mnemonics
// take any ARM condition suffix; every other instruction executes always.
package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/armemu/insts"
)

// ErrSyntax is wrapped by every error reported for a malformed line.
var ErrSyntax = errors.New("syntax error")

// Line is one emitted word together with the source it came from.
type Line struct {
	Addr   uint32
	Word   uint32
	Source string
}

// Program is the output of a successful assembly.
type Program struct {
	Base   uint32
	Code   []byte
	Labels map[string]uint32
	Lines  []Line
}

// Symbol returns the address of a label.
func (p *Program) Symbol(name string) (uint32, bool) {
	addr, ok := p.Labels[name]
	return addr, ok
}

// Listing renders the program one word per line.
func (p *Program) Listing() string {
	var sb strings.Builder
	for _, l := range p.Lines {
		fmt.Fprintf(&sb, "%08X  %08X  %s\n", l.Addr, l.Word, l.Source)
	}
	return sb.String()
}

// Assembler is a two-pass assembler. The first pass assigns addresses to
// labels, the second encodes instructions.
type Assembler struct {
	baseAddr uint32
	labels   map[string]uint32
}

// NewAssembler creates an assembler that places code at base.
func NewAssembler(base uint32) *Assembler {
	return &Assembler{baseAddr: base}
}

// MustAssemble assembles source at base and panics on error. It is meant
// for programs built into the binary.
func MustAssemble(base uint32, source string) *Program {
	p, err := NewAssembler(base).Assemble(source)
	if err != nil {
		panic(err)
	}
	return p
}

type sourceLine struct {
	num  int
	addr uint32
	text string
}

// Assemble translates source into machine code. All malformed lines are
// reported together.
func (a *Assembler) Assemble(source string) (*Program, error) {
	a.labels = make(map[string]uint32)

	// Pass 1: label collection, address calculation
	var pending []sourceLine
	var errs []error
	offset := uint32(0)

	for i, raw := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(stripComment(raw))

		for {
			name, rest, ok := splitLabel(trimmed)
			if !ok {
				break
			}
			if !isIdent(name) {
				errs = append(errs, lineError(i+1, "bad label %q", name))
			} else if _, dup := a.labels[name]; dup {
				errs = append(errs, lineError(i+1, "label %q already defined", name))
			} else {
				a.labels[name] = a.baseAddr + offset
			}
			trimmed = rest
		}

		if trimmed == "" {
			continue
		}

		pending = append(pending, sourceLine{num: i + 1, addr: a.baseAddr + offset, text: trimmed})
		offset += 4 * lineWords(trimmed)
	}

	// Pass 2: encoding
	prog := &Program{Base: a.baseAddr, Labels: a.labels}
	for _, sl := range pending {
		words, err := a.assembleLine(sl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for i, w := range words {
			prog.Lines = append(prog.Lines, Line{Addr: sl.addr + uint32(4*i), Word: w, Source: sl.text})
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	words := make([]uint32, len(prog.Lines))
	for i, l := range prog.Lines {
		words[i] = l.Word
	}
	prog.Code = insts.BuildProgram(words...)

	return prog, nil
}

// stripComment removes an @ or ; comment from a line.
func stripComment(line string) string {
	if i := strings.IndexAny(line, "@;"); i >= 0 {
		return line[:i]
	}
	return line
}

// splitLabel peels a leading "name:" off a line.
func splitLabel(line string) (name, rest string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", line, false
	}
	name = strings.TrimSpace(line[:i])
	if strings.ContainsAny(name, " \t[#,") {
		return "", line, false
	}
	return name, strings.TrimSpace(line[i+1:]), true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '.':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// lineWords returns the number of words a statement emits.
func lineWords(stmt string) uint32 {
	mnemonic, operands := splitMnemonic(stmt)
	if mnemonic == ".word" {
		return uint32(len(splitOperands(operands)))
	}
	return 1
}

func splitMnemonic(stmt string) (string, string) {
	if i := strings.IndexAny(stmt, " \t"); i >= 0 {
		return strings.ToLower(stmt[:i]), strings.TrimSpace(stmt[i+1:])
	}
	return strings.ToLower(stmt), ""
}

// splitOperands splits on commas but keeps a bracketed address together.
func splitOperands(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var result []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				result = append(result, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(result, strings.TrimSpace(s[start:]))
}

func lineError(num int, format string, args ...any) error {
	return fmt.Errorf("line %d: %w: %s", num, ErrSyntax, fmt.Sprintf(format, args...))
}

// parseRegister accepts r0-r15, sp, lr and pc.
func parseRegister(name string) (uint8, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "sp":
		return 13, true
	case "lr":
		return 14, true
	case "pc":
		return 15, true
	}
	if strings.HasPrefix(name, "r") {
		n, err := strconv.Atoi(name[1:])
		if err == nil && n >= 0 && n <= 15 {
			return uint8(n), true
		}
	}
	return 0, false
}

// parseImmediate parses "#n" with n in decimal, hex (0x) or binary (0b).
func parseImmediate(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return 0, false
	}
	n, err := parseNumber(s[1:])
	return n, err == nil
}

// Signed 24-bit word offsets reach +/-32MB from PC + 8.
const (
	minBranchOffset = -(1 << 25)
	maxBranchOffset = 1<<25 - 4
)

// dpImmediate reports whether imm fits the 8-bit data-processing operand.
// Values 0x90-0x9F put 1001 in bits [7:4], which decodes as MUL.
func dpImmediate(imm int64) bool {
	return imm >= 0 && imm <= 0xFF && imm&0xF0 != 0x90
}

func parseNumber(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 0, 64)
}

var condNames = map[string]insts.Cond{
	"eq": insts.CondEQ, "ne": insts.CondNE,
	"cs": insts.CondCS, "hs": insts.CondCS,
	"cc": insts.CondCC, "lo": insts.CondCC,
	"mi": insts.CondMI, "pl": insts.CondPL,
	"vs": insts.CondVS, "vc": insts.CondVC,
	"hi": insts.CondHI, "ls": insts.CondLS,
	"ge": insts.CondGE, "lt": insts.CondLT,
	"gt": insts.CondGT, "le": insts.CondLE,
	"al": insts.CondAL, "": insts.CondAL,
}

// parseBranch splits a branch mnemonic into its link bit and condition.
// "bl" followed by a condition links; "blt" and "ble" are plain branches.
func parseBranch(mnemonic string) (link bool, cond insts.Cond, ok bool) {
	if !strings.HasPrefix(mnemonic, "b") {
		return false, 0, false
	}
	if strings.HasPrefix(mnemonic, "bl") {
		if c, found := condNames[mnemonic[2:]]; found {
			return true, c, true
		}
	}
	c, found := condNames[mnemonic[1:]]
	return false, c, found
}

func (a *Assembler) assembleLine(sl sourceLine) ([]uint32, error) {
	mnemonic, rest := splitMnemonic(sl.text)
	operands := splitOperands(rest)

	fail := func(format string, args ...any) ([]uint32, error) {
		return nil, lineError(sl.num, "%s: %s", sl.text, fmt.Sprintf(format, args...))
	}

	switch mnemonic {
	case ".word":
		if len(operands) == 0 {
			return fail(".word needs a value")
		}
		words := make([]uint32, len(operands))
		for i, op := range operands {
			v, ok := a.value(op)
			if !ok {
				return fail("bad value %q", op)
			}
			words[i] = v
		}
		return words, nil

	case "add", "sub":
		if len(operands) != 3 {
			return fail("want rd, rn, operand")
		}
		rd, ok1 := parseRegister(operands[0])
		rn, ok2 := parseRegister(operands[1])
		if !ok1 || !ok2 {
			return fail("bad register")
		}
		if rm, ok := parseRegister(operands[2]); ok {
			if mnemonic == "add" {
				return []uint32{insts.EncodeADDReg(rd, rn, rm)}, nil
			}
			return []uint32{insts.EncodeSUBReg(rd, rn, rm)}, nil
		}
		imm, ok := parseImmediate(operands[2])
		if !ok {
			return fail("bad operand %q", operands[2])
		}
		isAdd := mnemonic == "add"
		if imm < 0 {
			isAdd, imm = !isAdd, -imm
		}
		if !dpImmediate(imm) {
			return fail("immediate %d not encodable (want #0-#255, excluding #0x90-#0x9F)", imm)
		}
		if isAdd {
			return []uint32{insts.EncodeADDImm(rd, rn, uint8(imm))}, nil
		}
		return []uint32{insts.EncodeSUBImm(rd, rn, uint8(imm))}, nil

	case "cmp", "mov":
		if len(operands) != 2 {
			return fail("want two operands")
		}
		r, ok := parseRegister(operands[0])
		if !ok {
			return fail("bad register %q", operands[0])
		}
		if rm, ok := parseRegister(operands[1]); ok {
			if mnemonic == "cmp" {
				return []uint32{insts.EncodeCMPReg(r, rm)}, nil
			}
			return []uint32{insts.EncodeMOVReg(r, rm)}, nil
		}
		imm, ok := parseImmediate(operands[1])
		if !ok || !dpImmediate(imm) {
			return fail("bad immediate %q (want #0-#255, excluding #0x90-#0x9F)", operands[1])
		}
		if mnemonic == "cmp" {
			return []uint32{insts.EncodeCMPImm(r, uint8(imm))}, nil
		}
		return []uint32{insts.EncodeMOVImm(r, uint8(imm))}, nil

	case "mul":
		if len(operands) != 3 {
			return fail("want rd, rm, rs")
		}
		rd, ok1 := parseRegister(operands[0])
		rm, ok2 := parseRegister(operands[1])
		rs, ok3 := parseRegister(operands[2])
		if !ok1 || !ok2 || !ok3 {
			return fail("bad register")
		}
		return []uint32{insts.EncodeMUL(rd, rm, rs)}, nil

	case "ldr", "str", "ldrb", "strb":
		return a.assembleMemory(mnemonic, operands, fail)

	case "bx":
		if len(operands) != 1 {
			return fail("want one register")
		}
		rm, ok := parseRegister(operands[0])
		if !ok {
			return fail("bad register %q", operands[0])
		}
		return []uint32{insts.EncodeBX(rm)}, nil
	}

	if link, cond, ok := parseBranch(mnemonic); ok {
		if len(operands) != 1 {
			return fail("want one target")
		}
		target, ok := a.value(operands[0])
		if !ok {
			return fail("unknown target %q", operands[0])
		}
		offset := int64(target) - int64(sl.addr) - 8
		if offset%4 != 0 {
			return fail("target 0x%08X is not word aligned", target)
		}
		if offset < minBranchOffset || offset > maxBranchOffset {
			return fail("target 0x%08X out of branch range", target)
		}
		return []uint32{insts.EncodeBranch(cond, link, int32(offset))}, nil
	}

	return fail("unknown mnemonic %q", mnemonic)
}

func (a *Assembler) assembleMemory(
	mnemonic string,
	operands []string,
	fail func(string, ...any) ([]uint32, error),
) ([]uint32, error) {
	load := strings.HasPrefix(mnemonic, "ldr")
	byteSize := strings.HasSuffix(mnemonic, "b")

	if len(operands) != 2 {
		return fail("want rd, [rn, offset]")
	}
	rd, ok := parseRegister(operands[0])
	if !ok {
		return fail("bad register %q", operands[0])
	}

	addr := operands[1]
	if !strings.HasPrefix(addr, "[") || !strings.HasSuffix(addr, "]") {
		return fail("bad address %q", addr)
	}
	parts := splitOperands(addr[1 : len(addr)-1])

	rn, ok := parseRegister(parts[0])
	if !ok {
		return fail("bad base register %q", parts[0])
	}

	switch len(parts) {
	case 1:
		return []uint32{insts.EncodeLoadStoreImm(load, byteSize, rd, rn, 0)}, nil
	case 2:
		if rm, ok := parseRegister(parts[1]); ok {
			return []uint32{insts.EncodeLoadStoreReg(load, byteSize, rd, rn, rm)}, nil
		}
		imm, ok := parseImmediate(parts[1])
		if !ok || imm < 0 || imm > 0xFFF {
			return fail("bad offset %q (want #0-#4095 or a register)", parts[1])
		}
		return []uint32{insts.EncodeLoadStoreImm(load, byteSize, rd, rn, uint16(imm))}, nil
	default:
		return fail("bad address %q", addr)
	}
}

// value resolves a label or a numeric literal.
func (a *Assembler) value(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	if addr, ok := a.labels[s]; ok {
		return addr, true
	}
	n, err := parseNumber(strings.TrimPrefix(s, "#"))
	if err != nil || n < -(1<<31) || n > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(n), true
}
