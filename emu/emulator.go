// Package emu provides functional emulation of a 32-bit ARM subset.
package emu

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/armemu/insts"
)

// DefaultMaxInstructions is the per-call instruction budget used when none
// is configured.
const DefaultMaxInstructions = 1 << 24

// ctxCheckInterval is how many instructions run between context checks.
const ctxCheckInterval = 4096

// MaxArgs is the number of arguments passed in registers R0-R3.
const MaxArgs = 4

// CacheKey selects the value presented to the instruction cache on fetch.
type CacheKey uint8

const (
	// CacheKeyInstructionWord keys accesses by the fetched word itself.
	CacheKeyInstructionWord CacheKey = iota
	// CacheKeyFetchAddress keys accesses by the PC the word was read from.
	CacheKeyFetchAddress
)

func (k CacheKey) String() string {
	switch k {
	case CacheKeyInstructionWord:
		return "word"
	case CacheKeyFetchAddress:
		return "address"
	default:
		return fmt.Sprintf("CacheKey(%d)", uint8(k))
	}
}

// ParseCacheKey parses "word" or "address".
func ParseCacheKey(s string) (CacheKey, error) {
	switch s {
	case "word", "":
		return CacheKeyInstructionWord, nil
	case "address":
		return CacheKeyFetchAddress, nil
	default:
		return 0, fmt.Errorf("unknown cache key %q (want word or address)", s)
	}
}

// InstructionCache observes every fetched instruction.
type InstructionCache interface {
	// Access records one request for key and reports whether it hit.
	Access(key uint32) bool
}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true once PC has reached the return sentinel 0.
	Halted bool

	// Err is set if the instruction could not be executed.
	Err error
}

// Emulator executes ARM instructions functionally.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	stack   []byte
	decoder *insts.Decoder

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	cache    InstructionCache
	cacheKey CacheKey
	logger   logr.Logger

	// Execution state
	stats            Stats
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithCache attaches an instruction cache. The cache is not owned by the
// emulator and is never reset by it, so one cache can accumulate
// statistics across many calls.
func WithCache(c InstructionCache) EmulatorOption {
	return func(e *Emulator) {
		e.cache = c
	}
}

// WithCacheKey selects what the cache is keyed by.
func WithCacheKey(key CacheKey) EmulatorOption {
	return func(e *Emulator) {
		e.cacheKey = key
	}
}

// WithLogger sets the logger. V(1) reports calls, V(2) traces every
// instruction.
func WithLogger(logger logr.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// WithMaxInstructions sets the maximum number of instructions one call may
// execute. A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new emulator with an empty address space holding
// only its stack.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	regFile := &RegFile{}
	memory := NewMemory()
	stack := make([]byte, StackSize)

	if _, err := memory.Map("stack", StackBase, stack); err != nil {
		panic(err) // fresh memory has no regions to overlap
	}

	e := &Emulator{
		regFile:         regFile,
		memory:          memory,
		stack:           stack,
		decoder:         insts.NewDecoder(),
		logger:          logr.Discard(),
		maxInstructions: DefaultMaxInstructions,
	}

	for _, opt := range opts {
		opt(e)
	}

	// Create execution units
	e.alu = NewALU(regFile)
	e.lsu = NewLoadStoreUnit(regFile, memory)
	e.branchUnit = NewBranchUnit(regFile)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's address space.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// Stack returns the bytes of the emulated stack.
func (e *Emulator) Stack() []byte {
	return e.stack
}

// Stats returns the counters of the current (or last) call.
func (e *Emulator) Stats() Stats {
	return e.stats
}

// InstructionCount returns the number of instructions executed in the
// current call.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram maps a program at entry.
func (e *Emulator) LoadProgram(entry uint32, program []byte) error {
	return e.memory.LoadProgram(entry, program)
}

// ResetForCall clears all registers, flags, stack bytes and counters, then
// seeds PC with entry, SP with the top of the stack, LR with the return
// sentinel 0 and R0-R3 with args.
func (e *Emulator) ResetForCall(entry uint32, args ...uint32) error {
	if len(args) > MaxArgs {
		return fmt.Errorf("%w: %d given, at most %d", ErrTooManyArgs, len(args), MaxArgs)
	}

	e.regFile.Reset()
	clear(e.stack)
	e.stats = Stats{}
	e.instructionCount = 0

	e.regFile.SetPC(entry)
	e.regFile.WriteReg(SP, StackTop)
	e.regFile.WriteReg(LR, 0)
	for i, arg := range args {
		e.regFile.WriteReg(uint8(i), arg)
	}

	return nil
}

// Halted reports whether PC holds the return sentinel.
func (e *Emulator) Halted() bool {
	return e.regFile.PC() == 0
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.Halted() {
		return StepResult{Halted: true}
	}

	pc := e.regFile.PC()

	// 1. Fetch
	word, err := e.memory.Read32(pc)
	if err != nil {
		return StepResult{Err: &ExecError{PC: pc, Word: word, Err: fmt.Errorf("fetch: %w", err)}}
	}

	// 2. Record the access
	if e.cache != nil {
		key := word
		if e.cacheKey == CacheKeyFetchAddress {
			key = pc
		}
		e.cache.Access(key)
	}

	// 3. Decode
	inst := e.decoder.Decode(word)

	if trace := e.logger.V(2); trace.Enabled() {
		trace.Info("step", "pc", fmt.Sprintf("0x%08X", pc), "word", fmt.Sprintf("0x%08X", word), "inst", inst.String())
	}

	// 4. Execute
	if err := e.execute(inst); err != nil {
		return StepResult{Err: &ExecError{PC: pc, Word: word, Err: err}}
	}

	e.instructionCount++

	return StepResult{Halted: e.Halted()}
}

// Run executes instructions until PC reaches 0 and returns R0.
func (e *Emulator) Run(ctx context.Context) (uint32, error) {
	for !e.Halted() {
		if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
			return 0, fmt.Errorf("%w: %d instructions without returning (PC=0x%08X)",
				ErrInstructionLimit, e.instructionCount, e.regFile.PC())
		}

		if e.instructionCount%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		if result := e.Step(); result.Err != nil {
			return 0, result.Err
		}
	}

	return e.regFile.ReadReg(0), nil
}

// Call emulates a call of the routine at entry with up to four arguments
// and returns its R0.
func (e *Emulator) Call(ctx context.Context, entry uint32, args ...uint32) (uint32, error) {
	if err := e.ResetForCall(entry, args...); err != nil {
		return 0, err
	}

	e.logger.V(1).Info("call", "entry", fmt.Sprintf("0x%08X", entry), "args", args)

	result, err := e.Run(ctx)
	if err != nil {
		e.logger.V(1).Info("call failed", "entry", fmt.Sprintf("0x%08X", entry), "error", err.Error())
		return 0, fmt.Errorf("call 0x%08X: %w", entry, err)
	}

	e.logger.V(1).Info("halt", "result", int32(result), "instructions", e.stats.Total)

	return result, nil
}

// execute dispatches and executes a decoded instruction.
func (e *Emulator) execute(inst *insts.Instruction) error {
	switch inst.Format {
	case insts.FormatBranchExchange:
		e.branchUnit.BX(inst.Rm)
		e.stats.retireBranch(true)
	case insts.FormatMultiply:
		e.alu.MUL(inst.Rd, inst.Rm, inst.Rs)
		e.advanceUnlessPC(inst.Rd)
		e.stats.retireDataProcessing()
	case insts.FormatLoadStore:
		if err := e.executeLoadStore(inst); err != nil {
			return err
		}
	case insts.FormatDataProcessing:
		e.executeDataProcessing(inst)
	case insts.FormatBranch:
		e.executeBranch(inst)
	default:
		return ErrUndefinedInstruction
	}

	return nil
}

// advanceUnlessPC moves to the next instruction unless rd is PC, in which
// case the instruction itself has transferred control.
func (e *Emulator) advanceUnlessPC(rd uint8) {
	if rd != PC {
		e.regFile.AdvancePC(4)
	}
}

// operand2 resolves the second data-processing operand.
func (e *Emulator) operand2(inst *insts.Instruction) uint32 {
	if inst.Immediate {
		return inst.Imm
	}
	return e.regFile.ReadReg(inst.Rm)
}

// executeDataProcessing executes ADD, SUB, CMP, MOV and the unsupported
// opcodes, which retire without effect.
func (e *Emulator) executeDataProcessing(inst *insts.Instruction) {
	op2 := e.operand2(inst)

	switch inst.Op {
	case insts.OpADD:
		e.alu.ADD(inst.Rd, inst.Rn, op2)
		e.advanceUnlessPC(inst.Rd)
	case insts.OpSUB:
		e.alu.SUB(inst.Rd, inst.Rn, op2)
		e.advanceUnlessPC(inst.Rd)
	case insts.OpMOV:
		e.alu.MOV(inst.Rd, op2)
		e.advanceUnlessPC(inst.Rd)
	case insts.OpCMP:
		// CMP writes no register, so Rd never suppresses the advance.
		e.alu.CMP(inst.Rn, op2)
		e.regFile.AdvancePC(4)
	default:
		e.regFile.AdvancePC(4)
	}

	e.stats.retireDataProcessing()
}

// executeLoadStore executes LDR, STR, LDRB and STRB.
func (e *Emulator) executeLoadStore(inst *insts.Instruction) error {
	offset := inst.Imm
	if !inst.Immediate {
		offset = e.regFile.ReadReg(inst.Rm)
	}
	addr := e.lsu.EffectiveAddress(inst.Rn, offset)

	var err error
	switch {
	case inst.Load && inst.Byte:
		err = e.lsu.LDRB(inst.Rd, addr)
	case inst.Load:
		err = e.lsu.LDR(inst.Rd, addr)
	case inst.Byte:
		err = e.lsu.STRB(inst.Rd, addr)
	default:
		err = e.lsu.STR(inst.Rd, addr)
	}
	if err != nil {
		return err
	}

	// A store reads Rd, so only a load into PC transfers control.
	if inst.Load {
		e.advanceUnlessPC(inst.Rd)
	} else {
		e.regFile.AdvancePC(4)
	}
	e.stats.retireMemory()

	return nil
}

// executeBranch executes B and BL.
func (e *Emulator) executeBranch(inst *insts.Instruction) {
	taken := e.branchUnit.CheckCondition(inst.Cond)
	if taken {
		e.branchUnit.B(inst.BranchOffset, inst.Link)
	} else {
		e.regFile.AdvancePC(4)
	}

	e.stats.retireBranch(taken)
}
