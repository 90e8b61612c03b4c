package emu

import (
	"errors"
	"fmt"
)

var (
	// ErrUndefinedInstruction is returned when a fetched word matches none
	// of the supported instruction classes.
	ErrUndefinedInstruction = errors.New("undefined instruction")

	// ErrInstructionLimit is returned when a call exceeds its instruction
	// budget without returning.
	ErrInstructionLimit = errors.New("instruction limit reached")

	// ErrOutOfBounds is returned when an access falls outside every
	// mapped memory region.
	ErrOutOfBounds = errors.New("out-of-bounds access")

	// ErrTooManyArgs is returned when a call passes more than four
	// register arguments.
	ErrTooManyArgs = errors.New("too many arguments")
)

// ExecError reports a fault raised while executing the instruction at PC.
type ExecError struct {
	PC   uint32
	Word uint32
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("PC=0x%08X word=0x%08X: %v", e.PC, e.Word, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
