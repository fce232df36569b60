package emu

import (
	"errors"

	"github.com/sarchlab/tomasim/insts"
)

// ErrDivideByZero is returned by FPU.Compute when a DIV has a zero divisor.
// The accompanying result is the 0.0 sentinel.
var ErrDivideByZero = errors.New("division by zero")

// ErrNotArithmetic is returned by FPU.Compute for non-arithmetic opcodes.
var ErrNotArithmetic = errors.New("not an arithmetic opcode")

// FPU implements the floating-point arithmetic of ADD, SUB, MUL and DIV.
type FPU struct{}

// NewFPU creates a new floating-point unit.
func NewFPU() *FPU {
	return &FPU{}
}

// Compute returns op(a, b) in IEEE double precision.
// DIV by zero returns 0 together with ErrDivideByZero; callers are expected
// to keep the result and report the error.
func (f *FPU) Compute(op insts.Op, a, b float64) (float64, error) {
	switch op {
	case insts.OpADD:
		return a + b, nil
	case insts.OpSUB:
		return a - b, nil
	case insts.OpMUL:
		return a * b, nil
	case insts.OpDIV:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a / b, nil
	default:
		return 0, ErrNotArithmetic
	}
}
