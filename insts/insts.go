// Package insts provides the floating-point instruction definitions and the
// text decoder used by the Tomasulo simulator.
//
// The package supports two instruction shapes:
//   - Arithmetic: ADD, SUB, MUL, DIV with a destination and two source
//     registers, written as "OP DEST,SRC1,SRC2" or "OP DEST SRC1 SRC2".
//   - Memory: LOAD and STORE written as "OP REG,OFFSET(BASE)". REG is the
//     destination of a LOAD and the value source of a STORE.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode("ADD F9,F1,F2")
//	fmt.Printf("Op: %v, Dest: %s, Src: %s %s\n", inst.Op, inst.Dest, inst.Src1, inst.Src2)
package insts

import (
	"fmt"
)

// Op represents an opcode.
type Op uint8

// Opcodes.
const (
	OpUnknown Op = iota
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpLOAD
	OpSTORE
)

var opNames = map[Op]string{
	OpUnknown: "UNKNOWN",
	OpADD:     "ADD",
	OpSUB:     "SUB",
	OpMUL:     "MUL",
	OpDIV:     "DIV",
	OpLOAD:    "LOAD",
	OpSTORE:   "STORE",
}

// String returns the mnemonic of the opcode.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// ParseOp maps an upper-case mnemonic to its opcode. Unrecognized mnemonics
// return OpUnknown.
func ParseOp(mnemonic string) Op {
	for op, name := range opNames {
		if op != OpUnknown && name == mnemonic {
			return op
		}
	}
	return OpUnknown
}

// Family groups opcodes by the functional-unit pool that executes them.
type Family uint8

// Functional-unit families.
const (
	FamilyNone Family = iota
	FamilyAdd         // ADD, SUB
	FamilyMul         // MUL, DIV
	FamilyMemory      // LOAD, STORE
)

// String returns a short name of the family.
func (f Family) String() string {
	switch f {
	case FamilyAdd:
		return "add"
	case FamilyMul:
		return "mul"
	case FamilyMemory:
		return "memory"
	default:
		return "none"
	}
}

// Family returns the functional-unit family of the opcode.
func (op Op) Family() Family {
	switch op {
	case OpADD, OpSUB:
		return FamilyAdd
	case OpMUL, OpDIV:
		return FamilyMul
	case OpLOAD, OpSTORE:
		return FamilyMemory
	default:
		return FamilyNone
	}
}

// IsMemory returns true for LOAD and STORE.
func (op Op) IsMemory() bool {
	return op.Family() == FamilyMemory
}

// WritesRegister returns true if the opcode produces a register value.
// STORE is the only known opcode that does not.
func (op Op) WritesRegister() bool {
	return op != OpSTORE && op != OpUnknown
}

// Instruction represents one static operation of the program.
type Instruction struct {
	Op       Op     // Operation code
	Mnemonic string // Mnemonic as written, kept for unknown opcodes

	// Dest is the destination register for arithmetic ops and LOAD, and the
	// register whose value is stored for STORE.
	Dest string

	// Arithmetic source registers.
	Src1 string
	Src2 string

	// Memory operand: effective address = value(Base) + Offset.
	Base   string
	Offset int64

	// Line is the 1-based source line the instruction was decoded from.
	Line int
	// Text is the normalized source text.
	Text string
}

// String formats the instruction in its canonical comma syntax.
func (i *Instruction) String() string {
	mnemonic := i.Mnemonic
	if mnemonic == "" {
		mnemonic = i.Op.String()
	}
	if i.Op.IsMemory() {
		return fmt.Sprintf("%s %s,%d(%s)", mnemonic, i.Dest, i.Offset, i.Base)
	}
	return fmt.Sprintf("%s %s,%s,%s", mnemonic, i.Dest, i.Src1, i.Src2)
}
