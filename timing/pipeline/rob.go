package pipeline

import "github.com/sarchlab/tomasim/insts"

// State is the lifecycle state of an instruction.
type State uint8

// Instruction states, in the only order they may be taken.
const (
	StateNotIssued State = iota
	StateIssued
	StateExecuting
	StateWriteResult
	StateCommitted
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateNotIssued:
		return "NOT_ISSUED"
	case StateIssued:
		return "ISSUED"
	case StateExecuting:
		return "EXECUTING"
	case StateWriteResult:
		return "WRITE_RESULT"
	case StateCommitted:
		return "COMMITTED"
	default:
		return "UNKNOWN"
	}
}

// Entry is one instruction of the program together with its lifecycle
// state and cycle timestamps. A timestamp of 0 means the stage has not been
// reached.
type Entry struct {
	// ID is the program-order sequence number, starting at 0.
	ID int

	// Inst is the static instruction.
	Inst insts.Instruction

	// State is the lifecycle state.
	State State

	// Cycle timestamps.
	IssueCycle     uint64
	ExecStartCycle uint64
	ExecEndCycle   uint64
	WriteCycle     uint64
	CommitCycle    uint64

	// Unit is the name of the station or buffer the instruction was issued
	// to.
	Unit string

	// Skipped marks an instruction with an unknown opcode. It is retired
	// with no effect.
	Skipped bool

	// Address is the effective address of a memory operation, valid when
	// AddressValid is true.
	Address      int64
	AddressValid bool

	// Value is the broadcast result, or the payload of a STORE, staged at
	// writeback. Valid when HasValue is true.
	Value    float64
	HasValue bool
}

// Tag returns the producer tag of the entry.
func (e *Entry) Tag() Tag {
	return Tag(e.ID)
}

// ProgramOrder is the ordered instruction list. It serves as an implicit
// reorder buffer: entries are never removed or reordered, and commit only
// advances a cursor.
type ProgramOrder struct {
	entries   []Entry
	committed int
}

// NewProgramOrder creates an empty program order tracker.
func NewProgramOrder() *ProgramOrder {
	return &ProgramOrder{}
}

// Append adds inst at the end and returns its sequence id.
func (o *ProgramOrder) Append(inst insts.Instruction) int {
	id := len(o.entries)
	o.entries = append(o.entries, Entry{ID: id, Inst: inst})
	return id
}

// At returns a mutable reference to entry id.
func (o *ProgramOrder) At(id int) *Entry {
	return &o.entries[id]
}

// Len returns the number of instructions.
func (o *ProgramOrder) Len() int {
	return len(o.entries)
}

// Committed returns the commit cursor: the number of committed entries.
func (o *ProgramOrder) Committed() int {
	return o.committed
}

// AllCommitted reports whether the commit cursor reached the end.
func (o *ProgramOrder) AllCommitted() bool {
	return o.committed >= len(o.entries)
}

// Head returns the oldest uncommitted entry, or nil.
func (o *ProgramOrder) Head() *Entry {
	if o.AllCommitted() {
		return nil
	}
	return &o.entries[o.committed]
}

// Advance moves the commit cursor past the head entry.
func (o *ProgramOrder) Advance() {
	if !o.AllCommitted() {
		o.committed++
	}
}

// Entries returns a copy of all entries.
func (o *ProgramOrder) Entries() []Entry {
	out := make([]Entry, len(o.entries))
	copy(out, o.entries)
	return out
}
