// Package pipeline provides the Tomasulo pipeline with in-order commit:
// reservation stations, load/store buffers, the register alias table, the
// program order tracker, and the issue, execute, writeback and commit stages.
package pipeline

import (
	"sort"

	"github.com/sarchlab/tomasim/emu"
)

// Tag identifies the producer of a value. It is the program-order id of the
// producing instruction, so a slot can be reused while its previous owner
// still waits to commit.
type Tag int

// NoTag is the producer of a value that is architecturally ready.
const NoTag Tag = -1

// Operand is a source operand of a station or buffer. It either holds a
// resolved value or waits on a producer tag.
type Operand struct {
	// Value is valid only when Waiting is false.
	Value float64
	// Waiting is true until the producer broadcasts.
	Waiting bool
	// Producer is the tag being waited on.
	Producer Tag
}

// Ready returns a resolved operand.
func Ready(value float64) Operand {
	return Operand{Value: value, Producer: NoTag}
}

// WaitingOn returns an operand that waits for the given producer.
func WaitingOn(producer Tag) Operand {
	return Operand{Waiting: true, Producer: producer}
}

// Resolve fills in the value if the operand waits on producer. It returns
// true if the operand was resolved.
func (o *Operand) Resolve(producer Tag, value float64) bool {
	if !o.Waiting || o.Producer != producer {
		return false
	}
	*o = Ready(value)
	return true
}

// AliasTable maps a register to the tag of the in-flight instruction that
// will produce its next value. A register without an entry holds an
// architectural value.
type AliasTable struct {
	producers map[string]Tag
}

// NewAliasTable creates an empty alias table.
func NewAliasTable() *AliasTable {
	return &AliasTable{producers: make(map[string]Tag)}
}

// Lookup returns the producer of reg, if any.
func (a *AliasTable) Lookup(reg string) (Tag, bool) {
	tag, ok := a.producers[reg]
	return tag, ok
}

// Set makes tag the producer of reg, replacing any earlier producer.
func (a *AliasTable) Set(reg string, tag Tag) {
	a.producers[reg] = tag
}

// ClearIf removes the alias of reg only if it still names tag. It returns
// false when a later instruction has re-aliased the register.
func (a *AliasTable) ClearIf(reg string, tag Tag) bool {
	current, ok := a.producers[reg]
	if !ok || current != tag {
		return false
	}
	delete(a.producers, reg)
	return true
}

// RegistersFor returns the registers currently aliased to tag, sorted.
func (a *AliasTable) RegistersFor(tag Tag) []string {
	var regs []string
	for reg, t := range a.producers {
		if t == tag {
			regs = append(regs, reg)
		}
	}
	sort.Strings(regs)
	return regs
}

// Len returns the number of aliased registers.
func (a *AliasTable) Len() int {
	return len(a.producers)
}

// Entries returns a copy of the table.
func (a *AliasTable) Entries() map[string]Tag {
	out := make(map[string]Tag, len(a.producers))
	for reg, t := range a.producers {
		out[reg] = t
	}
	return out
}

// readOperand resolves reg against the alias table and the register file.
func readOperand(alias *AliasTable, regFile *emu.RegFile, reg string) Operand {
	if tag, ok := alias.Lookup(reg); ok {
		return WaitingOn(tag)
	}
	return Ready(regFile.ReadReg(reg))
}
