// Package latency provides the functional-unit timing model of the
// Tomasulo pipeline.
//
// Every opcode has a fixed latency, configurable via TimingConfig.
package latency

import (
	"github.com/sarchlab/tomasim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing
// configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the latency in cycles for the given opcode. For LOAD
// and STORE this is the memory access latency after address resolution.
func (t *Table) GetLatency(op insts.Op) uint64 {
	switch op {
	case insts.OpADD, insts.OpSUB:
		return t.config.AddLatency
	case insts.OpMUL:
		return t.config.MulLatency
	case insts.OpDIV:
		return t.config.DivLatency
	case insts.OpLOAD, insts.OpSTORE:
		return t.config.MemLatency
	default:
		return 1
	}
}

// PoolSize returns the number of slots for the given functional-unit family.
func (t *Table) PoolSize(f insts.Family) int {
	switch f {
	case insts.FamilyAdd:
		return t.config.AddStations
	case insts.FamilyMul:
		return t.config.MulStations
	case insts.FamilyMemory:
		return t.config.LoadStoreBuffers
	default:
		return 0
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
