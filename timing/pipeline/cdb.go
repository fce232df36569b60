package pipeline

import "github.com/sarchlab/tomasim/insts"

// Broadcast is the single result carried on the common data bus in one
// cycle.
type Broadcast struct {
	// Family is the pool the winning slot belongs to.
	Family insts.Family
	// Index is the slot index within its pool.
	Index int
	// Producer is the tag of the winning instruction.
	Producer Tag
	// Op is the opcode of the winning instruction.
	Op insts.Op
	// Value is the computed or loaded value. For a STORE it is the payload.
	Value float64
}

// IsStore reports whether the broadcast retires a STORE, which carries no
// register result.
func (b Broadcast) IsStore() bool {
	return b.Op == insts.OpSTORE
}

// CommonDataBus arbitrates the single result broadcast of a cycle.
type CommonDataBus struct{}

// NewCommonDataBus creates a new common data bus arbiter.
func NewCommonDataBus() *CommonDataBus {
	return &CommonDataBus{}
}

// Select picks the winner among ready slots: the add pool is scanned first,
// then the mul pool, then the load/store buffers. The earliest ready slot
// in scan order wins.
func (c *CommonDataBus) Select(add, mul *StationPool, ls *BufferPool) (Broadcast, bool) {
	for _, pool := range []*StationPool{add, mul} {
		for i := range pool.Stations {
			rs := &pool.Stations[i]
			if rs.Busy && rs.Ready {
				return Broadcast{
					Family:   pool.Family,
					Index:    i,
					Producer: rs.Owner,
					Op:       rs.Op,
					Value:    rs.Result,
				}, true
			}
		}
	}

	for i := range ls.Buffers {
		b := &ls.Buffers[i]
		if !b.Busy || !b.Ready {
			continue
		}

		value := b.Result
		if b.Op == insts.OpSTORE {
			value = b.Data.Value
		}

		return Broadcast{
			Family:   insts.FamilyMemory,
			Index:    i,
			Producer: b.Owner,
			Op:       b.Op,
			Value:    value,
		}, true
	}

	return Broadcast{}, false
}

// fanOut resolves every busy slot operand waiting on producer. It returns
// the number of operands resolved.
func fanOut(add, mul *StationPool, ls *BufferPool, producer Tag, value float64) int {
	n := 0

	for _, pool := range []*StationPool{add, mul} {
		for i := range pool.Stations {
			rs := &pool.Stations[i]
			if !rs.Busy {
				continue
			}
			if rs.J.Resolve(producer, value) {
				n++
			}
			if rs.K.Resolve(producer, value) {
				n++
			}
		}
	}

	for i := range ls.Buffers {
		b := &ls.Buffers[i]
		if !b.Busy {
			continue
		}
		if b.Base.Resolve(producer, value) {
			n++
		}
		if b.Data.Resolve(producer, value) {
			n++
		}
	}

	return n
}
