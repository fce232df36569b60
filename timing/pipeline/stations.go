package pipeline

import (
	"fmt"

	"github.com/sarchlab/tomasim/insts"
)

// ReservationStation holds one in-flight arithmetic operation.
type ReservationStation struct {
	// Busy is true iff the station holds a live instruction.
	Busy bool

	// Op is the arithmetic opcode.
	Op insts.Op

	// Owner is the tag of the instruction occupying the station.
	Owner Tag

	// J and K are the two source operands.
	J Operand
	K Operand

	// Remaining is the number of execution cycles left.
	// -1 means execution has not started; 0 means the result is computed.
	Remaining int

	// Result is the computed value, valid when Ready is true.
	Result float64

	// Ready signals that the result waits for the common data bus.
	Ready bool
}

// Clear resets the station to the free state.
func (rs *ReservationStation) Clear() {
	*rs = ReservationStation{Owner: NoTag, Remaining: -1}
	rs.J.Producer = NoTag
	rs.K.Producer = NoTag
}

// LoadStoreBuffer holds one in-flight memory operation.
type LoadStoreBuffer struct {
	// Busy is true iff the buffer holds a live instruction.
	Busy bool

	// Op is LOAD or STORE.
	Op insts.Op

	// Owner is the tag of the instruction occupying the buffer.
	Owner Tag

	// Dest is the destination register of a LOAD or the data register of a
	// STORE.
	Dest string

	// Base is the base register operand; Offset is added to it.
	Base   Operand
	Offset int64

	// Address is the effective address, valid when AddressReady is true.
	Address      int64
	AddressReady bool

	// Data is the value to store (STORE only).
	Data Operand

	// Remaining is the number of memory access cycles left.
	// -1 means the access has not started.
	Remaining int

	// Result is the loaded value (LOAD only), valid when Ready is true.
	Result float64

	// Ready signals that the access finished and waits for the bus.
	Ready bool
}

// Clear resets the buffer to the free state.
func (b *LoadStoreBuffer) Clear() {
	*b = LoadStoreBuffer{Owner: NoTag, Remaining: -1}
	b.Base.Producer = NoTag
	b.Data.Producer = NoTag
}

// StationPool is a fixed-size pool of reservation stations for one
// functional-unit family.
type StationPool struct {
	// Prefix names the stations: Prefix1, Prefix2, ...
	Prefix   string
	Family   insts.Family
	Stations []ReservationStation
}

// NewStationPool creates a pool of size free stations.
func NewStationPool(prefix string, family insts.Family, size int) *StationPool {
	p := &StationPool{
		Prefix:   prefix,
		Family:   family,
		Stations: make([]ReservationStation, size),
	}
	for i := range p.Stations {
		p.Stations[i].Clear()
	}
	return p
}

// FindFree returns the index of the first free station, or -1.
func (p *StationPool) FindFree() int {
	for i := range p.Stations {
		if !p.Stations[i].Busy {
			return i
		}
	}
	return -1
}

// Name returns the display name of station i.
func (p *StationPool) Name(i int) string {
	return fmt.Sprintf("%s%d", p.Prefix, i+1)
}

// BusyCount returns the number of busy stations.
func (p *StationPool) BusyCount() int {
	n := 0
	for i := range p.Stations {
		if p.Stations[i].Busy {
			n++
		}
	}
	return n
}

// BufferPool is the fixed-size pool of load/store buffers.
type BufferPool struct {
	Prefix  string
	Buffers []LoadStoreBuffer
}

// NewBufferPool creates a pool of size free buffers.
func NewBufferPool(prefix string, size int) *BufferPool {
	p := &BufferPool{
		Prefix:  prefix,
		Buffers: make([]LoadStoreBuffer, size),
	}
	for i := range p.Buffers {
		p.Buffers[i].Clear()
	}
	return p
}

// FindFree returns the index of the first free buffer, or -1.
func (p *BufferPool) FindFree() int {
	for i := range p.Buffers {
		if !p.Buffers[i].Busy {
			return i
		}
	}
	return -1
}

// Name returns the display name of buffer i.
func (p *BufferPool) Name(i int) string {
	return fmt.Sprintf("%s%d", p.Prefix, i+1)
}

// BusyCount returns the number of busy buffers.
func (p *BufferPool) BusyCount() int {
	n := 0
	for i := range p.Buffers {
		if p.Buffers[i].Busy {
			n++
		}
	}
	return n
}
