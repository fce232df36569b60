package emu

import "sort"

// DefaultMemory returns the initial memory contents.
func DefaultMemory() map[int64]float64 {
	return map[int64]float64{
		1000: 50.0,
		1004: 60.0,
		1008: 70.0,
	}
}

// Memory is a sparse word-addressed data memory.
// Every address holds one float64; unseeded addresses read as 0.
type Memory struct {
	data map[int64]float64
}

// NewMemory creates a memory seeded with the given contents.
func NewMemory(seed map[int64]float64) *Memory {
	m := &Memory{data: make(map[int64]float64, len(seed))}
	for addr, v := range seed {
		m.data[addr] = v
	}
	return m
}

// Read returns the value at addr, or 0 if the address was never written.
func (m *Memory) Read(addr int64) float64 {
	return m.data[addr]
}

// Write stores value at addr.
func (m *Memory) Write(addr int64, value float64) {
	m.data[addr] = value
}

// Addresses returns all written addresses in ascending order.
func (m *Memory) Addresses() []int64 {
	addrs := make([]int64, 0, len(m.data))
	for addr := range m.data {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Contents returns a copy of all written addresses and their values.
func (m *Memory) Contents() map[int64]float64 {
	out := make(map[int64]float64, len(m.data))
	for addr, v := range m.data {
		out[addr] = v
	}
	return out
}
