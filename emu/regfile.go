// Package emu provides the architectural state of the floating-point unit:
// the register file, the data memory, and the arithmetic unit.
package emu

import (
	"fmt"
	"sort"
	"strconv"
)

// DefaultRegisterCount is the number of registers seeded by
// DefaultRegisters (F0-F8).
const DefaultRegisterCount = 9

// RegisterName returns the name of floating-point register i ("F<i>").
func RegisterName(i int) string {
	return "F" + strconv.Itoa(i)
}

// DefaultRegisters returns the initial register values F0-F8 = 10.0-18.0.
func DefaultRegisters() map[string]float64 {
	regs := make(map[string]float64, DefaultRegisterCount)
	for i := 0; i < DefaultRegisterCount; i++ {
		regs[RegisterName(i)] = float64(i) + 10.0
	}
	return regs
}

// RegFile represents the architectural floating-point register file.
// Registers are created on first write. Reading a register that was never
// written returns 0.
type RegFile struct {
	values map[string]float64
}

// NewRegFile creates a register file seeded with the given values.
func NewRegFile(seed map[string]float64) *RegFile {
	r := &RegFile{values: make(map[string]float64, len(seed))}
	for name, v := range seed {
		r.values[name] = v
	}
	return r
}

// ReadReg reads a register value. Unknown registers read as 0.
func (r *RegFile) ReadReg(name string) float64 {
	return r.values[name]
}

// WriteReg writes a value to a register.
func (r *RegFile) WriteReg(name string, value float64) {
	r.values[name] = value
}

// Has reports whether the register has been seeded or written.
func (r *RegFile) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Names returns all known register names in natural order (F2 before F10).
func (r *RegFile) Names() []string {
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	SortRegisterNames(names)
	return names
}

// Values returns a copy of all register values.
func (r *RegFile) Values() map[string]float64 {
	out := make(map[string]float64, len(r.values))
	for name, v := range r.values {
		out[name] = v
	}
	return out
}

// String formats the register file as "F0=10 F1=11 ...".
func (r *RegFile) String() string {
	s := ""
	for i, name := range r.Names() {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%g", name, r.values[name])
	}
	return s
}

// SortRegisterNames sorts names by their letter prefix, then by numeric
// suffix.
func SortRegisterNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		pi, ni := splitRegisterName(names[i])
		pj, nj := splitRegisterName(names[j])
		if pi != pj {
			return pi < pj
		}
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
}

func splitRegisterName(name string) (string, int) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return name, -1
	}
	return name[:i], n
}
