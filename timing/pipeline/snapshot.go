package pipeline

import "github.com/sarchlab/tomasim/emu"

// StationView is a named copy of a reservation station.
type StationView struct {
	Name string
	ReservationStation
}

// BufferView is a named copy of a load/store buffer.
type BufferView struct {
	Name string
	LoadStoreBuffer
}

// AliasView is one alias table entry. Unit names the slot the producer was
// issued to.
type AliasView struct {
	Register string
	Producer Tag
	Unit     string
}

// Snapshot is a deep copy of the pipeline state at the end of a cycle.
type Snapshot struct {
	Cycle     uint64
	PC        int
	Committed int
	Done      bool

	AddStations []StationView
	MulStations []StationView
	Buffers     []BufferView

	Registers map[string]float64
	Aliases   []AliasView
	Memory    map[int64]float64

	Entries []Entry
	Stats   Statistics
}

// Snapshot captures the current pipeline state.
func (p *Pipeline) Snapshot() Snapshot {
	s := Snapshot{
		Cycle:     p.cycle,
		PC:        p.pc,
		Committed: p.order.Committed(),
		Done:      p.Done(),
		Registers: p.regFile.Values(),
		Memory:    p.memory.Contents(),
		Entries:   p.order.Entries(),
		Stats:     p.stats,
	}

	s.AddStations = stationViews(p.addPool)
	s.MulStations = stationViews(p.mulPool)

	s.Buffers = make([]BufferView, len(p.lsPool.Buffers))
	for i, b := range p.lsPool.Buffers {
		s.Buffers[i] = BufferView{Name: p.lsPool.Name(i), LoadStoreBuffer: b}
	}

	aliases := p.alias.Entries()
	regs := make([]string, 0, len(aliases))
	for reg := range aliases {
		regs = append(regs, reg)
	}
	emu.SortRegisterNames(regs)

	for _, reg := range regs {
		tag := aliases[reg]
		s.Aliases = append(s.Aliases, AliasView{
			Register: reg,
			Producer: tag,
			Unit:     p.order.At(int(tag)).Unit,
		})
	}

	return s
}

func stationViews(pool *StationPool) []StationView {
	views := make([]StationView, len(pool.Stations))
	for i, rs := range pool.Stations {
		views[i] = StationView{Name: pool.Name(i), ReservationStation: rs}
	}
	return views
}
