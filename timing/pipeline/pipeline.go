package pipeline

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/latency"
)

// ErrCycleLimit is returned when a run exceeds the configured cycle cap
// before committing every instruction.
var ErrCycleLimit = errors.New("cycle limit exceeded")

// Slot name prefixes.
const (
	AddPrefix = "Add"
	MulPrefix = "Mult"
	LSPrefix  = "LS"
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Issued is the number of instructions issued, skipped ones included.
	Issued uint64
	// Committed is the number of instructions retired.
	Committed uint64
	// Broadcasts is the number of common data bus broadcasts.
	Broadcasts uint64
	// StructuralStalls is the number of cycles issue stalled on a full pool.
	StructuralStalls uint64
	// MemoryStalls is the number of buffer-cycles lost to memory hazards.
	MemoryStalls uint64
	// CommitStalls is the number of cycles the head had not written back.
	CommitStalls uint64
	// DivideByZero is the number of divisions with a zero divisor.
	DivideByZero uint64
}

// CPI returns the cycles per committed instruction.
func (s Statistics) CPI() float64 {
	if s.Committed == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Committed)
}

// IPC returns the committed instructions per cycle.
func (s Statistics) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Committed) / float64(s.Cycles)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLatencyTable sets the latency table, which also carries pool sizes,
// the cycle cap and the commit policy.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.latencyTable = table
	}
}

// WithLogger sets the logger. Stage events are logged at V(1).
func WithLogger(log logr.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = log
	}
}

// Pipeline is a single-issue Tomasulo pipeline with in-order commit.
//
// Each cycle runs the stages in reverse order:
// commit, writeback, execute, then issue. A result broadcast in a cycle is
// therefore not consumed by execute until the next cycle, and a slot freed
// at writeback can be filled by issue in the same cycle.
type Pipeline struct {
	regFile *emu.RegFile
	memory  *emu.Memory
	fpu     *emu.FPU

	latencyTable *latency.Table
	hazardUnit   *HazardUnit
	cdb          *CommonDataBus

	addPool *StationPool
	mulPool *StationPool
	lsPool  *BufferPool

	alias *AliasTable
	order *ProgramOrder

	pc    int
	cycle uint64
	stats Statistics
	err   error

	log logr.Logger
}

// NewPipeline creates a new Tomasulo pipeline operating on the given
// architectural state.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		regFile: regFile,
		memory:  memory,
		fpu:     emu.NewFPU(),
		cdb:     NewCommonDataBus(),
		alias:   NewAliasTable(),
		order:   NewProgramOrder(),
		log:     logr.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.latencyTable == nil {
		p.latencyTable = latency.NewTable()
	}

	t := p.latencyTable
	p.hazardUnit = NewHazardUnit(t.Config().CommitPolicy)
	p.addPool = NewStationPool(AddPrefix, insts.FamilyAdd, t.PoolSize(insts.FamilyAdd))
	p.mulPool = NewStationPool(MulPrefix, insts.FamilyMul, t.PoolSize(insts.FamilyMul))
	p.lsPool = NewBufferPool(LSPrefix, t.PoolSize(insts.FamilyMemory))

	return p
}

// LoadProgram appends the instructions to the program order.
func (p *Pipeline) LoadProgram(program []insts.Instruction) {
	for _, inst := range program {
		p.order.Append(inst)
	}
}

// PC returns the index of the next instruction to issue.
func (p *Pipeline) PC() int {
	return p.pc
}

// Cycle returns the number of cycles simulated.
func (p *Pipeline) Cycle() uint64 {
	return p.cycle
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Done reports whether every instruction has committed.
func (p *Pipeline) Done() bool {
	return p.order.AllCommitted()
}

// Err returns the error that stopped the pipeline, if any.
func (p *Pipeline) Err() error {
	return p.err
}

// RegFile returns the architectural register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Memory returns the data memory.
func (p *Pipeline) Memory() *emu.Memory {
	return p.memory
}

// Entries returns a copy of the program order entries.
func (p *Pipeline) Entries() []Entry {
	return p.order.Entries()
}

func (p *Pipeline) policy() latency.CommitPolicy {
	return p.latencyTable.Config().CommitPolicy
}

func (p *Pipeline) maxCycles() uint64 {
	return p.latencyTable.Config().MaxCycles
}

// Step simulates one cycle. It returns ErrCycleLimit, wrapped, once the
// cycle cap is reached with instructions still uncommitted; the pipeline
// does not advance after that.
func (p *Pipeline) Step() error {
	if p.err != nil {
		return p.err
	}

	if p.Done() {
		return nil
	}

	p.cycle++
	p.stats.Cycles++

	p.commit()
	p.writeback()
	p.execute()
	p.issue()

	if !p.Done() && p.cycle >= p.maxCycles() {
		p.err = fmt.Errorf("%w: %d of %d instructions committed after %d cycles",
			ErrCycleLimit, p.order.Committed(), p.order.Len(), p.cycle)
		p.log.Error(p.err, "simulation aborted",
			"cycle", p.cycle, "pc", p.pc, "committed", p.order.Committed())
		return p.err
	}

	return nil
}

// Run steps the pipeline until every instruction has committed or the cycle
// cap is reached.
func (p *Pipeline) Run() error {
	for !p.Done() {
		if err := p.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles steps the pipeline for at most the given number of cycles.
// It returns true if the pipeline is still running.
func (p *Pipeline) RunCycles(cycles uint64) (bool, error) {
	for i := uint64(0); i < cycles && !p.Done(); i++ {
		if err := p.Step(); err != nil {
			return false, err
		}
	}
	return !p.Done(), nil
}
