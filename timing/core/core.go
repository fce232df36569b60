// Package core provides the cycle-accurate Tomasulo core model.
// It wraps the pipeline in an akita ticking component and provides a
// high-level interface for loading and running programs.
package core

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// Frequency is the clock of the simulated core. Cycle counts do not depend
// on it; it only spaces ticks on the engine's time axis.
const Frequency = 1 * sim.GHz

// Option is a functional option for configuring the Simulator.
type Option func(*Simulator)

// WithConfig sets the timing configuration. The configuration is cloned.
func WithConfig(config *latency.TimingConfig) Option {
	return func(s *Simulator) {
		s.config = config.Clone()
	}
}

// WithLogger sets the logger passed down to the pipeline.
func WithLogger(log logr.Logger) Option {
	return func(s *Simulator) {
		s.log = log
	}
}

// WithEngine sets the akita engine that schedules ticks.
func WithEngine(engine sim.Engine) Option {
	return func(s *Simulator) {
		s.engine = engine
	}
}

// WithCycleHook registers a function called with a snapshot after every
// simulated cycle.
func WithCycleHook(hook func(pipeline.Snapshot)) Option {
	return func(s *Simulator) {
		s.hooks = append(s.hooks, hook)
	}
}

// Simulator drives a Tomasulo pipeline one cycle per tick.
type Simulator struct {
	*sim.TickingComponent

	engine sim.Engine
	config *latency.TimingConfig
	log    logr.Logger
	hooks  []func(pipeline.Snapshot)

	program *loader.Program
	pipe    *pipeline.Pipeline
	err     error
}

// ErrInvalidName is returned by NewSimulator when the component name breaks
// akita's naming rules. Valid names look like "Tomasim" or "Batch.Core[2]".
var ErrInvalidName = errors.New("invalid component name")

// NewSimulator creates a simulator with no program loaded.
func NewSimulator(name string, opts ...Option) (*Simulator, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	s := &Simulator{
		config: latency.DefaultTimingConfig(),
		log:    logr.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}

	if s.engine == nil {
		s.engine = sim.NewSerialEngine()
	}

	s.TickingComponent = sim.NewTickingComponent(name, s.engine, Frequency, s)
	s.LoadProgram(&loader.Program{Name: name})

	return s, nil
}

func checkName(name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidName, r)
		}
	}()

	sim.NameMustBeValid(name)
	return nil
}

// Load reads the program at path and resets the machine state.
func (s *Simulator) Load(path string) error {
	prog, err := loader.Load(path)
	if err != nil {
		return err
	}

	s.LoadProgram(prog)
	return nil
}

// LoadProgram resets the register file, memory and pipeline to the
// configured initial state and loads prog.
func (s *Simulator) LoadProgram(prog *loader.Program) {
	for _, d := range prog.Diagnostics {
		s.log.Info("program diagnostic", "program", prog.Name,
			"line", d.Line, "skipped", d.Skipped, "detail", d.String())
	}

	s.program = prog
	s.err = nil
	s.pipe = pipeline.NewPipeline(
		emu.NewRegFile(s.config.Registers),
		emu.NewMemory(s.config.Memory),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(s.config)),
		pipeline.WithLogger(s.log.WithValues("program", prog.Name)),
	)
	s.pipe.LoadProgram(prog.Instructions)
}

// Tick advances the pipeline by one cycle. It returns false once every
// instruction has committed or the run aborted, which stops the ticking.
func (s *Simulator) Tick() bool {
	if s.err != nil || s.pipe.Done() {
		return false
	}

	if err := s.AdvanceOneCycle(); err != nil {
		return false
	}

	return !s.pipe.Done()
}

// AdvanceOneCycle simulates exactly one cycle.
func (s *Simulator) AdvanceOneCycle() error {
	if s.err != nil {
		return s.err
	}

	if err := s.pipe.Step(); err != nil {
		s.err = err
		return err
	}

	if len(s.hooks) > 0 {
		snap := s.pipe.Snapshot()
		for _, hook := range s.hooks {
			hook(snap)
		}
	}

	return nil
}

// RunToCompletion ticks the core on the engine until every instruction has
// committed. It returns a wrapped pipeline.ErrCycleLimit if the cycle cap
// is reached first.
func (s *Simulator) RunToCompletion() error {
	if s.err != nil || s.pipe.Done() {
		return s.err
	}

	s.TickLater()

	if err := s.engine.Run(); err != nil {
		return fmt.Errorf("engine run failed: %w", err)
	}

	return s.err
}

// Done reports whether every instruction has committed.
func (s *Simulator) Done() bool {
	return s.pipe.Done()
}

// Err returns the error that stopped the run, if any.
func (s *Simulator) Err() error {
	return s.err
}

// Snapshot returns a deep copy of the machine state.
func (s *Simulator) Snapshot() pipeline.Snapshot {
	return s.pipe.Snapshot()
}

// Stats returns performance statistics.
func (s *Simulator) Stats() pipeline.Statistics {
	return s.pipe.Stats()
}

// Cycle returns the number of cycles simulated.
func (s *Simulator) Cycle() uint64 {
	return s.pipe.Cycle()
}

// Program returns the loaded program.
func (s *Simulator) Program() *loader.Program {
	return s.program
}

// Config returns the timing configuration.
func (s *Simulator) Config() *latency.TimingConfig {
	return s.config
}
