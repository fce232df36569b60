package latency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/tomasim/emu"
)

// CommitPolicy selects when results become architecturally visible.
type CommitPolicy string

const (
	// CommitGated stages results at writeback and updates the register file,
	// alias table and memory at commit.
	CommitGated CommitPolicy = "commit"

	// ImmediateWriteback updates the register file, alias table and memory at
	// writeback. Commit only retires the instruction.
	ImmediateWriteback CommitPolicy = "writeback"
)

// TimingConfig holds latencies, pool sizes and initial state for the
// Tomasulo pipeline.
type TimingConfig struct {
	// AddLatency is the execution latency of ADD and SUB.
	// Default: 2 cycles.
	AddLatency uint64 `json:"add_latency" yaml:"add_latency"`

	// MulLatency is the execution latency of MUL.
	// Default: 10 cycles.
	MulLatency uint64 `json:"mul_latency" yaml:"mul_latency"`

	// DivLatency is the execution latency of DIV.
	// Default: 40 cycles.
	DivLatency uint64 `json:"div_latency" yaml:"div_latency"`

	// MemLatency is the memory access latency of LOAD and STORE, counted
	// after the effective address is resolved. Default: 2 cycles.
	MemLatency uint64 `json:"mem_latency" yaml:"mem_latency"`

	// AddStations is the number of ADD/SUB reservation stations.
	// Default: 3.
	AddStations int `json:"add_stations" yaml:"add_stations"`

	// MulStations is the number of MUL/DIV reservation stations.
	// Default: 2.
	MulStations int `json:"mul_stations" yaml:"mul_stations"`

	// LoadStoreBuffers is the number of load/store buffers.
	// Default: 3.
	LoadStoreBuffers int `json:"load_store_buffers" yaml:"load_store_buffers"`

	// MaxCycles aborts a run that has not committed every instruction after
	// this many cycles. Default: 500.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`

	// CommitPolicy selects commit-gated or immediate writeback.
	// Default: commit.
	CommitPolicy CommitPolicy `json:"commit_policy" yaml:"commit_policy"`

	// Registers seeds the register file. Default: F0-F8 = 10.0-18.0.
	Registers map[string]float64 `json:"registers" yaml:"registers"`

	// Memory seeds the data memory.
	// Default: [1000]=50, [1004]=60, [1008]=70.
	Memory map[int64]float64 `json:"memory" yaml:"memory"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		AddLatency:       2,
		MulLatency:       10,
		DivLatency:       40,
		MemLatency:       2,
		AddStations:      3,
		MulStations:      2,
		LoadStoreBuffers: 3,
		MaxCycles:        500,
		CommitPolicy:     CommitGated,
		Registers:        emu.DefaultRegisters(),
		Memory:           emu.DefaultMemory(),
	}
}

// LoadConfig loads a TimingConfig from a JSON or YAML file. Files ending in
// .yaml or .yml are parsed as YAML, everything else as JSON. Fields absent
// from the file keep their default values; register and memory entries are
// added to the default seeds.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON or YAML file, chosen by the
// file extension as in LoadConfig.
func (c *TimingConfig) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Validate checks that latencies and pool sizes are positive and the policy
// is known.
func (c *TimingConfig) Validate() error {
	if c.AddLatency == 0 {
		return fmt.Errorf("add_latency must be > 0")
	}
	if c.MulLatency == 0 {
		return fmt.Errorf("mul_latency must be > 0")
	}
	if c.DivLatency == 0 {
		return fmt.Errorf("div_latency must be > 0")
	}
	if c.MemLatency == 0 {
		return fmt.Errorf("mem_latency must be > 0")
	}
	if c.AddStations <= 0 {
		return fmt.Errorf("add_stations must be > 0")
	}
	if c.MulStations <= 0 {
		return fmt.Errorf("mul_stations must be > 0")
	}
	if c.LoadStoreBuffers <= 0 {
		return fmt.Errorf("load_store_buffers must be > 0")
	}
	if c.MaxCycles == 0 {
		return fmt.Errorf("max_cycles must be > 0")
	}
	switch c.CommitPolicy {
	case CommitGated, ImmediateWriteback:
	default:
		return fmt.Errorf("commit_policy must be %q or %q, got %q",
			CommitGated, ImmediateWriteback, c.CommitPolicy)
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c

	clone.Registers = make(map[string]float64, len(c.Registers))
	for name, v := range c.Registers {
		clone.Registers[name] = v
	}

	clone.Memory = make(map[int64]float64, len(c.Memory))
	for addr, v := range c.Memory {
		clone.Memory[addr] = v
	}

	return &clone
}
