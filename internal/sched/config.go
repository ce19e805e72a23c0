package sched

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	yaml "github.com/goccy/go-yaml"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// MinQuantum is the smallest quantum either tier accepts.
const MinQuantum = 2

// Selection chooses how the preemptive dispatcher compares candidates.
type Selection string

const (
	// SelectAdjacent compares only neighbouring queue entries.
	SelectAdjacent Selection = "adjacent"
	// SelectGlobal picks the best candidate of the whole queue.
	SelectGlobal Selection = "global"
)

// ClockStart chooses the tick the simulation clock starts at.
type ClockStart string

const (
	// StartAtHead starts at the arrival of the first process in input order.
	StartAtHead ClockStart = "head"
	// StartAtMinArrival starts at the earliest arrival of any process.
	StartAtMinArrival ClockStart = "min_arrival"
)

// Config mirrors the scheduling section of config.yml.
type Config struct {
	QuantumA        int        `yaml:"quantum_a"`        // 4 (by default)
	QuantumB        int        `yaml:"quantum_b"`        // 8 (by default)
	Preemptive      bool       `yaml:"preemptive"`       // false (by default)
	Selection       Selection  `yaml:"selection"`        // adjacent (by default)
	ClockStart      ClockStart `yaml:"clock_start"`      // head (by default)
	MaxTicks        int64      `yaml:"max_ticks"`        // 0 = unbounded
	CheckInvariants bool       `yaml:"check_invariants"` // verify queue membership every tick
}

// DefaultConfig returns the values used when config.yml is absent.
func DefaultConfig() Config {
	return Config{
		QuantumA:   4,
		QuantumB:   8,
		Selection:  SelectAdjacent,
		ClockStart: StartAtHead,
	}
}

// Validate rejects configurations the simulation cannot run with.
func (c Config) Validate() error {
	if c.QuantumA < MinQuantum || c.QuantumB < MinQuantum {
		return fmt.Errorf("%w: quantum_a and quantum_b must be at least %d (got %d, %d)",
			ErrInvalidConfig, MinQuantum, c.QuantumA, c.QuantumB)
	}
	switch c.Selection {
	case SelectAdjacent, SelectGlobal:
	default:
		return fmt.Errorf("%w: unknown selection %q", ErrInvalidConfig, c.Selection)
	}
	switch c.ClockStart {
	case StartAtHead, StartAtMinArrival:
	default:
		return fmt.Errorf("%w: unknown clock_start %q", ErrInvalidConfig, c.ClockStart)
	}
	if c.MaxTicks < 0 {
		return fmt.Errorf("%w: max_ticks must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Load reads YAML over the defaults. An empty path or a missing file
// yields the defaults. The result is not validated.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	err := LoadInto(path, &cfg)
	return cfg, err
}

// LoadInto decodes the YAML file at path over dst, which holds the
// defaults. Larger settings structs embed Config inline and share one
// read of the file. An empty path or a missing file leaves dst untouched.
func LoadInto(path string, dst any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}
