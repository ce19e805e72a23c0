package main

import (
	"fmt"
	"strconv"
	"strings"

	"ticksched/internal/sched"
)

const envPrefix = "TICKSCHED_"

// Settings is everything a run needs. The scheduling keys sit at the top
// level of config.yml next to the rest.
type Settings struct {
	Sched sched.Config `yaml:",inline"`

	Input    string `yaml:"input"`     // workload path or URL
	LogLevel string `yaml:"log_level"` // DEBUG, INFO, WARN or ERROR
	LogFile  string `yaml:"log_file"`  // also log to this file
	CSV      string `yaml:"csv"`       // CSV event log path
	Record   string `yaml:"record"`    // SQLite database name, "auto" for a generated one
	Trace    string `yaml:"trace"`     // span output file, "-" for stdout
	Format   string `yaml:"format"`    // text or yaml
}

func defaultSettings() Settings {
	return Settings{
		Sched:    sched.DefaultConfig(),
		LogLevel: "INFO",
		Format:   "text",
	}
}

// loadSettings reads config.yml over the defaults. A missing file is not
// an error.
func loadSettings(path string) (Settings, error) {
	st := defaultSettings()
	if err := sched.LoadInto(path, &st); err != nil {
		return defaultSettings(), err
	}
	return st, nil
}

// envFields maps TICKSCHED_<NAME> variables onto settings.
func (st *Settings) envFields() map[string]func(string) error {
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	num := func(dst *int) func(string) error {
		return func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		}
	}
	flag := func(dst *bool) func(string) error {
		return func(v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*dst = b
			return nil
		}
	}

	return map[string]func(string) error{
		"INPUT":      str(&st.Input),
		"QUANTUM_A":  num(&st.Sched.QuantumA),
		"QUANTUM_B":  num(&st.Sched.QuantumB),
		"PREEMPTIVE": flag(&st.Sched.Preemptive),
		"SELECTION": func(v string) error {
			st.Sched.Selection = sched.Selection(v)
			return nil
		},
		"CLOCK_START": func(v string) error {
			st.Sched.ClockStart = sched.ClockStart(v)
			return nil
		},
		"MAX_TICKS": func(v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			st.Sched.MaxTicks = n
			return nil
		},
		"CHECK_INVARIANTS": flag(&st.Sched.CheckInvariants),
		"LOG_LEVEL":        str(&st.LogLevel),
		"LOG_FILE":         str(&st.LogFile),
		"CSV":              str(&st.CSV),
		"RECORD":           str(&st.Record),
		"TRACE":            str(&st.Trace),
		"FORMAT":           str(&st.Format),
	}
}

// applyEnv overrides settings from TICKSCHED_* variables.
func (st *Settings) applyEnv(lookup func(string) (string, bool)) error {
	for name, set := range st.envFields() {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		if err := set(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
	}
	return nil
}

func (st Settings) validate() error {
	if err := st.Sched.Validate(); err != nil {
		return err
	}
	if st.Input == "" {
		return fmt.Errorf("%w: no workload input given", sched.ErrInvalidConfig)
	}
	switch st.Format {
	case "text", "yaml":
	default:
		return fmt.Errorf("%w: unknown report format %q", sched.ErrInvalidConfig, st.Format)
	}
	return nil
}
