package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ticksched/internal/job"
	"ticksched/internal/logging"
	"ticksched/internal/record"
	"ticksched/internal/report"
	"ticksched/internal/sched"
	"ticksched/internal/tracing"
)

func newRootCmd(stdout io.Writer) *cobra.Command {
	var configPath, envPath string
	flagDefaults := defaultSettings()

	cmd := &cobra.Command{
		Use:   "ticksched [workload [quantumA quantumB preemption]]",
		Short: "Simulate a two-tier MLFQ CPU scheduler over a workload file.",
		Long: `ticksched replays a workload of processes through a two-tier ` +
			`multilevel feedback queue on a single logical clock and prints ` +
			`completion and ready-time statistics.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if n := len(args); n > 1 && n != 4 {
				return fmt.Errorf("accepts 0, 1 or 4 args, received %d", n)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envPath, err)
			}
			st, err := loadSettings(configPath)
			if err != nil {
				return err
			}
			if err := st.applyEnv(os.LookupEnv); err != nil {
				return err
			}
			applyFlags(cmd, &st)
			if err := applyArgs(&st, args); err != nil {
				return err
			}
			if err := st.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), st, stdout)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "config.yml", "configuration file")
	f.StringVar(&envPath, "env", ".env", "dotenv file with TICKSCHED_* overrides")
	f.StringP("input", "i", "", "workload path or URL")
	f.Int("quantum-a", flagDefaults.Sched.QuantumA, "tier A quantum")
	f.Int("quantum-b", flagDefaults.Sched.QuantumB, "tier B quantum")
	f.Bool("preemptive", false, "enable priority preemption in tier B")
	f.String("selection", string(flagDefaults.Sched.Selection), "preemptive candidate selection: adjacent or global")
	f.String("clock-start", string(flagDefaults.Sched.ClockStart), "clock start: head or min_arrival")
	f.Int64("max-ticks", 0, "abort after this many ticks (0 = unbounded)")
	f.Bool("check-invariants", false, "verify queue membership every tick")
	f.String("log-level", flagDefaults.LogLevel, "DEBUG, INFO, WARN or ERROR")
	f.String("log-file", "", "also write logs to this file")
	f.String("csv", "", "write the event stream as CSV to this file")
	f.String("record", "", `record the run into this SQLite database ("auto" picks a name)`)
	f.String("trace", "", `write OpenTelemetry spans to this file ("-" for stdout)`)
	f.String("format", flagDefaults.Format, "report format: text or yaml")
	return cmd
}

// applyFlags copies every flag the user set over st.
func applyFlags(cmd *cobra.Command, st *Settings) {
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("input", func() { st.Input, _ = f.GetString("input") })
	set("quantum-a", func() { st.Sched.QuantumA, _ = f.GetInt("quantum-a") })
	set("quantum-b", func() { st.Sched.QuantumB, _ = f.GetInt("quantum-b") })
	set("preemptive", func() { st.Sched.Preemptive, _ = f.GetBool("preemptive") })
	set("selection", func() {
		v, _ := f.GetString("selection")
		st.Sched.Selection = sched.Selection(v)
	})
	set("clock-start", func() {
		v, _ := f.GetString("clock-start")
		st.Sched.ClockStart = sched.ClockStart(v)
	})
	set("max-ticks", func() { st.Sched.MaxTicks, _ = f.GetInt64("max-ticks") })
	set("check-invariants", func() { st.Sched.CheckInvariants, _ = f.GetBool("check-invariants") })
	set("log-level", func() { st.LogLevel, _ = f.GetString("log-level") })
	set("log-file", func() { st.LogFile, _ = f.GetString("log-file") })
	set("csv", func() { st.CSV, _ = f.GetString("csv") })
	set("record", func() { st.Record, _ = f.GetString("record") })
	set("trace", func() { st.Trace, _ = f.GetString("trace") })
	set("format", func() { st.Format, _ = f.GetString("format") })
}

// applyArgs accepts the workload as the first positional argument,
// optionally followed by quantumA, quantumB and a 0/1 preemption switch.
func applyArgs(st *Settings, args []string) error {
	if len(args) == 0 {
		return nil
	}
	st.Input = args[0]
	if len(args) < 4 {
		return nil
	}

	nums := make([]int, 3)
	for i, arg := range args[1:4] {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%w: argument %d: %v", sched.ErrInvalidConfig, i+2, err)
		}
		nums[i] = n
	}
	st.Sched.QuantumA, st.Sched.QuantumB = nums[0], nums[1]
	st.Sched.Preemptive = nums[2] != 0
	return nil
}

// run loads the workload, simulates it with every configured sink and
// prints the report. On a tick limit or cancellation the partial report is
// still printed.
func run(ctx context.Context, st Settings, stdout io.Writer) error {
	closeLog, err := logging.Init(st.LogFile, st.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	specs, err := job.Load(ctx, st.Input)
	if err != nil {
		return err
	}
	slog.Info("workload loaded", "input", st.Input, "processes", len(specs))

	s, err := sched.New(st.Sched, specs)
	if err != nil {
		return err
	}
	s.AddSink(sched.NewLogSink(nil))

	if st.CSV != "" {
		if err := s.EnableCSVLogging(st.CSV); err != nil {
			return err
		}
	}

	var rec *record.Recorder
	if st.Record != "" {
		name := st.Record
		if name == "auto" {
			name = ""
		}
		if rec, err = record.New(name); err != nil {
			return err
		}
		defer rec.Close()
		s.AddSink(rec.Events())
	}

	if st.Trace != "" {
		out := st.Trace
		if out == "-" {
			out = ""
		}
		tp, err := tracing.New("ticksched", out)
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Warn("trace shutdown failed", "err", err)
			}
		}()
		s.AddSink(tp.Sink(ctx))
	}

	res, runErr := s.Run(ctx)
	if runErr != nil {
		slog.Error("simulation stopped early", "tick", res.Stats.Runtime, "err", runErr)
	}
	if rec != nil {
		if err := rec.RecordResult(st.Sched, res); err != nil {
			slog.Warn("recording result failed", "err", err)
		}
	}

	summary := report.Summarize(res)
	if st.Format == "yaml" {
		err = report.WriteYAML(stdout, summary)
	} else {
		err = report.WriteText(stdout, summary)
	}
	return errors.Join(runErr, err)
}
