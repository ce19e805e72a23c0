// Package report renders the outcome of a simulation run.
package report

import (
	"fmt"
	"io"

	yaml "github.com/goccy/go-yaml"

	"ticksched/internal/sched"
)

// Summary is the reportable view of a finished run.
type Summary struct {
	Start        int64        `yaml:"start"`
	End          int64        `yaml:"end"`
	Completed    int          `yaml:"processes_completed"`
	Instructions int          `yaml:"instructions_completed"`
	AverageReady float64      `yaml:"average_ready_time"`
	MaxReady     int64        `yaml:"max_ready_time"`
	MinReady     int64        `yaml:"min_ready_time"`
	Processes    []ProcessRow `yaml:"processes"`
}

// ProcessRow describes one exited process.
type ProcessRow struct {
	PID        int    `yaml:"pid"`
	Completion int64  `yaml:"time_completion"`
	Waiting    int64  `yaml:"time_waiting"`
	Queue      string `yaml:"termination_queue"`
	Interrupts int    `yaml:"interrupts"`
}

// Summarize drains the exit collection of res, in exit order.
func Summarize(res sched.Result) Summary {
	s := Summary{
		Start:        res.Stats.Start,
		End:          res.Stats.Runtime,
		Completed:    len(res.Exited),
		Instructions: res.Stats.Instructions,
		AverageReady: res.Stats.AverageReady(),
		MaxReady:     res.Stats.MaxReady,
		MinReady:     res.Stats.MinReady(),
	}
	for _, p := range res.Exited {
		s.Processes = append(s.Processes, ProcessRow{
			PID:        p.PID,
			Completion: p.CompletedAt,
			Waiting:    p.ReadyTime,
			Queue:      p.ExitTier.String(),
			Interrupts: p.Interrupts,
		})
	}
	return s
}

// WriteText prints the summary in the classic plain-text layout.
func WriteText(w io.Writer, s Summary) error {
	if _, err := fmt.Fprintf(w,
		"Start/End Time: %d, %d\n"+
			"Processes completed: %d\n"+
			"Instructions completed: %d\n"+
			"Average ready time: %.2f\n"+
			"Max ready time: %d\n"+
			"Min ready time: %d\n",
		s.Start, s.End, s.Completed, s.Instructions, s.AverageReady, s.MaxReady, s.MinReady); err != nil {
		return err
	}
	for _, p := range s.Processes {
		if _, err := fmt.Fprintf(w, "P%d time_completion:%d time_waiting:%d termination_queue:%s\n",
			p.PID, p.Completion, p.Waiting, p.Queue); err != nil {
			return err
		}
	}
	return nil
}

// WriteYAML encodes the summary as YAML.
func WriteYAML(w io.Writer, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = w.Write(data)
	return err
}
