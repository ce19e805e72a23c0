package sched

import (
	"encoding/csv"
	"log/slog"
	"os"
	"strconv"
)

// EventSink consumes the scheduler's event stream.
type EventSink interface {
	HandleEvent(ev StatusEvent) error
	Close() error
}

// csvSink writes one row per event.
type csvSink struct {
	file   *os.File
	writer *csv.Writer
}

var csvHeader = []string{
	"tick", "event", "pid", "task", "kind", "tier", "priority", "quantum", "remaining", "interrupts",
}

func newCSVSink(path string) (*csvSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, err
	}
	return &csvSink{file: f, writer: w}, nil
}

func (c *csvSink) HandleEvent(ev StatusEvent) error {
	task, kind := "", ""
	if ev.Task != noTask {
		task = strconv.Itoa(int(ev.Task))
		kind = ev.TaskKind.String()
	}
	return c.writer.Write([]string{
		strconv.FormatInt(ev.Tick, 10),
		ev.Kind.String(),
		strconv.Itoa(ev.PID),
		task,
		kind,
		ev.Tier.String(),
		strconv.Itoa(ev.Priority),
		strconv.Itoa(ev.Quantum),
		strconv.Itoa(ev.Remaining),
		strconv.Itoa(ev.Interrupts),
	})
}

func (c *csvSink) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

// LogSink logs every non-idle event at debug level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink writing to logger, or to slog's default logger
// when logger is nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) HandleEvent(ev StatusEvent) error {
	if ev.Kind == StatusIdle {
		return nil
	}
	attrs := []any{"tick", ev.Tick, "pid", ev.PID, "tier", ev.Tier.String(), "quantum", ev.Quantum}
	if ev.Task != noTask {
		attrs = append(attrs, "task", ev.Task, "kind", ev.TaskKind.String(),
			"remaining", ev.Remaining, "interrupts", ev.Interrupts)
	}
	l.logger.Debug(ev.Kind.String(), attrs...)
	return nil
}

func (l *LogSink) Close() error { return nil }
