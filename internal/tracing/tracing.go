// Package tracing turns the scheduler's event stream into OpenTelemetry
// spans: one root span per run and one child span per process, with every
// event attached as a span event. Logical ticks are mapped onto the trace
// timeline at one millisecond per tick from the Unix epoch.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"ticksched/internal/sched"
)

const instrumentation = "ticksched/internal/tracing"

// flushTimeout bounds the export of a closing run's spans.
const flushTimeout = 5 * time.Second

var epoch = time.Unix(0, 0).UTC()

// TickTime returns the trace timestamp of a logical tick.
func TickTime(tick int64) time.Time {
	return epoch.Add(time.Duration(tick) * time.Millisecond)
}

// Provider owns the tracer provider and its exporter.
type Provider struct {
	tp  *sdktrace.TracerProvider
	out io.Closer
}

// New exports spans as JSON to outputFile, or to stdout when outputFile is
// empty.
func New(serviceName, outputFile string) (*Provider, error) {
	var w io.Writer = os.Stdout
	var out io.Closer
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, fmt.Errorf("create trace file: %w", err)
		}
		w, out = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if out != nil {
			out.Close()
		}
		return nil, err
	}
	p, err := NewWithExporter(serviceName, exporter)
	if err != nil {
		if out != nil {
			out.Close()
		}
		return nil, err
	}
	p.out = out
	return p, nil
}

// NewWithExporter exports spans through the supplied exporter.
func NewWithExporter(serviceName string, exporter sdktrace.SpanExporter) (*Provider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	return &Provider{tp: tp}, nil
}

// Shutdown flushes the exporter and releases the output file.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.tp.Shutdown(ctx)
	if p.out != nil {
		err = errors.Join(err, p.out.Close())
	}
	return err
}

// Sink returns an event sink tracing one run.
func (p *Provider) Sink(ctx context.Context) *Sink {
	return &Sink{
		ctx:    ctx,
		tracer: p.tp.Tracer(instrumentation),
		flush:  p.tp.ForceFlush,
		procs:  make(map[int]trace.Span),
	}
}

// Sink is a sched.EventSink that records a run as spans.
type Sink struct {
	ctx    context.Context
	tracer trace.Tracer
	flush  func(context.Context) error

	root    trace.Span
	rootCtx context.Context
	procs   map[int]trace.Span
	idle    int
	last    int64
}

func (s *Sink) HandleEvent(ev sched.StatusEvent) error {
	if s.root == nil {
		s.rootCtx, s.root = s.tracer.Start(s.ctx, "simulation", trace.WithTimestamp(TickTime(ev.Tick)))
		s.root.SetAttributes(attribute.Int64("start_tick", ev.Tick))
	}
	s.last = ev.Tick
	if ev.Kind == sched.StatusIdle {
		s.idle++
		return nil
	}

	span, ok := s.procs[ev.PID]
	if !ok {
		_, span = s.tracer.Start(s.rootCtx, fmt.Sprintf("P%d", ev.PID),
			trace.WithTimestamp(TickTime(ev.Tick)),
			trace.WithAttributes(
				attribute.Int("pid", ev.PID),
				attribute.Int("priority", ev.Priority),
			))
		s.procs[ev.PID] = span
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("tick", ev.Tick),
		attribute.String("tier", ev.Tier.String()),
		attribute.Int("quantum", ev.Quantum),
	}
	if ev.Task >= 0 {
		attrs = append(attrs,
			attribute.Int("task", int(ev.Task)),
			attribute.String("kind", ev.TaskKind.String()),
			attribute.Int("remaining", ev.Remaining),
			attribute.Int("interrupts", ev.Interrupts),
		)
	}
	span.AddEvent(ev.Kind.String(), trace.WithTimestamp(TickTime(ev.Tick)), trace.WithAttributes(attrs...))

	if ev.Kind == sched.StatusFinish {
		span.SetAttributes(
			attribute.Int64("completed_at", ev.Tick),
			attribute.String("exit_tier", ev.Tier.String()),
		)
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(TickTime(ev.Tick + 1)))
		delete(s.procs, ev.PID)
	}
	return nil
}

// Close ends the spans of processes that never finished, then the root.
func (s *Sink) Close() error {
	if s.root == nil {
		return nil
	}
	end := trace.WithTimestamp(TickTime(s.last + 1))
	for _, span := range s.procs {
		span.SetStatus(codes.Error, "did not finish")
		span.End(end)
	}
	clear(s.procs)

	s.root.SetAttributes(
		attribute.Int64("end_tick", s.last+1),
		attribute.Int("idle_ticks", s.idle),
	)
	s.root.End(end)
	s.root = nil

	// the run context is usually cancelled by now when a run was interrupted
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), flushTimeout)
	defer cancel()
	return s.flush(ctx)
}
