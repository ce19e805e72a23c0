// internal/sched/scheduler.go

package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ticksched/internal/queue"
)

var (
	// ErrNoProcesses is returned when the workload is empty.
	ErrNoProcesses = errors.New("no processes to schedule")
	// ErrTickLimit is returned when a run exceeds Config.MaxTicks.
	ErrTickLimit = errors.New("tick limit reached")
)

// Scheduler runs the two-tier MLFQ simulation and streams state changes.
type Scheduler struct {
	// Scheduler-related
	cfg      Config
	arena    *Arena
	clock    *TickClock
	tierA    *tier
	tierB    *tier
	exit     *queue.Queue[ProcessID]
	io       *ioQueue
	dispatch dispatcher
	cpu      TaskID // task on the CPU, or noTask
	cpuTier  Tier   // tier the CPU task was dispatched from
	stats    Stats

	// event-related
	sinks    []EventSink
	outbox   []StatusEvent
	statusCh chan StatusEvent
}

// New creates a Scheduler for the given workload. Processes enter tier B
// in the order given.
func New(cfg Config, specs []ProcessSpec) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, ErrNoProcesses
	}

	arena := NewArena(specs, cfg.QuantumB)
	start := startTick(cfg.ClockStart, specs)

	s := &Scheduler{
		cfg:   cfg,
		arena: arena,
		clock: NewTickClock(start),
		tierA: &tier{
			id:      TierA,
			procs:   queue.New[ProcessID](),
			ready:   queue.New[TaskID](),
			quantum: cfg.QuantumA,
		},
		tierB: &tier{
			id:      TierB,
			procs:   queue.New[ProcessID](),
			ready:   queue.New[TaskID](),
			quantum: cfg.QuantumB,
		},
		exit:     queue.New[ProcessID](),
		io:       newIOQueue(),
		dispatch: newDispatcher(cfg, arena),
		cpu:      noTask,
		stats:    newStats(start),
	}
	for _, p := range arena.Processes() {
		s.tierB.procs.Enqueue(p.ID)
	}
	return s, nil
}

// startTick picks the tick the clock starts at. By default that is the
// arrival of the first process in input order, even when a later process
// arrives earlier.
func startTick(mode ClockStart, specs []ProcessSpec) int64 {
	start := specs[0].Arrival
	if mode == StartAtMinArrival {
		for _, spec := range specs[1:] {
			start = min(start, spec.Arrival)
		}
	}
	return start
}

// AddSink registers a consumer of the event stream. Must be called before
// Run or Step.
func (s *Scheduler) AddSink(sink EventSink) {
	s.sinks = append(s.sinks, sink)
}

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (s *Scheduler) EnableCSVLogging(path string) error {
	sink, err := newCSVSink(path)
	if err != nil {
		return fmt.Errorf("enable csv logging: %w", err)
	}
	s.AddSink(sink)
	return nil
}

// Run drives the simulation to completion. The tick loop runs on its own
// goroutine while the caller's goroutine feeds events to the sinks, so a
// slow sink never stalls the simulation state.
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	s.statusCh = make(chan StatusEvent, 256) // buffered channel for status events
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.loop(ctx)
	}()

	// consume events
	for ev := range s.statusCh {
		s.handleEvent(ev)
	}

	err := <-errCh
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return s.Result(), err
}

// loop runs ticks until every queue drains.
func (s *Scheduler) loop(ctx context.Context) error {
	defer close(s.statusCh)

	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.cfg.MaxTicks > 0 && s.clock.Elapsed() >= s.cfg.MaxTicks {
			return fmt.Errorf("%w: %d ticks", ErrTickLimit, s.cfg.MaxTicks)
		}

		s.tick()

		for _, ev := range s.outbox {
			s.statusCh <- ev
		}
		s.outbox = s.outbox[:0]
	}
	return nil
}

// Step advances the simulation by one tick and delivers its events
// synchronously. It reports whether work remains.
func (s *Scheduler) Step() bool {
	if s.Done() {
		return false
	}
	s.tick()
	for _, ev := range s.outbox {
		s.handleEvent(ev)
	}
	s.outbox = s.outbox[:0]
	return !s.Done()
}

// Done reports whether every tier, ready and I/O queue has drained.
func (s *Scheduler) Done() bool {
	return !s.tierA.busy() && !s.tierB.busy() && s.io.empty()
}

// Close closes every registered sink.
func (s *Scheduler) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		errs = append(errs, sink.Close())
	}
	s.sinks = nil
	return errors.Join(errs...)
}

// tick runs one clock tick: I/O aging, dispatch or execution, ready-time
// accounting, clock advance. Tier A is serviced whenever it has work.
func (s *Scheduler) tick() {
	now := s.clock.Now()
	active := s.activeTier()

	s.ageIO()

	if s.cpu == noTask {
		s.dispatchFrom(active, now)
	} else if s.cfg.Preemptive && s.cpuTier == TierB {
		s.checkPreemption(now)
	}

	holder := noProcess
	if s.cpu != noTask {
		holder = s.arena.Task(s.cpu).Owner
		if s.execute(s.cpu, s.tier(s.cpuTier)) {
			s.cpu = noTask
		}
	} else {
		s.emit(StatusEvent{Tick: now, Kind: StatusIdle, Task: noTask, Tier: active.id})
	}

	s.accrueReadyTime(now, holder)
	if s.cfg.CheckInvariants {
		s.checkInvariants()
	}
	s.stats.Runtime = s.clock.Advance()
}

func (s *Scheduler) activeTier() *tier {
	if s.tierA.busy() {
		return s.tierA
	}
	return s.tierB
}

func (s *Scheduler) tier(id Tier) *tier {
	if id == TierA {
		return s.tierA
	}
	return s.tierB
}

func (s *Scheduler) tierOf(p *Process) Tier {
	if p.Location == InTierA {
		return TierA
	}
	return TierB
}

// dispatchFrom puts the next task of tr on the CPU, if any.
func (s *Scheduler) dispatchFrom(tr *tier, now int64) {
	id, ok := s.dispatch.next(tr, now)
	if !ok {
		return
	}
	s.cpu = id
	s.cpuTier = tr.id
	t := s.arena.Task(id)
	s.emit(eventFor(StatusDispatch, now, tr.id, s.arena.Process(t.Owner), t))
}

// checkPreemption interrupts the running tier-B task when an eligible
// tier-B process has strictly better priority, then re-dispatches.
func (s *Scheduler) checkPreemption(now int64) {
	running := s.arena.Owner(s.cpu)

	var challenger *Process
	s.tierB.procs.Each(func(_ int, id ProcessID) bool {
		p := s.arena.Process(id)
		if p.eligible(now) && p.Priority < running.Priority {
			challenger = p
			return false
		}
		return true
	})
	if challenger == nil {
		return
	}

	slog.Debug("preempting", "tick", now, "pid", running.PID, "by", challenger.PID)
	t := s.arena.Task(s.cpu)
	s.cpu = noTask
	s.preempt(t, running, s.tierB)

	// a promotion gave tier A work; it takes the CPU next tick
	if s.tierA.busy() {
		return
	}
	id, ok := s.dispatch.afterPreempt(s.tierB, now)
	if !ok {
		return
	}
	s.cpu = id
	s.cpuTier = TierB
	next := s.arena.Task(id)
	s.emit(eventFor(StatusDispatch, now, TierB, s.arena.Process(next.Owner), next))
}

func (s *Scheduler) processPriority(id ProcessID) int {
	return s.arena.Process(id).Priority
}

func (s *Scheduler) taskPriority(id TaskID) int {
	return s.arena.Owner(id).Priority
}

func (s *Scheduler) emit(ev StatusEvent) {
	s.outbox = append(s.outbox, ev)
}

func (s *Scheduler) handleEvent(ev StatusEvent) {
	for _, sink := range s.sinks {
		if err := sink.HandleEvent(ev); err != nil {
			slog.Warn("event sink failed", "event", ev.Kind.String(), "tick", ev.Tick, "err", err)
		}
	}
}
