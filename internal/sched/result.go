package sched

// Result is the final state handed to the reporting side.
type Result struct {
	Stats  Stats
	Exited []Process // exit queue order
}

// Result snapshots the statistics and the exit queue.
func (s *Scheduler) Result() Result {
	res := Result{Stats: s.stats}
	s.exit.Each(func(_ int, id ProcessID) bool {
		res.Exited = append(res.Exited, *s.arena.Process(id))
		return true
	})
	return res
}

// Now returns the current tick.
func (s *Scheduler) Now() int64 {
	return s.clock.Now()
}

// Stats returns the counters accumulated so far.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// Process looks a process up by pid.
func (s *Scheduler) Process(pid int) (*Process, bool) {
	return s.arena.Lookup(pid)
}

// Task resolves a task handle.
func (s *Scheduler) Task(id TaskID) *Task {
	return s.arena.Task(id)
}

// Running returns the task on the CPU.
func (s *Scheduler) Running() (TaskID, bool) {
	return s.cpu, s.cpu != noTask
}

// Members returns the pids of the processes at the given location in
// queue order.
func (s *Scheduler) Members(loc Location) []int {
	q := s.exit
	switch loc {
	case InTierA:
		q = s.tierA.procs
	case InTierB:
		q = s.tierB.procs
	}
	var pids []int
	q.Each(func(_ int, id ProcessID) bool {
		pids = append(pids, s.arena.Process(id).PID)
		return true
	})
	return pids
}

// ReadyQueue returns the tasks parked in the ready queue of tr.
func (s *Scheduler) ReadyQueue(tr Tier) []TaskID {
	return s.tier(tr).ready.Values()
}

// InFlightIO returns the tasks blocked on I/O.
func (s *Scheduler) InFlightIO() []TaskID {
	return s.io.ids()
}
