package sched

import "log"

// checkInvariants panics when queue membership or task ownership is
// inconsistent. Every process must sit in exactly one process queue that
// matches its Location, and every task must be held by exactly one
// container matching its State.
func (s *Scheduler) checkInvariants() {
	seen := make(map[ProcessID]Location, len(s.arena.procs))
	for loc, q := range map[Location]interface{ Values() []ProcessID }{
		InTierA: s.tierA.procs,
		InTierB: s.tierB.procs,
		Exited:  s.exit,
	} {
		for _, id := range q.Values() {
			if prev, dup := seen[id]; dup {
				log.Panicf("invariant: process %d in %v and %v", id, prev, loc)
			}
			seen[id] = loc
			if p := s.arena.Process(id); p.Location != loc {
				log.Panicf("invariant: P%d found in %v but located in %v", p.PID, loc, p.Location)
			}
		}
	}
	if len(seen) != len(s.arena.procs) {
		log.Panicf("invariant: %d of %d processes queued", len(seen), len(s.arena.procs))
	}

	holders := make(map[TaskID]TaskState)
	hold := func(id TaskID, state TaskState) {
		if prev, dup := holders[id]; dup {
			log.Panicf("invariant: task %d held as %v and %v", id, prev, state)
		}
		holders[id] = state
	}
	for _, id := range s.tierA.ready.Values() {
		hold(id, StateReady)
	}
	for _, id := range s.tierB.ready.Values() {
		hold(id, StateReady)
	}
	for _, id := range s.io.ids() {
		hold(id, StateBlocked)
	}
	if s.cpu != noTask {
		hold(s.cpu, StateRunning)
	}

	for _, p := range s.arena.procs {
		active := 0
		for i, id := range p.Tasks {
			t := s.arena.Task(id)
			held, inContainer := holders[id]
			var want TaskState
			switch {
			case i >= p.next:
				want = StatePending
			case t.Completed:
				want = StateCompleted
			case inContainer:
				want = held
				active++
			default:
				log.Panicf("invariant: P%d task %d was dispatched but nothing holds it", p.PID, id)
			}
			if want != held && inContainer {
				log.Panicf("invariant: P%d task %d is %v but queued as %v", p.PID, id, want, held)
			}
			if t.State != want {
				log.Panicf("invariant: P%d task %d is %v, expected %v", p.PID, id, t.State, want)
			}
		}
		if active > 1 {
			log.Panicf("invariant: P%d has %d tasks in flight", p.PID, active)
		}
	}
}
