package sched

// execute spends one tick of the CPU on task id, which belongs to tier tr.
// It reports whether the CPU was released.
func (s *Scheduler) execute(id TaskID, tr *tier) bool {
	t := s.arena.Task(id)
	p := s.arena.Process(t.Owner)

	switch t.Kind {
	case KindIO:
		return s.execIO(t, p, tr)
	case KindCompute:
		return s.execCompute(t, p, tr)
	default:
		return s.execTerminate(t, p, tr)
	}
}

// execIO issues the I/O request. The process stays marked running until
// the request completes, so none of its later tasks can be dispatched.
func (s *Scheduler) execIO(t *Task, p *Process, tr *tier) bool {
	if p.Quantum <= 0 {
		s.interrupt(t, p, tr)
		return true
	}

	p.Quantum--
	if p.Quantum > 0 {
		s.credit(p, tr)
	} else {
		p.Completions = 0
	}
	s.stats.Instructions++
	t.State = StateBlocked
	s.io.add(t.ID)
	s.emit(eventFor(StatusIOStart, s.clock.Now(), tr.id, p, t))
	return true
}

// execCompute burns one unit of compute. When the remaining time and the
// quantum run out on the same tick the task completes.
func (s *Scheduler) execCompute(t *Task, p *Process, tr *tier) bool {
	if t.Remaining > 0 {
		if p.Quantum <= 0 {
			s.interrupt(t, p, tr)
			return true
		}
		t.Remaining--
		p.Quantum--
		if t.Remaining > 0 {
			return false
		}
	}

	s.completeTask(t, p)
	s.stats.Instructions++
	s.emit(eventFor(StatusTaskDone, s.clock.Now(), tr.id, p, t))
	if tr.id == TierB {
		if p.Quantum > 0 {
			s.credit(p, tr)
		} else {
			p.Completions = 0
		}
	}
	return true
}

// execTerminate finalises the process when quantum is left for it.
func (s *Scheduler) execTerminate(t *Task, p *Process, tr *tier) bool {
	if p.Quantum <= 0 {
		p.Completions = 0
		s.interrupt(t, p, tr)
		return true
	}

	now := s.clock.Now()
	p.Quantum--
	s.stats.Instructions++
	s.completeTask(t, p)
	p.CompletedAt = now
	s.stats.fold(p.ReadyTime)
	s.retire(p)
	s.emit(eventFor(StatusFinish, now, tr.id, p, t))
	return true
}

// interrupt handles quantum exhaustion: the task goes back to a ready queue
// with a fresh quantum, or to tier A once it has been interrupted
// PromoteThreshold times in tier B.
func (s *Scheduler) interrupt(t *Task, p *Process, tr *tier) {
	t.Interrupts++
	p.Interrupts++
	p.Running = false
	p.Completions = 0
	p.Quantum = tr.quantum
	s.emit(eventFor(StatusInterrupt, s.clock.Now(), tr.id, p, t))

	if tr.id == TierB && t.Interrupts >= PromoteThreshold {
		s.promote(p)
		s.park(t, s.tierA)
		return
	}
	s.park(t, tr)
}

// preempt takes the CPU away from task t before it spends the current tick.
// The process keeps its remaining quantum.
func (s *Scheduler) preempt(t *Task, p *Process, tr *tier) {
	t.Interrupts++
	p.Interrupts++
	p.Running = false
	s.emit(eventFor(StatusPreempt, s.clock.Now(), tr.id, p, t))

	if tr.id == TierB && t.Interrupts >= PromoteThreshold {
		s.promote(p)
		s.park(t, s.tierA)
		return
	}
	s.park(t, tr)
}

// park places t in the ready queue of tr by owner priority.
func (s *Scheduler) park(t *Task, tr *tier) {
	t.State = StateReady
	s.arena.Process(t.Owner).Parked = true
	tr.ready.EnqueuePriority(t.ID, s.taskPriority)
}

func (s *Scheduler) completeTask(t *Task, p *Process) {
	t.Completed = true
	t.State = StateCompleted
	p.Running = false
	p.CurrentTask++
}

// ageIO advances every in-flight I/O request by one tick.
func (s *Scheduler) ageIO() {
	if s.io.empty() {
		return
	}
	for _, id := range s.io.age(s.arena) {
		t := s.arena.Task(id)
		p := s.arena.Process(t.Owner)
		s.completeTask(t, p)
		s.emit(eventFor(StatusIODone, s.clock.Now(), s.tierOf(p), p, t))
	}
}

// accrueReadyTime charges one tick of waiting to every arrived process
// that is not running. The process that held the CPU this tick is never
// charged, even when it released the CPU on this tick.
func (s *Scheduler) accrueReadyTime(now int64, holder ProcessID) {
	for _, tr := range []*tier{s.tierA, s.tierB} {
		tr.procs.Each(func(_ int, id ProcessID) bool {
			p := s.arena.Process(id)
			if id != holder && p.Arrival <= now && !p.Running {
				p.ReadyTime++
			}
			return true
		})
	}
}
