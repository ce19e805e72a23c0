package sched

import (
	"log"

	"ticksched/internal/queue"
)

// PromoteThreshold is the streak length that moves a tier-B process to A,
// counted either as consecutive quantum-surviving completions or as
// interrupts of a single task.
const PromoteThreshold = 3

// credit records a quantum-surviving step of p and promotes it once the
// streak reaches PromoteThreshold while it runs in tier B.
func (s *Scheduler) credit(p *Process, tr *tier) {
	p.Completions++
	if tr.id == TierB && p.Completions >= PromoteThreshold {
		s.promote(p)
	}
}

// promote moves p from queue B into queue A by priority and hands it tier
// A's quantum.
func (s *Scheduler) promote(p *Process) {
	if p.Location != InTierB {
		return
	}
	if err := queue.Move(s.tierB.procs, s.tierA.procs, p.ID, s.processPriority); err != nil {
		log.Panicf("promote P%d: %v", p.PID, err)
	}
	p.Location = InTierA
	p.ExitTier = TierA
	p.Quantum = s.tierA.quantum
	p.Completions = 0
	s.emit(eventFor(StatusPromote, s.clock.Now(), TierA, p, nil))
}

// retire moves p from its tier queue to the exit queue.
func (s *Scheduler) retire(p *Process) {
	var from *queue.Queue[ProcessID]
	switch p.Location {
	case InTierA:
		from = s.tierA.procs
	case InTierB:
		from = s.tierB.procs
	default:
		log.Panicf("retire P%d: already exited", p.PID)
	}
	if !from.Remove(p.ID) {
		log.Panicf("retire P%d: %v", p.PID, queue.ErrNotFound)
	}
	s.exit.Enqueue(p.ID)
	p.Location = Exited
}
