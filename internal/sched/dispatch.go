package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"

	"ticksched/internal/queue"
)

// tier bundles the queues of one MLFQ level.
type tier struct {
	id      Tier
	procs   *queue.Queue[ProcessID]
	ready   *queue.Queue[TaskID]
	quantum int
}

// busy reports whether the tier has processes or parked tasks.
func (t *tier) busy() bool {
	return !t.procs.Empty() || !t.ready.Empty()
}

// dispatcher selects the next task a tier may run. Implementations mark the
// chosen task's process as running.
type dispatcher interface {
	next(tr *tier, now int64) (TaskID, bool)
	// afterPreempt selects the task that replaces a preempted one.
	afterPreempt(tr *tier, now int64) (TaskID, bool)
}

func newDispatcher(cfg Config, a *Arena) dispatcher {
	if !cfg.Preemptive {
		return &fifoDispatcher{arena: a}
	}
	return &preemptiveDispatcher{arena: a, global: cfg.Selection == SelectGlobal}
}

// takeReady removes the head of the ready queue and puts it on the CPU.
func takeReady(a *Arena, tr *tier) (TaskID, bool) {
	id, ok := tr.ready.Dequeue()
	if !ok {
		return noTask, false
	}
	occupy(a, id)
	return id, true
}

// takePending pops the next pending task of p and puts it on the CPU.
func takePending(a *Arena, p *Process) (TaskID, bool) {
	id, ok := p.popPending()
	if !ok {
		return noTask, false
	}
	occupy(a, id)
	return id, true
}

func occupy(a *Arena, id TaskID) {
	t := a.Task(id)
	p := a.Process(t.Owner)
	t.State = StateRunning
	p.Running = true
	p.Parked = false
}

// fifoDispatcher is the non-preemptive policy: parked tasks first in
// priority order, then the process queue in queue order.
type fifoDispatcher struct {
	arena *Arena
}

func (d *fifoDispatcher) next(tr *tier, now int64) (TaskID, bool) {
	if id, ok := takeReady(d.arena, tr); ok {
		return id, true
	}

	var chosen *Process
	tr.procs.Each(func(_ int, pid ProcessID) bool {
		p := d.arena.Process(pid)
		if p.eligible(now) {
			chosen = p
			return false
		}
		return true
	})
	if chosen == nil {
		return noTask, false
	}
	return takePending(d.arena, chosen)
}

func (d *fifoDispatcher) afterPreempt(tr *tier, now int64) (TaskID, bool) {
	return d.next(tr, now)
}

// preemptiveDispatcher compares candidates by owner priority. By default
// it only compares neighbouring entries; with global set it picks the best
// candidate of the whole queue.
type preemptiveDispatcher struct {
	arena  *Arena
	global bool
}

func (d *preemptiveDispatcher) next(tr *tier, now int64) (TaskID, bool) {
	if id, ok := d.fromReady(tr); ok {
		return id, true
	}
	return d.fromProcesses(tr, now)
}

func (d *preemptiveDispatcher) afterPreempt(tr *tier, now int64) (TaskID, bool) {
	if id, ok := d.fromProcesses(tr, now); ok {
		return id, true
	}
	return d.fromReady(tr)
}

func (d *preemptiveDispatcher) taskPriority(id TaskID) int {
	return d.arena.Owner(id).Priority
}

func (d *preemptiveDispatcher) fromReady(tr *tier) (TaskID, bool) {
	front, ok := tr.ready.Peek()
	if !ok {
		return noTask, false
	}
	if d.global {
		// the ready queue is kept in priority order, so its head is the best
		return takeReady(d.arena, tr)
	}
	second, ok := tr.ready.PeekAt(1)
	if ok && d.taskPriority(front) > d.taskPriority(second) {
		tr.ready.Dequeue()
		tr.ready.EnqueuePriority(front, d.taskPriority)
	}
	return takeReady(d.arena, tr)
}

func (d *preemptiveDispatcher) fromProcesses(tr *tier, now int64) (TaskID, bool) {
	var chosen *Process
	if d.global {
		chosen = d.bestEligible(tr, now)
	} else {
		chosen = d.adjacentEligible(tr, now)
	}
	if chosen == nil {
		return noTask, false
	}
	return takePending(d.arena, chosen)
}

// adjacentEligible finds the first eligible process and compares it with
// its immediate queue neighbour only. Ties go to the neighbour.
func (d *preemptiveDispatcher) adjacentEligible(tr *tier, now int64) *Process {
	var chosen *Process
	tr.procs.Each(func(i int, pid ProcessID) bool {
		p := d.arena.Process(pid)
		if !p.eligible(now) {
			return true
		}
		chosen = p
		if nid, ok := tr.procs.PeekAt(i + 1); ok {
			n := d.arena.Process(nid)
			if n.eligible(now) && p.Priority >= n.Priority {
				chosen = n
			}
		}
		return false
	})
	return chosen
}

// candidateKey orders eligible processes by priority, then queue position.
type candidateKey struct {
	priority int
	position int
}

func compareCandidates(a, b any) int {
	ka, kb := a.(candidateKey), b.(candidateKey)
	switch {
	case ka.priority < kb.priority:
		return -1
	case ka.priority > kb.priority:
		return 1
	case ka.position < kb.position:
		return -1
	case ka.position > kb.position:
		return 1
	default:
		return 0
	}
}

func (d *preemptiveDispatcher) bestEligible(tr *tier, now int64) *Process {
	tree := redblacktree.NewWith(compareCandidates)
	tr.procs.Each(func(i int, pid ProcessID) bool {
		p := d.arena.Process(pid)
		if p.eligible(now) {
			tree.Put(candidateKey{priority: p.Priority, position: i}, p)
		}
		return true
	})
	node := tree.Left()
	if node == nil {
		return nil
	}
	return node.Value.(*Process)
}
