package sched

import "log"

// Arena owns every Process and Task of a simulation. Queues only hold
// handles into it, so moving an entity between queues never copies or
// frees it.
type Arena struct {
	procs []*Process
	tasks []*Task
}

// NewArena materialises the specs. Every process starts in tier B with
// quantumB time units and exit tier B.
func NewArena(specs []ProcessSpec, quantumB int) *Arena {
	a := &Arena{}
	for _, spec := range specs {
		p := &Process{
			ID:       ProcessID(len(a.procs)),
			PID:      spec.PID,
			Priority: spec.Priority,
			Arrival:  spec.Arrival,
			Quantum:  quantumB,
			ExitTier: TierB,
			Location: InTierB,
		}
		for _, ts := range spec.Tasks {
			t := &Task{
				ID:        TaskID(len(a.tasks)),
				Kind:      ts.Kind,
				Remaining: ts.Time,
				State:     StatePending,
				Owner:     p.ID,
			}
			a.tasks = append(a.tasks, t)
			p.Tasks = append(p.Tasks, t.ID)
		}
		a.procs = append(a.procs, p)
	}
	return a
}

// Process resolves a handle.
func (a *Arena) Process(id ProcessID) *Process {
	if int(id) < 0 || int(id) >= len(a.procs) {
		log.Panicf("arena: unknown process handle %d", id)
	}
	return a.procs[id]
}

// Task resolves a handle.
func (a *Arena) Task(id TaskID) *Task {
	if int(id) < 0 || int(id) >= len(a.tasks) {
		log.Panicf("arena: unknown task handle %d", id)
	}
	return a.tasks[id]
}

// Owner returns the process a task belongs to.
func (a *Arena) Owner(id TaskID) *Process {
	return a.Process(a.Task(id).Owner)
}

// Processes returns every process in input order.
func (a *Arena) Processes() []*Process {
	return a.procs
}

// Lookup finds a process by its pid.
func (a *Arena) Lookup(pid int) (*Process, bool) {
	for _, p := range a.procs {
		if p.PID == pid {
			return p, true
		}
	}
	return nil, false
}
