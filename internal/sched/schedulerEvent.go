// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusDispatch
	StatusPreempt
	StatusInterrupt
	StatusIOStart
	StatusIODone
	StatusTaskDone
	StatusPromote
	StatusFinish
)

// StatusEvent is emitted on key actions, stamped with the logical tick
type StatusEvent struct {
	Tick       int64
	Kind       StatusKind
	PID        int
	Task       TaskID
	TaskKind   TaskKind
	Tier       Tier
	Priority   int
	Quantum    int
	Remaining  int
	Interrupts int
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusDispatch:
		return "Dispatch"
	case StatusPreempt:
		return "Preempt"
	case StatusInterrupt:
		return "Interrupt"
	case StatusIOStart:
		return "IOStart"
	case StatusIODone:
		return "IODone"
	case StatusTaskDone:
		return "TaskDone"
	case StatusPromote:
		return "Promote"
	case StatusFinish:
		return "Finish"
	default:
		return "Unknown"
	}
}

// eventFor builds an event describing task t of process p on tier tr.
func eventFor(kind StatusKind, now int64, tr Tier, p *Process, t *Task) StatusEvent {
	ev := StatusEvent{
		Tick:     now,
		Kind:     kind,
		Tier:     tr,
		Task:     noTask,
		PID:      p.PID,
		Priority: p.Priority,
		Quantum:  p.Quantum,
	}
	if t != nil {
		ev.Task = t.ID
		ev.TaskKind = t.Kind
		ev.Remaining = t.Remaining
		ev.Interrupts = t.Interrupts
	}
	return ev
}
