package sched

import "fmt"

// TaskID is the arena handle of a task.
type TaskID int

// noTask marks an idle CPU slot.
const noTask TaskID = -1

// TaskKind discriminates the work a task represents.
type TaskKind int

const (
	KindCompute TaskKind = iota
	KindIO
	KindTerminate
)

func (k TaskKind) String() string {
	switch k {
	case KindCompute:
		return "exe"
	case KindIO:
		return "io"
	case KindTerminate:
		return "t"
	default:
		return fmt.Sprintf("TaskKind(%d)", int(k))
	}
}

// TaskState tracks which container currently holds a task.
type TaskState int

const (
	StatePending   TaskState = iota // in the owner's task sequence
	StateReady                      // parked in a tier's ready queue
	StateRunning                    // occupying the CPU slot
	StateBlocked                    // in the I/O queue
	StateCompleted
)

func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateBlocked:
		return "BlockedIO"
	case StateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Task represents one schedulable unit of a process.
type Task struct {
	ID         TaskID
	Kind       TaskKind
	Remaining  int // time units left; unused for terminate tasks
	Completed  bool
	Interrupts int // forced preemptions and quantum expiries
	State      TaskState
	Owner      ProcessID // non-owning back-reference into the arena
}

// TaskSpec describes a task before the simulation owns it.
type TaskSpec struct {
	Kind TaskKind
	Time int
}
