package sched

// ProcessID is the arena handle of a process.
type ProcessID int

// noProcess marks a tick on which no process held the CPU.
const noProcess ProcessID = -1

// Tier names one of the two feedback queues.
type Tier int

const (
	TierA Tier = iota
	TierB
)

func (t Tier) String() string {
	if t == TierA {
		return "A"
	}
	return "B"
}

// MarshalText renders the tier as its letter.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Location is the process queue a process currently belongs to.
type Location int

const (
	InTierA Location = iota
	InTierB
	Exited
)

func (l Location) String() string {
	switch l {
	case InTierA:
		return "queueA"
	case InTierB:
		return "queueB"
	default:
		return "exit"
	}
}

// Process is a simulated program: an ordered sequence of tasks plus the
// accounting the MLFQ policy needs.
type Process struct {
	ID       ProcessID
	PID      int
	Priority int // lower value wins
	Arrival  int64
	Tasks    []TaskID

	CurrentTask int // index of the first task not yet completed
	Quantum     int // time units left before the running task is interrupted
	Completions int // consecutive quantum-surviving steps
	Interrupts  int
	ReadyTime   int64

	Running bool // a task of this process holds the CPU or is blocked on I/O
	Parked  bool // a task of this process waits in a ready queue

	ExitTier    Tier
	Location    Location
	CompletedAt int64

	next int // dispatch cursor into Tasks
}

// HasPending reports whether tasks remain that were never dispatched.
func (p *Process) HasPending() bool {
	return p.next < len(p.Tasks)
}

func (p *Process) popPending() (TaskID, bool) {
	if !p.HasPending() {
		return noTask, false
	}
	id := p.Tasks[p.next]
	p.next++
	return id, true
}

// eligible reports whether the process may have its next pending task
// dispatched from the process queue at tick now.
func (p *Process) eligible(now int64) bool {
	return p.Arrival <= now && !p.Running && !p.Parked && p.HasPending()
}

// ProcessSpec describes a process as produced by the input parser.
type ProcessSpec struct {
	PID      int
	Priority int
	Arrival  int64
	Tasks    []TaskSpec
}
