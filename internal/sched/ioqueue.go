package sched

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// ioQueue holds the tasks blocked on I/O. Each one ages by a tick per
// simulation tick no matter what the CPU is doing. Iteration follows
// insertion order so runs are reproducible.
type ioQueue struct {
	inflight *linkedhashmap.Map // TaskID -> struct{}
}

func newIOQueue() *ioQueue {
	return &ioQueue{inflight: linkedhashmap.New()}
}

func (q *ioQueue) add(id TaskID) {
	q.inflight.Put(id, struct{}{})
}

func (q *ioQueue) empty() bool {
	return q.inflight.Empty()
}

func (q *ioQueue) ids() []TaskID {
	keys := q.inflight.Keys()
	out := make([]TaskID, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.(TaskID))
	}
	return out
}

// age spends one tick on every in-flight task and removes the ones that
// reached zero, returning them in queue order.
func (q *ioQueue) age(a *Arena) []TaskID {
	var done []TaskID
	it := q.inflight.Iterator()
	for it.Next() {
		id := it.Key().(TaskID)
		t := a.Task(id)
		t.Remaining--
		if t.Remaining <= 0 {
			t.Remaining = 0
			done = append(done, id)
		}
	}
	for _, id := range done {
		q.inflight.Remove(id)
	}
	return done
}
