// internal/queue/queue.go

// Package queue provides the ordered handle collections used by the
// scheduler: FIFO process queues and priority-ordered ready queues.
package queue

import (
	"errors"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
)

// ErrNotFound is returned when an element expected in a queue is absent.
var ErrNotFound = errors.New("element not found in queue")

// RankFunc maps an element to its precedence. Lower ranks come first.
type RankFunc[T comparable] func(T) int

// Queue is an ordered collection of comparable handles.
// The zero value is not usable; use New.
type Queue[T comparable] struct {
	list *doublylinkedlist.List
}

// New creates an empty queue, optionally seeded in the given order.
func New[T comparable](values ...T) *Queue[T] {
	q := &Queue[T]{list: doublylinkedlist.New()}
	for _, v := range values {
		q.list.Add(v)
	}
	return q
}

// Enqueue appends v at the tail.
func (q *Queue[T]) Enqueue(v T) {
	q.list.Add(v)
}

// EnqueuePriority inserts v in front of the first element whose rank is
// greater than or equal to its own, so a new element lands ahead of
// existing elements of equal rank.
func (q *Queue[T]) EnqueuePriority(v T, rank RankFunc[T]) {
	r := rank(v)
	pos := 0
	it := q.list.Iterator()
	for it.Next() {
		if rank(it.Value().(T)) >= r {
			break
		}
		pos++
	}
	q.list.Insert(pos, v)
}

// Dequeue removes and returns the head.
func (q *Queue[T]) Dequeue() (T, bool) {
	v, ok := q.Peek()
	if ok {
		q.list.Remove(0)
	}
	return v, ok
}

// Peek returns the head without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	return q.PeekAt(0)
}

// PeekAt returns the element at position i without removing it.
func (q *Queue[T]) PeekAt(i int) (T, bool) {
	var zero T
	v, ok := q.list.Get(i)
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// Remove detaches v. It reports whether v was present.
func (q *Queue[T]) Remove(v T) bool {
	i := q.list.IndexOf(v)
	if i < 0 {
		return false
	}
	q.list.Remove(i)
	return true
}

// Contains reports whether v is queued.
func (q *Queue[T]) Contains(v T) bool {
	return q.list.IndexOf(v) >= 0
}

// IndexOf returns the position of v, or -1.
func (q *Queue[T]) IndexOf(v T) int {
	return q.list.IndexOf(v)
}

// Empty reports whether the queue holds nothing.
func (q *Queue[T]) Empty() bool {
	return q.list.Empty()
}

// Size returns the number of queued elements.
func (q *Queue[T]) Size() int {
	return q.list.Size()
}

// Each calls fn with every element in order until fn returns false.
func (q *Queue[T]) Each(fn func(i int, v T) bool) {
	it := q.list.Iterator()
	for it.Next() {
		if !fn(it.Index(), it.Value().(T)) {
			return
		}
	}
}

// Values returns a snapshot of the queue contents in order.
func (q *Queue[T]) Values() []T {
	out := make([]T, 0, q.list.Size())
	q.Each(func(_ int, v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Move detaches v from src and inserts it into dst by rank.
// Nothing changes when v is not in src.
func Move[T comparable](src, dst *Queue[T], v T, rank RankFunc[T]) error {
	if !src.Remove(v) {
		return ErrNotFound
	}
	dst.EnqueuePriority(v, rank)
	return nil
}
