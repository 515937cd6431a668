// Package queue implements the bounded FIFO of parsed motion commands
// awaiting execution by the planner.
package queue

import (
	"errors"

	"saucecnc/protocol"
)

// ErrFull is returned by Push when the queue has no remaining capacity.
var ErrFull = errors.New("queue full")

// Queue is a fixed-capacity ring buffer FIFO of *protocol.Command.
// head <= tail holds at all times measured modulo capacity; Count is
// exact.
type Queue struct {
	buf   []*protocol.Command
	head  int
	count int
}

// New returns a Queue with the given capacity.
func New(capacity int) *Queue {
	return &Queue{buf: make([]*protocol.Command, capacity)}
}

// Cap returns the queue's capacity.
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Count returns the number of entries currently queued.
func (q *Queue) Count() int {
	return q.count
}

// Full reports whether the queue has no remaining capacity.
func (q *Queue) Full() bool {
	return q.count == len(q.buf)
}

// Empty reports whether the queue has no entries.
func (q *Queue) Empty() bool {
	return q.count == 0
}

// Push enqueues cmd at the tail. Returns ErrFull if the queue is at
// capacity; overflow must never be silently dropped.
func (q *Queue) Push(cmd *protocol.Command) error {
	if q.Full() {
		return ErrFull
	}
	idx := (q.head + q.count) % len(q.buf)
	q.buf[idx] = cmd
	q.count++
	return nil
}

// Pop dequeues and returns the head entry. Returns nil if the queue
// is empty.
func (q *Queue) Pop() *protocol.Command {
	if q.Empty() {
		return nil
	}
	cmd := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return cmd
}

// Peek returns the head entry without removing it, or nil if empty.
func (q *Queue) Peek() *protocol.Command {
	if q.Empty() {
		return nil
	}
	return q.buf[q.head]
}
