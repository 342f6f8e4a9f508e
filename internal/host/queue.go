package host

import (
	"context"
	"sync"

	"github.com/roach88/exproxy/internal/ir"
)

// submission is one queued external call awaiting execution.
type submission struct {
	ctx   context.Context
	msg   ir.Msg
	reply chan result
}

type result struct {
	receipt *ir.Receipt
	err     error
}

// callQueue is a thread-safe FIFO of submissions.
//
// The queue is unbounded so producers never block on a slow Run loop.
// A buffered signal channel of size 1 lets the Run loop wait on the queue and
// its context at the same time.
type callQueue struct {
	mu     sync.Mutex
	items  []submission
	closed bool
	signal chan struct{}
}

func newCallQueue() *callQueue {
	return &callQueue{
		items:  make([]submission, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a submission. Returns false once the queue is closed.
func (q *callQueue) Enqueue(s submission) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, s)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front submission without blocking.
func (q *callQueue) TryDequeue() (submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return submission{}, false
	}
	s := q.items[0]

	// Drop the reference so the reply channel can be collected.
	q.items[0] = submission{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return s, true
}

// Wait returns a channel that signals when submissions may be available.
// Closed when the queue closes.
func (q *callQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending submissions.
func (q *callQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *callQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting submissions and wakes the waiter.
// Returns the submissions that were still pending.
func (q *callQueue) Close() []submission {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.signal)
	pending := q.items
	q.items = nil
	return pending
}
