// Package queue implements the bounded submission buffer that feeds the
// PALM worker pool: a ring buffer with enqueue/peek_at/dequeue/clear/
// wait_empty, guarded by a mutex and condition variable rather than the
// spin-CAS latches pkg/latch uses, since this buffer's waits are genuinely
// long (a producer waiting for a whole batch to drain) rather than the
// short spins a node latch expects.
//
// Grounded on original_source/src/bounded_queue.c's head/tail ring and
// pthread_cond wait/broadcast protocol, translated to sync.Cond.
package queue

import "sync"

// ErrClosed is returned by Enqueue once Clear has been called. PeekAt
// reports a cleared, empty queue through its bool result instead.
type ErrClosed struct{}

func (ErrClosed) Error() string { return "queue: closed" }

// Queue is a bounded ring buffer of opaque elements (PALM batches, in this
// module's only use, but the type is deliberately generic).
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	items []any
	head  int // next slot to dequeue
	tail  int // next free slot to enqueue into
	count int // occupied slots, to disambiguate head==tail full vs empty

	cleared bool
}

// New constructs a queue holding up to capacity elements. capacity <= 0 is
// clamped to 1.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue{items: make([]any, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue blocks until a free slot exists or the queue is cleared.
func (q *Queue) Enqueue(x any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == len(q.items) && !q.cleared {
		q.cond.Wait()
	}
	if q.cleared {
		return ErrClosed{}
	}

	q.items[q.tail] = x
	q.tail = (q.tail + 1) % len(q.items)
	q.count++
	q.cond.Broadcast()
	return nil
}

// PeekAt blocks until the head slot is occupied or the queue is cleared,
// then returns the head element without consuming it; it returns false
// only once the queue is cleared and empty. The cursor argument is not
// used: every call peeks the head slot.
func (q *Queue) PeekAt(cursor int) (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.cleared {
		q.cond.Wait()
	}
	if q.cleared && q.count == 0 {
		return nil, false
	}
	return q.items[q.head], true
}

// Dequeue releases the head slot and wakes blocked producers.
func (q *Queue) Dequeue() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return
	}
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.cond.Broadcast()
}

// Clear marks the queue closed and wakes every waiter; it does not block
// for drain (callers needing that call WaitEmpty separately, matching the
// split between bounded_queue_clear's shutdown flag and the PALM engine's
// own flush/drain wait).
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cleared = true
	q.cond.Broadcast()
}

// WaitEmpty blocks until no occupied slots remain.
func (q *Queue) WaitEmpty() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count != 0 {
		q.cond.Wait()
	}
}

// Len reports the current occupied-slot count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
