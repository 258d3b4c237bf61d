package scheduler

import "sync"

// opQueue is an unbounded FIFO with wake-on-enqueue. push never blocks the
// caller; pop blocks the shard worker until an item arrives or the queue is
// closed. Once closed, remaining items are abandoned and pop returns false
// immediately.
type opQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []queuedOp
	closed bool
}

func newOpQueue() *opQueue {
	q := &opQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *opQueue) push(item queuedOp) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return true
}

func (q *opQueue) pop() (queuedOp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return queuedOp{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// close marks the queue closed, wakes the worker and returns the number of
// abandoned items.
func (q *opQueue) close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}
	q.closed = true
	q.cond.Broadcast()
	return len(q.items)
}
