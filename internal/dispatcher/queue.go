package dispatcher

import (
	"container/list"
	"sync"

	"github.com/rinha-core/dispatch/internal/model"
)

// queue is an unbounded multi-producer/multi-consumer queue of pending
// payments. Accept goroutines push; worker goroutines pop. A buffered
// channel would cap capacity, which spec §4.2 explicitly rules out —
// push must never block the accept loop.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *list.List
	closed bool
}

func newQueue() *queue {
	q := &queue{items: list.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(req model.PaymentRequest) {
	q.mu.Lock()
	q.items.PushBack(req)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until an item is available or the queue is closed, in
// which case ok is false.
func (q *queue) pop() (model.PaymentRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.items.Len() == 0 {
		return model.PaymentRequest{}, false
	}
	front := q.items.Front()
	q.items.Remove(front)
	return front.Value.(model.PaymentRequest), true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
