package messaging

import (
	"context"
	"sync"
	"sync/atomic"
)

// delivery is one event queued for one subscriber. receipt is nil for
// fire-and-forget publishes.
type delivery struct {
	evt     Event
	receipt *receipt
}

// receipt counts the deliveries of one PublishAndWait call. It completes when
// every delivery is settled; a single unsettled delivery fails the whole call.
type receipt struct {
	remaining atomic.Int64
	failed    atomic.Bool
	done      chan struct{}
}

func newReceipt(n int) *receipt {
	r := &receipt{done: make(chan struct{})}
	r.remaining.Store(int64(n))
	return r
}

func (r *receipt) settle(handled bool) {
	if r == nil {
		return
	}
	if !handled {
		r.failed.Store(true)
	}
	if r.remaining.Add(-1) == 0 {
		close(r.done)
	}
}

// queue is an unbounded FIFO so Publish never blocks on a slow subscriber.
type queue struct {
	mu     sync.Mutex
	items  []delivery
	closed bool
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

func (q *queue) push(d delivery) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, d)
	q.mu.Unlock()
	q.wake()
	return true
}

// pop returns false once the queue is closed and empty, or ctx is done.
func (q *queue) pop(ctx context.Context) (delivery, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			d := q.items[0]
			q.items[0] = delivery{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return d, true
		}
		if q.closed {
			q.mu.Unlock()
			return delivery{}, false
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return delivery{}, false
		}
	}
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// drain removes and returns everything still queued.
func (q *queue) drain() []delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
