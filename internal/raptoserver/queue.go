package raptoserver

import (
	"sync"

	"github.com/raptodb/raptodb/internal/resolver"
)

// workItem is one query enqueued by a connection handler for the
// executor to resolve, along with the channel the result is
// delivered back on.
type workItem struct {
	clientRef uint64
	frame     []byte
	result    chan<- workResult
}

type workResult struct {
	resp *resolver.Response
	err  error
}

// workQueue is a bounded-by-memory FIFO guarded by a mutex and a
// condition variable — except it is not actually FIFO: waitAndPop
// pops from the back of the buffer, a long-standing quirk of the
// system this implementation preserves rather than silently fixes.
// Commands from a single connection still execute in arrival order
// because one connection goroutine produces them and the executor
// consumes them one at a time; only cross-connection fairness is
// affected, and tests must not assume strict ordering across clients.
type workQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*workItem
	closed bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends item and wakes one waiter.
func (q *workQueue) push(item *workItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// waitAndPop blocks until the queue is non-empty or closed, then pops
// from the tail. A nil return means the queue was closed (the
// shutdown sentinel).
func (q *workQueue) waitAndPop() *workItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil
	}
	last := len(q.items) - 1
	item := q.items[last]
	q.items = q.items[:last]
	return item
}

// close wakes every waiter with the shutdown sentinel.
func (q *workQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
