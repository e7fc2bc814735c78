package snapshot

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is the shared, sequentially-consistent modification counter
// the executor increments after each successful resolution and the
// autosnap worker observes.
type Counter struct {
	n atomic.Int64
}

// Inc increments the counter by one.
func (c *Counter) Inc() { c.n.Add(1) }

// Load returns the current value.
func (c *Counter) Load() int64 { return c.n.Load() }

// Reset sets the counter back to zero.
func (c *Counter) Reset() { c.n.Store(0) }

// SaveFunc performs one synchronous save. The worker calls it from its
// own goroutine; cmd/raptodb-server passes the same mutex-guarded
// closure the SAVE and DOWN commands use, so two saves never overlap.
type SaveFunc func() error

// AutoSnap runs the auto-snap trigger loop in its own goroutine. It
// sleeps one second at a time; when both (wall time since the last
// save is at least Delay) and (the counter is at least Count) hold,
// it invokes Save, resets the counter, and resets the timer. Failures
// are logged through OnError and do not stop the worker.
type AutoSnap struct {
	Counter *Counter
	Delay   time.Duration
	Count   int64
	Save    SaveFunc
	OnError func(error)

	mu       sync.Mutex
	lastSave time.Time
	stop     chan struct{}
	done     chan struct{}
}

// NewAutoSnap creates a worker with count clamped to at least 1, the
// configuration rule the specification requires.
func NewAutoSnap(counter *Counter, delay time.Duration, count int64, save SaveFunc, onError func(error)) *AutoSnap {
	if count < 1 {
		count = 1
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &AutoSnap{
		Counter:  counter,
		Delay:    delay,
		Count:    count,
		Save:     save,
		OnError:  onError,
		lastSave: time.Now(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks, executing the trigger loop until Stop is called.
func (a *AutoSnap) Run() {
	defer close(a.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.mu.Lock()
			elapsed := time.Since(a.lastSave)
			a.mu.Unlock()

			if elapsed >= a.Delay && a.Counter.Load() >= a.Count {
				if err := a.Save(); err != nil {
					a.OnError(err)
					continue
				}
				a.Counter.Reset()
				a.mu.Lock()
				a.lastSave = time.Now()
				a.mu.Unlock()
			}
		}
	}
}

// Stop signals the worker to exit and blocks until it has.
func (a *AutoSnap) Stop() {
	close(a.stop)
	<-a.done
}
