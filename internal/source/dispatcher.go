package source

import (
	"sync"

	"atelier/pkg/model"
)

type delivery struct {
	docs []model.Document
	err  error
}

// Dispatcher runs the handler of one subscription on its own goroutine so
// the store never blocks on a slow consumer. A snapshot queued behind an
// undelivered snapshot replaces it: only the newest full collection matters.
// Errors are never coalesced and keep their position relative to snapshots.
type Dispatcher struct {
	h Handler

	mu      sync.Mutex
	queue   []delivery
	stopped bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewDispatcher starts a dispatcher for h.
func NewDispatcher(h Handler) *Dispatcher {
	d := &Dispatcher{
		h:    h,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

// Snapshot queues a full snapshot.
func (d *Dispatcher) Snapshot(docs []model.Document) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if n := len(d.queue); n > 0 && d.queue[n-1].err == nil {
		d.queue[n-1] = delivery{docs: docs}
	} else {
		d.queue = append(d.queue, delivery{docs: docs})
	}
	d.mu.Unlock()
	d.signal()
}

// Error queues a subscription error.
func (d *Dispatcher) Error(err error) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, delivery{err: err})
	d.mu.Unlock()
	d.signal()
}

// Cancel stops the dispatcher and drops undelivered items.
func (d *Dispatcher) Cancel() {
	d.once.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.queue = nil
		d.mu.Unlock()
		close(d.done)
	})
}

// Done is closed once the dispatcher is cancelled.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}
		for {
			next, ok := d.pop()
			if !ok {
				break
			}
			d.deliver(next)
		}
	}
}

func (d *Dispatcher) pop() (delivery, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.queue) == 0 {
		return delivery{}, false
	}
	next := d.queue[0]
	d.queue = d.queue[1:]
	return next, true
}

func (d *Dispatcher) deliver(item delivery) {
	if item.err != nil {
		if d.h.OnError != nil {
			d.h.OnError(item.err)
		}
		return
	}
	if d.h.OnSnapshot != nil {
		d.h.OnSnapshot(item.docs)
	}
}
