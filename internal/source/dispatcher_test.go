package source

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/pkg/model"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	gate   chan struct{}
}

func (r *recorder) handler() Handler {
	return Handler{
		OnSnapshot: func(docs []model.Document) {
			if r.gate != nil {
				<-r.gate
			}
			r.mu.Lock()
			defer r.mu.Unlock()
			id := "empty"
			if len(docs) > 0 {
				id = docs[0].GetID()
			}
			r.events = append(r.events, "snap:"+id)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "err:"+err.Error())
		},
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec.handler())
	defer d.Cancel()

	d.Snapshot([]model.Document{{"id": "a"}})
	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	d.Error(errors.New("boom"))
	d.Snapshot([]model.Document{{"id": "b"}})

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"snap:a", "err:boom", "snap:b"}, rec.snapshot())
}

func TestDispatcher_CoalescesPendingSnapshots(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	d := NewDispatcher(rec.handler())
	defer d.Cancel()

	d.Snapshot([]model.Document{{"id": "first"}})
	// Let the goroutine pick up "first" and block on the gate.
	time.Sleep(20 * time.Millisecond)
	d.Snapshot([]model.Document{{"id": "second"}})
	d.Snapshot([]model.Document{{"id": "third"}})
	close(rec.gate)

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"snap:first", "snap:third"}, rec.snapshot())
}

func TestDispatcher_CancelDropsPending(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	d := NewDispatcher(rec.handler())

	d.Snapshot([]model.Document{{"id": "first"}})
	time.Sleep(20 * time.Millisecond)
	d.Snapshot([]model.Document{{"id": "dropped"}})
	d.Cancel()
	d.Cancel()
	close(rec.gate)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"snap:first"}, rec.snapshot())

	d.Snapshot([]model.Document{{"id": "late"}})
	d.Error(errors.New("late"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"snap:first"}, rec.snapshot())

	select {
	case <-d.Done():
	default:
		require.Fail(t, "done channel not closed")
	}
}
