package memory

import (
	"sync"

	"atelier/internal/core/pubsub"
)

type notification struct {
	data      []byte
	subject   string
	redeliver *subscription

	mu           sync.Mutex
	numDelivered uint64
	settled      bool
}

func (n *notification) Event() (pubsub.ChangeEvent, error) {
	return pubsub.UnmarshalChangeEvent(n.data)
}

func (n *notification) Subject() string {
	return n.subject
}

func (n *notification) Deliveries() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.numDelivered
}

// Ack settles the notification. Settling twice is a no-op.
func (n *notification) Ack() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settled = true
	return nil
}

// Nak requeues the notification on its subscription without blocking. It is
// dropped when the subscription is full or gone.
func (n *notification) Nak() error {
	n.mu.Lock()
	if n.settled {
		n.mu.Unlock()
		return nil
	}
	n.numDelivered++
	n.mu.Unlock()

	sub := n.redeliver
	select {
	case <-sub.ctx.Done():
		return nil
	default:
	}
	defer func() {
		// The subscription may close between the check and the send.
		_ = recover()
	}()
	select {
	case sub.msgCh <- n:
	default:
	}
	return nil
}
