package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"atelier/internal/core/pubsub"
)

// broker fans change notifications out to every subscription following the
// changed collection.
type broker struct {
	mu            sync.RWMutex
	subscriptions map[*subscription]struct{}
	closed        atomic.Bool
}

type subscription struct {
	prefix      string
	collections []string
	msgCh       chan pubsub.Notification
	ctx         context.Context
	cancel      context.CancelFunc
	once        sync.Once
}

func (s *subscription) follows(subject string) bool {
	coll, ok := pubsub.CollectionFromSubject(s.prefix, subject)
	return ok && pubsub.Follows(s.collections, coll)
}

func (s *subscription) stop() {
	s.once.Do(func() {
		s.cancel()
		close(s.msgCh)
	})
}

func newBroker() *broker {
	return &broker{
		subscriptions: make(map[*subscription]struct{}),
	}
}

// publish blocks until every following subscriber accepted the notification,
// went away, or ctx is done.
func (b *broker) publish(ctx context.Context, subject string, data []byte) error {
	if b.closed.Load() {
		return ErrEngineClosed
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscriptions {
		if !sub.follows(subject) {
			continue
		}
		msg := &notification{
			data:         data,
			subject:      subject,
			numDelivered: 1,
			redeliver:    sub,
		}
		select {
		case sub.msgCh <- msg:
		case <-sub.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *broker) subscribe(ctx context.Context, prefix string, collections []string, bufSize int) (<-chan pubsub.Notification, error) {
	if b.closed.Load() {
		return nil, ErrEngineClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		prefix:      prefix,
		collections: collections,
		msgCh:       make(chan pubsub.Notification, bufSize),
		ctx:         subCtx,
		cancel:      cancel,
	}

	b.mu.Lock()
	b.subscriptions[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-subCtx.Done()
		b.mu.Lock()
		delete(b.subscriptions, sub)
		b.mu.Unlock()
		sub.stop()
	}()

	return sub.msgCh, nil
}

func (b *broker) close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	subs := b.subscriptions
	b.subscriptions = make(map[*subscription]struct{})
	b.mu.Unlock()

	for sub := range subs {
		sub.cancel()
	}
	return nil
}
