// Package notify is a source for stores without native change streams: it
// lists the collection once, then lists it again after every change event
// announced over pubsub.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"atelier/internal/core/pubsub"
	"atelier/internal/source"
	"atelier/pkg/model"
)

// Fetcher lists a whole collection.
type Fetcher interface {
	List(ctx context.Context, collection string, order model.Order) ([]model.Document, error)
}

// DefaultFetchTimeout bounds one listing.
const DefaultFetchTimeout = 10 * time.Second

// Source implements source.Client over a Fetcher and a change consumer.
type Source struct {
	fetcher      Fetcher
	consumer     pubsub.Consumer
	fetchTimeout time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	subs    map[string]map[*subscription]struct{}
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ source.Client = (*Source)(nil)

// New creates a source. Start must be called before change events flow.
func New(fetcher Fetcher, consumer pubsub.Consumer) *Source {
	return &Source{
		fetcher:      fetcher,
		consumer:     consumer,
		fetchTimeout: DefaultFetchTimeout,
		logger:       slog.Default().With("component", "notify-source"),
		subs:         make(map[string]map[*subscription]struct{}),
		done:         make(chan struct{}),
	}
}

// SetFetchTimeout overrides DefaultFetchTimeout.
func (s *Source) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		s.fetchTimeout = d
	}
}

// Start consumes change events until Stop.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("notify source already started")
	}
	if s.stopped {
		return fmt.Errorf("notify source is stopped")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	msgs, err := s.consumer.Subscribe(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to change events: %w", err)
	}
	s.started = true
	s.cancel = cancel
	go s.consume(msgs)
	s.logger.Info("Notify source started")
	return nil
}

// Stop ends event consumption and cancels every subscription.
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	if s.cancel != nil {
		s.cancel()
	}
	var all []*subscription
	for _, set := range s.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	s.subs = make(map[string]map[*subscription]struct{})
	s.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
	if !started {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe implements source.Client.
func (s *Source) Subscribe(ctx context.Context, collection string, order model.Order, h source.Handler) (source.Subscription, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, fmt.Errorf("notify source is stopped")
	}

	sub := newSubscription(s, collection, order, h)
	set, ok := s.subs[collection]
	if !ok {
		set = make(map[*subscription]struct{})
		s.subs[collection] = set
	}
	set[sub] = struct{}{}
	go sub.run()
	sub.kick()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Cancel()
			case <-sub.quit:
			}
		}()
	}
	return sub, nil
}

// Refresh refetches a collection for every subscriber, as if a change
// event had arrived.
func (s *Source) Refresh(collection string) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs[collection]))
	for sub := range s.subs[collection] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.kick()
	}
}

func (s *Source) remove(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.subs[sub.collection]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(s.subs, sub.collection)
		}
	}
}

func (s *Source) consume(notes <-chan pubsub.Notification) {
	defer close(s.done)
	for n := range notes {
		ev, err := n.Event()
		if err != nil {
			s.logger.Warn("Dropping malformed change event", "subject", n.Subject(), "error", err)
			_ = n.Ack()
			continue
		}
		s.logger.Debug("Change event", "collection", ev.Collection, "id", ev.ID, "type", ev.Type, "deliveries", n.Deliveries())
		s.Refresh(ev.Collection)
		if err := n.Ack(); err != nil {
			s.logger.Warn("Failed to ack change event", "error", err)
		}
	}
	s.logger.Info("Notify source stopped")
}
