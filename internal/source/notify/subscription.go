package notify

import (
	"context"
	"sync"

	"atelier/internal/source"
	"atelier/pkg/model"
)

// subscription refetches on kicks. Kicks arriving during a fetch collapse
// into one follow-up fetch.
type subscription struct {
	src        *Source
	collection string
	order      model.Order
	d          *source.Dispatcher

	kicks chan struct{}
	quit  chan struct{}
	once  sync.Once
}

func newSubscription(src *Source, collection string, order model.Order, h source.Handler) *subscription {
	return &subscription{
		src:        src,
		collection: collection,
		order:      order,
		d:          source.NewDispatcher(h),
		kicks:      make(chan struct{}, 1),
		quit:       make(chan struct{}),
	}
}

func (s *subscription) kick() {
	select {
	case s.kicks <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.kicks:
		}
		s.fetch()
	}
}

func (s *subscription) fetch() {
	ctx, cancel := context.WithTimeout(context.Background(), s.src.fetchTimeout)
	defer cancel()

	docs, err := s.src.fetcher.List(ctx, s.collection, s.order)
	select {
	case <-s.quit:
		return
	default:
	}
	if err != nil {
		s.src.logger.Warn("Collection fetch failed", "collection", s.collection, "error", err)
		s.d.Error(model.WrapError(err))
		return
	}
	s.d.Snapshot(docs)
}

// stop ends the worker without touching the source registry.
func (s *subscription) stop() {
	s.once.Do(func() {
		close(s.quit)
		s.d.Cancel()
	})
}

// Cancel implements source.Subscription.
func (s *subscription) Cancel() {
	s.src.remove(s)
	s.stop()
}
