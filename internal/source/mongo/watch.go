package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"atelier/internal/source"
	"atelier/pkg/model"
)

// Subscribe implements source.Client. It opens a change stream before the
// first listing so no write is missed, then relists the collection after
// every change. A failed stream is reported and reopened after
// Options.RetryInterval.
func (s *Store) Subscribe(ctx context.Context, collection string, order model.Order, h source.Handler) (source.Subscription, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	w := &watcher{
		store:      s,
		collection: collection,
		order:      order,
		d:          source.NewDispatcher(h),
		cancel:     cancel,
	}
	go w.run(runCtx)
	return w, nil
}

type watcher struct {
	store      *Store
	collection string
	order      model.Order
	d          *source.Dispatcher
	cancel     context.CancelFunc
}

func (w *watcher) Cancel() {
	w.cancel()
	w.d.Cancel()
}

func (w *watcher) run(ctx context.Context) {
	logger := w.store.logger.With("collection", w.collection)
	for {
		err := w.watchOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("Change stream failed, retrying", "error", err, "retry_in", w.store.opts.RetryInterval)
		w.d.Error(model.WrapError(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.store.opts.RetryInterval):
		}
	}
}

func (w *watcher) watchOnce(ctx context.Context) error {
	stream, err := w.store.coll(w.collection).Watch(ctx, mongo.Pipeline{}, options.ChangeStream())
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.collection, err)
	}
	defer stream.Close(context.Background())

	if err := w.publish(ctx); err != nil {
		return err
	}
	for stream.Next(ctx) {
		// Drain events that are already buffered; one listing covers them all.
		for stream.RemainingBatchLength() > 0 {
			if !stream.Next(ctx) {
				break
			}
		}
		if err := w.publish(ctx); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return fmt.Errorf("change stream for %s closed", w.collection)
}

func (w *watcher) publish(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, w.store.opts.FetchTimeout)
	defer cancel()
	docs, err := w.store.List(fetchCtx, w.collection, w.order)
	if err != nil {
		return fmt.Errorf("list %s: %w", w.collection, err)
	}
	w.d.Snapshot(docs)
	return nil
}
