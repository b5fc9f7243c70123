// Package mirror keeps a local, wholesale-replaced copy of one remote
// collection and tells observers when it changes.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"atelier/internal/catalog/metrics"
	"atelier/internal/source"
	"atelier/pkg/model"
)

// Predicate restricts which raw documents enter the snapshot.
type Predicate interface {
	Match(doc model.Document) (bool, error)
}

// Config describes the collection a mirror follows.
type Config struct {
	Collection string
	Order      model.Order
	Fields     model.FieldMap
	Scope      Predicate
}

// Status is the sync state of a mirror.
type Status struct {
	// Loaded is false until the first snapshot arrives.
	Loaded bool
	// Degraded is set while the subscription is failing; the snapshot is the
	// last good one.
	Degraded bool
	LastError error
	// Revision increments on every applied snapshot and every status change.
	Revision uint64
}

// Mirror follows one collection through a source.Client.
type Mirror struct {
	client source.Client
	cfg    Config
	logger *slog.Logger

	// delivering is held while a delivery runs its observers.
	delivering sync.Mutex

	mu        sync.RWMutex
	snapshot  model.Snapshot
	status    Status
	sub       source.Subscription
	started   bool
	closed    bool
	observers map[uint64]func()
	nextObs   uint64
}

// New creates a mirror. Nothing is received until Open.
func New(client source.Client, cfg Config) *Mirror {
	if cfg.Order.Field == "" {
		cfg.Order = model.DefaultOrder()
	}
	cfg.Fields.ApplyDefaults()
	return &Mirror{
		client:    client,
		cfg:       cfg,
		logger:    slog.Default().With("component", "mirror", "collection", cfg.Collection),
		snapshot:  model.Snapshot{},
		observers: make(map[uint64]func()),
	}
}

// Open subscribes to the collection. Calling it again is a no-op; opening a
// closed mirror fails with model.ErrMirrorClosed.
func (m *Mirror) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return model.ErrMirrorClosed
	}
	if m.started {
		return nil
	}

	sub, err := m.client.Subscribe(ctx, m.cfg.Collection, m.cfg.Order, source.Handler{
		OnSnapshot: m.applySnapshot,
		OnError:    m.applyError,
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", m.cfg.Collection, err)
	}
	m.sub = sub
	m.started = true
	m.logger.Info("Mirror opened", "order", m.cfg.Order.Field, "direction", m.cfg.Order.Direction)
	return nil
}

// Close cancels the subscription and waits for an in-flight delivery to
// finish. After Close returns no observer fires again. It is idempotent and
// must not be called from an observer.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sub := m.sub
	m.sub = nil
	m.observers = make(map[uint64]func())
	m.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	m.delivering.Lock()
	m.delivering.Unlock()

	metrics.Degraded.WithLabelValues(m.cfg.Collection).Set(0)
	m.logger.Info("Mirror closed")
}

// Collection returns the mirrored collection name.
func (m *Mirror) Collection() string {
	return m.cfg.Collection
}

// Snapshot returns the current snapshot. It is replaced, never mutated, so
// callers may keep it.
func (m *Mirror) Snapshot() model.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Status returns the current sync state.
func (m *Mirror) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// State returns the snapshot and status read together.
func (m *Mirror) State() (model.Snapshot, Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot, m.status
}

// OnChange registers fn to run after every snapshot replacement or status
// change. Observers run on the delivery goroutine and must not block.
// The returned func removes the observer.
func (m *Mirror) OnChange(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return func() {}
	}
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

func (m *Mirror) applySnapshot(docs []model.Document) {
	m.delivering.Lock()
	defer m.delivering.Unlock()

	snap := model.NewSnapshot(m.scoped(docs), m.cfg.Fields)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	recovered := m.status.Degraded
	m.snapshot = snap
	m.status.Loaded = true
	m.status.Degraded = false
	m.status.LastError = nil
	m.status.Revision++
	observers := m.observerList()
	m.mu.Unlock()

	metrics.SnapshotsReceived.WithLabelValues(m.cfg.Collection).Inc()
	metrics.SnapshotItems.WithLabelValues(m.cfg.Collection).Set(float64(len(snap)))
	if recovered {
		metrics.Degraded.WithLabelValues(m.cfg.Collection).Set(0)
		m.logger.Info("Mirror recovered", "items", len(snap))
	} else {
		m.logger.Debug("Snapshot applied", "items", len(snap))
	}
	notify(observers)
}

func (m *Mirror) applyError(err error) {
	m.delivering.Lock()
	defer m.delivering.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.status.Degraded = true
	m.status.LastError = err
	m.status.Revision++
	observers := m.observerList()
	kept := len(m.snapshot)
	m.mu.Unlock()

	metrics.SyncErrors.WithLabelValues(m.cfg.Collection).Inc()
	metrics.Degraded.WithLabelValues(m.cfg.Collection).Set(1)
	m.logger.Warn("Subscription error, keeping last snapshot", "error", err, "items", kept)
	notify(observers)
}

func (m *Mirror) scoped(docs []model.Document) []model.Document {
	if m.cfg.Scope == nil {
		return docs
	}
	out := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		ok, err := m.cfg.Scope.Match(doc)
		if err != nil {
			metrics.ScopeErrors.WithLabelValues(m.cfg.Collection).Inc()
			m.logger.Warn("Scope evaluation failed, document excluded", "id", doc.GetID(), "error", err)
			continue
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out
}

func (m *Mirror) observerList() []func() {
	out := make([]func(), 0, len(m.observers))
	for _, fn := range m.observers {
		out = append(out, fn)
	}
	return out
}

func notify(observers []func()) {
	for _, fn := range observers {
		fn()
	}
}
