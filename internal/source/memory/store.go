// Package memory provides an in-process remote collection. It backs local
// development, the browse demo and every test that needs a live source.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"

	"atelier/internal/source"
	"atelier/pkg/model"
)

// docKey orders a collection by creation time, then id. Documents the store
// has not stamped carry a zero time.
type docKey struct {
	createdAt int64
	id        string
}

func lessFunc(a, b docKey) bool {
	if a.createdAt != b.createdAt {
		return a.createdAt < b.createdAt
	}
	return a.id < b.id
}

type collection struct {
	tree *btree.BTreeG[docKey]
	byID map[string]model.Document
	keys map[string]docKey
	subs map[*source.Dispatcher]model.Order
}

func newCollection() *collection {
	return &collection{
		tree: btree.NewG[docKey](32, lessFunc),
		byID: make(map[string]model.Document),
		keys: make(map[string]docKey),
		subs: make(map[*source.Dispatcher]model.Order),
	}
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the timestamp source used for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a thread-safe in-memory Backend.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	now         func() time.Time
	closed      bool
}

var _ source.Backend = (*Store)(nil)

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]*collection),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) collection(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = newCollection()
		s.collections[name] = c
	}
	return c
}

// Seed inserts documents as-is, keeping any createdAt they carry. Documents
// without createdAt stay pending. Existing ids are overwritten.
func (s *Store) Seed(collectionName string, docs ...model.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collectionName)
	for _, doc := range docs {
		doc = doc.Clone()
		doc.GenerateIDIfEmpty()
		doc.SetCollection(collectionName)
		c.put(doc)
	}
	s.broadcast(c)
}

func (c *collection) put(doc model.Document) {
	id := doc.GetID()
	if old, ok := c.keys[id]; ok {
		c.tree.Delete(old)
	}
	key := docKey{id: id}
	if ts := model.ParseTimestamp(doc["createdAt"]); !ts.IsZero() {
		key.createdAt = ts.UnixMilli()
	}
	c.tree.ReplaceOrInsert(key)
	c.keys[id] = key
	c.byID[id] = doc
}

func (c *collection) remove(id string) bool {
	key, ok := c.keys[id]
	if !ok {
		return false
	}
	c.tree.Delete(key)
	delete(c.keys, id)
	delete(c.byID, id)
	return true
}

func (c *collection) list(order model.Order) []model.Document {
	out := make([]model.Document, 0, c.tree.Len())
	visit := func(k docKey) bool {
		out = append(out, c.byID[k.id].Clone())
		return true
	}
	switch {
	case order.Field == "createdAt" && order.IsDesc():
		c.tree.Descend(visit)
	case order.Field == "createdAt":
		c.tree.Ascend(visit)
	default:
		c.tree.Descend(visit)
		source.SortDocuments(out, order)
	}
	return out
}

// broadcast pushes a fresh snapshot to every subscriber. Callers hold s.mu,
// which keeps snapshots in write order.
func (s *Store) broadcast(c *collection) {
	for d, order := range c.subs {
		d.Snapshot(c.list(order))
	}
}

// Subscribe implements source.Client.
func (s *Store) Subscribe(ctx context.Context, collectionName string, order model.Order, h source.Handler) (source.Subscription, error) {
	if collectionName == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("memory store is closed")
	}

	c := s.collection(collectionName)
	d := source.NewDispatcher(h)
	c.subs[d] = order
	d.Snapshot(c.list(order))

	sub := &subscription{store: s, coll: c, d: d}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Cancel()
			case <-d.Done():
			}
		}()
	}
	return sub, nil
}

type subscription struct {
	store *Store
	coll  *collection
	d     *source.Dispatcher
}

func (s *subscription) Cancel() {
	s.store.mu.Lock()
	delete(s.coll.subs, s.d)
	s.store.mu.Unlock()
	s.d.Cancel()
}

// InjectError delivers err to every subscriber of the collection. The
// documents are left untouched.
func (s *Store) InjectError(collectionName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collectionName)
	for d := range c.subs {
		d.Error(err)
	}
}

// Get implements source.Store.
func (s *Store) Get(ctx context.Context, collectionName, id string) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collectionName)
	doc, ok := c.byID[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return doc.Clone(), nil
}

// List implements source.Store.
func (s *Store) List(ctx context.Context, collectionName string, order model.Order) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection(collectionName).list(order), nil
}

// Create implements source.Store. The store stamps createdAt and updatedAt.
func (s *Store) Create(ctx context.Context, collectionName string, doc model.Document) error {
	id := doc.GetID()
	if id == "" {
		return fmt.Errorf("%w: missing id", model.ErrInvalidDocument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collectionName)
	if _, ok := c.byID[id]; ok {
		return model.ErrExists
	}
	stored := doc.Clone()
	stored.StripProtectedFields()
	now := s.now().UnixMilli()
	stored["createdAt"] = now
	stored["updatedAt"] = now
	stored.SetCollection(collectionName)
	c.put(stored)
	s.broadcast(c)
	return nil
}

// Update implements source.Store.
func (s *Store) Update(ctx context.Context, collectionName, id string, fields model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collectionName)
	existing, ok := c.byID[id]
	if !ok {
		return model.ErrNotFound
	}
	merged := existing.Clone()
	for k, v := range fields {
		switch k {
		case "id", "createdAt", "updatedAt", "collection":
			continue
		}
		merged[k] = v
	}
	merged["updatedAt"] = s.now().UnixMilli()
	c.put(merged)
	s.broadcast(c)
	return nil
}

// Delete implements source.Store.
func (s *Store) Delete(ctx context.Context, collectionName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collectionName)
	if !c.remove(id) {
		return model.ErrNotFound
	}
	s.broadcast(c)
	return nil
}

// Close cancels every subscription.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, c := range s.collections {
		for d := range c.subs {
			d.Cancel()
		}
		c.subs = make(map[*source.Dispatcher]model.Order)
	}
	return nil
}
