// Package content is the back-office write path: it changes documents of
// the remote collection and announces every change to mirrors that cannot
// watch the store themselves.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"atelier/internal/core/pubsub"
	"atelier/internal/source"
	"atelier/internal/upload"
	"atelier/pkg/model"
)

var (
	// ErrUnknownCollection is returned for a collection no view serves.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrReadOnly is returned when the backend does not accept writes.
	ErrReadOnly = errors.New("content backend is read-only")
)

// Option configures a Service.
type Option func(*Service)

// WithPublisher announces every write on p.
func WithPublisher(p pubsub.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithUploader routes uploads to u.
func WithUploader(u upload.Uploader) Option {
	return func(s *Service) {
		s.uploader = u
	}
}

// WithCollections restricts writes to the named collections.
func WithCollections(names ...string) Option {
	return func(s *Service) {
		s.collections = make(map[string]bool, len(names))
		for _, n := range names {
			s.collections[n] = true
		}
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service writes documents through a source.Store.
type Service struct {
	store       source.Store
	publisher   pubsub.Publisher
	uploader    upload.Uploader
	collections map[string]bool
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a Service. A nil store makes every write fail with ErrReadOnly.
func New(store source.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		logger: slog.Default().With("component", "content"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts doc into collection and returns the stored document. The
// id is generated when doc has none; store-owned fields are discarded.
func (s *Service) Create(ctx context.Context, collection string, doc model.Document) (model.Document, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty body", model.ErrInvalidDocument)
	}
	doc = doc.Clone()
	if err := doc.ValidateDocument(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidDocument, err)
	}
	doc.StripProtectedFields()
	doc.GenerateIDIfEmpty()
	id := doc.GetID()

	if err := s.store.Create(ctx, collection, doc); err != nil {
		return nil, err
	}
	stored, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Document created", "collection", collection, "id", id)
	s.announce(ctx, collection, id, pubsub.ChangeCreate)
	return stored, nil
}

// Update merges fields into the document and returns the result. The id
// and store-owned fields cannot be changed.
func (s *Service) Update(ctx context.Context, collection, id string, fields model.Document) (model.Document, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	if !model.CheckDocumentID(id) {
		return nil, fmt.Errorf("%w: invalid id %q", model.ErrInvalidDocument, id)
	}
	fields = fields.Clone()
	if other := fields.GetID(); other != "" && other != id {
		return nil, fmt.Errorf("%w: id cannot be changed", model.ErrInvalidDocument)
	}
	delete(fields, "id")
	fields.StripProtectedFields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", model.ErrInvalidDocument)
	}

	if err := s.store.Update(ctx, collection, id, fields); err != nil {
		return nil, err
	}
	stored, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Document updated", "collection", collection, "id", id, "fields", len(fields))
	s.announce(ctx, collection, id, pubsub.ChangeUpdate)
	return stored, nil
}

// Delete removes a document.
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	if err := s.check(collection); err != nil {
		return err
	}
	if !model.CheckDocumentID(id) {
		return fmt.Errorf("%w: invalid id %q", model.ErrInvalidDocument, id)
	}
	if err := s.store.Delete(ctx, collection, id); err != nil {
		return err
	}
	s.logger.Info("Document deleted", "collection", collection, "id", id)
	s.announce(ctx, collection, id, pubsub.ChangeDelete)
	return nil
}

// Upload stores a file on the asset host and returns its URL.
func (s *Service) Upload(ctx context.Context, f upload.File) (string, error) {
	if s.uploader == nil {
		return "", upload.ErrDisabled
	}
	return s.uploader.Upload(ctx, f)
}

// Writable reports whether writes can succeed at all.
func (s *Service) Writable() bool {
	return s.store != nil
}

func (s *Service) check(collection string) error {
	if s.store == nil {
		return ErrReadOnly
	}
	if s.collections != nil && !s.collections[collection] {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return nil
}

// announce publishes a change event. The write already succeeded, so a
// failure is logged and not returned.
func (s *Service) announce(ctx context.Context, collection, id string, typ pubsub.ChangeType) {
	if s.publisher == nil {
		return
	}
	ev := pubsub.ChangeEvent{
		Collection: collection,
		ID:         id,
		Type:       typ,
		Timestamp:  s.now().UnixMilli(),
	}
	if err := s.publisher.Announce(ctx, ev); err != nil {
		s.logger.Warn("Failed to announce change", "collection", collection, "id", id, "error", err)
	}
}
