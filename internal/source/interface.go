// Package source defines the remote collection collaborator: the document
// store the catalog mirrors and the back office writes to.
package source

import (
	"context"

	"atelier/pkg/model"
)

// Handler receives deliveries for one subscription. Calls for a single
// subscription are never concurrent and arrive in the order the store
// emitted them. Every snapshot is the full collection, never a delta.
type Handler struct {
	OnSnapshot func(docs []model.Document)
	OnError    func(err error)
}

// Subscription is the handle of a live collection subscription.
type Subscription interface {
	// Cancel stops deliveries. It is idempotent; pending deliveries are dropped.
	Cancel()
}

// Client subscribes to collections. It is constructed once per process and
// shared by every mirror.
type Client interface {
	// Subscribe delivers the current collection and then a full snapshot after
	// every change. The order hint is the store-native ordering to request; a
	// store may ignore it. Subscribe never blocks on delivery.
	Subscribe(ctx context.Context, collection string, order model.Order, h Handler) (Subscription, error)
}

// Store is the write side of the remote collection.
type Store interface {
	// Get returns one document or model.ErrNotFound.
	Get(ctx context.Context, collection, id string) (model.Document, error)

	// List returns the whole collection in the requested order.
	List(ctx context.Context, collection string, order model.Order) ([]model.Document, error)

	// Create inserts a document. The document must carry an id.
	// Fails with model.ErrExists if the id is taken.
	Create(ctx context.Context, collection string, doc model.Document) error

	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields model.Document) error

	// Delete removes a document.
	Delete(ctx context.Context, collection, id string) error

	// Close releases the connection to the backend.
	Close(ctx context.Context) error
}

// Backend is a store that can also be subscribed to.
type Backend interface {
	Client
	Store
}
