// Package pubsub carries collection change notifications between the
// back office and every process mirroring the collection.
//
// Every change of collection C is announced on the subject
// <prefix>.C, see ChangeSubject.
package pubsub

import (
	"context"
	"io"
)

// Notification is one received change announcement. The receiver settles it
// with Ack once the collection was refetched, or Nak to get it again.
type Notification interface {
	// Event decodes the announcement. A payload from a foreign writer may
	// not decode.
	Event() (ChangeEvent, error)
	Subject() string
	// Deliveries counts how many times the notification was handed out.
	Deliveries() uint64
	Ack() error
	Nak() error
}

// Publisher announces changes.
type Publisher interface {
	// Announce publishes ev on the change subject of ev.Collection.
	Announce(ctx context.Context, ev ChangeEvent) error
	Close() error
}

// Consumer receives the announcements of the collections it follows.
type Consumer interface {
	// Subscribe returns a channel that is closed when ctx is done.
	Subscribe(ctx context.Context) (<-chan Notification, error)
}

// Provider creates publishers and consumers on one broker.
type Provider interface {
	io.Closer
	NewPublisher(opts PublisherOptions) (Publisher, error)
	NewConsumer(opts ConsumerOptions) (Consumer, error)
}
