// Package memory announces collection changes inside one process, for
// single-process deployments and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"atelier/internal/core/pubsub"
)

// ErrEngineClosed is returned when operating on a closed engine.
var ErrEngineClosed = errors.New("engine is closed")

var _ pubsub.Provider = (*Engine)(nil)

// Engine is an in-memory pubsub.Provider. Every consumer receives every
// change of the collections it follows.
type Engine struct {
	broker *broker
}

// New creates an engine.
func New() *Engine {
	return &Engine{broker: newBroker()}
}

// NewPublisher creates a publisher announcing under opts.SubjectPrefix.
func (e *Engine) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &publisher{broker: e.broker, prefix: opts.SubjectPrefix}, nil
}

// NewConsumer creates a consumer of opts.Collections under opts.SubjectPrefix.
func (e *Engine) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	for _, c := range opts.Collections {
		if _, err := pubsub.ChangeSubject(opts.SubjectPrefix, c); err != nil {
			return nil, err
		}
	}
	if opts.ChannelBufSize <= 0 {
		opts.ChannelBufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}
	return &consumer{broker: e.broker, opts: opts}, nil
}

// Close shuts down the engine and all subscriptions.
func (e *Engine) Close() error {
	return e.broker.close()
}

// IsClosed returns true if the engine is closed.
func (e *Engine) IsClosed() bool {
	return e.broker.closed.Load()
}

type publisher struct {
	broker *broker
	prefix string
	closed atomic.Bool
}

// Announce blocks until every following subscriber accepted the event.
func (p *publisher) Announce(ctx context.Context, ev pubsub.ChangeEvent) error {
	if p.closed.Load() {
		return ErrEngineClosed
	}
	subject, err := pubsub.ChangeSubject(p.prefix, ev.Collection)
	if err != nil {
		return err
	}
	data, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encoding change of %s: %w", ev.Collection, err)
	}
	return p.broker.publish(ctx, subject, data)
}

func (p *publisher) Close() error {
	p.closed.Store(true)
	return nil
}

type consumer struct {
	broker *broker
	opts   pubsub.ConsumerOptions
}

func (c *consumer) Subscribe(ctx context.Context) (<-chan pubsub.Notification, error) {
	return c.broker.subscribe(ctx, c.opts.SubjectPrefix, c.opts.Collections, c.opts.ChannelBufSize)
}
