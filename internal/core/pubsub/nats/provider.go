// Package nats provides a pubsub.Provider over NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"atelier/internal/core/pubsub"
)

// JetStream is the subset of jetstream.JetStream the provider uses.
type JetStream interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
	DeleteConsumer(ctx context.Context, stream string, consumer string) error
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Provider implements pubsub.Provider using NATS JetStream.
type Provider struct {
	url    string
	nc     *nats.Conn
	js     JetStream
	logger *slog.Logger
}

var _ pubsub.Provider = (*Provider)(nil)

// NewProvider creates a provider for the server at url. Call Connect before use.
func NewProvider(url string) *Provider {
	return &Provider{
		url:    url,
		logger: slog.Default().With("component", "pubsub-nats"),
	}
}

// Connect establishes the NATS connection and initializes JetStream.
func (p *Provider) Connect(ctx context.Context) error {
	nc, err := nats.Connect(p.url, nats.Name("atelier"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream: %w", err)
	}
	p.nc = nc
	p.js = js

	p.logger.Info("Connected to NATS", "url", p.url)
	return nil
}

// NewPublisher creates a new Publisher backed by NATS JetStream.
func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return NewPublisher(p.js, opts)
}

// NewConsumer creates a new Consumer backed by NATS JetStream.
func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return NewConsumer(p.js, opts)
}

// Close drains and closes the NATS connection.
func (p *Provider) Close() error {
	if p.nc == nil {
		return nil
	}
	p.logger.Info("Closing NATS connection...")
	err := p.nc.Drain()
	p.nc = nil
	p.js = nil
	return err
}
