package nats

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"atelier/internal/core/pubsub"
)

type jetStreamPublisher struct {
	js   JetStream
	opts pubsub.PublisherOptions
}

func streamStorage(s pubsub.StorageType) jetstream.StorageType {
	if s == pubsub.FileStorage {
		return jetstream.FileStorage
	}
	return jetstream.MemoryStorage
}

// ensureStream creates the stream capturing every subject under its name.
func ensureStream(ctx context.Context, js JetStream, name string, storage pubsub.StorageType) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{name + ".>"},
		Storage:  streamStorage(storage),
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}
	return nil
}

// NewPublisher creates a Publisher and ensures its stream exists.
func NewPublisher(js JetStream, opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream cannot be nil")
	}
	if opts.StreamName != "" {
		if opts.SubjectPrefix != "" && !strings.HasPrefix(opts.SubjectPrefix+".", opts.StreamName+".") {
			return nil, fmt.Errorf("subject prefix %q is outside stream %q", opts.SubjectPrefix, opts.StreamName)
		}
		if err := ensureStream(context.Background(), js, opts.StreamName, opts.Storage); err != nil {
			return nil, err
		}
	}
	return &jetStreamPublisher{js: js, opts: opts}, nil
}

// Announce publishes ev on <prefix>.<collection>.
func (p *jetStreamPublisher) Announce(ctx context.Context, ev pubsub.ChangeEvent) error {
	subject, err := pubsub.ChangeSubject(p.opts.SubjectPrefix, ev.Collection)
	if err != nil {
		return err
	}
	data, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encoding change of %s: %w", ev.Collection, err)
	}

	var publishOpts []jetstream.PublishOpt
	if p.opts.RetryAttempts > 0 {
		publishOpts = append(publishOpts, jetstream.WithRetryAttempts(p.opts.RetryAttempts))
	}
	if _, err := p.js.Publish(ctx, subject, data, publishOpts...); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the Provider.
func (p *jetStreamPublisher) Close() error {
	return nil
}
