package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"atelier/internal/core/pubsub"
)

// inactiveThreshold removes the consumer of a process that went away.
const inactiveThreshold = 5 * time.Minute

type jetStreamConsumer struct {
	js      JetStream
	opts    pubsub.ConsumerOptions
	filters []string
}

// NewConsumer creates a Consumer. Each consumer gets its own JetStream
// consumer delivering only changes announced after it subscribed.
func NewConsumer(js JetStream, opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream cannot be nil")
	}
	if opts.StreamName == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = opts.StreamName
	}
	filters, err := filterSubjects(opts.SubjectPrefix, opts.Collections)
	if err != nil {
		return nil, err
	}
	if opts.ChannelBufSize <= 0 {
		opts.ChannelBufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}
	if opts.ConsumerName == "" {
		opts.ConsumerName = "atelier-" + uuid.NewString()
	}
	return &jetStreamConsumer{js: js, opts: opts, filters: filters}, nil
}

// filterSubjects lists one change subject per followed collection, or the
// whole prefix when no collection is named.
func filterSubjects(prefix string, collections []string) ([]string, error) {
	if len(collections) == 0 {
		return []string{prefix + ".*"}, nil
	}
	out := make([]string, 0, len(collections))
	for _, c := range collections {
		s, err := pubsub.ChangeSubject(prefix, c)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *jetStreamConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Notification, error) {
	if err := ensureStream(ctx, c.js, c.opts.StreamName, c.opts.Storage); err != nil {
		return nil, err
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.opts.StreamName, jetstream.ConsumerConfig{
		Name:              c.opts.ConsumerName,
		AckPolicy:         jetstream.AckExplicitPolicy,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		FilterSubjects:    c.filters,
		InactiveThreshold: inactiveThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	msgCh := make(chan pubsub.Notification, c.opts.ChannelBufSize)
	var closing atomic.Bool

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if closing.Load() {
			_ = msg.Nak()
			return
		}
		select {
		case msgCh <- &notification{msg: msg}:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		close(msgCh)
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	logger := slog.Default().With("component", "pubsub-nats", "stream", c.opts.StreamName, "consumer", c.opts.ConsumerName)
	logger.Info("Consumer subscribed", "subjects", c.filters)

	go func() {
		<-ctx.Done()
		closing.Store(true)
		cc.Drain()
		<-cc.Closed()
		close(msgCh)

		delCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.js.DeleteConsumer(delCtx, c.opts.StreamName, c.opts.ConsumerName); err != nil {
			logger.Debug("Consumer cleanup failed", "error", err)
		}
		logger.Info("Consumer stopped")
	}()

	return msgCh, nil
}

// notification adapts a JetStream message carrying a ChangeEvent.
type notification struct {
	msg jetstream.Msg
}

func (n *notification) Event() (pubsub.ChangeEvent, error) {
	return pubsub.UnmarshalChangeEvent(n.msg.Data())
}

func (n *notification) Subject() string { return n.msg.Subject() }
func (n *notification) Ack() error      { return n.msg.Ack() }
func (n *notification) Nak() error      { return n.msg.Nak() }

// Deliveries reads the delivery count from the message metadata, or 1 when
// the metadata is unavailable.
func (n *notification) Deliveries() uint64 {
	md, err := n.msg.Metadata()
	if err != nil || md == nil {
		return 1
	}
	return md.NumDelivered
}
