// Package realtime is a source that follows collections through a
// websocket server speaking the subscribe/snapshot/event protocol. Deltas
// are applied to a local copy and handed on as full snapshots.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"atelier/internal/source"
	"atelier/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// ErrDisconnected is reported to subscribers when the connection drops.
var ErrDisconnected = errors.New("realtime connection lost")

// Options configure a Client.
type Options struct {
	// Token is sent in an auth message after connecting, when set.
	Token string
	// RetryInterval is the pause between reconnect attempts.
	RetryInterval time.Duration
	// Header is sent with the websocket handshake.
	Header http.Header
}

// Client implements source.Client over one websocket connection.
type Client struct {
	url    string
	opts   Options
	dialer *websocket.Dialer
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]*subscription
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ source.Client = (*Client)(nil)

// NewClient creates a client for the websocket endpoint at url.
func NewClient(url string, opts Options) *Client {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 2 * time.Second
	}
	return &Client{
		url:    url,
		opts:   opts,
		dialer: websocket.DefaultDialer,
		logger: slog.Default().With("component", "realtime-source"),
		subs:   make(map[string]*subscription),
		done:   make(chan struct{}),
	}
}

// Start connects in the background and keeps reconnecting until Close.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("realtime client is closed")
	}
	if c.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true
	go c.run(runCtx)
	return nil
}

// Close disconnects and cancels every subscription.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.conn
	subs := c.subs
	c.subs = make(map[string]*subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.d.Cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if started {
		<-c.done
	}
	return nil
}

// Subscribe implements source.Client.
func (c *Client) Subscribe(ctx context.Context, collection string, order model.Order, h source.Handler) (source.Subscription, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("realtime client is closed")
	}
	sub := &subscription{
		client:     c,
		id:         uuid.NewString(),
		collection: collection,
		order:      order,
		d:          source.NewDispatcher(h),
		docs:       make(map[string]model.Document),
	}
	c.subs[sub.id] = sub
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := c.write(conn, sub.subscribeMessage()); err != nil {
			c.logger.Warn("Subscribe write failed, will resubscribe on reconnect", "collection", collection, "error", err)
		}
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Cancel()
			case <-sub.d.Done():
			}
		}()
	}
	return sub, nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		err := c.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("Realtime connection lost, reconnecting", "url", c.url, "error", err, "retry_in", c.opts.RetryInterval)
		c.failAll(fmt.Errorf("%w: %v", ErrDisconnected, err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.RetryInterval):
		}
	}
}

func (c *Client) connectAndServe(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.opts.Header)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	if c.opts.Token != "" {
		if err := c.write(conn, BaseMessage{Type: TypeAuth, Payload: mustMarshal(AuthPayload{Token: c.opts.Token})}); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.conn = conn
	subs := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	for _, sub := range subs {
		sub.resync()
		if err := c.write(conn, sub.subscribeMessage()); err != nil {
			return err
		}
	}
	c.logger.Info("Realtime connection established", "url", c.url, "subscriptions", len(subs))

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.ping(conn, stopPing)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stopPing:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg BaseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Dropping malformed message", "error", err)
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) ping(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) write(conn *websocket.Conn, msg BaseMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func (c *Client) lookup(id string) *subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[id]
}

func (c *Client) handle(msg BaseMessage) {
	switch msg.Type {
	case TypeSnapshot:
		var payload SnapshotPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.logger.Warn("Bad snapshot payload", "error", err)
			return
		}
		if sub := c.lookup(payload.SubID); sub != nil {
			sub.applySnapshot(payload.Documents)
		}
	case TypeEvent:
		var payload EventPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.logger.Warn("Bad event payload", "error", err)
			return
		}
		if sub := c.lookup(payload.SubID); sub != nil {
			sub.applyEvent(payload.Delta)
		}
	case TypeError:
		var payload ErrorPayload
		_ = json.Unmarshal(msg.Payload, &payload)
		err := fmt.Errorf("realtime server error %s: %s", payload.Code, payload.Message)
		if sub := c.lookup(msg.ID); sub != nil {
			sub.d.Error(err)
			return
		}
		c.logger.Warn("Server error", "code", payload.Code, "message", payload.Message)
	case TypeAuthAck, TypeSubscribeAck, TypeUnsubscribeAck:
	default:
		c.logger.Debug("Ignoring message", "type", msg.Type)
	}
}

func (c *Client) failAll(err error) {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()
	for _, sub := range subs {
		sub.d.Error(err)
	}
}

func (c *Client) unsubscribe(sub *subscription) {
	c.mu.Lock()
	_, ok := c.subs[sub.id]
	delete(c.subs, sub.id)
	conn := c.conn
	c.mu.Unlock()

	if ok && conn != nil {
		_ = c.write(conn, BaseMessage{
			ID:      uuid.NewString(),
			Type:    TypeUnsubscribe,
			Payload: mustMarshal(UnsubscribePayload{ID: sub.id}),
		})
	}
}
