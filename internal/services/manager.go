// Package services assembles the process: backend, change notifications,
// one mirror per view, the write path and the HTTP gateway.
package services

import (
	"context"
	"log/slog"
	"sync"

	"atelier/internal/catalog/mirror"
	"atelier/internal/config"
	"atelier/internal/content"
	"atelier/internal/core/pubsub"
	"atelier/internal/gateway"
	"atelier/internal/server"
	"atelier/internal/server/ratelimit"
	"atelier/internal/source"
)

// Options tune a Manager.
type Options struct {
	// ListenHost overrides server.host when set.
	ListenHost string
}

// Manager owns every long-lived component of the process.
type Manager struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	pubsub    pubsub.Provider
	publisher pubsub.Publisher

	store  source.Store
	client source.Client

	// starters run in order on Start; closers run in reverse on Shutdown.
	starters []func(ctx context.Context) error
	closers  []func(ctx context.Context) error

	mirrors []*mirror.Mirror
	content *content.Service
	limiter ratelimit.Stoppable
	gateway *gateway.Handler
	server  server.Service

	initialized bool
	cancel      context.CancelFunc
	errCh       chan error
	wg          sync.WaitGroup
}

// NewManager creates a Manager. Nothing is connected until Init.
func NewManager(cfg *config.Config, opts Options) *Manager {
	return &Manager{
		cfg:    cfg,
		opts:   opts,
		logger: slog.Default().With("component", "services"),
		errCh:  make(chan error, 1),
	}
}

// Errors reports a fatal error of a running component, such as the HTTP
// server failing to serve.
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// Addr returns the address the HTTP server listens on, once started.
func (m *Manager) Addr() string {
	if m.server == nil {
		return ""
	}
	return m.server.Addr()
}
