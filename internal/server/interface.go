package server

import (
	"context"
	"net/http"
)

// Service is the HTTP network layer.
type Service interface {
	// Start listens and serves. It blocks until a fatal error occurs or the
	// context is canceled.
	Start(ctx context.Context) error

	// Stop initiates a graceful shutdown.
	// It waits for active connections to drain or for the context to expire.
	Stop(ctx context.Context) error

	// RegisterHTTPHandler registers a handler for a specific pattern.
	// This must be called BEFORE Start().
	RegisterHTTPHandler(pattern string, handler http.Handler)

	// HTTPMux returns the underlying HTTP ServeMux for direct route registration.
	// This must be called BEFORE Start().
	HTTPMux() *http.ServeMux

	// Addr is the bound listen address, empty until Start has listened.
	Addr() string
}
