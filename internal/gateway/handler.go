// Package gateway is the HTTP surface of the catalog: one-shot view
// queries, live view streams over websocket, and the admin write API.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"atelier/internal/catalog/presenter"
	"atelier/internal/config"
	"atelier/internal/content"
	"atelier/internal/server"
	"atelier/internal/server/ratelimit"
	"atelier/internal/upload"
	"atelier/pkg/model"
)

// Default body size limits
const (
	DefaultMaxBodySize = 1 << 20 // 1MB
)

// Error codes
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeReadOnly        = "READ_ONLY"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
	ErrCodeBadGateway      = "BAD_GATEWAY"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// View is one configured view and the mirror that feeds it.
type View struct {
	Config config.ViewConfig
	Mirror presenter.Snapshots
}

// Options configures a Handler.
type Options struct {
	Views []View

	// Content serves the admin write routes. Nil leaves them unregistered.
	Content *content.Service

	Auth config.AuthConfig

	// AdminLimiter throttles admin routes per client IP when set.
	AdminLimiter    ratelimit.Limiter
	AdminRateWindow time.Duration

	MaxUploadBytes int64

	// RequestTimeout bounds view queries and admin requests. Zero means no
	// bound. Streams are never bounded.
	RequestTimeout time.Duration
}

// Handler serves the gateway routes.
type Handler struct {
	views     map[string]View
	order     []string
	content   *content.Service
	auth      config.AuthConfig
	limiter   ratelimit.Limiter
	rlWindow  time.Duration
	uploadMax int64
	timeout   time.Duration
	logger    *slog.Logger

	streamsMu sync.Mutex
	streams   map[*stream]struct{}
	closing   bool
	streamWG  sync.WaitGroup
}

// New creates a Handler.
func New(opts Options) *Handler {
	h := &Handler{
		views:     make(map[string]View, len(opts.Views)),
		content:   opts.Content,
		auth:      opts.Auth,
		limiter:   opts.AdminLimiter,
		rlWindow:  opts.AdminRateWindow,
		uploadMax: opts.MaxUploadBytes,
		timeout:   opts.RequestTimeout,
		logger:    slog.Default().With("component", "gateway"),
		streams:   make(map[*stream]struct{}),
	}
	if h.uploadMax <= 0 {
		h.uploadMax = config.DefaultUploadConfig().MaxBytes
	}
	if h.rlWindow <= 0 {
		h.rlWindow = time.Minute
	}
	for _, v := range opts.Views {
		h.views[v.Config.Name] = v
		h.order = append(h.order, v.Config.Name)
	}
	return h
}

// RegisterRoutes registers every gateway route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/views", h.handleListViews)
	mux.Handle("GET /api/v1/views/{view}", h.oneShot(h.handleGetView))
	mux.HandleFunc("GET /api/v1/views/{view}/stream", h.handleStream)

	if h.content == nil {
		return
	}
	mux.Handle("POST /admin/v1/collections/{collection}/documents",
		h.admin(maxBodySize(h.handleCreateDocument, DefaultMaxBodySize)))
	mux.Handle("PATCH /admin/v1/collections/{collection}/documents/{id}",
		h.admin(maxBodySize(h.handleUpdateDocument, DefaultMaxBodySize)))
	mux.Handle("DELETE /admin/v1/collections/{collection}/documents/{id}",
		h.admin(h.handleDeleteDocument))
	mux.Handle("POST /admin/v1/uploads",
		h.admin(maxBodySize(h.handleUpload, h.uploadMax+DefaultMaxBodySize)))
}

// oneShot bounds a request that answers once by the request timeout.
func (h *Handler) oneShot(next http.HandlerFunc) http.Handler {
	if h.timeout <= 0 {
		return next
	}
	return server.TimeoutMiddleware(h.timeout)(next)
}

// admin guards next with the admin rate limit and role check.
func (h *Handler) admin(next http.HandlerFunc) http.Handler {
	var mws []server.Middleware
	if h.limiter != nil {
		mws = append(mws, server.RateLimit(h.limiter, h.rlWindow))
	}
	mws = append(mws, h.requireAdmin)
	return h.oneShot(server.Chain(next, mws...).ServeHTTP)
}

// writeError writes a structured JSON error response
func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(server.APIError{Code: code, Message: message}); err != nil {
		slog.Warn("Failed to encode error response", "error", err)
	}
}

// writeInternalError answers 499 instead of 500 when the client went away.
func writeInternalError(w http.ResponseWriter, err error, message string) {
	if model.IsCanceled(err) {
		w.WriteHeader(server.StatusClientClosedRequest)
		return
	}
	slog.Error(message, "error", err)
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// writeContentError maps write-path errors onto responses.
func writeContentError(w http.ResponseWriter, err error) {
	var httpErr *upload.HTTPError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Document not found")
	case errors.Is(err, model.ErrExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "Document already exists")
	case errors.Is(err, model.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, content.ErrUnknownCollection):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Collection not found")
	case errors.Is(err, content.ErrReadOnly):
		writeError(w, http.StatusMethodNotAllowed, ErrCodeReadOnly, "Content backend is read-only")
	case errors.Is(err, upload.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "Uploads are not configured")
	case errors.Is(err, upload.ErrTooLarge), errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, "File too large")
	case errors.Is(err, upload.ErrEmptyFile):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "File is empty")
	case errors.As(err, &httpErr):
		slog.Warn("Asset host rejected upload", "status", httpErr.StatusCode, "body", httpErr.Body)
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, "Asset host rejected the upload")
	default:
		writeInternalError(w, err, "Internal storage error")
	}
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}

// maxBodySize wraps a handler with request body size limiting
func maxBodySize(next http.HandlerFunc, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next(w, r)
	}
}
