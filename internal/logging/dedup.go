package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultDedupWindow is used when NewDedupHandler gets a non-positive window.
const DefaultDedupWindow = 30 * time.Second

const maxDedupKeys = 4096

// DedupHandler drops a record identical to one written less than window ago.
// The next copy written after the window carries repeated_count, the number
// of copies dropped in between. Timestamps do not take part in the
// comparison.
type DedupHandler struct {
	handler slog.Handler
	window  time.Duration
	scope   string
	state   *dedupState
}

type dedupState struct {
	mu   sync.Mutex
	now  func() time.Time
	seen map[uint64]*dedupEntry
}

type dedupEntry struct {
	last    time.Time
	dropped int
}

// NewDedupHandler wraps handler.
func NewDedupHandler(handler slog.Handler, window time.Duration) *DedupHandler {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &DedupHandler{
		handler: handler,
		window:  window,
		state: &dedupState{
			now:  time.Now,
			seen: make(map[uint64]*dedupEntry),
		},
	}
}

func (h *DedupHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *DedupHandler) Handle(ctx context.Context, r slog.Record) error {
	key := h.hashRecord(r)
	st := h.state

	st.mu.Lock()
	now := st.now()
	entry, ok := st.seen[key]
	if ok && now.Sub(entry.last) < h.window {
		entry.dropped++
		st.mu.Unlock()
		return nil
	}
	dropped := 0
	if ok {
		dropped = entry.dropped
	}
	st.seen[key] = &dedupEntry{last: now}
	if len(st.seen) > maxDedupKeys {
		st.prune(now, h.window)
	}
	st.mu.Unlock()

	if dropped > 0 {
		r = r.Clone()
		r.AddAttrs(slog.Int("repeated_count", dropped))
	}
	return h.handler.Handle(ctx, r)
}

// prune forgets entries whose window has passed. Caller holds mu.
func (st *dedupState) prune(now time.Time, window time.Duration) {
	for key, entry := range st.seen {
		if now.Sub(entry.last) >= window {
			delete(st.seen, key)
		}
	}
}

func (h *DedupHandler) hashRecord(r slog.Record) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(h.scope)
	_, _ = d.WriteString(r.Level.String())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		_, _ = d.WriteString("|")
		_, _ = d.WriteString(a.Key)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(a.Value.String())
		return true
	})
	return d.Sum64()
}

// WithAttrs shares the seen set with the receiver; the attrs become part of
// the identity of every record logged through the result.
func (h *DedupHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scope := h.scope
	for _, a := range attrs {
		scope += a.Key + "=" + a.Value.String() + ";"
	}
	return &DedupHandler{handler: h.handler.WithAttrs(attrs), window: h.window, scope: scope, state: h.state}
}

func (h *DedupHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &DedupHandler{handler: h.handler.WithGroup(name), window: h.window, scope: h.scope + name + ".", state: h.state}
}
