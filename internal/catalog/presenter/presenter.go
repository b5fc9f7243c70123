// Package presenter exposes the reactive view of a catalog: the visible
// result plus the metadata a renderer needs, recomputed whenever the
// snapshot or the filter state changes.
package presenter

import (
	"log/slog"
	"sync"
	"time"

	"atelier/internal/catalog"
	"atelier/internal/catalog/metrics"
	"atelier/internal/catalog/mirror"
	"atelier/pkg/model"
)

// Status tells a renderer which state to show.
type Status string

const (
	StatusOK           Status = "ok"
	StatusNoResults    Status = "no_results"
	StatusEmptyCatalog Status = "empty_catalog"
	StatusLoading      Status = "loading"
)

// View is one recomputed value. It is never mutated after it is published.
type View struct {
	Name                string              `json:"view"`
	Result              model.VisibleResult `json:"result"`
	State               model.FilterState   `json:"state"`
	HasActiveFilters    bool                `json:"hasActiveFilters"`
	HasMore             bool                `json:"hasMore"`
	AvailableCategories []string            `json:"availableCategories"`
	CategoryCounts      map[string]int      `json:"categoryCounts"`
	Status              Status              `json:"status"`
	Degraded            bool                `json:"degraded"`
	LastError           string              `json:"lastError,omitempty"`
	Revision            uint64              `json:"revision"`
}

// Snapshots is the snapshot side of a view, usually a *mirror.Mirror.
type Snapshots interface {
	State() (model.Snapshot, mirror.Status)
	OnChange(fn func()) func()
}

// Filters is the filter side of a view, usually a *controller.Controller.
type Filters interface {
	State() model.FilterState
	OnChange(fn func()) func()
	LoadMore(step, matchCount int) error
}

// Build computes a view from its inputs.
func Build(name string, snap model.Snapshot, st mirror.Status, fs model.FilterState) View {
	result := catalog.Compute(snap, fs)
	v := View{
		Name:                name,
		Result:              result,
		State:               fs,
		HasActiveFilters:    fs.HasActiveFilters(),
		HasMore:             result.HasMore(),
		AvailableCategories: catalog.AvailableCategories(snap),
		CategoryCounts:      catalog.CategoryCounts(snap),
		Degraded:            st.Degraded,
	}
	if st.LastError != nil {
		v.LastError = st.LastError.Error()
	}
	switch {
	case !st.Loaded:
		v.Status = StatusLoading
	case result.TotalCount == 0:
		v.Status = StatusEmptyCatalog
	case result.MatchCount == 0:
		v.Status = StatusNoResults
	default:
		v.Status = StatusOK
	}
	return v
}

// Presenter recomputes a View from the current snapshot and the current
// filter state on every change of either. Recomputations are serialized and
// always read both inputs fresh, so the published view reflects the latest
// of each no matter which trigger fired last.
type Presenter struct {
	name     string
	snaps    Snapshots
	filters  Filters
	logger   *slog.Logger
	removers []func()

	mu       sync.Mutex
	current  View
	revision uint64
	closed   bool
	updates  chan View
}

// New creates a presenter and computes the first view.
func New(name string, snaps Snapshots, filters Filters) *Presenter {
	p := &Presenter{
		name:    name,
		snaps:   snaps,
		filters: filters,
		logger:  slog.Default().With("component", "presenter", "view", name),
		updates: make(chan View, 1),
	}
	// Observers go first so a delivery racing the first computation still
	// triggers a recompute.
	p.removers = []func(){
		snaps.OnChange(func() { p.recompute("snapshot") }),
		filters.OnChange(func() { p.recompute("filters") }),
	}
	p.recompute("open")
	metrics.ActiveViews.WithLabelValues(name).Inc()
	return p
}

// Current returns the latest view.
func (p *Presenter) Current() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Updates delivers views as they are recomputed. A consumer that falls
// behind sees only the newest view. The channel is closed by Close.
func (p *Presenter) Updates() <-chan View {
	return p.updates
}

// LoadMore shows another step of the current matches.
func (p *Presenter) LoadMore(step int) error {
	return p.filters.LoadMore(step, p.Current().Result.MatchCount)
}

// Refresh recomputes the view from the current inputs.
func (p *Presenter) Refresh() {
	p.recompute("refresh")
}

// Close detaches from both inputs. Views not yet received are dropped.
// Close is idempotent.
func (p *Presenter) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	select {
	case <-p.updates:
	default:
	}
	close(p.updates)
	p.mu.Unlock()

	for _, remove := range p.removers {
		remove()
	}
	metrics.ActiveViews.WithLabelValues(p.name).Dec()
}

func (p *Presenter) recompute(trigger string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	start := time.Now()
	snap, st := p.snaps.State()
	fs := p.filters.State()
	v := Build(p.name, snap, st, fs)
	p.revision++
	v.Revision = p.revision
	p.current = v

	select {
	case <-p.updates:
	default:
	}
	p.updates <- v

	metrics.ComputeLatency.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	metrics.Recomputations.WithLabelValues(p.name, trigger).Inc()
	p.logger.Debug("View recomputed", "trigger", trigger, "matches", v.Result.MatchCount, "total", v.Result.TotalCount, "status", v.Status)
}
