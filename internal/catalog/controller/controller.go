// Package controller owns the filter state of one open view.
package controller

import (
	"log/slog"
	"sync"

	"atelier/internal/catalog"
	"atelier/pkg/model"
)

// Controller holds a FilterState and applies edits to it. Setters are total:
// any input yields a valid state. Setters fail only after Close.
type Controller struct {
	pageSize int
	logger   *slog.Logger

	mu        sync.Mutex
	state     model.FilterState
	closed    bool
	observers map[uint64]func()
	nextObs   uint64
}

// New creates a controller with the default state for the page size.
func New(pageSize int) *Controller {
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	return &Controller{
		pageSize:  pageSize,
		logger:    slog.Default().With("component", "filter-controller"),
		state:     model.DefaultFilterState(pageSize),
		observers: make(map[uint64]func()),
	}
}

// PageSize returns the visible count of the default state.
func (c *Controller) PageSize() int {
	return c.pageSize
}

// State returns the current filter state.
func (c *Controller) State() model.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HasActiveFilters reports whether the current state deviates from defaults.
func (c *Controller) HasActiveFilters() bool {
	return c.State().HasActiveFilters()
}

// AvailableCategories derives the category choices from a snapshot.
func (c *Controller) AvailableCategories(snap model.Snapshot) []string {
	return catalog.AvailableCategories(snap)
}

// SetQuery replaces the free-text query. "" removes the text filter.
func (c *Controller) SetQuery(query string) error {
	return c.update("SetQuery", func(s *model.FilterState) {
		s.Query = query
	})
}

// SetCategory selects a category. "" selects every category.
func (c *Controller) SetCategory(category string) error {
	if category == "" {
		category = model.CategoryAll
	}
	return c.update("SetCategory", func(s *model.FilterState) {
		s.Category = category
	})
}

// SetSortMode selects the sort mode. Unknown modes select the default.
func (c *Controller) SetSortMode(mode model.SortMode) error {
	if !mode.IsValid() {
		mode = model.DefaultSortMode
	}
	return c.update("SetSortMode", func(s *model.FilterState) {
		s.SortMode = mode
	})
}

// LoadMore grows the visible count by step, capped at matchCount. A step of
// zero or less grows it by one page.
func (c *Controller) LoadMore(step, matchCount int) error {
	if step <= 0 {
		step = c.pageSize
	}
	return c.update("LoadMore", func(s *model.FilterState) {
		if s.VisibleCount >= matchCount {
			return
		}
		s.VisibleCount = min(s.VisibleCount+step, matchCount)
	})
}

// ClearFilters resets the whole state to defaults in one step.
func (c *Controller) ClearFilters() error {
	def := model.DefaultFilterState(c.pageSize)
	return c.update("ClearFilters", func(s *model.FilterState) {
		*s = def
	})
}

// OnChange registers fn to run after every state change. The returned func
// removes it.
func (c *Controller) OnChange(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Close tears the controller down. Later edits fail with
// model.ErrControllerClosed. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.observers = make(map[uint64]func())
}

func (c *Controller) update(op string, apply func(*model.FilterState)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Error("Filter state edited after close", "op", op)
		return model.ErrControllerClosed
	}
	before := c.state
	apply(&c.state)
	if c.state == before {
		c.mu.Unlock()
		return nil
	}
	observers := make([]func(), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
	return nil
}
