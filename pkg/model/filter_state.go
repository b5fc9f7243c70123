package model

import "fmt"

// SortMode is the order applied when no text query is active.
type SortMode string

const (
	SortNewest SortMode = "newest"
	SortOldest SortMode = "oldest"
	SortTitle  SortMode = "title"
)

// DefaultSortMode is the sort mode of a freshly opened view.
const DefaultSortMode = SortNewest

// CategoryAll selects every category.
const CategoryAll = "all"

// DefaultPageSize is the visible count of a freshly opened view.
const DefaultPageSize = 12

// SortModes returns all sort modes in display order.
func SortModes() []SortMode {
	return []SortMode{SortNewest, SortOldest, SortTitle}
}

// IsValid checks if the sort mode is known.
func (m SortMode) IsValid() bool {
	switch m {
	case SortNewest, SortOldest, SortTitle:
		return true
	}
	return false
}

// ParseSortMode parses a sort mode name. The empty string is the default mode.
func ParseSortMode(s string) (SortMode, error) {
	if s == "" {
		return DefaultSortMode, nil
	}
	m := SortMode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid sort mode %q (must be newest, oldest or title)", s)
	}
	return m, nil
}

// FilterState is the user's current intent for a view.
type FilterState struct {
	Query        string   `json:"query"`
	Category     string   `json:"category"`
	SortMode     SortMode `json:"sort"`
	VisibleCount int      `json:"visibleCount"`
}

// DefaultFilterState returns the state of a freshly opened view.
func DefaultFilterState(pageSize int) FilterState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return FilterState{
		Category:     CategoryAll,
		SortMode:     DefaultSortMode,
		VisibleCount: pageSize,
	}
}

// CategoryFilter returns the selected category, or "" when every category is selected.
func (s FilterState) CategoryFilter() string {
	if s.Category == CategoryAll {
		return ""
	}
	return s.Category
}

// EffectiveSortMode returns the sort mode, treating unset as the default.
func (s FilterState) EffectiveSortMode() SortMode {
	if s.SortMode == "" {
		return DefaultSortMode
	}
	return s.SortMode
}

// HasActiveFilters reports whether any filter deviates from its default.
// The visible count is pagination, not a filter.
func (s FilterState) HasActiveFilters() bool {
	return s.Query != "" || s.CategoryFilter() != "" || s.EffectiveSortMode() != DefaultSortMode
}
