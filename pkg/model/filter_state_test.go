package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSortMode(t *testing.T) {
	m, err := ParseSortMode("")
	require.NoError(t, err)
	assert.Equal(t, SortNewest, m)

	for _, mode := range SortModes() {
		got, err := ParseSortMode(string(mode))
		require.NoError(t, err)
		assert.Equal(t, mode, got)
	}

	_, err = ParseSortMode("popular")
	assert.Error(t, err)
}

func TestDefaultFilterState(t *testing.T) {
	s := DefaultFilterState(0)
	assert.Equal(t, "", s.Query)
	assert.Equal(t, CategoryAll, s.Category)
	assert.Equal(t, SortNewest, s.SortMode)
	assert.Equal(t, DefaultPageSize, s.VisibleCount)
	assert.False(t, s.HasActiveFilters())

	assert.Equal(t, 4, DefaultFilterState(4).VisibleCount)
}

func TestFilterState_HasActiveFilters(t *testing.T) {
	base := DefaultFilterState(12)

	tests := []struct {
		name   string
		mutate func(*FilterState)
		want   bool
	}{
		{"defaults", func(*FilterState) {}, false},
		{"query", func(s *FilterState) { s.Query = "art" }, true},
		{"category", func(s *FilterState) { s.Category = "Events" }, true},
		{"empty category reads as all", func(s *FilterState) { s.Category = "" }, false},
		{"sort oldest", func(s *FilterState) { s.SortMode = SortOldest }, true},
		{"sort unset reads as default", func(s *FilterState) { s.SortMode = "" }, false},
		{"visible count is not a filter", func(s *FilterState) { s.VisibleCount = 40 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			assert.Equal(t, tt.want, s.HasActiveFilters())
		})
	}
}

func TestVisibleResult_HasMore(t *testing.T) {
	r := VisibleResult{Items: []CatalogItem{{ID: "1"}}, MatchCount: 2, TotalCount: 5}
	assert.True(t, r.HasMore())
	assert.Equal(t, []string{"1"}, r.IDs())

	r.MatchCount = 1
	assert.False(t, r.HasMore())
}
