package main

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/catalog/presenter"
	"atelier/internal/gateway"
	"atelier/pkg/model"
)

type recordingSender struct {
	sent []gateway.ClientMessage
	err  error
}

func (r *recordingSender) Send(msg gateway.ClientMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingSender) last(t *testing.T) (string, string) {
	t.Helper()
	require.NotEmpty(t, r.sent)
	msg := r.sent[len(r.sent)-1]
	var v string
	if len(msg.Value) > 0 {
		require.NoError(t, json.Unmarshal(msg.Value, &v))
	}
	return msg.Type, v
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleView() presenter.View {
	return presenter.View{
		Name: "gallery",
		Result: model.VisibleResult{
			Items: []model.CatalogItem{
				{ID: "1", Title: "Spring Show", Category: "Exhibition", CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
				{ID: "2", Title: "Winter Gala", Category: "Event", Description: "Annual fundraiser"},
			},
			MatchCount: 3,
			TotalCount: 3,
		},
		State:               model.DefaultFilterState(2),
		HasMore:             true,
		AvailableCategories: []string{"Event", "Exhibition"},
		CategoryCounts:      map[string]int{"Event": 2, "Exhibition": 1},
		Status:              presenter.StatusOK,
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestModel_RendersView(t *testing.T) {
	m := NewModel("gallery", &recordingSender{})
	assert.Contains(t, m.View(), "Connecting...")

	m, _ = update(t, m, viewMsg(sampleView()))
	out := m.View()
	assert.Contains(t, out, "Spring Show")
	assert.Contains(t, out, "2024-03-01")
	assert.Contains(t, out, "Annual fundraiser")
	assert.Contains(t, out, "[all (3)]")
	assert.Contains(t, out, "Event (2)")
	assert.Contains(t, out, "Showing 2 of 3")
	assert.Contains(t, out, "m: load more")
}

func TestModel_EmptyStatesDiffer(t *testing.T) {
	m := NewModel("gallery", &recordingSender{})

	v := sampleView()
	v.Result = model.VisibleResult{TotalCount: 3}
	v.Status = presenter.StatusNoResults
	m, _ = update(t, m, viewMsg(v))
	noResults := m.View()
	assert.Contains(t, noResults, "No items match your filters.")
	assert.NotContains(t, noResults, "Nothing here yet.")

	v.Result = model.VisibleResult{}
	v.Status = presenter.StatusEmptyCatalog
	m, _ = update(t, m, viewMsg(v))
	empty := m.View()
	assert.Contains(t, empty, "Nothing here yet.")
	assert.NotContains(t, empty, "No items match your filters.")

	v.Status = presenter.StatusLoading
	m, _ = update(t, m, viewMsg(v))
	assert.Contains(t, m.View(), "Loading...")
}

func TestModel_Degraded(t *testing.T) {
	m := NewModel("gallery", &recordingSender{})
	v := sampleView()
	v.Degraded = true
	v.LastError = "connection reset"
	m, _ = update(t, m, viewMsg(v))
	assert.Contains(t, m.View(), "connection reset")
}

func TestModel_Keys(t *testing.T) {
	out := &recordingSender{}
	m := NewModel("gallery", out)
	m, _ = update(t, m, viewMsg(sampleView()))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	typ, v := out.last(t)
	assert.Equal(t, gateway.TypeSetCategory, typ)
	assert.Equal(t, "Event", v)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	_, v = out.last(t)
	assert.Equal(t, "Exhibition", v)

	m, _ = update(t, m, runes("s"))
	typ, v = out.last(t)
	assert.Equal(t, gateway.TypeSetSort, typ)
	assert.Equal(t, string(model.SortOldest), v)

	m, _ = update(t, m, runes("m"))
	typ, _ = out.last(t)
	assert.Equal(t, gateway.TypeLoadMore, typ)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	typ, _ = out.last(t)
	assert.Equal(t, gateway.TypeClear, typ)

	_, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModel_LoadMoreOnlyWhenMore(t *testing.T) {
	out := &recordingSender{}
	m := NewModel("gallery", out)
	v := sampleView()
	v.HasMore = false
	m, _ = update(t, m, viewMsg(v))

	_, _ = update(t, m, runes("m"))
	assert.Empty(t, out.sent)
}

func TestModel_Search(t *testing.T) {
	out := &recordingSender{}
	m := NewModel("gallery", out)
	m, _ = update(t, m, viewMsg(sampleView()))

	m, _ = update(t, m, runes("/"))
	assert.Empty(t, out.sent)

	m, _ = update(t, m, runes("g"))
	m, _ = update(t, m, runes("a"))
	typ, v := out.last(t)
	assert.Equal(t, gateway.TypeSetQuery, typ)
	assert.Equal(t, "ga", v)

	// While typing, letters are text, not shortcuts.
	m, _ = update(t, m, runes("s"))
	_, v = out.last(t)
	assert.Equal(t, "gas", v)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	n := len(out.sent)
	_, _ = update(t, m, runes("s"))
	require.Len(t, out.sent, n+1)
	typ, _ = out.last(t)
	assert.Equal(t, gateway.TypeSetSort, typ)
}

func TestModel_ErrorsAndDisconnect(t *testing.T) {
	out := &recordingSender{err: errors.New("broken pipe")}
	m := NewModel("gallery", out)
	m, _ = update(t, m, viewMsg(sampleView()))

	m, _ = update(t, m, runes("s"))
	assert.Contains(t, m.View(), "broken pipe")

	m, _ = update(t, m, serverErrMsg{code: "BAD_REQUEST", message: "invalid sort mode"})
	assert.Contains(t, m.View(), "BAD_REQUEST: invalid sort mode")

	m, cmd := update(t, m, disconnectedMsg{err: errors.New("EOF")})
	assert.EqualError(t, m.closed, "EOF")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		base string
		want string
		err  bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/api/v1/views/gallery/stream", false},
		{"https://example.com/catalog/", "wss://example.com/catalog/api/v1/views/gallery/stream", false},
		{"ws://localhost:8080", "ws://localhost:8080/api/v1/views/gallery/stream", false},
		{"ftp://example.com", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := streamURL(tt.base, "gallery")
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
