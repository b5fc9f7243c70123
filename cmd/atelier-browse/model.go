package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"atelier/internal/catalog/presenter"
	"atelier/internal/gateway"
	"atelier/pkg/model"
)

// Styles of the browser.
type Styles struct {
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Active    lipgloss.Style
	Category  lipgloss.Style
	ItemTitle lipgloss.Style
	Empty     lipgloss.Style
	NoResults lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Help      lipgloss.Style
}

// NewStyles creates the default palette.
func NewStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).MarginBottom(1),
		Dim:       lipgloss.NewStyle().Faint(true),
		Active:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226")),
		Category:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		ItemTitle: lipgloss.NewStyle().Bold(true),
		Empty:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
		NoResults: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Help:      lipgloss.NewStyle().Faint(true).MarginTop(1),
	}
}

// Model is the bubbletea model of one view stream.
type Model struct {
	name   string
	out    sender
	search textinput.Model
	styles Styles

	view      *presenter.View
	lastError string
	closed    error
	width     int
}

// NewModel creates a browser for the view called name that sends edits to out.
func NewModel(name string, out sender) Model {
	ti := textinput.New()
	ti.Placeholder = "search titles and descriptions"
	ti.Prompt = "/ "
	ti.CharLimit = 200
	return Model{
		name:   name,
		out:    out,
		search: ti,
		styles: NewStyles(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case viewMsg:
		v := presenter.View(msg)
		m.view = &v
		m.lastError = ""
		return m, nil

	case serverErrMsg:
		m.lastError = fmt.Sprintf("%s: %s", msg.code, msg.message)
		return m, nil

	case disconnectedMsg:
		m.closed = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+s":
		m.cycleSort()
		return m, nil
	}

	if m.search.Focused() {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.search.Blur()
			return m, nil
		}
		before := m.search.Value()
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		if m.search.Value() != before {
			m.send(stringMessage(gateway.TypeSetQuery, m.search.Value()))
		}
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		cmd := m.search.Focus()
		return m, cmd
	case "tab":
		m.cycleCategory(1)
	case "shift+tab":
		m.cycleCategory(-1)
	case "s":
		m.cycleSort()
	case "m":
		if m.view != nil && m.view.HasMore {
			m.send(gateway.ClientMessage{Type: gateway.TypeLoadMore})
		}
	case "esc":
		m.search.SetValue("")
		m.send(gateway.ClientMessage{Type: gateway.TypeClear})
	}
	return m, nil
}

func (m *Model) send(msg gateway.ClientMessage) {
	if err := m.out.Send(msg); err != nil {
		m.lastError = err.Error()
	}
}

// categories lists the category choices, "all" first.
func (m Model) categories() []string {
	out := []string{model.CategoryAll}
	if m.view != nil {
		out = append(out, m.view.AvailableCategories...)
	}
	return out
}

func (m *Model) cycleCategory(step int) {
	if m.view == nil {
		return
	}
	cats := m.categories()
	cur := 0
	for i, c := range cats {
		if c == m.view.State.Category {
			cur = i
			break
		}
	}
	next := (cur + step + len(cats)) % len(cats)
	m.send(stringMessage(gateway.TypeSetCategory, cats[next]))
}

func (m *Model) cycleSort() {
	current := model.DefaultSortMode
	if m.view != nil {
		current = m.view.State.SortMode
	}
	modes := model.SortModes()
	next := modes[0]
	for i, mode := range modes {
		if mode == current {
			next = modes[(i+1)%len(modes)]
			break
		}
	}
	m.send(stringMessage(gateway.TypeSetSort, string(next)))
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("atelier · " + m.name))
	b.WriteString("\n")
	b.WriteString(m.search.View())
	b.WriteString("\n")

	if m.view == nil {
		b.WriteString(m.styles.Empty.Render("Connecting..."))
		b.WriteString("\n")
		return b.String()
	}
	v := m.view

	b.WriteString(m.renderCategories())
	b.WriteString("\n")
	sortLabel := "sort: " + string(v.State.SortMode)
	if v.State.Query != "" {
		sortLabel += " (ranked by relevance while searching)"
	}
	b.WriteString(m.styles.Dim.Render(sortLabel))
	b.WriteString("\n\n")

	switch v.Status {
	case presenter.StatusLoading:
		b.WriteString(m.styles.Empty.Render("Loading..."))
		b.WriteString("\n")
	case presenter.StatusEmptyCatalog:
		b.WriteString(m.styles.Empty.Render("Nothing here yet."))
		b.WriteString("\n")
	case presenter.StatusNoResults:
		b.WriteString(m.styles.NoResults.Render("No items match your filters."))
		b.WriteString("\n")
		b.WriteString(m.styles.Dim.Render("Press esc to clear them."))
		b.WriteString("\n")
	default:
		for _, item := range v.Result.Items {
			b.WriteString(m.renderItem(item))
		}
		shown := fmt.Sprintf("Showing %d of %d", len(v.Result.Items), v.Result.MatchCount)
		if v.HasMore {
			shown += " · m: load more"
		}
		b.WriteString("\n")
		b.WriteString(m.styles.Dim.Render(shown))
		b.WriteString("\n")
	}

	if v.Degraded {
		msg := "Live updates interrupted; showing the last known catalog."
		if v.LastError != "" {
			msg += " (" + v.LastError + ")"
		}
		b.WriteString(m.styles.Warning.Render(msg))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString(m.styles.Error.Render(m.lastError))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Help.Render("/ search · tab category · s sort · m more · esc clear · q quit"))
	return b.String()
}

func (m Model) renderCategories() string {
	parts := make([]string, 0, len(m.view.AvailableCategories)+1)
	for _, c := range m.categories() {
		label := c
		if n, ok := m.view.CategoryCounts[c]; ok {
			label = fmt.Sprintf("%s (%d)", c, n)
		} else if c == model.CategoryAll {
			label = fmt.Sprintf("%s (%d)", c, m.view.Result.TotalCount)
		}
		if c == m.view.State.Category {
			parts = append(parts, m.styles.Active.Render("["+label+"]"))
		} else {
			parts = append(parts, m.styles.Category.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderItem(item model.CatalogItem) string {
	line := m.styles.ItemTitle.Render(item.Title)
	if item.Category != "" {
		line += "  " + m.styles.Category.Render(item.Category)
	}
	if item.HasCreatedAt() {
		line += "  " + m.styles.Dim.Render(item.CreatedAt.Format("2006-01-02"))
	}
	line += "\n"
	if item.Description != "" {
		desc := item.Description
		if r := []rune(desc); m.width > 8 && len(r) > m.width-4 {
			desc = string(r[:m.width-7]) + "..."
		}
		line += m.styles.Dim.Render("  "+desc) + "\n"
	}
	return line
}
