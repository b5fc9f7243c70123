package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// hitKind classifies a text match by the field it was found in.
type hitKind int

const (
	noHit hitKind = iota
	titleHit
	descriptionHit
)

// matcher performs case-insensitive substring matching using full Unicode
// case folding.
type matcher struct {
	query string
	fold  cases.Caser
}

func newMatcher(query string) *matcher {
	m := &matcher{fold: cases.Fold()}
	m.query = m.fold.String(query)
	return m
}

func (m *matcher) contains(text string) bool {
	if text == "" {
		return false
	}
	return strings.Contains(m.fold.String(text), m.query)
}

// classify returns titleHit when the query is found in the title, and
// descriptionHit when it is found only in the description or a keyword.
func (m *matcher) classify(title, description string, keywords []string) hitKind {
	if m.contains(title) {
		return titleHit
	}
	if m.contains(description) {
		return descriptionHit
	}
	for _, kw := range keywords {
		if m.contains(kw) {
			return descriptionHit
		}
	}
	return noHit
}
