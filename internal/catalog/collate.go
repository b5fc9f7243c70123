package catalog

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// titleCollator compares titles the way a reader expects an alphabetical
// list to look: case and accents are secondary to the base letters.
// A collator is not safe for concurrent use, so each sort builds its own.
type titleCollator struct {
	c *collate.Collator
}

func newTitleCollator() *titleCollator {
	return &titleCollator{c: collate.New(language.English)}
}

// less orders titles ascending. The empty title sorts first.
func (t *titleCollator) less(a, b string) bool {
	return t.c.CompareString(a, b) < 0
}
