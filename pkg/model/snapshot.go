package model

// Snapshot is the ordered sequence of all items of a collection, as last
// delivered by the store. It is replaced wholesale on every change and must
// be treated as read-only by everything except the mirror that built it.
type Snapshot []CatalogItem

// NewSnapshot builds a snapshot from store-ordered documents. An id seen
// twice keeps its first position; later duplicates are dropped.
func NewSnapshot(docs []Document, fields FieldMap) Snapshot {
	snap := make(Snapshot, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		item := ItemFromDocument(doc, fields)
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		snap = append(snap, item)
	}
	return snap
}

// Len returns the number of items.
func (s Snapshot) Len() int {
	return len(s)
}
