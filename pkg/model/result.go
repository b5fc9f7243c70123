package model

// VisibleResult is the derived, read-only outcome of filtering a snapshot.
// It is recomputed whenever the snapshot or the filter state changes.
type VisibleResult struct {
	Items      []CatalogItem `json:"items"`
	MatchCount int           `json:"matchCount"`
	TotalCount int           `json:"totalCount"`
}

// HasMore reports whether qualifying items are hidden by pagination.
func (r VisibleResult) HasMore() bool {
	return len(r.Items) < r.MatchCount
}

// IDs returns the ids of the visible items in order.
func (r VisibleResult) IDs() []string {
	ids := make([]string, len(r.Items))
	for i, item := range r.Items {
		ids[i] = item.ID
	}
	return ids
}
