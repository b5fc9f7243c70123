package catalog

import (
	"sort"

	"atelier/pkg/model"
)

// Compute derives the visible result of a view.
//
// Steps, in order: exact category filter; case-insensitive text filter over
// title and description; while a query is active, a stable partition that
// puts title hits before description hits (the sort mode is ignored);
// otherwise the sort mode; finally truncation to the visible count. A
// visible count of zero or less shows every match.
func Compute(snapshot model.Snapshot, state model.FilterState) model.VisibleResult {
	result := model.VisibleResult{TotalCount: len(snapshot)}

	candidates := filterCategory(snapshot, state.CategoryFilter())

	var ranked []model.CatalogItem
	if state.Query != "" {
		ranked = rankByQuery(candidates, state.Query)
	} else {
		ranked = candidates
		sortItems(ranked, state.EffectiveSortMode())
	}

	result.MatchCount = len(ranked)
	if state.VisibleCount > 0 && len(ranked) > state.VisibleCount {
		ranked = ranked[:state.VisibleCount]
	}
	result.Items = ranked
	return result
}

// filterCategory always returns a fresh slice so later steps may reorder it
// without touching the snapshot.
func filterCategory(snapshot model.Snapshot, category string) []model.CatalogItem {
	out := make([]model.CatalogItem, 0, len(snapshot))
	for _, item := range snapshot {
		// Case-sensitive equality: "events" does not select "Events".
		if category != "" && item.Category != category {
			continue
		}
		out = append(out, item)
	}
	return out
}

// rankByQuery keeps items matching the query and stably partitions them by
// hit kind. Within each group the incoming order is preserved.
func rankByQuery(items []model.CatalogItem, query string) []model.CatalogItem {
	m := newMatcher(query)

	titleHits := make([]model.CatalogItem, 0, len(items))
	var descHits []model.CatalogItem
	for _, item := range items {
		switch m.classify(item.Title, item.Description, item.Keywords) {
		case titleHit:
			titleHits = append(titleHits, item)
		case descriptionHit:
			descHits = append(descHits, item)
		}
	}
	return append(titleHits, descHits...)
}

// sortItems orders items in place. Items without a creation time sort last
// in both newest and oldest modes; ties keep their store order.
func sortItems(items []model.CatalogItem, mode model.SortMode) {
	switch mode {
	case model.SortOldest:
		sort.SliceStable(items, func(i, j int) bool {
			return createdBefore(items[i], items[j], false)
		})
	case model.SortTitle:
		c := newTitleCollator()
		sort.SliceStable(items, func(i, j int) bool {
			return c.less(items[i].Title, items[j].Title)
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return createdBefore(items[i], items[j], true)
		})
	}
}

func createdBefore(a, b model.CatalogItem, newestFirst bool) bool {
	switch {
	case !a.HasCreatedAt():
		return false
	case !b.HasCreatedAt():
		return true
	case newestFirst:
		return a.CreatedAt.After(b.CreatedAt)
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}
