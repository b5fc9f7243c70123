package catalog

import (
	"sort"

	"atelier/pkg/model"
)

// AvailableCategories returns the sorted distinct non-empty categories
// present in the snapshot.
func AvailableCategories(snapshot model.Snapshot) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, item := range snapshot {
		if item.Category == "" {
			continue
		}
		if _, ok := seen[item.Category]; ok {
			continue
		}
		seen[item.Category] = struct{}{}
		out = append(out, item.Category)
	}
	sort.Strings(out)
	return out
}

// CategoryCounts returns the number of items per non-empty category.
func CategoryCounts(snapshot model.Snapshot) map[string]int {
	counts := make(map[string]int)
	for _, item := range snapshot {
		if item.Category != "" {
			counts[item.Category]++
		}
	}
	return counts
}
