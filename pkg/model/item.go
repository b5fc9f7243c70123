package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// FieldMap names the raw document fields that feed a CatalogItem. Collections
// name their fields differently (departments and team members carry "name"
// rather than "title").
type FieldMap struct {
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Category    string   `yaml:"category" json:"category"`
	CreatedAt   string   `yaml:"created_at" json:"createdAt"`
	Keywords    []string `yaml:"keywords" json:"keywords,omitempty"`
}

// DefaultFieldMap returns the gallery field names.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Title:       "title",
		Description: "description",
		Category:    "category",
		CreatedAt:   "createdAt",
	}
}

// ApplyDefaults fills unnamed fields with the gallery names.
func (m *FieldMap) ApplyDefaults() {
	d := DefaultFieldMap()
	if m.Title == "" {
		m.Title = d.Title
	}
	if m.Description == "" {
		m.Description = d.Description
	}
	if m.Category == "" {
		m.Category = d.Category
	}
	if m.CreatedAt == "" {
		m.CreatedAt = d.CreatedAt
	}
}

// CatalogItem is one document of a remote collection as seen by the catalog.
type CatalogItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`

	// CreatedAt is zero while the store has not committed a timestamp.
	CreatedAt time.Time `json:"createdAt,omitzero"`

	// Keywords are secondary search fields; a query hit on any of them ranks
	// like a description hit.
	Keywords []string `json:"-"`

	// Data is the raw document, carried untouched for display.
	Data Document `json:"data,omitempty"`
}

// HasCreatedAt reports whether the store assigned a creation time.
func (i CatalogItem) HasCreatedAt() bool {
	return !i.CreatedAt.IsZero()
}

// ItemFromDocument maps a raw document onto a CatalogItem. Missing or
// mistyped fields read as empty; this never fails.
func ItemFromDocument(doc Document, fields FieldMap) CatalogItem {
	fields.ApplyDefaults()

	item := CatalogItem{
		ID:          doc.GetID(),
		Title:       doc.GetString(fields.Title),
		Description: doc.GetString(fields.Description),
		Category:    doc.GetString(fields.Category),
		CreatedAt:   ParseTimestamp(doc[fields.CreatedAt]),
		Data:        doc,
	}
	for _, key := range fields.Keywords {
		if v := doc.GetString(key); v != "" {
			item.Keywords = append(item.Keywords, v)
		}
	}
	return item
}

// ParseTimestamp reads the timestamp encodings found in stored documents:
// Unix milliseconds (any numeric type), RFC 3339 strings, time.Time, and
// {seconds, nanoseconds} objects. Anything else, including nil, is the zero
// time, which marks the creation time as unknown. A numeric 0 is the Unix
// epoch, a known time.
func ParseTimestamp(v interface{}) time.Time {
	switch t := v.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return t
	case *time.Time:
		if t == nil {
			return time.Time{}
		}
		return *t
	case int64:
		return millis(t)
	case int:
		return millis(int64(t))
	case int32:
		return millis(int64(t))
	case float64:
		return millis(int64(t))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return millis(n)
		}
		if f, err := t.Float64(); err == nil {
			return millis(int64(f))
		}
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	case map[string]interface{}:
		return parseSecondsObject(t)
	case Document:
		return parseSecondsObject(t)
	}
	return time.Time{}
}

func parseSecondsObject(m map[string]interface{}) time.Time {
	secs, ok := m["seconds"]
	if !ok {
		secs, ok = m["_seconds"]
	}
	if !ok {
		return time.Time{}
	}
	nanos := m["nanoseconds"]
	if nanos == nil {
		nanos = m["_nanoseconds"]
	}
	s, err := toInt64(secs)
	if err != nil {
		return time.Time{}
	}
	n, _ := toInt64(nanos)
	return time.Unix(s, n).UTC()
}

func millis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("not a number: %T", v)
}
