package config

import (
	"fmt"
	"regexp"

	"atelier/pkg/model"
)

var viewNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,62}$`)

// ViewConfig binds a name to a collection and says how its documents read
// as catalog items.
type ViewConfig struct {
	Name       string         `yaml:"name" json:"name"`
	Collection string         `yaml:"collection" json:"collection"`
	Order      model.Order    `yaml:"order" json:"order"`
	Fields     model.FieldMap `yaml:"fields" json:"fields"`

	// Scope is a CEL expression over doc; Where adds field filters. Both
	// must hold for a document to enter the view.
	Scope string        `yaml:"scope" json:"scope,omitempty"`
	Where model.Filters `yaml:"where" json:"where,omitempty"`

	PageSize int  `yaml:"page_size" json:"pageSize"`
	Admin    bool `yaml:"admin" json:"admin"`
}

// DefaultPageSize is the visible count of a fresh filter state.
const DefaultPageSize = 12

// DefaultViews are the collections of the site and its back office.
func DefaultViews() ViewList {
	return ViewList{
		{Name: "gallery", Collection: "gallery"},
		{Name: "departments", Collection: "departments", Fields: model.FieldMap{Title: "name"}},
		{Name: "events", Collection: "events", Fields: model.FieldMap{Keywords: []string{"location"}}},
		{Name: "team", Collection: "team", Fields: model.FieldMap{Title: "name", Description: "role", Category: "department"}},
		{
			Name:       "projects",
			Collection: "projects",
			Fields:     model.FieldMap{Title: "projectName", Category: "status", Keywords: []string{"clientName", "email"}},
			PageSize:   25,
			Admin:      true,
		},
		{
			Name:       "subscribers",
			Collection: "subscribers",
			Fields:     model.FieldMap{Title: "email", Category: "status", Keywords: []string{"name"}},
			PageSize:   50,
			Admin:      true,
		},
	}
}

// ViewList is the views section of the config.
type ViewList []ViewConfig

// ApplyDefaults installs DefaultViews when none are configured and fills
// per-view gaps.
func (l *ViewList) ApplyDefaults() {
	if len(*l) == 0 {
		*l = DefaultViews()
	}
	for i := range *l {
		v := &(*l)[i]
		if v.Collection == "" {
			v.Collection = v.Name
		}
		if v.Order.Field == "" {
			v.Order = model.DefaultOrder()
		}
		if v.Order.Direction == "" {
			v.Order.Direction = "asc"
		}
		v.Fields.ApplyDefaults()
		if v.PageSize <= 0 {
			v.PageSize = DefaultPageSize
		}
	}
}

// ApplyEnvOverrides is a no-op: views come from files only.
func (l *ViewList) ApplyEnvOverrides() error { return nil }

func (l *ViewList) ResolvePaths(_ string) { _ = l }

func (l *ViewList) Validate() error {
	seen := make(map[string]bool, len(*l))
	for _, v := range *l {
		if !viewNamePattern.MatchString(v.Name) {
			return fmt.Errorf("view name %q is invalid", v.Name)
		}
		if seen[v.Name] {
			return fmt.Errorf("view %q is defined twice", v.Name)
		}
		seen[v.Name] = true
		if v.Order.Direction != "asc" && v.Order.Direction != "desc" {
			return fmt.Errorf("view %q: order direction must be asc or desc", v.Name)
		}
		for _, f := range v.Where {
			if !f.Validate() {
				return fmt.Errorf("view %q: invalid filter on field %q", v.Name, f.Field)
			}
		}
	}
	return nil
}

// Get returns the view called name.
func (l ViewList) Get(name string) (ViewConfig, bool) {
	for _, v := range l {
		if v.Name == name {
			return v, true
		}
	}
	return ViewConfig{}, false
}
