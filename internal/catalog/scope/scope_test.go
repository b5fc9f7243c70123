package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/pkg/model"
)

func newCompiler(t *testing.T) *Compiler {
	t.Helper()
	c, err := NewCompiler()
	require.NoError(t, err)
	return c
}

func TestCompile_Empty(t *testing.T) {
	c := newCompiler(t)
	s, err := c.Compile("  ", nil)
	require.NoError(t, err)

	ok, err := s.Match(model.Document{"id": "1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", s.String())

	var nilScope *Scope
	ok, err = nilScope.Match(model.Document{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompile_Expression(t *testing.T) {
	c := newCompiler(t)
	s, err := c.Compile("doc.published == true", nil)
	require.NoError(t, err)

	ok, err := s.Match(model.Document{"published": true})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Match(model.Document{"published": false})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Match(model.Document{})
	assert.Error(t, err, "missing key is an evaluation error")
}

func TestCompile_InvalidExpression(t *testing.T) {
	c := newCompiler(t)
	_, err := c.Compile("doc.status ==", nil)
	assert.ErrorContains(t, err, "CEL compile error")
}

func TestCompile_NonBooleanResult(t *testing.T) {
	c := newCompiler(t)
	s, err := c.Compile("doc.title", nil)
	require.NoError(t, err)
	_, err = s.Match(model.Document{"title": "x"})
	assert.ErrorContains(t, err, "not boolean")
}

func TestCompile_Filters(t *testing.T) {
	c := newCompiler(t)

	tests := []struct {
		name   string
		filter model.Filter
		doc    model.Document
		want   bool
	}{
		{"eq match", model.Filter{Field: "status", Op: model.OpEq, Value: "open"}, model.Document{"status": "open"}, true},
		{"eq missing", model.Filter{Field: "status", Op: model.OpEq, Value: "open"}, model.Document{}, false},
		{"ne missing", model.Filter{Field: "status", Op: model.OpNe, Value: "archived"}, model.Document{}, true},
		{"ne match", model.Filter{Field: "status", Op: model.OpNe, Value: "archived"}, model.Document{"status": "archived"}, false},
		{"gt int", model.Filter{Field: "budget", Op: model.OpGt, Value: 100}, model.Document{"budget": int64(150)}, true},
		{"lte float", model.Filter{Field: "budget", Op: model.OpLte, Value: 99.5}, model.Document{"budget": 100.0}, false},
		{"in list", model.Filter{Field: "status", Op: model.OpIn, Value: []interface{}{"new", "open"}}, model.Document{"status": "new"}, true},
		{"in string slice", model.Filter{Field: "status", Op: model.OpIn, Value: []string{"new"}}, model.Document{"status": "done"}, false},
		{"contains", model.Filter{Field: "tags", Op: model.OpContains, Value: "print"}, model.Document{"tags": []interface{}{"web", "print"}}, true},
		{"quoted value", model.Filter{Field: "name", Op: model.OpEq, Value: "O'Neil"}, model.Document{"name": "O'Neil"}, true},
		{"nested", model.Filter{Field: "client.tier", Op: model.OpEq, Value: "gold"}, model.Document{"client": map[string]interface{}{"tier": "gold"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := c.Compile("", []model.Filter{tt.filter})
			require.NoError(t, err)
			ok, err := s.Match(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCompile_ExpressionAndFilters(t *testing.T) {
	c := newCompiler(t)
	s, err := c.Compile("doc.kind == 'image'", []model.Filter{
		{Field: "status", Op: model.OpNe, Value: "archived"},
	})
	require.NoError(t, err)
	assert.Contains(t, s.String(), "&&")

	ok, err := s.Match(model.Document{"kind": "image"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Match(model.Document{"kind": "image", "status": "archived"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompile_InvalidFilter(t *testing.T) {
	c := newCompiler(t)

	_, err := c.Compile("", []model.Filter{{Field: "", Op: model.OpEq, Value: 1}})
	assert.Error(t, err)

	_, err = c.Compile("", []model.Filter{{Field: "a", Op: "like", Value: 1}})
	assert.Error(t, err)

	_, err = c.Compile("", []model.Filter{{Field: "a", Op: model.OpEq, Value: struct{}{}}})
	assert.ErrorContains(t, err, "unsupported value type")
}
