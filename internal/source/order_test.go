package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"atelier/pkg/model"
)

func ids(docs []model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.GetID()
	}
	return out
}

func TestSortDocuments(t *testing.T) {
	docs := []model.Document{
		{"id": "a", "createdAt": int64(200)},
		{"id": "b"},
		{"id": "c", "createdAt": 300.0},
		{"id": "d", "createdAt": int64(100)},
	}

	SortDocuments(docs, model.Order{Field: "createdAt", Direction: "desc"})
	assert.Equal(t, []string{"c", "a", "d", "b"}, ids(docs))

	SortDocuments(docs, model.Order{Field: "createdAt", Direction: "asc"})
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids(docs))
}

func TestSortDocuments_NoFieldKeepsOrder(t *testing.T) {
	docs := []model.Document{{"id": "z"}, {"id": "a"}}
	SortDocuments(docs, model.Order{})
	assert.Equal(t, []string{"z", "a"}, ids(docs))
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, CompareValues(nil, "x"))
	assert.Equal(t, 0, CompareValues(int64(3), 3.0))
	assert.Equal(t, 1, CompareValues("b", "a"))
	assert.Equal(t, -1, CompareValues(false, true))
	assert.Equal(t, -1, CompareValues(1, "1"))
}
