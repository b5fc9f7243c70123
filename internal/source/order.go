package source

import (
	"sort"
	"strings"
	"time"

	"atelier/pkg/model"
)

// SortDocuments orders docs in place by the hint. Values of mixed types
// compare by type rank so the order is total; ties keep the input order.
func SortDocuments(docs []model.Document, order model.Order) {
	if order.Field == "" {
		return
	}
	desc := order.IsDesc()
	sort.SliceStable(docs, func(i, j int) bool {
		c := CompareValues(docs[i][order.Field], docs[j][order.Field])
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// CompareValues compares two field values. nil sorts before everything.
func CompareValues(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNumber:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}
	return 0
}

const (
	rankNil = iota
	rankBool
	rankNumber
	rankTime
	rankString
	rankOther
)

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int, int32, int64, float32, float64:
		return rankNumber
	case time.Time:
		return rankTime
	case string:
		return rankString
	}
	return rankOther
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
