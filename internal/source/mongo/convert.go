package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"atelier/pkg/model"
)

// sortSpec turns the order hint into a sort document. _id breaks ties so
// the store-native order is deterministic.
func sortSpec(order model.Order) bson.D {
	if order.Field == "" {
		return bson.D{{Key: "_id", Value: 1}}
	}
	dir := 1
	if order.IsDesc() {
		dir = -1
	}
	field := order.Field
	if field == "id" {
		field = "_id"
	}
	spec := bson.D{{Key: field, Value: dir}}
	if field != "_id" {
		spec = append(spec, bson.E{Key: "_id", Value: 1})
	}
	return spec
}

// toBSON copies the caller-writable fields of a document.
func toBSON(doc model.Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		switch k {
		case "id", "_id", "createdAt", "updatedAt", "collection":
			continue
		}
		out[k] = v
	}
	return out
}

// fromBSON maps a stored document onto the wire shape: _id becomes id and
// driver types become plain Go values.
func fromBSON(raw bson.M) model.Document {
	doc := make(model.Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			k = "id"
		}
		doc[k] = plain(v)
	}
	return doc
}

func plain(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[k] = plain(item)
		}
		return m
	case bson.D:
		m := make(map[string]interface{}, len(val))
		for _, e := range val {
			m[e.Key] = plain(e.Value)
		}
		return m
	case bson.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC()
	case primitive.ObjectID:
		return val.Hex()
	case int32:
		return int64(val)
	}
	return v
}
