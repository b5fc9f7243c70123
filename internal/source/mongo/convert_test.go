package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"atelier/pkg/model"
)

func TestSortSpec(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}, sortSpec(model.DefaultOrder()))
	assert.Equal(t, bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}, sortSpec(model.Order{Field: "title", Direction: "asc"}))
	assert.Equal(t, bson.D{{Key: "_id", Value: -1}}, sortSpec(model.Order{Field: "id", Direction: "desc"}))
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, sortSpec(model.Order{}))
}

func TestToBSON_DropsProtectedFields(t *testing.T) {
	out := toBSON(model.Document{
		"id": "x", "_id": "y", "createdAt": 1, "updatedAt": 2, "collection": "c",
		"title": "Hello",
	})
	assert.Equal(t, bson.M{"title": "Hello"}, out)
}

func TestFromBSON(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	oid := primitive.NewObjectID()
	raw := bson.M{
		"_id":       "a1",
		"title":     "Spring Show",
		"createdAt": int64(10),
		"count":     int32(3),
		"shot":      primitive.NewDateTimeFromTime(when),
		"owner":     oid,
		"tags":      bson.A{"a", bson.M{"k": int32(1)}},
		"meta":      bson.D{{Key: "w", Value: int32(640)}},
	}

	doc := fromBSON(raw)
	assert.Equal(t, "a1", doc.GetID())
	assert.NotContains(t, doc, "_id")
	assert.Equal(t, "Spring Show", doc["title"])
	assert.Equal(t, int64(3), doc["count"])
	assert.Equal(t, when, doc["shot"])
	assert.Equal(t, oid.Hex(), doc["owner"])
	assert.Equal(t, []interface{}{"a", map[string]interface{}{"k": int64(1)}}, doc["tags"])
	assert.Equal(t, map[string]interface{}{"w": int64(640)}, doc["meta"])

	item := model.ItemFromDocument(doc, model.DefaultFieldMap())
	assert.Equal(t, time.UnixMilli(10).UTC(), item.CreatedAt)
}
