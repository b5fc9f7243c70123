package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

var (
	idRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,64}$`)
)

func CheckDocumentID(id string) bool {
	return idRegex.MatchString(id)
}

// StripProtectedFields removes the fields only the store may assign.
func StripProtectedFields(doc Document) {
	delete(doc, "updatedAt")
	delete(doc, "createdAt")
	delete(doc, "collection")
}

// User facing document type, represents a JSON object as delivered by the
// remote collection.
//
//	"id" field is reserved for document ID.
//	"createdAt" field is reserved for creation timestamp.
//	"updatedAt" field is reserved for last updated timestamp.
//	"collection" field is reserved for collection name.
type Document map[string]interface{}

// GetID returns the document id. Numeric ids are rendered in base 10.
func (doc Document) GetID() string {
	switch id := doc["id"].(type) {
	case string:
		return id
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case float64:
		if id == float64(int64(id)) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}

func (doc Document) SetID(newID string) {
	doc["id"] = newID
}

func (doc Document) GenerateIDIfEmpty() {
	if _, ok := doc["id"]; !ok {
		doc["id"] = uuid.New().String()
	}
}

func (doc Document) GetCollection() string {
	if collection, ok := doc["collection"].(string); ok {
		return collection
	}
	return ""
}

func (doc Document) SetCollection(collection string) {
	doc["collection"] = collection
}

func (doc Document) HasKey(key string) bool {
	_, exists := doc[key]
	return exists
}

// GetString returns the field as a string. Absent, null and non-string
// values read as "".
func (doc Document) GetString(key string) string {
	if s, ok := doc[key].(string); ok {
		return s
	}
	return ""
}

func (doc Document) StripProtectedFields() {
	StripProtectedFields(doc)
}

// Clone returns a shallow copy of the document.
func (doc Document) Clone() Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (doc Document) ValidateDocument() error {
	if doc == nil {
		return errors.New("data cannot be nil")
	}

	if idVal, ok := doc["id"]; ok {
		switch idValue := idVal.(type) {
		case string:
			if idValue == "" {
				return errors.New("data field 'id' cannot be empty")
			}

			if !idRegex.MatchString(idValue) {
				return errors.New("invalid 'id' field: must be 1-64 characters of a-z, A-Z, 0-9, _, ., -")
			}
		case int, int32, int64:
			doc["id"] = fmt.Sprintf("%d", idValue)
		default:
			return errors.New("data field 'id' must be a string or integer")
		}
	}

	return nil
}
