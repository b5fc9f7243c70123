package pubsub

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChangeType is the kind of write that produced a change event.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeEvent announces that a document of a collection changed. Receivers
// refetch the collection; the event carries no document data.
type ChangeEvent struct {
	Collection string     `json:"collection"`
	ID         string     `json:"id"`
	Type       ChangeType `json:"type"`
	Timestamp  int64      `json:"timestamp"`
}

// Marshal encodes the event.
func (e ChangeEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalChangeEvent decodes an event payload.
func UnmarshalChangeEvent(data []byte) (ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ChangeEvent{}, fmt.Errorf("invalid change event: %w", err)
	}
	if e.Collection == "" {
		return ChangeEvent{}, fmt.Errorf("invalid change event: missing collection")
	}
	return e, nil
}

// ChangeSubject returns <prefix>.<collection>. The collection must be a
// single subject token.
func ChangeSubject(prefix, collection string) (string, error) {
	if collection == "" || strings.ContainsAny(collection, ".*> \t") {
		return "", fmt.Errorf("collection %q is not a valid subject token", collection)
	}
	if prefix == "" {
		return collection, nil
	}
	return prefix + "." + collection, nil
}

// CollectionFromSubject is the inverse of ChangeSubject. It reports false
// when subject is not a change subject under prefix.
func CollectionFromSubject(prefix, subject string) (string, bool) {
	coll := subject
	if prefix != "" {
		var ok bool
		coll, ok = strings.CutPrefix(subject, prefix+".")
		if !ok {
			return "", false
		}
	}
	if _, err := ChangeSubject("", coll); err != nil {
		return "", false
	}
	return coll, true
}

// Follows reports whether a consumer following collections sees changes of
// coll. No collections means all of them.
func Follows(collections []string, coll string) bool {
	if len(collections) == 0 {
		return true
	}
	for _, c := range collections {
		if c == coll {
			return true
		}
	}
	return false
}
