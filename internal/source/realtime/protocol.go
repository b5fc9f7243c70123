package realtime

import "encoding/json"

// Message types
const (
	TypeAuth           = "auth"
	TypeAuthAck        = "auth_ack"
	TypeSubscribe      = "subscribe"
	TypeSubscribeAck   = "subscribe_ack"
	TypeUnsubscribe    = "unsubscribe"
	TypeUnsubscribeAck = "unsubscribe_ack"
	TypeEvent          = "event"
	TypeSnapshot       = "snapshot"
	TypeError          = "error"
)

// Event types carried in EventPayload.Delta.Type.
const (
	EventCreate = "create"
	EventUpdate = "update"
	EventDelete = "delete"
)

// BaseMessage is the envelope for all messages
type BaseMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type AuthPayload struct {
	Token string `json:"token"`
}

type Query struct {
	Collection string `json:"collection"`
}

type SubscribePayload struct {
	Query        Query `json:"query"`
	IncludeData  bool  `json:"includeData"`
	SendSnapshot bool  `json:"sendSnapshot"`
}

type UnsubscribePayload struct {
	ID string `json:"id"`
}

// EventPayload (Server -> Client)
type EventPayload struct {
	SubID string      `json:"subId"`
	Delta PublicEvent `json:"delta"`
}

type PublicEvent struct {
	Type      string                 `json:"type"`
	Document  map[string]interface{} `json:"document,omitempty"`
	ID        string                 `json:"id"`
	Timestamp int64                  `json:"timestamp"`
}

// SnapshotPayload (Server -> Client)
type SnapshotPayload struct {
	SubID     string                   `json:"subId"`
	Documents []map[string]interface{} `json:"documents"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
