package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Well-known event types written by the stream store itself.
const (
	EventTypeStart    = "start"
	EventTypeProgress = "progress"
	EventTypeComplete = "complete"
	EventTypeError    = "error"
	EventTypeUnknown  = "unknown"
)

// StartCursor is the reserved cursor value meaning "beginning of history".
const StartCursor = "0"

// StreamEvent is a single entry of a stream's capped event log.
// Its JSON form is the wire contract shared with browser clients.
type StreamEvent struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // ms since epoch
	ID        string          `json:"id"`
}

// NewStreamEvent builds an event stamped with the current time and a fresh id.
// A nil payload is stored as an empty object.
func NewStreamEvent(eventType string, payload any) (StreamEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return StreamEvent{}, err
	}
	if string(data) == "null" {
		data = json.RawMessage(`{}`)
	}
	return StreamEvent{
		Event:     eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		ID:        NewEventID(),
	}, nil
}

// NewEventID returns a time-ordered identifier. UUIDv7 strings sort
// lexicographically in creation order, which is what cursors rely on.
func NewEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Time returns the event timestamp as a time.Time.
func (e StreamEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// IsTerminal reports whether no further events are expected after e.
func (e StreamEvent) IsTerminal() bool {
	return e.Event == EventTypeComplete || e.Event == EventTypeError
}

// StreamInfo describes the storage state of a single stream log.
type StreamInfo struct {
	StreamID string        `json:"stream_id"`
	Length   int64         `json:"length"`
	TTL      time.Duration `json:"-"`
}

// MarshalJSON renders the TTL in whole seconds.
func (i StreamInfo) MarshalJSON() ([]byte, error) {
	type alias struct {
		StreamID   string `json:"stream_id"`
		Length     int64  `json:"length"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	return json.Marshal(alias{StreamID: i.StreamID, Length: i.Length, TTLSeconds: int64(i.TTL / time.Second)})
}
