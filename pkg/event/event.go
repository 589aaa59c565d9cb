package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type is the kind of user activity that produced an event.
type Type string

const (
	TypeLike     Type = "LIKE"
	TypeComment  Type = "COMMENT"
	TypeShare    Type = "SHARE"
	TypeFollow   Type = "FOLLOW"
	TypeUnfollow Type = "UNFOLLOW"
	TypeMention  Type = "MENTION"
	TypeMessage  Type = "MESSAGE"
	TypePost     Type = "POST"
)

// Types lists every known event type.
var Types = []Type{
	TypeLike, TypeComment, TypeShare, TypeFollow,
	TypeUnfollow, TypeMention, TypeMessage, TypePost,
}

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType normalizes s to a Type. Unknown values are returned as-is with
// ErrUnknownType so callers can still route them as non-critical.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return t, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// Payload carries the event context the relay needs for routing and rendering.
type Payload struct {
	ParentID   string    `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	ParentType string    `json:"parent_type,omitempty" bson:"parent_type,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitzero" bson:"timestamp,omitempty"`
	// Priority is an explicit override. "critical" (or "high") forces the
	// critical lane regardless of the event type.
	Priority string `json:"priority,omitempty" bson:"priority,omitempty"`
}

// Event is an inbound user-activity event. It is immutable once accepted.
type Event struct {
	ID        string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Type      Type      `json:"event_type"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// New builds an event with a fresh identifier.
func New(userID string, t Type, p Payload) Event {
	return Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      t,
		Payload:   p,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the fields routing depends on. An unknown type is not a
// validation error: it is classified as non-critical downstream.
func (e Event) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: event_id is required", ErrInvalidEvent)
	case e.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
	case e.Type == "":
		return fmt.Errorf("%w: event_type is required", ErrInvalidEvent)
	}
	return nil
}

// Decode parses a JSON encoded event and validates it.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	e.Type = Type(strings.ToUpper(string(e.Type)))
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Encode returns the JSON representation of the event.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
