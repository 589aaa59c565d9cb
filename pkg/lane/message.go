package lane

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
)

// Message is the body the dispatcher publishes to a channel lane.
type Message struct {
	ID          string            `json:"id"`
	EventID     string            `json:"event_id"`
	UserID      string            `json:"user_id"`
	EventType   event.Type        `json:"event_type"`
	Channel     event.Channel     `json:"channel"`
	Criticality event.Criticality `json:"criticality"`
	// Attempt is the stored attempt count when the message was published.
	Attempt int `json:"attempt"`
	// Target is the resolved address: email, phone number or device token.
	Target    string        `json:"target,omitempty"`
	Payload   event.Payload `json:"payload"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewMessage builds the lane message for one routed channel of evt.
func NewMessage(evt event.Event, ch event.Channel, crit event.Criticality, target string) Message {
	return Message{
		ID:          uuid.NewString(),
		EventID:     evt.ID,
		UserID:      evt.UserID,
		EventType:   evt.Type,
		Channel:     ch,
		Criticality: crit,
		Target:      target,
		Payload:     evt.Payload,
		CreatedAt:   time.Now().UTC(),
	}
}

// Lane returns the lane this message belongs on.
func (m Message) Lane() string {
	return event.LaneName(m.Channel, m.Criticality)
}

// Encode returns the JSON wire form of m.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a lane message body.
func DecodeMessage(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if m.EventID == "" || m.Channel == "" {
		return Message{}, fmt.Errorf("%w: event_id and channel are required", ErrMalformedMessage)
	}
	return m, nil
}
