package archive

import (
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

// Record is one archived dead letter. There is at most one per
// (event, channel): archiving the same pair again overwrites it.
type Record struct {
	EventID     string            `json:"event_id"`
	Channel     event.Channel     `json:"channel"`
	Lane        string            `json:"lane"`
	UserID      string            `json:"user_id"`
	EventType   event.Type        `json:"event_type"`
	Criticality event.Criticality `json:"criticality"`
	Attempts    int               `json:"attempts"`
	Reason      string            `json:"reason"`
	LastError   string            `json:"last_error,omitempty"`
	Payload     event.Payload     `json:"payload"`
	FailedAt    time.Time         `json:"failed_at"`
}

// NewRecord merges the lane message and the stored attempt. Fields missing
// from one side are taken from the other.
func NewRecord(msg lane.Message, a status.Attempt, reason string, at time.Time) Record {
	r := Record{
		EventID:     firstNonEmpty(a.EventID, msg.EventID),
		Channel:     event.Channel(firstNonEmpty(string(a.Channel), string(msg.Channel))),
		Lane:        firstNonEmpty(a.Lane, msg.Lane()),
		UserID:      firstNonEmpty(a.UserID, msg.UserID),
		EventType:   event.Type(firstNonEmpty(string(a.EventType), string(msg.EventType))),
		Criticality: msg.Criticality,
		Attempts:    a.AttemptCount,
		Reason:      reason,
		LastError:   a.LastError,
		Payload:     msg.Payload,
		FailedAt:    at.UTC(),
	}
	return r
}

func (r Record) documentID() string {
	return r.EventID + ":" + string(r.Channel)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
