package status

import (
	"slices"
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
)

// Status is the delivery state of one (event, channel) pair.
type Status string

const (
	Pending      Status = "PENDING"
	Processing   Status = "PROCESSING"
	Success      Status = "SUCCESS"
	Failed       Status = "FAILED"
	DeadLettered Status = "DEAD_LETTERED"
)

// transitions is the legal state graph. SUCCESS and DEAD_LETTERED have no
// outgoing edges.
var transitions = map[Status][]Status{
	Pending:    {Processing, Failed},
	Processing: {Success, Pending, DeadLettered},
	Failed:     {Pending},
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == Success || s == DeadLettered
}

// CanTransition reports whether from → to is an edge of the state graph.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Attempt is the persisted delivery record keyed by (EventID, Channel).
type Attempt struct {
	EventID      string        `json:"event_id" dynamodbav:"event_id"`
	Channel      event.Channel `json:"channel" dynamodbav:"channel"`
	Lane         string        `json:"lane" dynamodbav:"lane"`
	UserID       string        `json:"user_id" dynamodbav:"user_id"`
	EventType    event.Type    `json:"event_type" dynamodbav:"event_type"`
	Status       Status        `json:"status" dynamodbav:"status"`
	AttemptCount int           `json:"attempt_count" dynamodbav:"attempt_count"`
	LastError    string        `json:"last_error,omitempty" dynamodbav:"last_error,omitempty"`
	NextRetryAt  *time.Time    `json:"next_retry_at,omitempty" dynamodbav:"next_retry_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" dynamodbav:"updated_at"`
	// Version grows by one with every applied transition.
	Version int64 `json:"version" dynamodbav:"version"`
}

// RetryIn is how long after now the record becomes due for delivery.
// It is zero when no retry is scheduled or the time has passed.
func (a Attempt) RetryIn(now time.Time) time.Duration {
	if a.NextRetryAt == nil {
		return 0
	}
	return max(a.NextRetryAt.Sub(now), 0)
}

// Transition is a conditional status update: it applies only when the stored
// status is one of From and the optional DueBy and Version conditions hold.
type Transition struct {
	EventID string
	Channel event.Channel
	From    []Status
	To      Status
	// AttemptCount replaces the stored counter when set.
	AttemptCount *int
	// Error replaces the stored last error when non-empty.
	Error string
	// NextRetryAt always replaces the stored value; nil clears it.
	NextRetryAt *time.Time
	// DueBy, when set, requires the stored NextRetryAt to be unset or not
	// after DueBy.
	DueBy *time.Time
	// Version, when set, requires the stored record to be at that version.
	Version *int64
}

// apply returns a copy of a with t applied.
func (t Transition) apply(a Attempt, now time.Time) Attempt {
	a.Status = t.To
	if t.AttemptCount != nil {
		a.AttemptCount = *t.AttemptCount
	}
	if t.Error != "" {
		a.LastError = t.Error
	}
	a.NextRetryAt = t.NextRetryAt
	a.UpdatedAt = now
	a.Version++
	return a
}

// matches reports whether a satisfies every condition of t.
func (t Transition) matches(a Attempt) bool {
	if !slices.Contains(t.From, a.Status) {
		return false
	}
	if t.DueBy != nil && a.NextRetryAt != nil && a.NextRetryAt.After(*t.DueBy) {
		return false
	}
	return t.Version == nil || a.Version == *t.Version
}

func statusStrings(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
