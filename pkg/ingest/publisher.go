package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
)

// Publisher submits events to the inbound lane.
type Publisher struct {
	transport lane.Transport
	lane      string
	now       func() time.Time
}

// NewPublisher builds a publisher writing to laneName.
func NewPublisher(transport lane.Transport, laneName string) *Publisher {
	if laneName == "" {
		laneName = DefaultConfig().Lane
	}
	return &Publisher{transport: transport, lane: laneName, now: time.Now}
}

// Submit publishes evt and returns its id. An event without an id gets a
// fresh one here, before it reaches the lane, so redeliveries keep it.
func (p *Publisher) Submit(ctx context.Context, evt event.Event) (string, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = p.now().UTC()
	}
	if err := evt.Validate(); err != nil {
		return "", err
	}
	body, err := evt.Encode()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	if err := p.transport.Publish(ctx, p.lane, body); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrSubmitFailed, evt.ID, err)
	}
	return evt.ID, nil
}

// SubmitBatch publishes every event and returns the ids of those accepted.
// Rejected events are skipped; their errors are joined into the result.
func (p *Publisher) SubmitBatch(ctx context.Context, events []event.Event) ([]string, error) {
	if len(events) == 0 {
		return nil, ErrEmptyBatch
	}
	var (
		ids  = make([]string, 0, len(events))
		errs []error
	)
	for i, evt := range events {
		id, err := p.Submit(ctx, evt)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", i, err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, errors.Join(errs...)
}
