package archive

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

// DeadLetterSource lists the dead letters kept by a lane backend.
// *lane.RedisTransport satisfies it.
type DeadLetterSource interface {
	DeadLetters(ctx context.Context, laneName string, limit int64) ([]lane.DeadLetter, error)
}

// LaneFinder answers dead-letter lookups straight from the lane backend
// when no archive is configured. Records carry what the lane message holds;
// attempt counts and last errors live only in the status store.
type LaneFinder struct {
	src   DeadLetterSource
	limit int64
}

// NewLaneFinder scans at most limit entries per lane; limit <= 0 means 1000.
func NewLaneFinder(src DeadLetterSource, limit int64) *LaneFinder {
	if limit <= 0 {
		limit = 1000
	}
	return &LaneFinder{src: src, limit: limit}
}

// Find returns the dead letters of one event across all six lanes.
func (f *LaneFinder) Find(ctx context.Context, eventID string) ([]Record, error) {
	var records []Record
	for _, name := range event.Lanes() {
		entries, err := f.src.DeadLetters(ctx, name, f.limit)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSearchFailed, name, err)
		}
		for _, dl := range entries {
			msg, err := lane.DecodeMessage(dl.Body)
			if err != nil || msg.EventID != eventID {
				continue
			}
			records = append(records, NewRecord(msg, status.Attempt{}, dl.Reason, dl.FailedAt))
		}
	}
	return records, nil
}
