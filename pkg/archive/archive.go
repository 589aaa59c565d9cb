package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/dmitrymomot/notifyrelay/pkg/consumer"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

// Config names the archive index.
type Config struct {
	Index   string        `env:"RELAY_ARCHIVE_INDEX" envDefault:"notification-dead-letters"`
	Timeout time.Duration `env:"RELAY_ARCHIVE_TIMEOUT" envDefault:"5s"`
	// Refresh makes indexed records searchable immediately.
	Refresh bool `env:"RELAY_ARCHIVE_REFRESH" envDefault:"false"`
}

// Archive indexes dead letters in OpenSearch.
type Archive struct {
	client opensearchapi.Transport
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithConfig sets the index settings.
func WithConfig(cfg Config) Option {
	return func(a *Archive) {
		if cfg.Index != "" {
			a.cfg.Index = cfg.Index
		}
		if cfg.Timeout > 0 {
			a.cfg.Timeout = cfg.Timeout
		}
		a.cfg.Refresh = cfg.Refresh
	}
}

// WithLogger sets the logger used by Hook.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock sets the time source for FailedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		if now != nil {
			a.now = now
		}
	}
}

// New wraps an OpenSearch client; *opensearch.Client satisfies
// opensearchapi.Transport.
func New(client opensearchapi.Transport, opts ...Option) (*Archive, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	a := &Archive{
		client: client,
		cfg:    Config{Index: "notification-dead-letters", Timeout: 5 * time.Second},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Store indexes r under a deterministic id.
func (a *Archive) Store(ctx context.Context, r Record) error {
	if r.EventID == "" || r.Channel == "" {
		return ErrInvalidRecord
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIndexFailed, err)
	}

	req := opensearchapi.IndexRequest{
		Index:      a.cfg.Index,
		DocumentID: r.documentID(),
		Body:       bytes.NewReader(body),
	}
	if a.cfg.Refresh {
		req.Refresh = "true"
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	res, err := req.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIndexFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: %s: %s", ErrIndexFailed, res.Status(), readSnippet(res.Body))
	}
	return nil
}

// Hook returns a consumer dead-letter hook that archives every dead letter.
// Archive failures are logged; the dead letter itself is already durable in
// the lane's dead-letter destination.
func (a *Archive) Hook() consumer.DeadLetterHook {
	return func(ctx context.Context, msg lane.Message, att status.Attempt, reason string) {
		r := NewRecord(msg, att, reason, a.now())
		if err := a.Store(ctx, r); err != nil {
			a.logger.LogAttrs(ctx, slog.LevelError, "dead letter not archived",
				logger.EventID(r.EventID),
				logger.Channel(r.Channel),
				logger.Error(err),
			)
		}
	}
}

// Find returns the archived dead letters of one event.
func (a *Archive) Find(ctx context.Context, eventID string) ([]Record, error) {
	query, err := json.Marshal(map[string]any{
		"size": len(event.Channels),
		"query": map[string]any{
			"term": map[string]any{"event_id.keyword": eventID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	res, err := opensearchapi.SearchRequest{
		Index: []string{a.cfg.Index},
		Body:  bytes.NewReader(query),
	}.Do(ctx, a.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	// A missing index only means nothing was archived yet.
	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s: %s", ErrSearchFailed, res.Status(), readSnippet(res.Body))
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Source Record `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	records := make([]Record, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		records = append(records, h.Source)
	}
	return records, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
