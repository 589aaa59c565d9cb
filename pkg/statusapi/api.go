package statusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifyrelay/pkg/archive"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/httpserver"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
	"github.com/dmitrymomot/notifyrelay/pkg/metrics"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

const maxBodyBytes = 1 << 20

// StatusReader lists the delivery records of an event.
type StatusReader interface {
	List(ctx context.Context, eventID string) ([]status.Attempt, error)
}

// Submitter accepts inbound events; *ingest.Publisher implements it.
type Submitter interface {
	SubmitBatch(ctx context.Context, events []event.Event) ([]string, error)
}

// DeadLetterFinder lists archived dead letters; *archive.Archive implements it.
type DeadLetterFinder interface {
	Find(ctx context.Context, eventID string) ([]archive.Record, error)
}

type options struct {
	submitter    Submitter
	deadLetters  DeadLetterFinder
	metrics      *metrics.Metrics
	checks       []httpserver.Check
	checkTimeout time.Duration
	logger       *slog.Logger
}

// Option configures the API handler.
type Option func(*options)

// WithSubmitter enables POST /events.
func WithSubmitter(s Submitter) Option {
	return func(o *options) { o.submitter = s }
}

// WithDeadLetters enables GET /events/{event_id}/dead-letters.
func WithDeadLetters(f DeadLetterFinder) Option {
	return func(o *options) { o.deadLetters = f }
}

// WithMetrics serves the collectors of m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithReadinessChecks sets the dependency probes of /readyz.
func WithReadinessChecks(timeout time.Duration, checks ...httpserver.Check) Option {
	return func(o *options) {
		o.checkTimeout = timeout
		o.checks = append(o.checks, checks...)
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type api struct {
	tracker StatusReader
	options
}

// New returns the relay's HTTP surface:
//
//	GET  /events/{event_id}               delivery records per channel
//	GET  /events/{event_id}/dead-letters  archived dead letters (optional)
//	POST /events                          submit one event or an array (optional)
//	GET  /healthz, /readyz, /metrics
func New(tracker StatusReader, opts ...Option) (http.Handler, error) {
	if tracker == nil {
		return nil, ErrNilTracker
	}
	a := &api{
		tracker: tracker,
		options: options{checkTimeout: 2 * time.Second, logger: slog.Default()},
	}
	for _, opt := range opts {
		opt(&a.options)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	readiness := a.checks
	if len(readiness) == 0 {
		readiness = []httpserver.Check{{Name: "self", Fn: func(context.Context) error { return nil }}}
	}
	r.Get("/healthz", httpserver.HealthCheckHandler(a.logger, 0))
	r.Get("/readyz", httpserver.HealthCheckHandler(a.logger, a.checkTimeout, readiness...))
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/events", func(r chi.Router) {
		if a.submitter != nil {
			r.Post("/", a.submit)
		}
		r.Get("/{event_id}", a.eventStatus)
		if a.deadLetters != nil {
			r.Get("/{event_id}/dead-letters", a.eventDeadLetters)
		}
	})
	return r, nil
}

type eventStatus struct {
	EventID  string           `json:"event_id"`
	Channels []status.Attempt `json:"channels"`
}

func (a *api) eventStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "event_id")
	attempts, err := a.tracker.List(r.Context(), id)
	if err != nil {
		a.logger.LogAttrs(r.Context(), slog.LevelError, "status lookup failed", logger.EventID(id), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "status_unavailable", "status store unavailable")
		return
	}
	if len(attempts) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "event not found")
		return
	}
	writeData(w, http.StatusOK, eventStatus{EventID: id, Channels: attempts})
}

func (a *api) eventDeadLetters(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "event_id")
	records, err := a.deadLetters.Find(r.Context(), id)
	if err != nil {
		a.logger.LogAttrs(r.Context(), slog.LevelError, "dead letter lookup failed", logger.EventID(id), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "archive_unavailable", "dead-letter archive unavailable")
		return
	}
	if records == nil {
		records = []archive.Record{}
	}
	writeData(w, http.StatusOK, records)
}

type submitResult struct {
	Accepted []string `json:"accepted"`
	Rejected []string `json:"rejected,omitempty"`
}

func (a *api) submit(w http.ResponseWriter, r *http.Request) {
	events, err := decodeEvents(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_body", "no events")
		return
	}

	ids, err := a.submitter.SubmitBatch(r.Context(), events)
	res := submitResult{Accepted: ids}
	if err != nil {
		res.Rejected = splitJoined(err)
		a.logger.LogAttrs(r.Context(), slog.LevelWarn, "events rejected",
			slog.Int("accepted", len(ids)),
			slog.Int("rejected", len(res.Rejected)),
			logger.Error(err),
		)
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "rejected", "no event accepted", res.Rejected...)
		return
	}
	writeData(w, http.StatusAccepted, res)
}

// decodeEvents accepts either one JSON object or an array of them.
func decodeEvents(body io.Reader) ([]event.Event, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)

	var events []event.Event
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &events)
	} else {
		var evt event.Event
		err = json.Unmarshal(raw, &evt)
		events = []event.Event{evt}
	}
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Type = event.Type(strings.ToUpper(strings.TrimSpace(string(events[i].Type))))
	}
	return events, nil
}

func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		out := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
