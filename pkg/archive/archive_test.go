package archive_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyrelay/pkg/archive"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

type request struct {
	method string
	path   string
	query  string
	body   string
}

// fakeCluster answers opensearchapi requests with a fixed status and body.
type fakeCluster struct {
	mu       sync.Mutex
	requests []request
	status   int
	body     string
	err      error
}

func (f *fakeCluster) Perform(r *http.Request) (*http.Response, error) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, request{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		body:   string(body),
	})
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	code := f.status
	if code == 0 {
		code = http.StatusCreated
	}
	return &http.Response{
		StatusCode: code,
		Status:     http.StatusText(code),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func (f *fakeCluster) last(t *testing.T) request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

var failedAt = time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)

func deadLetter() (lane.Message, status.Attempt) {
	evt := event.Event{ID: "evt-1", UserID: "user-1", Type: event.TypeComment, Payload: event.Payload{ParentID: "post-7"}}
	msg := lane.NewMessage(evt, event.ChannelSMS, event.Critical, "+15550001111")
	att := status.Attempt{
		EventID:      "evt-1",
		Channel:      event.ChannelSMS,
		Lane:         "sms_critical",
		UserID:       "user-1",
		EventType:    event.TypeComment,
		Status:       status.DeadLettered,
		AttemptCount: 5,
		LastError:    "gateway timeout",
	}
	return msg, att
}

func TestNew_NilClient(t *testing.T) {
	t.Parallel()

	_, err := archive.New(nil)
	assert.ErrorIs(t, err, archive.ErrNilClient)
}

func TestNewRecord(t *testing.T) {
	t.Parallel()

	msg, att := deadLetter()
	r := archive.NewRecord(msg, att, "gateway timeout", failedAt)

	assert.Equal(t, "evt-1", r.EventID)
	assert.Equal(t, event.ChannelSMS, r.Channel)
	assert.Equal(t, "sms_critical", r.Lane)
	assert.Equal(t, event.Critical, r.Criticality)
	assert.Equal(t, 5, r.Attempts)
	assert.Equal(t, "post-7", r.Payload.ParentID)
	assert.Equal(t, failedAt, r.FailedAt)

	// A poison message has no stored attempt.
	r = archive.NewRecord(msg, status.Attempt{}, "no record", failedAt)
	assert.Equal(t, "evt-1", r.EventID)
	assert.Equal(t, "sms_critical", r.Lane)
	assert.Zero(t, r.Attempts)
}

func TestArchive_Store(t *testing.T) {
	t.Parallel()

	t.Run("indexes under a deterministic id", func(t *testing.T) {
		t.Parallel()

		cluster := &fakeCluster{body: `{"result":"created"}`}
		a, err := archive.New(cluster, archive.WithConfig(archive.Config{Index: "dlq", Refresh: true}))
		require.NoError(t, err)

		msg, att := deadLetter()
		require.NoError(t, a.Store(context.Background(), archive.NewRecord(msg, att, "gateway timeout", failedAt)))

		req := cluster.last(t)
		assert.Equal(t, http.MethodPut, req.method)
		assert.Equal(t, "/dlq/_doc/evt-1:sms", req.path)
		assert.Contains(t, req.query, "refresh=true")

		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(req.body), &doc))
		assert.Equal(t, "evt-1", doc["event_id"])
		assert.Equal(t, "sms", doc["channel"])
		assert.Equal(t, "gateway timeout", doc["reason"])
		assert.EqualValues(t, 5, doc["attempts"])
	})

	t.Run("cluster rejection", func(t *testing.T) {
		t.Parallel()

		cluster := &fakeCluster{status: http.StatusBadRequest, body: `{"error":"mapper_parsing_exception"}`}
		a, err := archive.New(cluster)
		require.NoError(t, err)

		msg, att := deadLetter()
		err = a.Store(context.Background(), archive.NewRecord(msg, att, "x", failedAt))
		assert.ErrorIs(t, err, archive.ErrIndexFailed)
		assert.Contains(t, err.Error(), "mapper_parsing_exception")
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		cluster := &fakeCluster{err: errors.New("connection refused")}
		a, err := archive.New(cluster)
		require.NoError(t, err)

		msg, att := deadLetter()
		err = a.Store(context.Background(), archive.NewRecord(msg, att, "x", failedAt))
		assert.ErrorIs(t, err, archive.ErrIndexFailed)
	})

	t.Run("invalid record", func(t *testing.T) {
		t.Parallel()

		a, err := archive.New(&fakeCluster{})
		require.NoError(t, err)
		assert.ErrorIs(t, a.Store(context.Background(), archive.Record{}), archive.ErrInvalidRecord)
	})
}

func TestArchive_Hook(t *testing.T) {
	t.Parallel()

	cluster := &fakeCluster{status: http.StatusInternalServerError}
	a, err := archive.New(cluster,
		archive.WithLogger(slog.New(slog.DiscardHandler)),
		archive.WithClock(func() time.Time { return failedAt }),
	)
	require.NoError(t, err)

	msg, att := deadLetter()
	// Failures are logged, never propagated.
	a.Hook()(context.Background(), msg, att, "gateway timeout")

	req := cluster.last(t)
	assert.Contains(t, req.body, `"failed_at":"2025-04-02T08:30:00Z"`)
}

func TestArchive_Find(t *testing.T) {
	t.Parallel()

	t.Run("returns hits", func(t *testing.T) {
		t.Parallel()

		cluster := &fakeCluster{status: http.StatusOK, body: `{
			"hits": {"total": {"value": 1}, "hits": [
				{"_id": "evt-1:sms", "_source": {"event_id": "evt-1", "channel": "sms", "lane": "sms_critical", "attempts": 5, "reason": "gateway timeout"}}
			]}
		}`}
		a, err := archive.New(cluster, archive.WithConfig(archive.Config{Index: "dlq"}))
		require.NoError(t, err)

		records, err := a.Find(context.Background(), "evt-1")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, event.ChannelSMS, records[0].Channel)
		assert.Equal(t, 5, records[0].Attempts)

		req := cluster.last(t)
		assert.Equal(t, "/dlq/_search", req.path)
		assert.Contains(t, req.body, `"event_id.keyword":"evt-1"`)
	})

	t.Run("missing index means no records", func(t *testing.T) {
		t.Parallel()

		a, err := archive.New(&fakeCluster{status: http.StatusNotFound, body: `{"error":"index_not_found_exception"}`})
		require.NoError(t, err)

		records, err := a.Find(context.Background(), "evt-1")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("cluster error", func(t *testing.T) {
		t.Parallel()

		a, err := archive.New(&fakeCluster{status: http.StatusServiceUnavailable})
		require.NoError(t, err)

		_, err = a.Find(context.Background(), "evt-1")
		assert.ErrorIs(t, err, archive.ErrSearchFailed)
	})
}
