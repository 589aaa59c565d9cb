package ingest_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyrelay/pkg/classifier"
	"github.com/dmitrymomot/notifyrelay/pkg/dispatcher"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/ingest"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/preferences"
	"github.com/dmitrymomot/notifyrelay/pkg/router"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

var quiet = slog.New(slog.DiscardHandler)

type routerFunc func(ctx context.Context, evt event.Event) (router.Result, error)

func (f routerFunc) Route(ctx context.Context, evt event.Event) (router.Result, error) {
	return f(ctx, evt)
}

type countingRouter struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (r *countingRouter) Route(_ context.Context, evt event.Event) (router.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return router.Result{EventID: evt.ID}, r.err
}

func (r *countingRouter) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newListener(t *testing.T, transport lane.Transport, r ingest.Router, mutate ...func(*ingest.Config)) *ingest.Listener {
	t.Helper()
	cfg := ingest.DefaultConfig()
	cfg.PollTimeout = 0
	cfg.RetryDelay = time.Hour
	cfg.ErrorPause = 5 * time.Millisecond
	for _, m := range mutate {
		m(&cfg)
	}
	l, err := ingest.NewListener(transport, r, ingest.WithConfig(cfg), ingest.WithLogger(quiet))
	require.NoError(t, err)
	return l
}

func TestPublisher_Submit(t *testing.T) {
	t.Parallel()

	transport := lane.NewMemoryTransport()
	p := ingest.NewPublisher(transport, "")
	ctx := context.Background()

	id, err := p.Submit(ctx, event.Event{UserID: "user-1", Type: event.TypeLike})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	batch, err := transport.PullBatch(ctx, "events", 10, 0)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	evt, err := event.Decode(batch[0].Body)
	require.NoError(t, err)
	assert.Equal(t, id, evt.ID)
	assert.Equal(t, "user-1", evt.UserID)
	assert.False(t, evt.CreatedAt.IsZero())

	_, err = p.Submit(ctx, event.Event{Type: event.TypeLike})
	assert.ErrorIs(t, err, event.ErrInvalidEvent)
}

func TestPublisher_SubmitBatch(t *testing.T) {
	t.Parallel()

	transport := lane.NewMemoryTransport()
	p := ingest.NewPublisher(transport, "inbound")
	ctx := context.Background()

	_, err := p.SubmitBatch(ctx, nil)
	assert.ErrorIs(t, err, ingest.ErrEmptyBatch)

	ids, err := p.SubmitBatch(ctx, []event.Event{
		{UserID: "user-1", Type: event.TypeComment},
		{Type: event.TypeComment},
		{ID: "fixed", UserID: "user-2", Type: event.TypeShare},
	})
	assert.ErrorIs(t, err, event.ErrInvalidEvent)
	assert.Len(t, ids, 2)
	assert.Equal(t, "fixed", ids[1])
	assert.Equal(t, 2, transport.Len("inbound"))

	require.NoError(t, transport.Close())
	_, err = p.SubmitBatch(ctx, []event.Event{{UserID: "user-1", Type: event.TypeLike}})
	assert.ErrorIs(t, err, ingest.ErrSubmitFailed)
}

func TestNewListener_NilDependency(t *testing.T) {
	t.Parallel()

	_, err := ingest.NewListener(nil, &countingRouter{})
	assert.ErrorIs(t, err, ingest.ErrNilDependency)
}

func TestListener_PollOnce(t *testing.T) {
	t.Parallel()

	t.Run("routed events are acknowledged", func(t *testing.T) {
		t.Parallel()

		transport := lane.NewMemoryTransport()
		r := &countingRouter{}
		l := newListener(t, transport, r)
		p := ingest.NewPublisher(transport, "events")
		ctx := context.Background()

		for i := range 3 {
			_, err := p.Submit(ctx, event.New(fmt.Sprintf("user-%d", i), event.TypeFollow, event.Payload{}))
			require.NoError(t, err)
		}

		n, err := l.PollOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 3, r.calls())
		assert.Zero(t, transport.Len("events"))
	})

	t.Run("malformed events are dead-lettered without routing", func(t *testing.T) {
		t.Parallel()

		transport := lane.NewMemoryTransport()
		r := &countingRouter{}
		l := newListener(t, transport, r)
		require.NoError(t, transport.Publish(context.Background(), "events", []byte(`{"user_id":""}`)))

		_, err := l.PollOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, r.calls())
		assert.Len(t, transport.DeadLetters("events"), 1)
	})

	t.Run("rejected events are dead-lettered", func(t *testing.T) {
		t.Parallel()

		transport := lane.NewMemoryTransport()
		r := routerFunc(func(context.Context, event.Event) (router.Result, error) {
			return router.Result{}, fmt.Errorf("%w: bad", router.ErrInvalidEvent)
		})
		l := newListener(t, transport, r)
		_, err := ingest.NewPublisher(transport, "events").Submit(context.Background(),
			event.New("user-1", event.TypeLike, event.Payload{}))
		require.NoError(t, err)

		_, err = l.PollOnce(context.Background())
		require.NoError(t, err)
		assert.Len(t, transport.DeadLetters("events"), 1)
	})
}

func TestListener_RetriesIncompleteRouting(t *testing.T) {
	t.Parallel()

	transport := lane.NewMemoryTransport()
	r := &countingRouter{err: fmt.Errorf("%w: lane down", router.ErrIncomplete)}
	ctx := context.Background()
	_, err := ingest.NewPublisher(transport, "events").Submit(ctx, event.New("user-1", event.TypeMessage, event.Payload{}))
	require.NoError(t, err)

	t.Run("returned with delay", func(t *testing.T) {
		l := newListener(t, transport, r)

		n, err := l.PollOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, transport.Len("events"))
		assert.Empty(t, transport.DeadLetters("events"))

		n, err = l.PollOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "event must stay invisible until the retry delay passes")
	})

	t.Run("dead-lettered after max receives", func(t *testing.T) {
		moved := lane.NewMemoryTransport()
		body, err := event.New("user-2", event.TypeMessage, event.Payload{}).Encode()
		require.NoError(t, err)
		require.NoError(t, moved.Publish(ctx, "events", body))

		l := newListener(t, moved, r, func(c *ingest.Config) {
			c.MaxReceives = 2
			c.RetryDelay = 0
		})

		_, err = l.PollOnce(ctx)
		require.NoError(t, err)
		assert.Empty(t, moved.DeadLetters("events"))

		_, err = l.PollOnce(ctx)
		require.NoError(t, err)
		dead := moved.DeadLetters("events")
		require.Len(t, dead, 1)
		assert.Contains(t, dead[0].Reason, "giving up after 2 receives")
	})
}

func TestListener_RoutesThroughRouter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	transport := lane.NewMemoryTransport()
	tracker := status.NewTracker(status.NewMemoryStore(), status.WithLogger(quiet))
	d, err := dispatcher.New(transport, dispatcher.WithLogger(quiet))
	require.NoError(t, err)
	r, err := router.New(classifier.New(nil, classifier.WithLogger(quiet)), preferences.NewMemoryStore(), tracker, d,
		router.WithLogger(quiet))
	require.NoError(t, err)

	l := newListener(t, transport, r)
	id, err := ingest.NewPublisher(transport, "events").Submit(ctx, event.Event{
		UserID: "user-1",
		Type:   event.TypeMention,
	})
	require.NoError(t, err)

	_, err = l.PollOnce(ctx)
	require.NoError(t, err)

	attempts, err := tracker.List(ctx, id)
	require.NoError(t, err)
	assert.Len(t, attempts, len(event.Channels))
	for _, ch := range event.Channels {
		assert.Equal(t, 1, transport.Len(event.LaneName(ch, event.Critical)), ch)
	}
	assert.Zero(t, transport.Len("events"))
}

func TestListener_Run(t *testing.T) {
	t.Parallel()

	transport := lane.NewMemoryTransport()
	r := &countingRouter{}
	l := newListener(t, transport, r, func(c *ingest.Config) { c.PollTimeout = 5 * time.Millisecond })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx)() }()

	_, err := ingest.NewPublisher(transport, "events").Submit(context.Background(),
		event.New("user-1", event.TypeShare, event.Payload{}))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return r.calls() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
