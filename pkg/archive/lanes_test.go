package archive_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyrelay/pkg/archive"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
)

var _ archive.DeadLetterSource = (*lane.RedisTransport)(nil)

type fakeSource struct {
	lanes  map[string][]lane.DeadLetter
	limits []int64
	err    error
}

func (f *fakeSource) DeadLetters(_ context.Context, name string, limit int64) ([]lane.DeadLetter, error) {
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.lanes[name], nil
}

func entry(t *testing.T, msg lane.Message, reason string) lane.DeadLetter {
	t.Helper()
	body, err := msg.Encode()
	require.NoError(t, err)
	return lane.DeadLetter{ID: "m-" + reason, Lane: msg.Lane(), Body: body, Reason: reason, FailedAt: failedAt}
}

func TestLaneFinder_Find(t *testing.T) {
	t.Parallel()

	msg, _ := deadLetter()
	other := lane.NewMessage(event.Event{ID: "evt-2", UserID: "user-2", Type: event.TypeLike},
		event.ChannelPush, event.NonCritical, "device-token")
	emailMsg := lane.NewMessage(event.Event{ID: "evt-1", UserID: "user-1", Type: event.TypeComment},
		event.ChannelEmail, event.Critical, "u@example.com")

	src := &fakeSource{lanes: map[string][]lane.DeadLetter{
		"sms_critical":      {entry(t, msg, "max attempts reached")},
		"push_non_critical": {entry(t, other, "permanent")},
		"email_critical": {
			{ID: "garbage", Lane: "email_critical", Body: []byte("{not json"), Reason: "malformed"},
			entry(t, emailMsg, "invalid address"),
		},
	}}

	t.Run("matches the event across lanes", func(t *testing.T) {
		t.Parallel()

		records, err := archive.NewLaneFinder(src, 50).Find(context.Background(), "evt-1")
		require.NoError(t, err)
		require.Len(t, records, 2)

		byChannel := map[event.Channel]archive.Record{}
		for _, r := range records {
			byChannel[r.Channel] = r
		}
		sms := byChannel[event.ChannelSMS]
		assert.Equal(t, "sms_critical", sms.Lane)
		assert.Equal(t, "max attempts reached", sms.Reason)
		assert.Equal(t, failedAt, sms.FailedAt)
		assert.Equal(t, "post-7", sms.Payload.ParentID)
		assert.Zero(t, sms.Attempts)
		assert.Equal(t, "invalid address", byChannel[event.ChannelEmail].Reason)
	})

	t.Run("unknown event", func(t *testing.T) {
		t.Parallel()

		records, err := archive.NewLaneFinder(src, 50).Find(context.Background(), "evt-404")
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestLaneFinder_DefaultLimit(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	_, err := archive.NewLaneFinder(src, 0).Find(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, src.limits, len(event.Lanes()))
	assert.Equal(t, int64(1000), src.limits[0])
}

func TestLaneFinder_SourceError(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("connection refused")}
	_, err := archive.NewLaneFinder(src, 10).Find(context.Background(), "evt-1")
	assert.ErrorIs(t, err, archive.ErrSearchFailed)
}
