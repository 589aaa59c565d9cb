package preferences_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyrelay/pkg/cache"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/preferences"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, userID string) (preferences.Preferences, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(preferences.Preferences), args.Error(1)
}

func TestPreferences(t *testing.T) {
	t.Parallel()

	t.Run("default enables everything", func(t *testing.T) {
		t.Parallel()
		p := preferences.Default("u1")
		for _, ch := range event.Channels {
			assert.True(t, p.Enabled(ch))
		}
		assert.False(t, p.PriorityOnly)
		assert.False(t, p.QuietHours.Enabled)
	})

	t.Run("explicit toggle", func(t *testing.T) {
		t.Parallel()
		p := preferences.Preferences{Channels: map[event.Channel]bool{event.ChannelPush: false, event.ChannelSMS: true}}
		assert.False(t, p.Enabled(event.ChannelPush))
		assert.True(t, p.Enabled(event.ChannelSMS))
		assert.True(t, p.Enabled(event.ChannelEmail))
	})

	t.Run("targets", func(t *testing.T) {
		t.Parallel()
		p := preferences.Preferences{Contacts: preferences.Contacts{Email: "a@b.c", Phone: "+15550100", DeviceToken: "tok"}}
		assert.Equal(t, "a@b.c", p.Target(event.ChannelEmail))
		assert.Equal(t, "+15550100", p.Target(event.ChannelSMS))
		assert.Equal(t, "tok", p.Target(event.ChannelPush))
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := preferences.NewMemoryStore(preferences.Preferences{
		UserID:   "u1",
		Channels: map[event.Channel]bool{event.ChannelPush: false},
	})

	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, p.Enabled(event.ChannelPush))

	// Returned profiles are copies.
	p.Channels[event.ChannelPush] = true
	again, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, again.Enabled(event.ChannelPush))

	_, err = s.Get(ctx, "nobody")
	assert.ErrorIs(t, err, preferences.ErrNotFound)

	assert.ErrorIs(t, s.Save(ctx, preferences.Preferences{}), preferences.ErrMissingUserID)
	require.NoError(t, s.Save(ctx, preferences.Preferences{UserID: "u2", PriorityOnly: true}))
	p, err = s.Get(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, p.PriorityOnly)
}

func TestCachedStore(t *testing.T) {
	t.Parallel()

	t.Run("serves hits from cache", func(t *testing.T) {
		t.Parallel()
		next := new(MockStore)
		defer next.AssertExpectations(t)
		next.On("Get", mock.Anything, "u1").Return(preferences.Preferences{UserID: "u1", PriorityOnly: true}, nil).Once()

		s := preferences.NewCachedStore(next, 10, time.Minute)
		for range 3 {
			p, err := s.Get(context.Background(), "u1")
			require.NoError(t, err)
			assert.True(t, p.PriorityOnly)
		}
	})

	t.Run("caches not found", func(t *testing.T) {
		t.Parallel()
		next := new(MockStore)
		defer next.AssertExpectations(t)
		next.On("Get", mock.Anything, "ghost").Return(preferences.Preferences{}, preferences.ErrNotFound).Once()

		s := preferences.NewCachedStore(next, 10, time.Minute)
		_, err := s.Get(context.Background(), "ghost")
		assert.ErrorIs(t, err, preferences.ErrNotFound)
		_, err = s.Get(context.Background(), "ghost")
		assert.ErrorIs(t, err, preferences.ErrNotFound)
	})

	t.Run("does not cache errors", func(t *testing.T) {
		t.Parallel()
		next := new(MockStore)
		defer next.AssertExpectations(t)
		boom := errors.New("timeout")
		next.On("Get", mock.Anything, "u1").Return(preferences.Preferences{}, boom).Twice()

		s := preferences.NewCachedStore(next, 10, time.Minute)
		_, err := s.Get(context.Background(), "u1")
		assert.ErrorIs(t, err, boom)
		_, err = s.Get(context.Background(), "u1")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("refreshes after ttl", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }

		next := new(MockStore)
		defer next.AssertExpectations(t)
		next.On("Get", mock.Anything, "u1").Return(preferences.Preferences{UserID: "u1"}, nil).Twice()

		s := preferences.NewCachedStore(next, 10, time.Minute, cache.WithClock(clock))
		_, err := s.Get(context.Background(), "u1")
		require.NoError(t, err)
		now = now.Add(2 * time.Minute)
		_, err = s.Get(context.Background(), "u1")
		require.NoError(t, err)
	})

	t.Run("invalidate", func(t *testing.T) {
		t.Parallel()
		next := new(MockStore)
		defer next.AssertExpectations(t)
		next.On("Get", mock.Anything, "u1").Return(preferences.Preferences{UserID: "u1"}, nil).Twice()

		s := preferences.NewCachedStore(next, 10, time.Minute)
		_, _ = s.Get(context.Background(), "u1")
		s.Invalidate("u1")
		_, _ = s.Get(context.Background(), "u1")
	})
}
