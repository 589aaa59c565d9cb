package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifyrelay/pkg/mongo"
)

func TestNew_ConfigErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()
		_, err := mongo.New(context.Background(), mongo.Config{})
		assert.ErrorIs(t, err, mongo.ErrEmptyConnectionURL)
	})

	t.Run("empty database", func(t *testing.T) {
		t.Parallel()
		_, err := mongo.NewWithDatabase(context.Background(), mongo.Config{ConnectionURL: "mongodb://localhost:27017"})
		assert.ErrorIs(t, err, mongo.ErrEmptyDatabase)
	})

	t.Run("invalid scheme", func(t *testing.T) {
		t.Parallel()
		_, err := mongo.New(context.Background(), mongo.Config{
			ConnectionURL: "http://localhost:27017",
			RetryAttempts: 3,
			RetryInterval: time.Millisecond,
		})
		assert.ErrorIs(t, err, mongo.ErrNotReady)
	})
}
