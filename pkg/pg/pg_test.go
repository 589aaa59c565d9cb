package pg_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifyrelay/pkg/pg"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestConnect_ConfigErrors(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)

	_, err = pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	ok := pg.Healthcheck(pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	down := pg.Healthcheck(pingerFunc(func(context.Context) error { return errors.New("refused") }))
	assert.ErrorIs(t, down(context.Background()), pg.ErrHealthcheckFailed)
}

func TestMigrate_NoMigrations(t *testing.T) {
	t.Parallel()

	err := pg.Migrate(context.Background(), nil, nil, "migrations", pg.Config{}, nil)
	assert.ErrorIs(t, err, pg.ErrNoMigrations)

	err = pg.Migrate(context.Background(), nil, fstest.MapFS{}, "", pg.Config{}, nil)
	assert.ErrorIs(t, err, pg.ErrFailedToApplyMigrations)
}
