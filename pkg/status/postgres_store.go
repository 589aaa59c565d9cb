package status

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
)

// Migrations holds the goose migrations of the delivery_attempts table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations.
const MigrationsDir = "migrations"

const attemptColumns = `event_id, channel, lane, user_id, event_type, status,
	attempt_count, last_error, next_retry_at, created_at, updated_at, version`

const (
	insertAttempt = `INSERT INTO delivery_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now(), 0)
		ON CONFLICT (event_id, channel) DO NOTHING
		RETURNING ` + attemptColumns

	selectAttempt = `SELECT ` + attemptColumns + ` FROM delivery_attempts
		WHERE event_id = $1 AND channel = $2`

	listAttempts = `SELECT ` + attemptColumns + ` FROM delivery_attempts
		WHERE event_id = $1
		ORDER BY array_position(ARRAY['email','sms','push'], channel)`

	transitionAttempt = `UPDATE delivery_attempts SET
			status = $3,
			attempt_count = COALESCE($4, attempt_count),
			last_error = CASE WHEN $5 = '' THEN last_error ELSE $5 END,
			next_retry_at = $6,
			updated_at = now(),
			version = version + 1
		WHERE event_id = $1 AND channel = $2 AND status = ANY($7)
			AND ($8::timestamptz IS NULL OR next_retry_at IS NULL OR next_retry_at <= $8)
			AND ($9::bigint IS NULL OR version = $9)
		RETURNING ` + attemptColumns
)

// querier is the subset of *pgxpool.Pool used by PostgresStore.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps attempts in the delivery_attempts table. Conditional
// transitions are single UPDATE statements whose WHERE clause carries every
// condition of the Transition.
type PostgresStore struct {
	db querier
}

// NewPostgresStore accepts a *pgxpool.Pool, *pgx.Conn or transaction.
func NewPostgresStore(db querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a Attempt) (Attempt, bool, error) {
	row := s.db.QueryRow(ctx, insertAttempt,
		a.EventID, string(a.Channel), a.Lane, a.UserID, string(a.EventType), string(a.Status),
		a.AttemptCount, a.LastError, a.NextRetryAt,
	)
	created, err := scanAttempt(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Attempt{}, false, pgError(err)
	}

	existing, err := s.Get(ctx, a.EventID, a.Channel)
	if err != nil {
		return Attempt{}, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) Transition(ctx context.Context, t Transition) (Attempt, bool, error) {
	row := s.db.QueryRow(ctx, transitionAttempt,
		t.EventID, string(t.Channel), string(t.To), t.AttemptCount, t.Error, t.NextRetryAt,
		statusStrings(t.From), t.DueBy, t.Version,
	)
	updated, err := scanAttempt(row)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Attempt{}, false, pgError(err)
	}

	current, err := s.Get(ctx, t.EventID, t.Channel)
	if err != nil {
		return Attempt{}, false, err
	}
	return current, false, nil
}

func (s *PostgresStore) Get(ctx context.Context, eventID string, channel event.Channel) (Attempt, error) {
	a, err := scanAttempt(s.db.QueryRow(ctx, selectAttempt, eventID, string(channel)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, pgError(err)
	}
	return a, nil
}

func (s *PostgresStore) List(ctx context.Context, eventID string) ([]Attempt, error) {
	rows, err := s.db.Query(ctx, listAttempts, eventID)
	if err != nil {
		return nil, pgError(err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, pgError(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError(err)
	}
	return out, nil
}

func scanAttempt(row pgx.Row) (Attempt, error) {
	var (
		a                          Attempt
		channel, eventType, status string
	)
	err := row.Scan(
		&a.EventID, &channel, &a.Lane, &a.UserID, &eventType, &status,
		&a.AttemptCount, &a.LastError, &a.NextRetryAt, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	)
	if err != nil {
		return Attempt{}, err
	}
	a.Channel = event.Channel(channel)
	a.EventType = event.Type(eventType)
	a.Status = Status(status)
	return a, nil
}

func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("postgres %s: %w", pgErr.Code, err)
	}
	return err
}
