package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const fetchPageSize = 500

// PgEventStore persists events in a Postgres table with a composite primary
// key on (user_id, version). The primary key is the conditional-write
// mechanism: a duplicate version insert violates it and the whole batch
// rolls back.
type PgEventStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPgEventStore(pool *pgxpool.Pool, table string) *PgEventStore {
	return &PgEventStore{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

func (s *PgEventStore) Fetch(ctx context.Context, userID string) ([]Event, error) {
	var events []Event
	var after int64

	// Page through the history so one user with a deep log cannot pin an
	// unbounded result set; the pages are reassembled into one sequence.
	for {
		rows, err := s.pool.Query(ctx, fmt.Sprintf(`
			SELECT event_id, user_id, created, event_type, event_payload, correlation_id, version
			FROM %s
			WHERE user_id = $1 AND version > $2
			ORDER BY version
			LIMIT $3
		`, s.table), userID, after, fetchPageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch events for user %s: %w", userID, err)
		}

		page, err := scanEvents(rows)
		if err != nil {
			return nil, fmt.Errorf("scan events for user %s: %w", userID, err)
		}

		events = append(events, page...)
		if len(page) < fetchPageSize {
			return events, nil
		}
		after = page[len(page)-1].Version
	}
}

func (s *PgEventStore) Append(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ev := range events {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (event_id, user_id, created, event_type, event_payload, correlation_id, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, s.table),
			ev.EventID, ev.UserID, ev.Created, string(ev.EventType), ev.Payload, ev.CorrelationID, ev.Version,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("append event version %d for user %s: %w", ev.Version, ev.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func scanEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var eventType string
		err := rows.Scan(
			&ev.EventID,
			&ev.UserID,
			&ev.Created,
			&eventType,
			&ev.Payload,
			&ev.CorrelationID,
			&ev.Version,
		)
		if err != nil {
			return nil, err
		}
		ev.EventType = EventType(eventType)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
