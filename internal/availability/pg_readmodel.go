package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgReadModel stores the materialized slot set keyed by
// (user_id, available_at).
type PgReadModel struct {
	pool  *pgxpool.Pool
	table string
}

func NewPgReadModel(pool *pgxpool.Pool, table string) *PgReadModel {
	return &PgReadModel{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

func (r *PgReadModel) Fetch(ctx context.Context, userID string, start, end time.Time) ([]Slot, error) {
	query := fmt.Sprintf(`
		SELECT user_id, available_at, appointment_id
		FROM %s
		WHERE available_at >= $1 AND available_at < $2
	`, r.table)
	args := []any{start, end}

	if userID != "" {
		query += " AND user_id = $3"
		args = append(args, userID)
	}
	query += " ORDER BY available_at, user_id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch availability: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.UserID, &s.AvailableAt, &s.AppointmentID); err != nil {
			return nil, fmt.Errorf("scan availability row: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch availability: %w", err)
	}
	return slots, nil
}

func (r *PgReadModel) Upsert(ctx context.Context, slot Slot) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (user_id, available_at, appointment_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, available_at)
		DO UPDATE SET appointment_id = EXCLUDED.appointment_id
	`, r.table), slot.UserID, slot.AvailableAt, slot.AppointmentID)
	if err != nil {
		return fmt.Errorf("upsert availability row: %w", err)
	}
	return nil
}

func (r *PgReadModel) Delete(ctx context.Context, userID string, availableAt time.Time) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE user_id = $1 AND available_at = $2
	`, r.table), userID, availableAt)
	if err != nil {
		return fmt.Errorf("delete availability row: %w", err)
	}
	return nil
}
