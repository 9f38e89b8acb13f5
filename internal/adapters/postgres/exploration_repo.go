package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

// ExplorationRepo implements ports.ExplorationRepository.
type ExplorationRepo struct {
	db *DB
}

func NewExplorationRepo(db *DB) *ExplorationRepo {
	return &ExplorationRepo{db: db}
}

func (r *ExplorationRepo) Insert(ctx context.Context, rec *domain.ExplorationRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO explorations (id, origin, destination, state, stop_count, image_count, error_code, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.Origin, rec.Destination, string(rec.State), rec.StopCount, rec.ImageCount,
		rec.ErrorCode, rec.StartedAt, rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert exploration %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the latest explorations, newest first.
func (r *ExplorationRepo) Recent(ctx context.Context, limit int) ([]domain.ExplorationRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id::text, origin, destination, state, stop_count, image_count,
		       COALESCE(error_code, ''), started_at, duration_ms
		FROM explorations
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query explorations: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ExplorationRecord, error) {
		var (
			rec        domain.ExplorationRecord
			state      string
			durationMS int64
		)
		err := row.Scan(&rec.ID, &rec.Origin, &rec.Destination, &state, &rec.StopCount,
			&rec.ImageCount, &rec.ErrorCode, &rec.StartedAt, &durationMS)
		rec.State = domain.ExplorationState(state)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		return rec, err
	})
}
