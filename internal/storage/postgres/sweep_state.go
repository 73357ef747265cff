package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"listing_ingest/internal/domain"
)

type SweepStateStore struct {
	db *sqlx.DB
}

func NewSweepStateStore(db *sqlx.DB) *SweepStateStore {
	return &SweepStateStore{db: db}
}

func (s *SweepStateStore) Get(ctx context.Context, sourceID string) (*domain.SweepState, error) {
	var state domain.SweepState
	query := `
		SELECT id, source_id, last_swept_at, last_new, last_updated, last_rejected, last_errors, total_new
		FROM sweep_state
		WHERE source_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		// never swept
		return &domain.SweepState{SourceID: sourceID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Record stores the outcome of the latest sweep and accumulates the new-listing total.
func (s *SweepStateStore) Record(ctx context.Context, state *domain.SweepState) error {
	query := `
		INSERT INTO sweep_state (source_id, last_swept_at, last_new, last_updated, last_rejected, last_errors, total_new)
		VALUES ($1, $2, $3, $4, $5, $6, $3)
		ON CONFLICT (source_id) DO UPDATE SET
			last_swept_at = EXCLUDED.last_swept_at,
			last_new = EXCLUDED.last_new,
			last_updated = EXCLUDED.last_updated,
			last_rejected = EXCLUDED.last_rejected,
			last_errors = EXCLUDED.last_errors,
			total_new = sweep_state.total_new + EXCLUDED.last_new`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		state.SourceID,
		state.LastSweptAt,
		state.LastNew,
		state.LastUpdated,
		state.LastRejected,
		state.LastErrors,
	)
	return err
}
