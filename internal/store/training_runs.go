package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/cobuy/internal/models"
)

const trainingRunColumns = `id, merchant_id, trigger, success, reason, vocab_size,
	pairs_count, sample_count, duration_ms, started_at`

const trainingRunSelect = `id::text, merchant_id::text, trigger, success, reason, vocab_size,
	pairs_count, sample_count, duration_ms, started_at`

// TrainingRunStore persists the training ledger.
type TrainingRunStore struct {
	Base
}

// NewTrainingRunStore creates a TrainingRunStore.
func NewTrainingRunStore(base Base) *TrainingRunStore {
	return &TrainingRunStore{Base: base}
}

// RecordTrainingRun appends one training attempt to the ledger.
func (s *TrainingRunStore) RecordTrainingRun(ctx context.Context, run *models.TrainingRun) error {
	if err := checkMerchant(run.MerchantID); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO training_runs (`+trainingRunColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.MerchantID, run.Trigger, run.Success, run.Reason, run.VocabSize,
		run.PairsCount, run.SampleCount, run.DurationMS, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting training run: %w", err)
	}

	return nil
}

// ListTrainingRuns returns the most recent runs of a merchant, newest first.
func (s *TrainingRunStore) ListTrainingRuns(ctx context.Context, merchantID string, limit int) ([]models.TrainingRun, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	rows, err := tx.Query(ctx, `
		SELECT `+trainingRunSelect+`
		FROM training_runs
		WHERE merchant_id = $1
		ORDER BY started_at DESC
		LIMIT $2`,
		merchantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying training runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, scanTrainingRun)
	if err != nil {
		return nil, fmt.Errorf("scanning training runs: %w", err)
	}

	return runs, nil
}

func scanTrainingRun(row pgx.CollectableRow) (models.TrainingRun, error) {
	var r models.TrainingRun

	err := row.Scan(
		&r.ID,
		&r.MerchantID,
		&r.Trigger,
		&r.Success,
		&r.Reason,
		&r.VocabSize,
		&r.PairsCount,
		&r.SampleCount,
		&r.DurationMS,
		&r.StartedAt,
	)

	return r, err
}
