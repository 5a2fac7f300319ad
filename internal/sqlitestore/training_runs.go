package sqlitestore

import (
	"context"
	"fmt"

	"github.com/persistorai/cobuy/internal/models"
)

// RecordTrainingRun appends one training attempt to the ledger.
func (s *Store) RecordTrainingRun(ctx context.Context, run *models.TrainingRun) error {
	if err := checkMerchant(run.MerchantID); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_runs (id, merchant_id, trigger, success, reason, vocab_size,
			pairs_count, sample_count, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.MerchantID, run.Trigger, run.Success, run.Reason, run.VocabSize,
		run.PairsCount, run.SampleCount, run.DurationMS, formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting training run: %w", err)
	}

	return nil
}

// ListTrainingRuns returns the most recent runs of a merchant, newest first.
func (s *Store) ListTrainingRuns(ctx context.Context, merchantID string, limit int) ([]models.TrainingRun, error) {
	if err := checkMerchant(merchantID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merchant_id, trigger, success, reason, vocab_size,
			pairs_count, sample_count, duration_ms, started_at
		FROM training_runs
		WHERE merchant_id = ?
		ORDER BY started_at DESC
		LIMIT ?`,
		merchantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying training runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.TrainingRun, 0, limit)

	for rows.Next() {
		var r models.TrainingRun
		var startedAt string
		if err := rows.Scan(&r.ID, &r.MerchantID, &r.Trigger, &r.Success, &r.Reason, &r.VocabSize,
			&r.PairsCount, &r.SampleCount, &r.DurationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning training run: %w", err)
		}
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating training runs: %w", err)
	}

	return runs, nil
}
