package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/cobuy/internal/models"
)

// GetMerchantByAPIKey looks up a merchant ID by API key hash.
func (s *Store) GetMerchantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var merchantID string

	err := s.db.QueryRowContext(ctx, "SELECT id FROM merchants WHERE api_key_hash = ?", hashAPIKey(apiKey)).Scan(&merchantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrMerchantNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up merchant by API key: %w", err)
	}

	return merchantID, nil
}

// ListActiveMerchants returns every merchant with at least one transaction.
func (s *Store) ListActiveMerchants(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT merchant_id FROM transactions ORDER BY 1")
	if err != nil {
		return nil, fmt.Errorf("listing active merchants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning merchant row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating merchant rows: %w", err)
	}

	return ids, nil
}

// CreateMerchant registers a merchant and returns its ID. Only the hash of
// apiKey is stored.
func (s *Store) CreateMerchant(ctx context.Context, name, apiKey string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	merchantID := uuid.NewString()

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO merchants (id, name, api_key_hash, created_at) VALUES (?, ?, ?, ?)",
		merchantID, name, hashAPIKey(apiKey), formatTime(time.Now()),
	); err != nil {
		return "", fmt.Errorf("creating merchant: %w", err)
	}

	s.log.WithField("merchant_id", merchantID).Info("audit: merchant created")

	return merchantID, nil
}
