package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/cobuy/internal/models"
)

// MerchantStore handles merchant lookups.
type MerchantStore struct {
	Base
}

// NewMerchantStore creates a MerchantStore.
func NewMerchantStore(base Base) *MerchantStore {
	return &MerchantStore{Base: base}
}

// GetMerchantByAPIKey looks up a merchant ID by API key hash.
func (s *MerchantStore) GetMerchantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var merchantID string

	err := s.Pool.QueryRow(ctx, "SELECT id::text FROM merchants WHERE api_key_hash = $1", hashAPIKey(apiKey)).Scan(&merchantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", models.ErrMerchantNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up merchant by API key: %w", err)
	}

	return merchantID, nil
}

// ListActiveMerchants returns every merchant with at least one transaction.
func (s *MerchantStore) ListActiveMerchants(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, "SELECT DISTINCT merchant_id::text FROM transactions ORDER BY 1")
	if err != nil {
		return nil, fmt.Errorf("listing active merchants: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning merchant rows: %w", err)
	}

	return ids, nil
}

// CreateMerchant registers a merchant and returns its ID. Only the hash of
// apiKey is stored.
func (s *MerchantStore) CreateMerchant(ctx context.Context, name, apiKey string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var merchantID string

	err := s.Pool.QueryRow(ctx,
		"INSERT INTO merchants (name, api_key_hash) VALUES ($1, $2) RETURNING id::text",
		name, hashAPIKey(apiKey),
	).Scan(&merchantID)
	if err != nil {
		return "", fmt.Errorf("creating merchant: %w", err)
	}

	s.Log.WithField("merchant_id", merchantID).Info("audit: merchant created")

	return merchantID, nil
}
