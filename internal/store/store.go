// Package store provides the PostgreSQL implementations of the POS
// collaborators the recommender reads from: transaction history, product
// catalog, merchants and the training-run ledger.
//
// Each store owns one concern and embeds shared helpers via the Base struct.
// Stores never import each other; shared logic lives in this file.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/dbpool"
	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// maxListLimit is a defense-in-depth cap on limit values for list queries.
const maxListLimit = 1000

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// queryer is the read surface shared by pgx.Tx and the pool.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// checkMerchant rejects merchant IDs that are not UUIDs before they reach SQL.
func checkMerchant(merchantID string) error {
	if _, err := uuid.Parse(merchantID); err != nil {
		return fmt.Errorf("%w: %s", models.ErrInvalidMerchant, merchantID)
	}

	return nil
}

// beginReadTx starts a read-only transaction for a merchant so multi-query
// reads see a single snapshot.
func (b *Base) beginReadTx(ctx context.Context, merchantID string) (pgx.Tx, error) {
	if err := checkMerchant(merchantID); err != nil {
		return nil, err
	}

	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	return tx, nil
}

// hashAPIKey returns the hex SHA-256 digest stored in merchants.api_key_hash.
func hashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// Compile-time check: *Backend must satisfy domain.Backend.
var _ domain.Backend = (*Backend)(nil)

// Backend composes every PostgreSQL store behind domain.Backend.
type Backend struct {
	*HistoryStore
	*CatalogStore
	*MerchantStore
	*TrainingRunStore

	pool *dbpool.Pool
}

// NewBackend wires all stores onto a shared pool.
func NewBackend(pool *dbpool.Pool, log *logrus.Logger) *Backend {
	base := Base{Pool: pool, Log: log}

	return &Backend{
		HistoryStore:     NewHistoryStore(base),
		CatalogStore:     NewCatalogStore(base),
		MerchantStore:    NewMerchantStore(base),
		TrainingRunStore: NewTrainingRunStore(base),
		pool:             pool,
	}
}

// Ping verifies the database is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return b.pool.Ping(ctx)
}
