// Package sqlitestore implements the POS collaborators on an embedded SQLite
// database, for single-store deployments that run without PostgreSQL.
package sqlitestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // register the "sqlite" database/sql driver

	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// maxListLimit is a defense-in-depth cap on limit values for list queries.
const maxListLimit = 1000

const schema = `
CREATE TABLE IF NOT EXISTS merchants (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    api_key_hash  TEXT NOT NULL UNIQUE,
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id           TEXT PRIMARY KEY,
    merchant_id  TEXT NOT NULL REFERENCES merchants(id) ON DELETE CASCADE,
    name         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    id           TEXT NOT NULL,
    merchant_id  TEXT NOT NULL REFERENCES merchants(id) ON DELETE CASCADE,
    name         TEXT NOT NULL,
    price        REAL NOT NULL DEFAULT 0,
    image        TEXT NOT NULL DEFAULT '',
    stock        INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL DEFAULT 'active',
    category_id  TEXT REFERENCES categories(id) ON DELETE SET NULL,
    deleted_at   TEXT,
    PRIMARY KEY (merchant_id, id)
);

CREATE TABLE IF NOT EXISTS product_variants (
    id           TEXT NOT NULL,
    merchant_id  TEXT NOT NULL,
    product_id   TEXT NOT NULL,
    name         TEXT NOT NULL,
    price        REAL NOT NULL DEFAULT 0,
    stock        INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (merchant_id, id),
    FOREIGN KEY (merchant_id, product_id) REFERENCES products(merchant_id, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transactions (
    id           TEXT PRIMARY KEY,
    merchant_id  TEXT NOT NULL REFERENCES merchants(id) ON DELETE CASCADE,
    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_merchant ON transactions (merchant_id, created_at);

CREATE TABLE IF NOT EXISTS transaction_items (
    transaction_id  TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
    line_no         INTEGER NOT NULL,
    product_id      TEXT NOT NULL,
    quantity        INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (transaction_id, line_no)
);

CREATE TABLE IF NOT EXISTS training_runs (
    id            TEXT PRIMARY KEY,
    merchant_id   TEXT NOT NULL REFERENCES merchants(id) ON DELETE CASCADE,
    trigger       TEXT NOT NULL,
    success       INTEGER NOT NULL,
    reason        TEXT NOT NULL DEFAULT '',
    vocab_size    INTEGER NOT NULL DEFAULT 0,
    pairs_count   INTEGER NOT NULL DEFAULT 0,
    sample_count  INTEGER NOT NULL DEFAULT 0,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    started_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_training_runs_merchant ON training_runs (merchant_id, started_at);
`

// Compile-time check: *Store must satisfy domain.Backend.
var _ domain.Backend = (*Store)(nil)

// Store is a SQLite-backed domain.Backend.
type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, log *logrus.Logger) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection: SQLite serialises writers, and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // best-effort close on setup failure.
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}

	log.WithField("path", path).Info("sqlite backend ready")

	return &Store{db: db, log: log}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return s.db.PingContext(ctx)
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

func checkMerchant(merchantID string) error {
	if _, err := uuid.Parse(merchantID); err != nil {
		return fmt.Errorf("%w: %s", models.ErrInvalidMerchant, merchantID)
	}

	return nil
}

func hashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// formatTime stores timestamps as sortable RFC 3339 text with fixed-width nanoseconds.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}

	return t, nil
}
