// Package main provides a standalone migration script that copies a cobuy
// SQLite store (merchants, catalog, sales, training ledger) into PostgreSQL,
// for stores outgrowing the embedded backend.
//
// The PostgreSQL schema must already exist: start cobuy-server once against
// the target database, or run "cobuy-server migrate".
//
// Usage:
//
//	cd scripts/migrate
//	SQLITE_PATH=/var/lib/cobuy/cobuy.db DATABASE_URL=postgres://... go run .
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	_ "modernc.org/sqlite"
)

// config holds environment-driven migration settings.
type config struct {
	SQLitePath  string
	DatabaseURL string
	DryRun      bool
}

// tableCount is the read/inserted/verified tally of one table.
type tableCount struct {
	Name     string
	Read     int
	Inserted int
	Verified int
}

// report holds the final migration summary.
type report struct {
	Source     string
	Target     string
	Merchants  []string
	Tables     []tableCount
	SpotChecks []string
	Duration   time.Duration
	DryRun     bool
	Err        error
}

func main() {
	cfg := loadConfig()
	if cfg.DatabaseURL == "" && !cfg.DryRun {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	slog.Info("starting migration",
		"sqlite", cfg.SQLitePath,
		"dry_run", cfg.DryRun,
	)

	start := time.Now()
	r, err := runMigration(context.Background(), cfg)
	r.Duration = time.Since(start)
	if err != nil {
		r.Err = err
		slog.Error("migration failed", "error", err)
	}
	printReport(&r)
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration from environment variables.
func loadConfig() config {
	return config{
		SQLitePath:  envOr("SQLITE_PATH", "cobuy.db"),
		DatabaseURL: envOr("DATABASE_URL", ""),
		DryRun:      os.Getenv("DRY_RUN") == "true" || os.Getenv("DRY_RUN") == "1",
	}
}

// snapshot is everything read from SQLite.
type snapshot struct {
	merchants    []merchant
	categories   []category
	products     []product
	variants     []variant
	transactions []transaction
	items        []transactionItem
	runs         []trainingRun
}

func (s *snapshot) merchantIDs() []string {
	ids := make([]string, len(s.merchants))
	for i := range s.merchants {
		ids[i] = s.merchants[i].ID
	}
	return ids
}

// readSnapshot reads every table in dependency order.
func readSnapshot(ctx context.Context, lite *sql.DB) (*snapshot, error) {
	var (
		s   snapshot
		err error
	)

	if s.merchants, err = readMerchants(ctx, lite); err != nil {
		return nil, fmt.Errorf("read merchants: %w", err)
	}
	if s.categories, err = readCategories(ctx, lite); err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	if s.products, err = readProducts(ctx, lite); err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	if s.variants, err = readVariants(ctx, lite); err != nil {
		return nil, fmt.Errorf("read variants: %w", err)
	}
	if s.transactions, err = readTransactions(ctx, lite); err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	if s.items, err = readTransactionItems(ctx, lite); err != nil {
		return nil, fmt.Errorf("read transaction items: %w", err)
	}
	if s.runs, err = readTrainingRuns(ctx, lite); err != nil {
		return nil, fmt.Errorf("read training runs: %w", err)
	}

	return &s, nil
}

// runMigration executes the full migration pipeline.
//
//nolint:funlen // Migration pipeline is sequential; splitting would hurt readability.
func runMigration(ctx context.Context, cfg config) (report, error) {
	r := report{
		Source: cfg.SQLitePath,
		Target: sanitizeURL(cfg.DatabaseURL),
		DryRun: cfg.DryRun,
	}

	// Open SQLite (read-only).
	lite, err := sql.Open("sqlite", "file:"+cfg.SQLitePath+"?mode=ro")
	if err != nil {
		return r, fmt.Errorf("open sqlite: %w", err)
	}
	defer lite.Close()

	snap, err := readSnapshot(ctx, lite)
	if err != nil {
		return r, err
	}
	r.Merchants = snap.merchantIDs()
	r.Tables = []tableCount{
		{Name: "merchants", Read: len(snap.merchants)},
		{Name: "categories", Read: len(snap.categories)},
		{Name: "products", Read: len(snap.products)},
		{Name: "product_variants", Read: len(snap.variants)},
		{Name: "transactions", Read: len(snap.transactions)},
		{Name: "transaction_items", Read: len(snap.items)},
		{Name: "training_runs", Read: len(snap.runs)},
	}
	for _, t := range r.Tables {
		slog.Info("read table from sqlite", "table", t.Name, "count", t.Read)
	}

	if cfg.DryRun {
		slog.Info("dry run, skipping PostgreSQL writes")
		for i := range r.Tables {
			r.Tables[i].Inserted = r.Tables[i].Read
		}
		return r, nil
	}

	// Connect to PostgreSQL and run in a transaction.
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return r, fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return r, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	inserts := []func() (int, error){
		func() (int, error) { return insertMerchants(ctx, tx, snap.merchants) },
		func() (int, error) { return insertCategories(ctx, tx, snap.categories) },
		func() (int, error) { return insertProducts(ctx, tx, snap.products) },
		func() (int, error) { return insertVariants(ctx, tx, snap.variants) },
		func() (int, error) { return insertTransactions(ctx, tx, snap.transactions) },
		func() (int, error) { return insertTransactionItems(ctx, tx, snap.items) },
		func() (int, error) { return insertTrainingRuns(ctx, tx, snap.runs) },
	}
	for i, insert := range inserts {
		n, err := insert()
		if err != nil {
			return r, fmt.Errorf("insert %s: %w", r.Tables[i].Name, err)
		}
		r.Tables[i].Inserted = n
		slog.Info("inserted rows", "table", r.Tables[i].Name, "count", n)
	}

	// Verify counts.
	for i := range r.Tables {
		r.Tables[i].Verified, err = countRows(ctx, tx, r.Tables[i].Name, r.Merchants)
		if err != nil {
			return r, fmt.Errorf("verify %s count: %w", r.Tables[i].Name, err)
		}
	}

	// Spot-check random sales.
	r.SpotChecks, err = spotCheck(ctx, tx, snap)
	if err != nil {
		return r, fmt.Errorf("spot check: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return r, fmt.Errorf("commit: %w", err)
	}
	slog.Info("transaction committed")
	return r, nil
}
