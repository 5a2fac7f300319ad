package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

// readRows runs query against SQLite and scans every row with scan.
func readRows[T any](ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// insertEach inserts rows in batches of 100 and returns how many were new.
// Rows already present are skipped, so the script can be re-run.
func insertEach[T any](ctx context.Context, tx pgx.Tx, rows []T, stmt func(*T) (string, []any)) (int, error) {
	const batchSize = 100

	inserted := 0
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		for j := i; j < end; j++ {
			query, args := stmt(&rows[j])
			tag, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return inserted, fmt.Errorf("batch %d-%d, row %d: %w", i, end, j, err)
			}
			inserted += int(tag.RowsAffected())
		}
		slog.Debug("batch inserted", "from", i, "to", end)
	}
	return inserted, nil
}

// parseTime parses a timestamp written by the SQLite backend.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		slog.Warn("unparseable time, using now", "value", s)
		return time.Now().UTC()
	}
	return t.UTC()
}

// parseNullableTime parses an optional SQLite timestamp.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// nullStr converts sql.NullString to *string.
func nullStr(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	return &s.String
}

// sanitizeURL removes credentials from a database URL for display.
func sanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable URL]"
	}
	u.User = nil
	return u.String()
}

// envOr returns the environment variable value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// countQueries is the set of tables countRows may query, scoped to the
// migrated merchants.
var countQueries = map[string]string{
	"merchants":         `SELECT count(*) FROM merchants WHERE id = ANY($1::uuid[])`,
	"categories":        `SELECT count(*) FROM categories WHERE merchant_id = ANY($1::uuid[])`,
	"products":          `SELECT count(*) FROM products WHERE merchant_id = ANY($1::uuid[])`,
	"product_variants":  `SELECT count(*) FROM product_variants WHERE merchant_id = ANY($1::uuid[])`,
	"transactions":      `SELECT count(*) FROM transactions WHERE merchant_id = ANY($1::uuid[])`,
	"transaction_items": `SELECT count(*) FROM transaction_items ti JOIN transactions t ON t.id = ti.transaction_id WHERE t.merchant_id = ANY($1::uuid[])`,
	"training_runs":     `SELECT count(*) FROM training_runs WHERE merchant_id = ANY($1::uuid[])`,
}

// countRows counts rows in a table belonging to the given merchants.
func countRows(ctx context.Context, tx pgx.Tx, table string, merchantIDs []string) (int, error) {
	query, ok := countQueries[table]
	if !ok {
		return 0, fmt.Errorf("disallowed table name: %s", table)
	}

	var count int
	err := tx.QueryRow(ctx, query, merchantIDs).Scan(&count)
	return count, err
}

// spotCheck verifies that 5 random sales carry the same line count in
// PostgreSQL as in SQLite.
//
//nolint:unparam // error return kept for when spot-check failures become fatal.
func spotCheck(ctx context.Context, tx pgx.Tx, snap *snapshot) ([]string, error) {
	if len(snap.transactions) == 0 {
		return nil, nil
	}

	lines := make(map[string]int, len(snap.transactions))
	for _, it := range snap.items {
		lines[it.TransactionID]++
	}

	count := min(5, len(snap.transactions))
	indices := rand.Perm(len(snap.transactions))[:count]
	var checks []string

	for _, idx := range indices {
		t := snap.transactions[idx]
		var pgMerchant string
		var pgLines int
		err := tx.QueryRow(ctx,
			`SELECT t.merchant_id::text, count(ti.line_no)
			 FROM transactions t
			 LEFT JOIN transaction_items ti ON ti.transaction_id = t.id
			 WHERE t.id = $1
			 GROUP BY t.merchant_id`,
			t.ID,
		).Scan(&pgMerchant, &pgLines)
		if err != nil {
			checks = append(checks, fmt.Sprintf("❌ %s: not found in postgres: %v", t.ID, err))
			continue
		}
		if pgMerchant == t.MerchantID && pgLines == lines[t.ID] {
			checks = append(checks, fmt.Sprintf("✅ %s: merchant=%s, lines=%d", t.ID, pgMerchant, pgLines))
		} else {
			checks = append(checks, fmt.Sprintf("❌ %s: mismatch: pg(%s/%d) vs sqlite(%s/%d)",
				t.ID, pgMerchant, pgLines, t.MerchantID, lines[t.ID]))
		}
	}
	return checks, nil
}

// printReport outputs the final migration summary.
func printReport(r *report) {
	fmt.Println()
	fmt.Println("=== cobuy Migration Report ===")
	if r.DryRun {
		fmt.Println("MODE: DRY RUN (no changes made)")
	}
	fmt.Printf("Source: %s\n", r.Source)
	fmt.Printf("Target: %s\n", r.Target)
	fmt.Printf("Merchants: %d\n", len(r.Merchants))
	fmt.Println()

	for _, t := range r.Tables {
		fmt.Printf("%-18s %d read → %d inserted → %d verified %s\n",
			t.Name+":", t.Read, t.Inserted, t.Verified, statusIcon(t.Read, t.Inserted, t.Verified))
	}

	if len(r.SpotChecks) > 0 {
		fmt.Println("\nSpot checks:")
		for _, c := range r.SpotChecks {
			fmt.Printf("  %s\n", c)
		}
	}

	fmt.Printf("\nDuration: %.1fs\n", r.Duration.Seconds())
	if r.Err != nil {
		fmt.Printf("Status: FAILED: %v\n", r.Err)
	} else {
		fmt.Println("Status: SUCCESS")
	}
}

// statusIcon compares the rows read against what PostgreSQL holds. Verified
// may exceed inserted on a re-run because existing rows are skipped.
func statusIcon(read, inserted, verified int) string {
	if verified == 0 && inserted > 0 {
		return "⏳"
	}
	if verified >= read {
		return "✅"
	}
	return "❌"
}
