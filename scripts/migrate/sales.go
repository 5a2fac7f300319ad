package main

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
)

type transaction struct {
	ID         string
	MerchantID string
	CreatedAt  string
}

type transactionItem struct {
	TransactionID string
	LineNo        int
	ProductID     string
	Quantity      int
}

type trainingRun struct {
	ID          string
	MerchantID  string
	Trigger     string
	Success     bool
	Reason      string
	VocabSize   int
	PairsCount  int
	SampleCount int
	DurationMS  int64
	StartedAt   string
}

func readTransactions(ctx context.Context, db *sql.DB) ([]transaction, error) {
	return readRows(ctx, db,
		`SELECT id, merchant_id, created_at FROM transactions ORDER BY created_at`,
		func(rows *sql.Rows) (transaction, error) {
			var t transaction
			err := rows.Scan(&t.ID, &t.MerchantID, &t.CreatedAt)
			return t, err
		})
}

func readTransactionItems(ctx context.Context, db *sql.DB) ([]transactionItem, error) {
	return readRows(ctx, db,
		`SELECT transaction_id, line_no, product_id, quantity FROM transaction_items`,
		func(rows *sql.Rows) (transactionItem, error) {
			var it transactionItem
			err := rows.Scan(&it.TransactionID, &it.LineNo, &it.ProductID, &it.Quantity)
			return it, err
		})
}

func readTrainingRuns(ctx context.Context, db *sql.DB) ([]trainingRun, error) {
	return readRows(ctx, db,
		`SELECT id, merchant_id, trigger, success, reason, vocab_size, pairs_count,
		        sample_count, duration_ms, started_at
		 FROM training_runs`,
		func(rows *sql.Rows) (trainingRun, error) {
			var r trainingRun
			err := rows.Scan(&r.ID, &r.MerchantID, &r.Trigger, &r.Success, &r.Reason,
				&r.VocabSize, &r.PairsCount, &r.SampleCount, &r.DurationMS, &r.StartedAt)
			return r, err
		})
}

// insertTransactions copies sales. The sales_committed trigger fires for
// each row; a running server only queues retrains for merchants it sees.
func insertTransactions(ctx context.Context, tx pgx.Tx, transactions []transaction) (int, error) {
	return insertEach(ctx, tx, transactions, func(t *transaction) (string, []any) {
		return `INSERT INTO transactions (id, merchant_id, created_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO NOTHING`,
			[]any{t.ID, t.MerchantID, parseTime(t.CreatedAt)}
	})
}

func insertTransactionItems(ctx context.Context, tx pgx.Tx, items []transactionItem) (int, error) {
	return insertEach(ctx, tx, items, func(it *transactionItem) (string, []any) {
		return `INSERT INTO transaction_items (transaction_id, line_no, product_id, quantity)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (transaction_id, line_no) DO NOTHING`,
			[]any{it.TransactionID, it.LineNo, it.ProductID, it.Quantity}
	})
}

func insertTrainingRuns(ctx context.Context, tx pgx.Tx, runs []trainingRun) (int, error) {
	return insertEach(ctx, tx, runs, func(r *trainingRun) (string, []any) {
		return `INSERT INTO training_runs (id, merchant_id, trigger, success, reason, vocab_size,
			    pairs_count, sample_count, duration_ms, started_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO NOTHING`,
			[]any{r.ID, r.MerchantID, r.Trigger, r.Success, r.Reason, r.VocabSize,
				r.PairsCount, r.SampleCount, r.DurationMS, parseTime(r.StartedAt)}
	})
}
