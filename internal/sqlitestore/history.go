package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/cobuy/internal/models"
)

// GetTransactionHistory returns every transaction of a merchant in commit
// order, with line items in basket order.
func (s *Store) GetTransactionHistory(ctx context.Context, merchantID string) ([]models.Transaction, error) {
	if err := checkMerchant(merchantID); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.created_at, i.product_id, i.quantity
		FROM transactions t
		LEFT JOIN transaction_items i ON i.transaction_id = t.id
		WHERE t.merchant_id = ?
		ORDER BY t.created_at, t.id, i.line_no`,
		merchantID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transaction history: %w", err)
	}
	defer rows.Close()

	txs := make([]models.Transaction, 0, 64)

	for rows.Next() {
		var (
			id, createdAt string
			productID     sql.NullString
			quantity      sql.NullInt64
		)
		if err := rows.Scan(&id, &createdAt, &productID, &quantity); err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}

		if len(txs) == 0 || txs[len(txs)-1].ID != id {
			at, err := parseTime(createdAt)
			if err != nil {
				return nil, err
			}
			txs = append(txs, models.Transaction{
				ID:         id,
				MerchantID: merchantID,
				Items:      []models.LineItem{},
				CreatedAt:  at,
			})
		}

		if productID.Valid {
			item := models.LineItem{ProductID: productID.String, Quantity: 1}
			if quantity.Valid {
				item.Quantity = int(quantity.Int64)
			}
			cur := &txs[len(txs)-1]
			cur.Items = append(cur.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}

	return txs, nil
}

// RecordSale commits a transaction with its line items and returns its ID.
// This is the write path of an embedded POS; the server never calls it.
func (s *Store) RecordSale(ctx context.Context, merchantID string, items []models.LineItem, at time.Time) (string, error) {
	if err := checkMerchant(merchantID); err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit.

	txID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO transactions (id, merchant_id, created_at) VALUES (?, ?, ?)",
		txID, merchantID, formatTime(at),
	); err != nil {
		return "", fmt.Errorf("inserting transaction: %w", err)
	}

	for i, item := range items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO transaction_items (transaction_id, line_no, product_id, quantity) VALUES (?, ?, ?, ?)",
			txID, i, item.ProductID, qty,
		); err != nil {
			return "", fmt.Errorf("inserting line item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing sale: %w", err)
	}

	return txID, nil
}
