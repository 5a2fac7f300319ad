package store

import (
	"context"
	"fmt"
	"time"

	"github.com/persistorai/cobuy/internal/models"
)

// HistoryStore reads committed transactions with their line items.
type HistoryStore struct {
	Base
}

// NewHistoryStore creates a HistoryStore.
func NewHistoryStore(base Base) *HistoryStore {
	return &HistoryStore{Base: base}
}

// GetTransactionHistory returns every transaction of a merchant in commit
// order, with line items in basket order. Transactions without items are
// returned with an empty Items slice.
func (s *HistoryStore) GetTransactionHistory(ctx context.Context, merchantID string) ([]models.Transaction, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	rows, err := tx.Query(ctx, `
		SELECT t.id::text, t.created_at, i.product_id, i.quantity
		FROM transactions t
		LEFT JOIN transaction_items i ON i.transaction_id = t.id
		WHERE t.merchant_id = $1
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
			id        string
			createdAt time.Time
			productID *string
			quantity  *int
		)
		if err := rows.Scan(&id, &createdAt, &productID, &quantity); err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}

		if len(txs) == 0 || txs[len(txs)-1].ID != id {
			txs = append(txs, models.Transaction{
				ID:         id,
				MerchantID: merchantID,
				Items:      []models.LineItem{},
				CreatedAt:  createdAt,
			})
		}

		if productID != nil {
			item := models.LineItem{ProductID: *productID, Quantity: 1}
			if quantity != nil {
				item.Quantity = *quantity
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
