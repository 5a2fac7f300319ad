// Package models defines the typed records exchanged between the POS
// collaborators and the co-purchase recommender.
package models

import "time"

// LineItem is a single product line on a committed sale.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Transaction is a merchant-scoped purchase event. It is created by the POS at
// checkout and is read-only here.
type Transaction struct {
	ID         string     `json:"id"`
	MerchantID string     `json:"merchant_id"`
	Items      []LineItem `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ProductIDs returns the line-item product IDs in basket order, skipping blank
// IDs. Repeated products are kept; callers that need distinct products dedupe.
func (t *Transaction) ProductIDs() []string {
	ids := make([]string, 0, len(t.Items))
	for _, item := range t.Items {
		if item.ProductID == "" {
			continue
		}
		ids = append(ids, item.ProductID)
	}

	return ids
}
