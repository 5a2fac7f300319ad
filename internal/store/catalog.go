package store

import (
	"context"
	"fmt"

	"github.com/persistorai/cobuy/internal/models"
)

// CatalogStore resolves product IDs against the merchant's live catalog.
type CatalogStore struct {
	Base
}

// NewCatalogStore creates a CatalogStore.
func NewCatalogStore(base Base) *CatalogStore {
	return &CatalogStore{Base: base}
}

// GetProductDetails returns the catalog detail of each requested product, in
// request order. Soft-deleted and unknown products are omitted.
func (s *CatalogStore) GetProductDetails(ctx context.Context, merchantID string, productIDs []string) ([]models.ProductDetail, error) {
	if len(productIDs) == 0 {
		return []models.ProductDetail{}, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	rows, err := tx.Query(ctx, `
		SELECT p.id, p.name, p.price::float8, p.image, p.stock, p.status, COALESCE(c.name, '')
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.merchant_id = $1 AND p.id = ANY($2) AND p.deleted_at IS NULL`,
		merchantID, productIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}

	byID := make(map[string]*models.ProductDetail, len(productIDs))

	for rows.Next() {
		d := &models.ProductDetail{Variants: []models.Variant{}}
		if err := rows.Scan(&d.ID, &d.Name, &d.Price, &d.Image, &d.Stock, &d.Status, &d.Category); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		byID[d.ID] = d
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product rows: %w", err)
	}

	if len(byID) > 0 {
		if err := s.attachVariants(ctx, tx, merchantID, byID); err != nil {
			return nil, err
		}
	}

	out := make([]models.ProductDetail, 0, len(byID))
	for _, id := range productIDs {
		if d, ok := byID[id]; ok {
			out = append(out, *d)
			delete(byID, id)
		}
	}

	return out, nil
}

func (s *CatalogStore) attachVariants(ctx context.Context, tx queryer, merchantID string, byID map[string]*models.ProductDetail) error {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, id, name, price::float8, stock
		FROM product_variants
		WHERE merchant_id = $1 AND product_id = ANY($2)
		ORDER BY product_id, id`,
		merchantID, ids,
	)
	if err != nil {
		return fmt.Errorf("querying variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var v models.Variant
		if err := rows.Scan(&productID, &v.ID, &v.Name, &v.Price, &v.Stock); err != nil {
			return fmt.Errorf("scanning variant row: %w", err)
		}
		if d, ok := byID[productID]; ok {
			d.Variants = append(d.Variants, v)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating variant rows: %w", err)
	}

	return nil
}
