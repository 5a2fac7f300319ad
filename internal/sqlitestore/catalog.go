package sqlitestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/persistorai/cobuy/internal/models"
)

// GetProductDetails returns the catalog detail of each requested product, in
// request order. Soft-deleted and unknown products are omitted.
func (s *Store) GetProductDetails(ctx context.Context, merchantID string, productIDs []string) ([]models.ProductDetail, error) {
	if err := checkMerchant(merchantID); err != nil {
		return nil, err
	}
	if len(productIDs) == 0 {
		return []models.ProductDetail{}, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	placeholders, args := inArgs(merchantID, productIDs)

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.price, p.image, p.stock, p.status, COALESCE(c.name, '')
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.merchant_id = ? AND p.id IN (`+placeholders+`) AND p.deleted_at IS NULL`,
		args...,
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
		if err := s.attachVariants(ctx, merchantID, byID); err != nil {
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

func (s *Store) attachVariants(ctx context.Context, merchantID string, byID map[string]*models.ProductDetail) error {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	placeholders, args := inArgs(merchantID, ids)

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, id, name, price, stock
		FROM product_variants
		WHERE merchant_id = ? AND product_id IN (`+placeholders+`)
		ORDER BY product_id, id`,
		args...,
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

// UpsertProduct creates or replaces a catalog product and its variants.
func (s *Store) UpsertProduct(ctx context.Context, merchantID string, p models.ProductDetail) error {
	if err := checkMerchant(merchantID); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit.

	status := p.Status
	if status == "" {
		status = "active"
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO products (id, merchant_id, name, price, image, stock, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (merchant_id, id) DO UPDATE SET
			name = excluded.name, price = excluded.price, image = excluded.image,
			stock = excluded.stock, status = excluded.status, deleted_at = NULL`,
		p.ID, merchantID, p.Name, p.Price, p.Image, p.Stock, status,
	); err != nil {
		return fmt.Errorf("upserting product: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM product_variants WHERE merchant_id = ? AND product_id = ?", merchantID, p.ID,
	); err != nil {
		return fmt.Errorf("clearing variants: %w", err)
	}

	for _, v := range p.Variants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO product_variants (id, merchant_id, product_id, name, price, stock)
			VALUES (?, ?, ?, ?, ?, ?)`,
			v.ID, merchantID, p.ID, v.Name, v.Price, v.Stock,
		); err != nil {
			return fmt.Errorf("inserting variant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing product: %w", err)
	}

	return nil
}

// DeleteProduct soft-deletes a catalog product. It stays in transaction
// history but is no longer returned by GetProductDetails.
func (s *Store) DeleteProduct(ctx context.Context, merchantID, productID string) error {
	if err := checkMerchant(merchantID); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		"UPDATE products SET deleted_at = ? WHERE merchant_id = ? AND id = ?",
		formatTime(time.Now()), merchantID, productID,
	); err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}

	return nil
}

// inArgs builds "?, ?, ..." for ids, prefixed by the merchant argument.
func inArgs(merchantID string, ids []string) (string, []any) {
	args := make([]any, 0, len(ids)+1)
	args = append(args, merchantID)

	for _, id := range ids {
		args = append(args, id)
	}

	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
