package main

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
)

// merchant is a merchants row read from SQLite.
type merchant struct {
	ID         string
	Name       string
	APIKeyHash string
	CreatedAt  string
}

type category struct {
	ID         string
	MerchantID string
	Name       string
}

type product struct {
	ID         string
	MerchantID string
	Name       string
	Price      float64
	Image      string
	Stock      int
	Status     string
	CategoryID sql.NullString
	DeletedAt  sql.NullString
}

type variant struct {
	ID         string
	MerchantID string
	ProductID  string
	Name       string
	Price      float64
	Stock      int
}

func readMerchants(ctx context.Context, db *sql.DB) ([]merchant, error) {
	return readRows(ctx, db,
		`SELECT id, name, api_key_hash, created_at FROM merchants`,
		func(rows *sql.Rows) (merchant, error) {
			var m merchant
			err := rows.Scan(&m.ID, &m.Name, &m.APIKeyHash, &m.CreatedAt)
			return m, err
		})
}

func readCategories(ctx context.Context, db *sql.DB) ([]category, error) {
	return readRows(ctx, db,
		`SELECT id, merchant_id, name FROM categories`,
		func(rows *sql.Rows) (category, error) {
			var c category
			err := rows.Scan(&c.ID, &c.MerchantID, &c.Name)
			return c, err
		})
}

func readProducts(ctx context.Context, db *sql.DB) ([]product, error) {
	return readRows(ctx, db,
		`SELECT id, merchant_id, name, price, image, stock, status, category_id, deleted_at
		 FROM products`,
		func(rows *sql.Rows) (product, error) {
			var p product
			err := rows.Scan(&p.ID, &p.MerchantID, &p.Name, &p.Price, &p.Image,
				&p.Stock, &p.Status, &p.CategoryID, &p.DeletedAt)
			return p, err
		})
}

func readVariants(ctx context.Context, db *sql.DB) ([]variant, error) {
	return readRows(ctx, db,
		`SELECT id, merchant_id, product_id, name, price, stock FROM product_variants`,
		func(rows *sql.Rows) (variant, error) {
			var v variant
			err := rows.Scan(&v.ID, &v.MerchantID, &v.ProductID, &v.Name, &v.Price, &v.Stock)
			return v, err
		})
}

// insertMerchants copies merchants with their existing key hashes, so API
// keys keep working after the move.
func insertMerchants(ctx context.Context, tx pgx.Tx, merchants []merchant) (int, error) {
	return insertEach(ctx, tx, merchants, func(m *merchant) (string, []any) {
		return `INSERT INTO merchants (id, name, api_key_hash, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO NOTHING`,
			[]any{m.ID, m.Name, m.APIKeyHash, parseTime(m.CreatedAt)}
	})
}

func insertCategories(ctx context.Context, tx pgx.Tx, categories []category) (int, error) {
	return insertEach(ctx, tx, categories, func(c *category) (string, []any) {
		return `INSERT INTO categories (id, merchant_id, name)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO NOTHING`,
			[]any{c.ID, c.MerchantID, c.Name}
	})
}

func insertProducts(ctx context.Context, tx pgx.Tx, products []product) (int, error) {
	return insertEach(ctx, tx, products, func(p *product) (string, []any) {
		return `INSERT INTO products (id, merchant_id, name, price, image, stock, status, category_id, deleted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (merchant_id, id) DO NOTHING`,
			[]any{p.ID, p.MerchantID, p.Name, p.Price, p.Image, p.Stock, p.Status,
				nullStr(p.CategoryID), parseNullableTime(p.DeletedAt)}
	})
}

func insertVariants(ctx context.Context, tx pgx.Tx, variants []variant) (int, error) {
	return insertEach(ctx, tx, variants, func(v *variant) (string, []any) {
		return `INSERT INTO product_variants (id, merchant_id, product_id, name, price, stock)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (merchant_id, id) DO NOTHING`,
			[]any{v.ID, v.MerchantID, v.ProductID, v.Name, v.Price, v.Stock}
	})
}
