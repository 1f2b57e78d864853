package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/catalog"
)

type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) (*CatalogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &CatalogStore{db: db}, nil
}

func (s *CatalogStore) Categories(ctx context.Context) ([]catalog.Category, error) {
	query := `SELECT id, name, slug, image_url, created_at, updated_at FROM categories ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	out := make([]catalog.Category, 0)
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ImageURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return out, nil
}

func (s *CatalogStore) Category(ctx context.Context, id string) (catalog.Category, error) {
	query := `SELECT id, name, slug, image_url, created_at, updated_at FROM categories WHERE id = $1`
	var c catalog.Category
	err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Slug, &c.ImageURL, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Category{}, fmt.Errorf("%w: category %s", catalog.ErrNotFound, id)
		}
		return catalog.Category{}, fmt.Errorf("failed to query category: %w", err)
	}
	return c, nil
}

func (s *CatalogStore) SaveCategory(ctx context.Context, c catalog.Category) error {
	query := `
		INSERT INTO categories (id, name, slug, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, slug = EXCLUDED.slug, image_url = EXCLUDED.image_url, updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.Slug, c.ImageURL, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

func (s *CatalogStore) DeleteCategory(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, `DELETE FROM categories WHERE id = $1`, "category", id)
}

const productColumns = `
	p.id, p.name, p.slug, p.description, p.category_id, COALESCE(c.name, ''),
	p.price, p.base_grams, p.stock, p.image_urls, p.sizes, p.created_at, p.updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (catalog.Product, error) {
	var (
		p            catalog.Product
		images, size []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.CategoryID, &p.CategoryName,
		&p.Price, &p.BaseGrams, &p.Stock, &images, &size, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return catalog.Product{}, err
	}
	if err := json.Unmarshal(images, &p.ImageURLs); err != nil {
		return catalog.Product{}, fmt.Errorf("decoding image urls of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(size, &p.Sizes); err != nil {
		return catalog.Product{}, fmt.Errorf("decoding sizes of %s: %w", p.ID, err)
	}
	return p, nil
}

// Products lists one category, or every product when categoryID is empty.
func (s *CatalogStore) Products(ctx context.Context, categoryID string) ([]catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE $1 = '' OR p.category_id = $1 ORDER BY p.name`
	rows, err := s.db.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	out := make([]catalog.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return out, nil
}

func (s *CatalogStore) Product(ctx context.Context, id string) (catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Product{}, fmt.Errorf("%w: product %s", catalog.ErrNotFound, id)
		}
		return catalog.Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (s *CatalogStore) SaveProduct(ctx context.Context, p catalog.Product) error {
	images, err := json.Marshal(nonNil(p.ImageURLs))
	if err != nil {
		return fmt.Errorf("encoding image urls: %w", err)
	}
	sizes, err := json.Marshal(nonNil(p.Sizes))
	if err != nil {
		return fmt.Errorf("encoding sizes: %w", err)
	}

	query := `
		INSERT INTO products (id, name, slug, description, category_id, price, base_grams, stock,
			image_urls, sizes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, slug = EXCLUDED.slug, description = EXCLUDED.description,
			category_id = EXCLUDED.category_id, price = EXCLUDED.price, base_grams = EXCLUDED.base_grams,
			stock = EXCLUDED.stock, image_urls = EXCLUDED.image_urls, sizes = EXCLUDED.sizes,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, p.ID, p.Name, p.Slug, p.Description, p.CategoryID, p.Price,
		p.BaseGrams, p.Stock, images, sizes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *CatalogStore) DeleteProduct(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, `DELETE FROM products WHERE id = $1`, "product", id)
}

// DecrementStock records the order in stock_movements and takes the lines out of stock in the
// same transaction. An order already recorded is a no-op; stock never drops below zero.
func (s *CatalogStore) DecrementStock(ctx context.Context, orderID string, lines []catalog.StockLine) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO stock_movements (order_id) VALUES ($1) ON CONFLICT (order_id) DO NOTHING`, orderID)
		if err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}
		if n == 0 {
			return nil
		}

		query := `UPDATE products SET stock = GREATEST(stock - $1, 0), updated_at = NOW() WHERE id = $2`
		for _, l := range lines {
			if _, err := tx.ExecContext(ctx, query, l.Quantity, l.ProductID); err != nil {
				return fmt.Errorf("failed to decrement stock of %s: %w", l.ProductID, err)
			}
		}
		return nil
	})
}

func deleteByID(ctx context.Context, db *sql.DB, query, kind, id string) error {
	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", catalog.ErrNotFound, kind, id)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
