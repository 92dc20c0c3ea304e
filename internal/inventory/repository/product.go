package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/pkg/database"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
)

const productColumns = `id, sku, name, category, temp_min, temp_max, controlled, created_at`

// ProductRepository handles products and their certifications
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a product. A duplicate SKU surfaces as a Conflict error.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	query := `
		INSERT INTO products (id, sku, name, category, temp_min, temp_max, controlled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.Querier(ctx).QueryRowxContext(ctx, query,
		p.ID, p.SKU, p.Name, p.Category, p.TempMin, p.TempMax, p.Controlled,
	).Scan(&p.CreatedAt)
	return database.Translate(err, "failed to create product")
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err := r.db.Querier(ctx).GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("product")
		}
		return nil, err
	}
	return &p, nil
}

// GetBySKU gets a product by its business key
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1`
	if err := r.db.Querier(ctx).GetContext(ctx, &p, query, sku); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("product")
		}
		return nil, err
	}
	return &p, nil
}

// List returns products ordered by name, optionally restricted to filter.IDs.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []interface{}{}

	if len(filter.IDs) > 0 {
		ids := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			ids[i] = id.String()
		}
		query += ` WHERE id = ANY($1::uuid[])`
		args = append(args, pq.Array(ids))
	}
	query += ` ORDER BY name, sku`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	products := []domain.Product{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}
	return products, nil
}

// Delete removes a product. Products still referenced by lots are a Conflict.
func (r *ProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.db.Querier(ctx), "products", "product", id)
}

// AddCertification creates a certification and attaches it to the product.
func (r *ProductRepository) AddCertification(ctx context.Context, productID uuid.UUID, c *domain.Certification) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	q := r.db.Querier(ctx)

	if _, err := q.ExecContext(ctx,
		`INSERT INTO certifications (id, authority, type, valid_until) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Authority, string(c.Type), dateOnly(c.ValidUntil),
	); err != nil {
		return database.Translate(err, "failed to create certification")
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO product_certifications (product_id, certification_id) VALUES ($1, $2)`,
		productID, c.ID,
	); err != nil {
		return database.Translate(err, "failed to attach certification")
	}
	return nil
}

// ListCertifications lists the certifications attached to a product, soonest expiring first.
func (r *ProductRepository) ListCertifications(ctx context.Context, productID uuid.UUID) ([]domain.Certification, error) {
	certs := []domain.Certification{}
	query := `
		SELECT c.id, c.authority, c.type, c.valid_until
		FROM certifications c
		JOIN product_certifications pc ON pc.certification_id = c.id
		WHERE pc.product_id = $1
		ORDER BY c.valid_until, c.authority
	`
	if err := r.db.Querier(ctx).SelectContext(ctx, &certs, query, productID); err != nil {
		return nil, err
	}
	return certs, nil
}

// deleteByID deletes one row and maps a missing row to NotFound and a
// still-referenced row to Conflict.
func deleteByID(ctx context.Context, q sqlx.ExecerContext, table, entity string, id uuid.UUID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return database.TranslateDelete(err, entity)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound(entity)
	}
	return nil
}

// dateOnly truncates t to midnight UTC for DATE columns.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
