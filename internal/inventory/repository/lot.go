package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/pkg/database"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
)

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create inserts a lot. The code is unique per product; an unknown product is NotFound.
func (r *LotRepository) Create(ctx context.Context, lot *domain.Lot) error {
	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}

	var expires interface{}
	if lot.ExpiresOn != nil {
		expires = dateOnly(*lot.ExpiresOn)
	}

	query := `
		INSERT INTO lots (id, product_id, code, expires_on)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.Querier(ctx).QueryRowxContext(ctx, query,
		lot.ID, lot.ProductID, lot.Code, expires,
	).Scan(&lot.CreatedAt)
	return database.Translate(err, "failed to create lot")
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lot, error) {
	var lot domain.Lot
	query := `SELECT id, product_id, code, expires_on, created_at FROM lots WHERE id = $1`
	if err := r.db.Querier(ctx).GetContext(ctx, &lot, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// Delete removes a lot. Lots still holding stock are a Conflict.
func (r *LotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.db.Querier(ctx), "lots", "lot", id)
}
