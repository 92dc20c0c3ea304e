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

// WarehouseRepository handles warehouses and their locations
type WarehouseRepository struct {
	db *database.DB
}

// NewWarehouseRepository creates a new warehouse repository
func NewWarehouseRepository(db *database.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// Create inserts a warehouse; the (country, city, address) triple is unique.
func (r *WarehouseRepository) Create(ctx context.Context, w *domain.Warehouse) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	_, err := r.db.Querier(ctx).ExecContext(ctx,
		`INSERT INTO warehouses (id, country, city, address) VALUES ($1, $2, $3, $4)`,
		w.ID, w.Country, w.City, w.Address,
	)
	return database.Translate(err, "failed to create warehouse")
}

// Delete removes a warehouse and, by cascade, its locations.
// Fails with Conflict while any of those locations still holds stock.
func (r *WarehouseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.db.Querier(ctx), "warehouses", "warehouse", id)
}

// CreateLocation inserts a location inside an existing warehouse.
func (r *WarehouseRepository) CreateLocation(ctx context.Context, l *domain.Location) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := r.db.Querier(ctx).ExecContext(ctx,
		`INSERT INTO locations (id, warehouse_id, aisle, shelf, slot) VALUES ($1, $2, $3, $4, $5)`,
		l.ID, l.WarehouseID, l.Aisle, l.Shelf, l.Slot,
	)
	return database.Translate(err, "failed to create location")
}

// GetLocation gets a location by ID
func (r *WarehouseRepository) GetLocation(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	var l domain.Location
	query := `SELECT id, warehouse_id, aisle, shelf, slot FROM locations WHERE id = $1`
	if err := r.db.Querier(ctx).GetContext(ctx, &l, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("location")
		}
		return nil, err
	}
	return &l, nil
}

// DeleteLocation removes a location. Locations holding stock are a Conflict.
func (r *WarehouseRepository) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.db.Querier(ctx), "locations", "location", id)
}
