package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/pkg/database"
)

const stockColumns = `s.id, s.lot_id, s.location_id, s.status, s.quantity, s.received_at`

// StockRepository is the stock ledger: one row per (lot, location, status).
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

// LockProduct serialises depletions of one product until the transaction ends.
func (r *StockRepository) LockProduct(ctx context.Context, productID uuid.UUID) error {
	_, err := r.db.Querier(ctx).ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, productID.String())
	return database.Translate(err, "failed to lock product")
}

// AddQuantity creates the record for the triple or adds qty to the existing one.
// The conflict update holds the row lock, so concurrent entries never lose a write.
// received_at keeps the time of the first entry.
func (r *StockRepository) AddQuantity(ctx context.Context, lotID, locationID uuid.UUID, status domain.StockStatus, qty int64) (*domain.StockRecord, error) {
	query := `
		INSERT INTO stock_records (id, lot_id, location_id, status, quantity, received_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (lot_id, location_id, status)
		DO UPDATE SET quantity = stock_records.quantity + EXCLUDED.quantity
		RETURNING id, lot_id, location_id, status, quantity, received_at
	`
	var rec domain.StockRecord
	if err := r.db.Querier(ctx).GetContext(ctx, &rec, query,
		uuid.New(), lotID, locationID, string(status), qty,
	); err != nil {
		return nil, database.Translate(err, "failed to add stock")
	}
	return &rec, nil
}

// ListAvailableForUpdate returns the product's AVAILABLE records in FEFO order
// and row-locks them. locationID narrows the set when non-nil.
func (r *StockRepository) ListAvailableForUpdate(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID) ([]domain.StockLine, error) {
	query := `
		SELECT ` + stockColumns + `, l.expires_on
		FROM stock_records s
		JOIN lots l ON l.id = s.lot_id
		WHERE l.product_id = $1
		  AND s.status = $2
		  AND ($3::uuid IS NULL OR s.location_id = $3::uuid)
		ORDER BY l.expires_on ASC NULLS LAST, s.received_at ASC, s.id ASC
		FOR UPDATE OF s
	`
	var loc interface{}
	if locationID != nil {
		loc = *locationID
	}

	lines := []domain.StockLine{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &lines, query,
		productID, string(domain.StatusAvailable), loc,
	); err != nil {
		return nil, database.Translate(err, "failed to list available stock")
	}
	return lines, nil
}

// SetQuantity overwrites a record's quantity.
func (r *StockRepository) SetQuantity(ctx context.Context, id uuid.UUID, qty int64) error {
	_, err := r.db.Querier(ctx).ExecContext(ctx,
		`UPDATE stock_records SET quantity = $2 WHERE id = $1`, id, qty)
	return database.Translate(err, "failed to update stock")
}

// DeleteEmpty removes the given records that are at zero. Non-zero records are kept.
func (r *StockRepository) DeleteEmpty(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	_, err := r.db.Querier(ctx).ExecContext(ctx,
		`DELETE FROM stock_records WHERE id = ANY($1::uuid[]) AND quantity = 0`, pq.Array(strs))
	return database.Translate(err, "failed to delete empty stock")
}

// Delete removes one record regardless of quantity.
func (r *StockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Querier(ctx).ExecContext(ctx, `DELETE FROM stock_records WHERE id = $1`, id)
	return database.Translate(err, "failed to delete stock")
}

// TotalAvailable sums AVAILABLE stock of the product.
func (r *StockRepository) TotalAvailable(ctx context.Context, productID uuid.UUID) (int64, error) {
	var total int64
	query := `
		SELECT COALESCE(SUM(s.quantity), 0)
		FROM stock_records s
		JOIN lots l ON l.id = s.lot_id
		WHERE l.product_id = $1 AND s.status = $2
	`
	if err := r.db.Querier(ctx).GetContext(ctx, &total, query, productID, string(domain.StatusAvailable)); err != nil {
		return 0, database.Translate(err, "failed to total available stock")
	}
	return total, nil
}

// Detailed groups the product's stock by lot and location over every status.
func (r *StockRepository) Detailed(ctx context.Context, productID uuid.UUID) ([]domain.DetailedStock, error) {
	query := `
		SELECT l.code AS lot_code, l.expires_on, s.location_id, SUM(s.quantity) AS quantity
		FROM stock_records s
		JOIN lots l ON l.id = s.lot_id
		WHERE l.product_id = $1
		GROUP BY l.code, l.expires_on, s.location_id
		ORDER BY l.expires_on ASC NULLS LAST, l.code, s.location_id
	`
	rows := []domain.DetailedStock{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, productID); err != nil {
		return nil, database.Translate(err, "failed to list stock detail")
	}
	return rows, nil
}

// LocationsWithStock lists the locations holding any of the product, every status counted.
func (r *StockRepository) LocationsWithStock(ctx context.Context, productID uuid.UUID) ([]domain.LocationStock, error) {
	query := `
		SELECT loc.id AS location_id, loc.warehouse_id, w.city, loc.aisle, loc.shelf, loc.slot,
		       SUM(s.quantity) AS quantity
		FROM stock_records s
		JOIN lots l ON l.id = s.lot_id
		JOIN locations loc ON loc.id = s.location_id
		JOIN warehouses w ON w.id = loc.warehouse_id
		WHERE l.product_id = $1
		GROUP BY loc.id, loc.warehouse_id, w.city, loc.aisle, loc.shelf, loc.slot
		HAVING SUM(s.quantity) > 0
		ORDER BY w.city, loc.aisle, loc.shelf, loc.slot
	`
	rows := []domain.LocationStock{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, productID); err != nil {
		return nil, database.Translate(err, "failed to list locations with stock")
	}
	return rows, nil
}

// LotTotals sums each of the product's lots over every location and status.
// Lots without stock are listed with zero.
func (r *StockRepository) LotTotals(ctx context.Context, productID uuid.UUID) ([]domain.LotTotal, error) {
	query := `
		SELECT l.id AS lot_id, l.code, l.expires_on, COALESCE(SUM(s.quantity), 0) AS quantity
		FROM lots l
		LEFT JOIN stock_records s ON s.lot_id = l.id
		WHERE l.product_id = $1
		GROUP BY l.id, l.code, l.expires_on
		ORDER BY l.expires_on ASC NULLS LAST, l.code
	`
	rows := []domain.LotTotal{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, productID); err != nil {
		return nil, database.Translate(err, "failed to total lots")
	}
	return rows, nil
}

// ExpiredStock is an AVAILABLE record whose lot expired.
type ExpiredStock struct {
	domain.StockRecord
	ProductID uuid.UUID `db:"product_id"`
	LotCode   string    `db:"lot_code"`
	ExpiresOn time.Time `db:"expires_on"`
}

// ListExpiredForUpdate returns AVAILABLE records whose lot expired before asOf, row-locked.
func (r *StockRepository) ListExpiredForUpdate(ctx context.Context, asOf time.Time) ([]ExpiredStock, error) {
	query := `
		SELECT ` + stockColumns + `, l.product_id, l.code AS lot_code, l.expires_on
		FROM stock_records s
		JOIN lots l ON l.id = s.lot_id
		WHERE s.status = $1 AND l.expires_on < $2
		ORDER BY l.expires_on, s.id
		FOR UPDATE OF s
	`
	rows := []ExpiredStock{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, string(domain.StatusAvailable), dateOnly(asOf)); err != nil {
		return nil, database.Translate(err, "failed to list expired stock")
	}
	return rows, nil
}
