// Package domain holds the inventory entities and the pure FEFO allocation rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry. SKU is the immutable business key.
type Product struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SKU        string    `db:"sku" json:"sku"`
	Name       string    `db:"name" json:"name"`
	Category   *string   `db:"category" json:"category,omitempty"`
	TempMin    *float64  `db:"temp_min" json:"temp_min,omitempty"`
	TempMax    *float64  `db:"temp_max" json:"temp_max,omitempty"`
	Controlled bool      `db:"controlled" json:"controlled"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// NewProduct is the input for creating a product.
type NewProduct struct {
	SKU        string
	Name       string
	Category   *string
	TempMin    *float64
	TempMax    *float64
	Controlled bool
}

type Certification struct {
	ID         uuid.UUID         `db:"id" json:"id"`
	Authority  string            `db:"authority" json:"authority"`
	Type       CertificationType `db:"type" json:"type"`
	ValidUntil time.Time         `db:"valid_until" json:"valid_until"`
}

type Warehouse struct {
	ID      uuid.UUID `db:"id" json:"id"`
	Country string    `db:"country" json:"country"`
	City    string    `db:"city" json:"city"`
	Address string    `db:"address" json:"address"`
}

type Location struct {
	ID          uuid.UUID `db:"id" json:"id"`
	WarehouseID uuid.UUID `db:"warehouse_id" json:"warehouse_id"`
	Aisle       string    `db:"aisle" json:"aisle"`
	Shelf       string    `db:"shelf" json:"shelf"`
	Slot        string    `db:"slot" json:"slot"`
}

// Lot is a batch of one product sharing an expiry date. A nil ExpiresOn never expires.
type Lot struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ProductID uuid.UUID  `db:"product_id" json:"product_id"`
	Code      string     `db:"code" json:"code"`
	ExpiresOn *time.Time `db:"expires_on" json:"expires_on,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// StockRecord is the quantity of a lot held at a location in a status.
// At most one exists per (lot, location, status).
type StockRecord struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	LotID      uuid.UUID   `db:"lot_id" json:"lot_id"`
	LocationID uuid.UUID   `db:"location_id" json:"location_id"`
	Status     StockStatus `db:"status" json:"status"`
	Quantity   int64       `db:"quantity" json:"quantity"`
	ReceivedAt time.Time   `db:"received_at" json:"received_at"`
}

// ProductFilter narrows ListProducts. An empty IDs slice means every product.
type ProductFilter struct {
	IDs    []uuid.UUID
	Limit  int
	Offset int
}
