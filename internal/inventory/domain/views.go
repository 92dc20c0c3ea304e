package domain

import (
	"time"

	"github.com/google/uuid"
)

// DetailedStock is one (lot, location) bucket summed over every status.
type DetailedStock struct {
	LotCode    string     `db:"lot_code" json:"code"`
	ExpiresOn  *time.Time `db:"expires_on" json:"expires_on"`
	LocationID uuid.UUID  `db:"location_id" json:"location_id"`
	Quantity   int64      `db:"quantity" json:"quantity"`
}

// LocationStock is the quantity of a product held at one location.
type LocationStock struct {
	LocationID  uuid.UUID `db:"location_id" json:"location_id"`
	WarehouseID uuid.UUID `db:"warehouse_id" json:"warehouse_id"`
	City        string    `db:"city" json:"city"`
	Aisle       string    `db:"aisle" json:"aisle"`
	Shelf       string    `db:"shelf" json:"shelf"`
	Slot        string    `db:"slot" json:"slot"`
	Quantity    int64     `db:"quantity" json:"quantity"`
}

// LotTotal is a lot with its quantity summed over every location and status.
type LotTotal struct {
	LotID     uuid.UUID  `db:"lot_id" json:"lot_id"`
	Code      string     `db:"code" json:"code"`
	ExpiresOn *time.Time `db:"expires_on" json:"expires_on"`
	Quantity  int64      `db:"quantity" json:"quantity"`
}

// ProductDetail is the denormalised product view served from cache.
// TotalStock spans every status, unlike the AVAILABLE-only stock total.
type ProductDetail struct {
	Product
	Certifications []Certification `json:"certifications"`
	TotalStock     int64           `json:"total_stock"`
	Lots           []LotTotal      `json:"lots"`
}
