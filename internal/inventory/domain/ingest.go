package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RowError records why one feed row was not upserted. Row is the spreadsheet
// line number: the header is line 1.
type RowError struct {
	Row     int    `json:"row"`
	SKU     string `json:"sku,omitempty"`
	Message string `json:"message"`
}

// BulkResult is the outcome of one feed. Total always equals Inserted + len(Errors).
type BulkResult struct {
	Total    int        `json:"total"`
	Inserted int        `json:"inserted"`
	Errors   []RowError `json:"errors"`
}

// SupplierAssociation links a product to a supplier's offer. Prices pass through untouched.
type SupplierAssociation struct {
	ProductID    uuid.UUID       `json:"product_id"`
	SupplierSKU  string          `json:"supplier_sku"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	LeadTimeDays int             `json:"lead_time_days"`
	MinLot       int             `json:"min_lot"`
	Active       bool            `json:"active"`
}
