// Package handler exposes the inventory services over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/service"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
)

// Catalog is the write side of products, certifications, warehouses,
// locations and lots. *service.CatalogService satisfies it.
type Catalog interface {
	CreateProduct(ctx context.Context, in domain.NewProduct) (*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	AddCertification(ctx context.Context, productID uuid.UUID, in service.NewCertification) (*domain.Certification, error)
	CreateWarehouse(ctx context.Context, w *domain.Warehouse) error
	DeleteWarehouse(ctx context.Context, id uuid.UUID) error
	CreateLocation(ctx context.Context, l *domain.Location) error
	DeleteLocation(ctx context.Context, id uuid.UUID) error
	CreateLot(ctx context.Context, lot *domain.Lot) error
	DeleteLot(ctx context.Context, id uuid.UUID) error
}

// Stock moves quantities. *service.StockService satisfies it.
type Stock interface {
	ReceiveStock(ctx context.Context, in service.StockEntry) (*domain.StockRecord, error)
	DispatchFEFO(ctx context.Context, productID uuid.UUID, qty int64, locationID *uuid.UUID) ([]domain.Consumption, error)
}

// Queries answers stock questions. *service.QueryService satisfies it.
type Queries interface {
	TotalStock(ctx context.Context, productID uuid.UUID) (int64, error)
	DetailedStock(ctx context.Context, productID uuid.UUID) ([]domain.DetailedStock, error)
	LocationsWithStock(ctx context.Context, productID uuid.UUID) ([]domain.LocationStock, error)
	ProductDetail(ctx context.Context, productID uuid.UUID) (*domain.ProductDetail, error)
}

// Ingester processes product feeds. *service.IngestService satisfies it.
type Ingester interface {
	Process(ctx context.Context, req service.IngestRequest) (*domain.BulkResult, error)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperrors.InvalidField(name, "must be a valid UUID")
	}
	return id, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperrors.InvalidField(field, "must be a date like 2026-12-31")
}

func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
