package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/repository"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// The interfaces below are satisfied by the repository package and *database.DB.
// Services depend on them so unit tests can run against an in-memory store.

// Transactor runs fn as one unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProductStore interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddCertification(ctx context.Context, productID uuid.UUID, c *domain.Certification) error
	ListCertifications(ctx context.Context, productID uuid.UUID) ([]domain.Certification, error)
}

type WarehouseStore interface {
	Create(ctx context.Context, w *domain.Warehouse) error
	Delete(ctx context.Context, id uuid.UUID) error
	CreateLocation(ctx context.Context, l *domain.Location) error
	GetLocation(ctx context.Context, id uuid.UUID) (*domain.Location, error)
	DeleteLocation(ctx context.Context, id uuid.UUID) error
}

type LotStore interface {
	Create(ctx context.Context, lot *domain.Lot) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type StockStore interface {
	LockProduct(ctx context.Context, productID uuid.UUID) error
	AddQuantity(ctx context.Context, lotID, locationID uuid.UUID, status domain.StockStatus, qty int64) (*domain.StockRecord, error)
	ListAvailableForUpdate(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID) ([]domain.StockLine, error)
	SetQuantity(ctx context.Context, id uuid.UUID, qty int64) error
	DeleteEmpty(ctx context.Context, ids []uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	TotalAvailable(ctx context.Context, productID uuid.UUID) (int64, error)
	Detailed(ctx context.Context, productID uuid.UUID) ([]domain.DetailedStock, error)
	LocationsWithStock(ctx context.Context, productID uuid.UUID) ([]domain.LocationStock, error)
	LotTotals(ctx context.Context, productID uuid.UUID) ([]domain.LotTotal, error)
	ListExpiredForUpdate(ctx context.Context, asOf time.Time) ([]repository.ExpiredStock, error)
}

// DetailCache holds ProductDetail views per country.
type DetailCache interface {
	Get(ctx context.Context, country tenant.Country, productID uuid.UUID) (*domain.ProductDetail, error)
	Set(ctx context.Context, country tenant.Country, detail *domain.ProductDetail) error
	Invalidate(ctx context.Context, country tenant.Country, productID uuid.UUID) error
}

// SupplierClient forwards supplier-product associations.
type SupplierClient interface {
	CreateAssociation(ctx context.Context, req AssociationRequest) error
}

// AssociationRequest is one association sent to the supplier service.
type AssociationRequest struct {
	SupplierID  uuid.UUID
	Country     tenant.Country
	TraceID     string
	Association domain.SupplierAssociation
}

// Stores groups the persistence dependencies shared by the services.
type Stores struct {
	Tx         Transactor
	Products   ProductStore
	Warehouses WarehouseStore
	Lots       LotStore
	Stock      StockStore
}

// invalidateDetail drops a product's cached detail. Failures only cost staleness until the TTL.
func invalidateDetail(ctx context.Context, cache DetailCache, productID uuid.UUID, log *logger.Logger) {
	if cache == nil {
		return
	}
	country, err := tenant.CountryFrom(ctx)
	if err != nil {
		return
	}
	if err := cache.Invalidate(ctx, country, productID); err != nil {
		log.Warn().Err(err).Str("product_id", productID.String()).Msg("failed to invalidate product detail cache")
	}
}
