package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// CatalogService manages products, certifications, warehouses, locations and lots.
type CatalogService struct {
	tx         Transactor
	products   ProductStore
	warehouses WarehouseStore
	lots       LotStore
	cache      DetailCache
	logger     *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(stores Stores, cache DetailCache, log *logger.Logger) *CatalogService {
	return &CatalogService{
		tx:         stores.Tx,
		products:   stores.Products,
		warehouses: stores.Warehouses,
		lots:       stores.Lots,
		cache:      cache,
		logger:     log.WithComponent("catalog"),
	}
}

// Product operations

// CreateProduct creates a product. A duplicate SKU is a Conflict; use
// IngestService for the idempotent path.
func (s *CatalogService) CreateProduct(ctx context.Context, in domain.NewProduct) (*domain.Product, error) {
	p, err := buildProduct(in)
	if err != nil {
		return nil, err
	}

	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.products.Create(ctx, p)
	}); err != nil {
		return nil, err
	}

	s.logger.Info().Str("product_id", p.ID.String()).Str("sku", p.SKU).Msg("product created")
	return p, nil
}

// buildProduct validates the input and normalises its text fields.
func buildProduct(in domain.NewProduct) (*domain.Product, error) {
	p := &domain.Product{
		SKU:        strings.TrimSpace(in.SKU),
		Name:       strings.TrimSpace(in.Name),
		Category:   in.Category,
		TempMin:    in.TempMin,
		TempMax:    in.TempMax,
		Controlled: in.Controlled,
	}
	if p.SKU == "" {
		return nil, apperrors.InvalidField("sku", "is required")
	}
	if p.Name == "" {
		return nil, apperrors.InvalidField("name", "is required")
	}
	if p.TempMin != nil && p.TempMax != nil && *p.TempMin > *p.TempMax {
		return nil, apperrors.InvalidField("temp_min", "must not exceed temp_max")
	}
	return p, nil
}

// GetProduct gets a product by ID
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p *domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.products.GetByID(ctx, id)
		return err
	})
	return p, err
}

// ListProducts lists products, optionally by id with limit/offset paging.
func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperrors.InvalidField("limit", "limit and offset must not be negative")
	}

	var products []domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		products, err = s.products.List(ctx, filter)
		return err
	})
	return products, err
}

// DeleteProduct deletes a product. Products with lots are a Conflict.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.products.Delete(ctx, id)
	}); err != nil {
		return err
	}
	invalidateDetail(ctx, s.cache, id, s.logger)
	return nil
}

// NewCertification is the input for AddCertification.
type NewCertification struct {
	Authority  string
	Type       string
	ValidUntil time.Time
}

// AddCertification creates a certification attached to an existing product.
func (s *CatalogService) AddCertification(ctx context.Context, productID uuid.UUID, in NewCertification) (*domain.Certification, error) {
	certType, err := domain.ParseCertificationType(in.Type)
	if err != nil {
		return nil, err
	}
	authority := strings.TrimSpace(in.Authority)
	if authority == "" {
		return nil, apperrors.InvalidField("authority", "is required")
	}
	if in.ValidUntil.IsZero() {
		return nil, apperrors.InvalidField("valid_until", "is required")
	}

	cert := &domain.Certification{Authority: authority, Type: certType, ValidUntil: in.ValidUntil}
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.products.GetByID(ctx, productID); err != nil {
			return err
		}
		return s.products.AddCertification(ctx, productID, cert)
	}); err != nil {
		return nil, err
	}

	invalidateDetail(ctx, s.cache, productID, s.logger)
	return cert, nil
}

// Warehouse operations

// CreateWarehouse creates a warehouse. Country defaults to the request's country.
func (s *CatalogService) CreateWarehouse(ctx context.Context, w *domain.Warehouse) error {
	raw := w.Country
	if strings.TrimSpace(raw) == "" {
		if c, err := tenant.CountryFrom(ctx); err == nil {
			raw = c.String()
		}
	}
	country, err := tenant.ParseCountry(raw)
	if err != nil {
		return apperrors.InvalidField("country", "must be one of: co, ec, mx, pe")
	}
	w.Country = country.String()
	w.City = strings.TrimSpace(w.City)
	w.Address = strings.TrimSpace(w.Address)
	if w.City == "" || w.Address == "" {
		return apperrors.InvalidField("address", "city and address are required")
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.warehouses.Create(ctx, w)
	})
}

// DeleteWarehouse deletes a warehouse and its locations.
func (s *CatalogService) DeleteWarehouse(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.warehouses.Delete(ctx, id)
	})
}

// CreateLocation creates a slot inside a warehouse
func (s *CatalogService) CreateLocation(ctx context.Context, l *domain.Location) error {
	if l.WarehouseID == uuid.Nil {
		return apperrors.InvalidField("warehouse_id", "is required")
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.warehouses.CreateLocation(ctx, l)
	})
}

// DeleteLocation deletes a location that holds no stock
func (s *CatalogService) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.warehouses.DeleteLocation(ctx, id)
	})
}

// Lot operations

// CreateLot creates a lot of an existing product
func (s *CatalogService) CreateLot(ctx context.Context, lot *domain.Lot) error {
	lot.Code = strings.TrimSpace(lot.Code)
	if lot.Code == "" {
		return apperrors.InvalidField("code", "is required")
	}

	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.products.GetByID(ctx, lot.ProductID); err != nil {
			return err
		}
		return s.lots.Create(ctx, lot)
	}); err != nil {
		return err
	}

	invalidateDetail(ctx, s.cache, lot.ProductID, s.logger)
	return nil
}

// DeleteLot deletes a lot that holds no stock
func (s *CatalogService) DeleteLot(ctx context.Context, id uuid.UUID) error {
	var productID uuid.UUID
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lot, err := s.lots.GetByID(ctx, id)
		if err != nil {
			return err
		}
		productID = lot.ProductID
		return s.lots.Delete(ctx, id)
	}); err != nil {
		return err
	}

	invalidateDetail(ctx, s.cache, productID, s.logger)
	return nil
}
