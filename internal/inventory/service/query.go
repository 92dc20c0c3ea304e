package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// QueryService answers the read-side stock questions.
//
// TotalStock counts AVAILABLE stock only, since it answers "how much can be
// dispatched". DetailedStock, LocationsWithStock and ProductDetail report every
// status, since they describe what is physically held.
type QueryService struct {
	tx       Transactor
	products ProductStore
	stock    StockStore
	cache    DetailCache
	logger   *logger.Logger
}

// NewQueryService creates a new query service
func NewQueryService(stores Stores, cache DetailCache, log *logger.Logger) *QueryService {
	return &QueryService{
		tx:       stores.Tx,
		products: stores.Products,
		stock:    stores.Stock,
		cache:    cache,
		logger:   log.WithComponent("query"),
	}
}

// TotalStock returns the AVAILABLE quantity of the product; unknown products hold 0.
func (s *QueryService) TotalStock(ctx context.Context, productID uuid.UUID) (int64, error) {
	var total int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		total, err = s.stock.TotalAvailable(ctx, productID)
		return err
	})
	return total, err
}

// DetailedStock groups the product's stock by lot and location.
func (s *QueryService) DetailedStock(ctx context.Context, productID uuid.UUID) ([]domain.DetailedStock, error) {
	var rows []domain.DetailedStock
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.stock.Detailed(ctx, productID)
		return err
	})
	return rows, err
}

// LocationsWithStock lists the locations holding the product.
func (s *QueryService) LocationsWithStock(ctx context.Context, productID uuid.UUID) ([]domain.LocationStock, error) {
	var rows []domain.LocationStock
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.stock.LocationsWithStock(ctx, productID)
		return err
	})
	return rows, err
}

// ProductDetail returns the product view, read through the detail cache.
// A cache entry that cannot be read counts as a miss and is overwritten; a failed
// cache write is logged and the freshly built view is still returned.
func (s *QueryService) ProductDetail(ctx context.Context, productID uuid.UUID) (*domain.ProductDetail, error) {
	country, err := tenant.CountryFrom(ctx)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithCountry(country.String())

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, country, productID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("product_id", productID.String()).Msg("product detail cache unreadable, rebuilding")
		case cached != nil:
			return cached, nil
		}
	}

	detail, err := s.buildDetail(ctx, productID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, country, detail); err != nil {
			log.Warn().Err(err).Str("product_id", productID.String()).Msg("failed to cache product detail")
		}
	}
	return detail, nil
}

func (s *QueryService) buildDetail(ctx context.Context, productID uuid.UUID) (*domain.ProductDetail, error) {
	detail := &domain.ProductDetail{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		detail.Product = *p

		if detail.Certifications, err = s.products.ListCertifications(ctx, productID); err != nil {
			return err
		}
		if detail.Lots, err = s.stock.LotTotals(ctx, productID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, lot := range detail.Lots {
		detail.TotalStock += lot.Quantity
	}
	return detail, nil
}
