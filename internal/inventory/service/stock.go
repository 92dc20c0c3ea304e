package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/events"
	"github.com/stockflow/inventory-backend/internal/inventory/repository"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// StockService applies stock entries and FEFO depletions to the stock ledger.
type StockService struct {
	tx         Transactor
	lots       LotStore
	warehouses WarehouseStore
	stock      StockStore
	cache      DetailCache
	publisher  *events.InventoryEventPublisher
	logger     *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(stores Stores, cache DetailCache, publisher *events.InventoryEventPublisher, log *logger.Logger) *StockService {
	return &StockService{
		tx:         stores.Tx,
		lots:       stores.Lots,
		warehouses: stores.Warehouses,
		stock:      stores.Stock,
		cache:      cache,
		publisher:  publisher,
		logger:     log.WithComponent("stock"),
	}
}

// StockEntry is the input for ReceiveStock. An empty Status means AVAILABLE.
type StockEntry struct {
	LotID      uuid.UUID
	LocationID uuid.UUID
	Quantity   int64
	Status     string
}

// ReceiveStock adds quantity to the (lot, location, status) record, creating it
// on first entry. Repeated entries accumulate.
func (s *StockService) ReceiveStock(ctx context.Context, in StockEntry) (*domain.StockRecord, error) {
	if in.Quantity <= 0 {
		return nil, apperrors.InvalidField("quantity", "must be greater than zero")
	}
	status, err := domain.ParseStockStatus(in.Status)
	if err != nil {
		return nil, err
	}

	var (
		rec *domain.StockRecord
		lot *domain.Lot
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if lot, err = s.lots.GetByID(ctx, in.LotID); err != nil {
			return err
		}
		if _, err = s.warehouses.GetLocation(ctx, in.LocationID); err != nil {
			return err
		}
		rec, err = s.stock.AddQuantity(ctx, in.LotID, in.LocationID, status, in.Quantity)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stock_id", rec.ID.String()).
		Str("lot_id", rec.LotID.String()).
		Str("status", string(rec.Status)).
		Int64("received", in.Quantity).
		Int64("quantity", rec.Quantity).
		Msg("stock received")

	country, _ := tenant.CountryFrom(ctx)
	s.publisher.PublishStockReceived(ctx, country, rec, in.Quantity)
	invalidateDetail(ctx, s.cache, lot.ProductID, s.logger)
	return rec, nil
}

// DispatchFEFO removes qty units of the product, earliest expiry first.
// It is all or nothing: on InsufficientStock no record changes.
func (s *StockService) DispatchFEFO(ctx context.Context, productID uuid.UUID, qty int64, locationID *uuid.UUID) ([]domain.Consumption, error) {
	if qty <= 0 {
		return nil, apperrors.InvalidField("quantity", "must be greater than zero")
	}

	var plan []domain.Consumption
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.stock.LockProduct(ctx, productID); err != nil {
			return err
		}

		lines, err := s.stock.ListAvailableForUpdate(ctx, productID, locationID)
		if err != nil {
			return err
		}

		plan, err = domain.PlanFEFO(lines, qty)
		if err != nil {
			return err
		}

		var emptied []uuid.UUID
		for _, c := range plan {
			if err := s.stock.SetQuantity(ctx, c.StockID, c.Remaining); err != nil {
				return err
			}
			if c.Remaining == 0 {
				emptied = append(emptied, c.StockID)
			}
		}
		return s.stock.DeleteEmpty(ctx, emptied)
	})
	if err != nil {
		if apperrors.IsInsufficientStock(err) {
			s.logger.Warn().Err(err).Str("product_id", productID.String()).Int64("requested", qty).Msg("dispatch rejected")
		}
		return nil, err
	}

	s.logger.Info().
		Str("product_id", productID.String()).
		Int64("requested", qty).
		Int("records", len(plan)).
		Msg("stock dispatched")

	country, _ := tenant.CountryFrom(ctx)
	s.publisher.PublishStockDispatched(ctx, country, productID, qty, locationID, plan)
	invalidateDetail(ctx, s.cache, productID, s.logger)
	return plan, nil
}

// ExpireStock moves every AVAILABLE record whose lot expired before asOf into the
// EXPIRED record of the same lot and location, merging with it if present.
// FEFO never sees expired stock afterwards.
func (s *StockService) ExpireStock(ctx context.Context, asOf time.Time) ([]repository.ExpiredStock, error) {
	var moved []repository.ExpiredStock
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		expired, err := s.stock.ListExpiredForUpdate(ctx, asOf)
		if err != nil {
			return err
		}
		for _, rec := range expired {
			if rec.Quantity > 0 {
				if _, err := s.stock.AddQuantity(ctx, rec.LotID, rec.LocationID, domain.StatusExpired, rec.Quantity); err != nil {
					return err
				}
			}
			if err := s.stock.Delete(ctx, rec.ID); err != nil {
				return err
			}
		}
		moved = expired
		return nil
	})
	if err != nil {
		return nil, err
	}

	country, _ := tenant.CountryFrom(ctx)
	touched := make(map[uuid.UUID]struct{}, len(moved))
	for _, rec := range moved {
		s.publisher.PublishStockExpired(ctx, country, rec)
		touched[rec.ProductID] = struct{}{}
	}
	for productID := range touched {
		invalidateDetail(ctx, s.cache, productID, s.logger)
	}
	return moved, nil
}
