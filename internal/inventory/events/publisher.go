package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/repository"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/messaging"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// Publisher is the transport the inventory events go out on.
// *messaging.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes inventory-related events.
// A nil *InventoryEventPublisher drops every event.
type InventoryEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}
	return New(publisher, log), nil
}

// New wraps an existing transport.
func New(publisher Publisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishStockReceived publishes a stock received event
func (p *InventoryEventPublisher) PublishStockReceived(ctx context.Context, country tenant.Country, rec *domain.StockRecord, received int64) {
	if p == nil {
		return
	}

	data := messaging.StockReceivedEvent{
		Country:    country.String(),
		StockID:    rec.ID.String(),
		LotID:      rec.LotID.String(),
		LocationID: rec.LocationID.String(),
		Status:     string(rec.Status),
		Received:   received,
		Quantity:   rec.Quantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("stock_id", data.StockID).Msg("failed to publish stock received event")
	}
}

// PublishStockDispatched publishes a FEFO dispatch with its consumption lines
func (p *InventoryEventPublisher) PublishStockDispatched(ctx context.Context, country tenant.Country, productID uuid.UUID, requested int64, locationID *uuid.UUID, plan []domain.Consumption) {
	if p == nil {
		return
	}

	data := messaging.StockDispatchedEvent{
		Country:   country.String(),
		ProductID: productID.String(),
		Requested: requested,
		Consumed:  make([]messaging.ConsumedStock, 0, len(plan)),
	}
	if locationID != nil {
		data.LocationID = locationID.String()
	}
	for _, c := range plan {
		data.Consumed = append(data.Consumed, messaging.ConsumedStock{
			StockID:    c.StockID.String(),
			LotID:      c.LotID.String(),
			LocationID: c.LocationID.String(),
			Consumed:   c.Consumed,
		})
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockDispatched, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", data.ProductID).Msg("failed to publish stock dispatched event")
	}
}

// PublishStockExpired publishes one record moved to EXPIRED by the sweeper
func (p *InventoryEventPublisher) PublishStockExpired(ctx context.Context, country tenant.Country, rec repository.ExpiredStock) {
	if p == nil {
		return
	}

	data := messaging.StockExpiredEvent{
		Country:    country.String(),
		ProductID:  rec.ProductID.String(),
		LotID:      rec.LotID.String(),
		LotCode:    rec.LotCode,
		LocationID: rec.LocationID.String(),
		Quantity:   rec.Quantity,
		ExpiresOn:  rec.ExpiresOn,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockExpired, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", data.LotID).Msg("failed to publish stock expired event")
	}
}

// PublishBulkProcessed publishes the counters of a processed CSV feed
func (p *InventoryEventPublisher) PublishBulkProcessed(ctx context.Context, data messaging.BulkUploadCompletedEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventBulkUploadComplete, data); err != nil {
		p.logger.Error().Err(err).Str("supplier_id", data.SupplierID).Msg("failed to publish bulk processed event")
	}
}
