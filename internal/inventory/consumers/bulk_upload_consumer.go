package consumers

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/service"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/messaging"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// QueueBulkUploads is the queue the bulk-upload requests are consumed from.
const QueueBulkUploads = "inventory-service.bulk-uploads"

// Ingester processes one product feed. *service.IngestService satisfies it.
type Ingester interface {
	Process(ctx context.Context, req service.IngestRequest) (*domain.BulkResult, error)
}

// BulkUploadConsumer consumes CSV feeds published by the catalog service.
//
// Delivery is at least once. Requests that can never succeed are logged and
// acked; infrastructure failures are returned so the consumer retries them and
// eventually dead-letters.
type BulkUploadConsumer struct {
	consumer       *messaging.Consumer
	ingest         Ingester
	defaultCountry tenant.Country
	logger         *logger.Logger
}

// NewBulkUploadConsumer creates the queue, binds it and registers the handler.
func NewBulkUploadConsumer(rmq *messaging.RabbitMQ, ingest Ingester, defaultCountry tenant.Country, log *logger.Logger) (*BulkUploadConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueBulkUploads, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeCatalogEvents, messaging.EventBulkUploadRequested); err != nil {
		return nil, err
	}

	c := NewBulkUploadHandler(ingest, defaultCountry, log)
	c.consumer = consumer
	c.Register(consumer)
	return c, nil
}

// NewBulkUploadHandler builds the handler without a broker.
func NewBulkUploadHandler(ingest Ingester, defaultCountry tenant.Country, log *logger.Logger) *BulkUploadConsumer {
	return &BulkUploadConsumer{
		ingest:         ingest,
		defaultCountry: defaultCountry,
		logger:         log.WithComponent("bulk-upload-consumer"),
	}
}

// Register attaches the handler to a consumer.
func (c *BulkUploadConsumer) Register(consumer *messaging.Consumer) {
	consumer.RegisterHandler(messaging.EventBulkUploadRequested, c.HandleBulkUpload)
}

// Start starts consuming messages
func (c *BulkUploadConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// HandleBulkUpload decodes and ingests one feed.
func (c *BulkUploadConsumer) HandleBulkUpload(ctx context.Context, event *messaging.Event) error {
	var data messaging.BulkUploadRequestedEvent
	if err := event.UnmarshalData(&data); err != nil {
		c.logger.Error().Err(err).Str("event_id", event.ID).Msg("discarding undecodable bulk upload")
		return nil
	}

	traceID := firstNonEmpty(data.Ctx.TraceID, event.CorrelationID, event.ID)
	log := c.logger.WithTraceID(traceID)

	req, err := c.request(data, traceID)
	if err != nil {
		log.Error().Err(err).Str("supplier_id", data.SupplierID).Msg("discarding invalid bulk upload")
		return nil
	}
	log = log.WithCountry(req.Country.String())

	log.Info().
		Str("supplier_id", req.SupplierID.String()).
		Str("filename", req.Filename).
		Int("bytes", len(req.Data)).
		Msg("received bulk upload")

	result, err := c.ingest.Process(ctx, req)
	if err != nil {
		if ctx.Err() == nil && isPermanent(err) {
			log.Error().Err(err).Msg("bulk upload rejected")
			return nil
		}
		return fmt.Errorf("bulk upload %s: %w", event.ID, err)
	}

	log.Info().
		Int("total", result.Total).
		Int("inserted", result.Inserted).
		Int("failed", len(result.Errors)).
		Msg("bulk upload done")
	return nil
}

func (c *BulkUploadConsumer) request(data messaging.BulkUploadRequestedEvent, traceID string) (service.IngestRequest, error) {
	req := service.IngestRequest{TraceID: traceID, Filename: data.Filename}

	country := c.defaultCountry
	if raw := strings.TrimSpace(data.Ctx.Country); raw != "" {
		parsed, err := tenant.ParseCountry(raw)
		if err != nil {
			return req, err
		}
		country = parsed
	}
	req.Country = country

	supplierID, err := uuid.Parse(strings.TrimSpace(data.SupplierID))
	if err != nil {
		return req, fmt.Errorf("invalid supplier_id: %w", err)
	}
	req.SupplierID = supplierID

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data.CSVBase64))
	if err != nil {
		return req, fmt.Errorf("invalid csv_base64: %w", err)
	}
	req.Data = raw
	return req, nil
}

// isPermanent reports errors redelivery cannot fix.
func isPermanent(err error) bool {
	return apperrors.IsSchema(err) ||
		apperrors.IsValidation(err) ||
		apperrors.Is(err, apperrors.ErrBadRequest)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
