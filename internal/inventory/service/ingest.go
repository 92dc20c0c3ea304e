package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/events"
	"github.com/stockflow/inventory-backend/internal/inventory/feed"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/messaging"
	"github.com/stockflow/inventory-backend/pkg/tenant"
	"golang.org/x/sync/errgroup"
)

// IngestOptions tunes the bulk ingestion pipeline.
type IngestOptions struct {
	// Workers bounds the goroutines converting rows.
	Workers int
	// RowTimeout bounds one product upsert; exceeding it fails only that row.
	RowTimeout time.Duration
	// SupplierTimeout bounds one supplier association call.
	SupplierTimeout time.Duration
}

// IngestService upserts product feeds into the catalog and forwards each row's
// supplier offer. It keeps no state between feeds.
type IngestService struct {
	tx        Transactor
	products  ProductStore
	supplier  SupplierClient
	publisher *events.InventoryEventPublisher
	sniffer   feed.Sniffer
	opts      IngestOptions
	logger    *logger.Logger
}

// NewIngestService creates a new ingestion service
func NewIngestService(stores Stores, supplier SupplierClient, publisher *events.InventoryEventPublisher, opts IngestOptions, log *logger.Logger) *IngestService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.RowTimeout <= 0 {
		opts.RowTimeout = 30 * time.Second
	}
	if opts.SupplierTimeout <= 0 {
		opts.SupplierTimeout = 10 * time.Second
	}
	return &IngestService{
		tx:        stores.Tx,
		products:  stores.Products,
		supplier:  supplier,
		publisher: publisher,
		sniffer:   feed.NewSniffer(),
		opts:      opts,
		logger:    log.WithComponent("ingest"),
	}
}

// IngestRequest is one feed to process.
type IngestRequest struct {
	Data       []byte
	Country    tenant.Country
	SupplierID uuid.UUID
	TraceID    string
	Filename   string
}

type convertedRow struct {
	row     feed.Row
	product domain.NewProduct
	err     error
}

// Process ingests a feed. A header without the required columns fails the whole
// feed with a Schema error before any row is touched; every other problem is
// confined to its row and reported in the result.
//
// If ctx is cancelled mid-feed, the rows not yet upserted are reported as errors
// and the context error is returned together with the result.
func (s *IngestService) Process(ctx context.Context, req IngestRequest) (*domain.BulkResult, error) {
	if !req.Country.Valid() {
		return nil, apperrors.InvalidField("country", "must be one of: co, ec, mx, pe")
	}
	ctx = tenant.WithCountry(ctx, req.Country)
	log := s.logger.WithCountry(req.Country.String()).WithTraceID(req.TraceID)

	parsed, err := feed.Parse(req.Data, s.sniffer)
	if err != nil {
		log.Warn().Err(err).Str("filename", req.Filename).Msg("feed rejected")
		return nil, err
	}

	rows := s.convert(ctx, parsed.Rows)

	result := &domain.BulkResult{Total: len(rows), Errors: []domain.RowError{}}
	for i, cr := range rows {
		if ctx.Err() != nil {
			return s.cancelled(ctx, result, rows[i:], log)
		}

		if cr.err != nil {
			result.Errors = append(result.Errors, rowError(cr, cr.err))
			continue
		}

		product, err := s.upsertRow(ctx, cr.product)
		if err != nil {
			if ctx.Err() != nil {
				return s.cancelled(ctx, result, rows[i:], log)
			}
			log.Warn().Err(err).Int("row", cr.row.Number).Str("sku", cr.product.SKU).Msg("row upsert failed")
			result.Errors = append(result.Errors, rowError(cr, err))
			continue
		}

		result.Inserted++
		s.associate(ctx, req, cr.row, product, log)
	}

	log.Info().
		Str("supplier_id", req.SupplierID.String()).
		Str("filename", req.Filename).
		Int("total", result.Total).
		Int("inserted", result.Inserted).
		Int("failed", len(result.Errors)).
		Msg("feed processed")

	s.publisher.PublishBulkProcessed(ctx, messaging.BulkUploadCompletedEvent{
		Country:    req.Country.String(),
		SupplierID: req.SupplierID.String(),
		Filename:   req.Filename,
		TraceID:    req.TraceID,
		Total:      result.Total,
		Inserted:   result.Inserted,
		Failed:     len(result.Errors),
	})
	return result, nil
}

// convert parses every row concurrently. Results keep file order.
func (s *IngestService) convert(ctx context.Context, rows []feed.Row) []convertedRow {
	out := make([]convertedRow, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			out[i].row = row
			if gctx.Err() != nil {
				out[i].err = gctx.Err()
				return nil
			}
			out[i].product, out[i].err = row.Product()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// upsertRow returns the product with the row's SKU, creating it when absent.
// A concurrent creator winning the race surfaces as Conflict and is resolved by
// reading the winner back.
func (s *IngestService) upsertRow(ctx context.Context, in domain.NewProduct) (*domain.Product, error) {
	p, err := buildProduct(in)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RowTimeout)
	defer cancel()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.products.GetBySKU(ctx, p.SKU)
		switch {
		case err == nil:
			p = existing
			return nil
		case !apperrors.IsNotFound(err):
			return err
		}
		return s.products.Create(ctx, p)
	})
	if apperrors.IsConflict(err) {
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			p, err = s.products.GetBySKU(ctx, in.SKU)
			return err
		})
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// associate forwards the row's supplier offer. Failures are logged only; the
// product upsert already counted.
func (s *IngestService) associate(ctx context.Context, req IngestRequest, row feed.Row, product *domain.Product, log *logger.Logger) {
	if s.supplier == nil {
		return
	}

	assoc, err := row.Association(product.ID)
	if err != nil {
		log.Warn().Err(err).Int("row", row.Number).Str("sku", product.SKU).Msg("skipping supplier association")
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.SupplierTimeout)
	defer cancel()

	if err := s.supplier.CreateAssociation(callCtx, AssociationRequest{
		SupplierID:  req.SupplierID,
		Country:     req.Country,
		TraceID:     req.TraceID,
		Association: assoc,
	}); err != nil {
		log.Warn().Err(err).
			Int("row", row.Number).
			Str("product_id", product.ID.String()).
			Str("sku", product.SKU).
			Msg("supplier association failed")
	}
}

// cancelled reports every pending row as failed and hands back the context error
// so an at-least-once caller redelivers the feed.
func (s *IngestService) cancelled(ctx context.Context, result *domain.BulkResult, pending []convertedRow, log *logger.Logger) (*domain.BulkResult, error) {
	err := ctx.Err()
	for _, cr := range pending {
		result.Errors = append(result.Errors, rowError(cr, fmt.Errorf("processing cancelled: %w", err)))
	}
	log.Warn().Err(err).Int("pending", len(pending)).Msg("feed processing cancelled")
	return result, err
}

func rowError(cr convertedRow, err error) domain.RowError {
	sku := cr.product.SKU
	if sku == "" {
		sku = cr.row.Get(feed.ColSKU)
	}
	return domain.RowError{Row: cr.row.Number, SKU: sku, Message: err.Error()}
}
