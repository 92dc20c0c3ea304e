package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/events"
	"github.com/stockflow/inventory-backend/internal/inventory/service"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
	"github.com/stockflow/inventory-backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

// harness wires every service to one in-memory country schema.
type harness struct {
	t         *testing.T
	ctx       context.Context
	db        *memDB
	cache     *memCache
	supplier  *fakeSupplier
	publisher *testutil.MockPublisher
	fixtures  *testutil.FixtureFactory

	catalog *service.CatalogService
	stock   *service.StockService
	query   *service.QueryService
	ingest  *service.IngestService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := newMemDB()
	cache := newMemCache()
	supplier := &fakeSupplier{}
	publisher := testutil.NewMockPublisher()
	log := logger.Nop()
	pub := events.New(publisher, log)
	stores := db.stores()

	return &harness{
		t:         t,
		ctx:       tenant.WithCountry(context.Background(), tenant.Colombia),
		db:        db,
		cache:     cache,
		supplier:  supplier,
		publisher: publisher,
		fixtures:  testutil.NewFixtureFactory(),
		catalog:   service.NewCatalogService(stores, cache, log),
		stock:     service.NewStockService(stores, cache, pub, log),
		query:     service.NewQueryService(stores, cache, log),
		ingest:    service.NewIngestService(stores, supplier, pub, service.IngestOptions{Workers: 4}, log),
	}
}

// ingestWith builds an ingestion service over the harness stores with opts.
func (h *harness) ingestWith(opts service.IngestOptions) *service.IngestService {
	log := logger.Nop()
	return service.NewIngestService(h.db.stores(), h.supplier, events.New(h.publisher, log), opts, log)
}

func (h *harness) product(opts ...func(*domain.NewProduct)) *domain.Product {
	h.t.Helper()
	p, err := h.catalog.CreateProduct(h.ctx, h.fixtures.Product(opts...))
	require.NoError(h.t, err)
	return p
}

func (h *harness) location() domain.Location {
	h.t.Helper()
	w := h.fixtures.Warehouse(string(tenant.Colombia))
	require.NoError(h.t, h.catalog.CreateWarehouse(h.ctx, &w))
	l := h.fixtures.Location(w.ID)
	require.NoError(h.t, h.catalog.CreateLocation(h.ctx, &l))
	return l
}

func (h *harness) lot(productID uuid.UUID, expiresOn *time.Time) domain.Lot {
	h.t.Helper()
	lot := h.fixtures.Lot(productID, expiresOn)
	require.NoError(h.t, h.catalog.CreateLot(h.ctx, &lot))
	return lot
}

func (h *harness) receive(lot domain.Lot, loc domain.Location, qty int64, status string) *domain.StockRecord {
	h.t.Helper()
	rec, err := h.stock.ReceiveStock(h.ctx, service.StockEntry{
		LotID: lot.ID, LocationID: loc.ID, Quantity: qty, Status: status,
	})
	require.NoError(h.t, err)
	return rec
}

func (h *harness) total(productID uuid.UUID) int64 {
	h.t.Helper()
	n, err := h.query.TotalStock(h.ctx, productID)
	require.NoError(h.t, err)
	return n
}

func days(n int) *time.Time {
	d := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, n)
	return &d
}
