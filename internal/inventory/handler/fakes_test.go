package handler_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/service"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// fakeInventory satisfies every service interface the handlers use. It keeps
// products in memory and records the last call of everything else.
type fakeInventory struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
	err      error

	lastFilter    domain.ProductFilter
	lastCountry   tenant.Country
	lastCert      service.NewCertification
	lastWarehouse domain.Warehouse
	lastLocation  domain.Location
	lastLot       domain.Lot
	lastEntry     service.StockEntry
	lastDispatch  struct {
		productID  uuid.UUID
		qty        int64
		locationID *uuid.UUID
	}
	lastIngest service.IngestRequest
	deleted    []uuid.UUID

	plan   []domain.Consumption
	total  int64
	result *domain.BulkResult
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{products: map[uuid.UUID]domain.Product{}}
}

func (f *fakeInventory) record(ctx context.Context) {
	f.lastCountry, _ = tenant.CountryFrom(ctx)
}

func (f *fakeInventory) CreateProduct(ctx context.Context, in domain.NewProduct) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.products {
		if p.SKU == in.SKU {
			return nil, apperrors.Conflict("a product with this sku already exists")
		}
	}
	p := domain.Product{ID: uuid.New(), SKU: in.SKU, Name: in.Name, Category: in.Category,
		TempMin: in.TempMin, TempMax: in.TempMax, Controlled: in.Controlled}
	f.products[p.ID] = p
	return &p, nil
}

func (f *fakeInventory) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, apperrors.NotFound("product")
	}
	return &p, nil
}

func (f *fakeInventory) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	out := []domain.Product{}
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, f.err
}

func (f *fakeInventory) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeInventory) AddCertification(ctx context.Context, productID uuid.UUID, in service.NewCertification) (*domain.Certification, error) {
	f.lastCert = in
	if f.err != nil {
		return nil, f.err
	}
	certType, err := domain.ParseCertificationType(in.Type)
	if err != nil {
		return nil, err
	}
	return &domain.Certification{ID: uuid.New(), Authority: in.Authority, Type: certType, ValidUntil: in.ValidUntil}, nil
}

func (f *fakeInventory) CreateWarehouse(ctx context.Context, w *domain.Warehouse) error {
	f.record(ctx)
	if w.Country == "" {
		w.Country = f.lastCountry.String()
	}
	w.ID = uuid.New()
	f.lastWarehouse = *w
	return f.err
}

func (f *fakeInventory) DeleteWarehouse(ctx context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeInventory) CreateLocation(ctx context.Context, l *domain.Location) error {
	l.ID = uuid.New()
	f.lastLocation = *l
	return f.err
}

func (f *fakeInventory) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeInventory) CreateLot(ctx context.Context, lot *domain.Lot) error {
	lot.ID = uuid.New()
	f.lastLot = *lot
	return f.err
}

func (f *fakeInventory) DeleteLot(ctx context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeInventory) ReceiveStock(ctx context.Context, in service.StockEntry) (*domain.StockRecord, error) {
	f.lastEntry = in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StockRecord{ID: uuid.New(), LotID: in.LotID, LocationID: in.LocationID,
		Status: domain.StatusAvailable, Quantity: in.Quantity}, nil
}

func (f *fakeInventory) DispatchFEFO(ctx context.Context, productID uuid.UUID, qty int64, locationID *uuid.UUID) ([]domain.Consumption, error) {
	f.lastDispatch.productID, f.lastDispatch.qty, f.lastDispatch.locationID = productID, qty, locationID
	if f.err != nil {
		return nil, f.err
	}
	return f.plan, nil
}

func (f *fakeInventory) TotalStock(ctx context.Context, productID uuid.UUID) (int64, error) {
	return f.total, f.err
}

func (f *fakeInventory) DetailedStock(ctx context.Context, productID uuid.UUID) ([]domain.DetailedStock, error) {
	return []domain.DetailedStock{{LotCode: "L1", Quantity: f.total}}, f.err
}

func (f *fakeInventory) LocationsWithStock(ctx context.Context, productID uuid.UUID) ([]domain.LocationStock, error) {
	return []domain.LocationStock{{City: "Lima", Quantity: f.total}}, f.err
}

func (f *fakeInventory) ProductDetail(ctx context.Context, productID uuid.UUID) (*domain.ProductDetail, error) {
	p, err := f.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &domain.ProductDetail{Product: *p, TotalStock: f.total, Certifications: []domain.Certification{}, Lots: []domain.LotTotal{}}, nil
}

func (f *fakeInventory) Process(ctx context.Context, req service.IngestRequest) (*domain.BulkResult, error) {
	f.lastIngest = req
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.BulkResult{Total: 1, Inserted: 1, Errors: []domain.RowError{}}, nil
}
