package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/repository"
	"github.com/stockflow/inventory-backend/internal/inventory/service"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// memState is the whole database of one country.
type memState struct {
	products   map[uuid.UUID]domain.Product
	certs      map[uuid.UUID][]domain.Certification
	warehouses map[uuid.UUID]domain.Warehouse
	locations  map[uuid.UUID]domain.Location
	lots       map[uuid.UUID]domain.Lot
	stock      map[uuid.UUID]domain.StockRecord
}

func newMemState() *memState {
	return &memState{
		products:   map[uuid.UUID]domain.Product{},
		certs:      map[uuid.UUID][]domain.Certification{},
		warehouses: map[uuid.UUID]domain.Warehouse{},
		locations:  map[uuid.UUID]domain.Location{},
		lots:       map[uuid.UUID]domain.Lot{},
		stock:      map[uuid.UUID]domain.StockRecord{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.certs {
		c.certs[k] = append([]domain.Certification(nil), v...)
	}
	for k, v := range s.warehouses {
		c.warehouses[k] = v
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.lots {
		c.lots[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	return c
}

type memTxKey struct{}

// memDB is an in-memory stand-in for the country schemas. Transactions
// snapshot the state and restore it when fn fails, and are serialised, which
// is at least as strong as the advisory and row locks they stand in for.
type memDB struct {
	txMu    sync.Mutex
	mu      sync.Mutex
	st      *memState
	clock   time.Time
	txCount int

	// Fault injection.
	failSetQuantityAfter int // fail the Nth SetQuantity call when > 0
	setQuantityCalls     int
	// staleSKU makes the next GetBySKU for it miss, as a reader racing a
	// concurrent creator would.
	staleSKU string
	// slowSKU makes every GetBySKU for it wait until its context ends.
	slowSKU string
}

func newMemDB() *memDB {
	return &memDB{st: newMemState(), clock: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func (m *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.st.clone()
	m.txCount++
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// tick returns a strictly increasing timestamp so receipts are ordered.
func (m *memDB) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

// snapshot copies the current state for equality assertions.
func (m *memDB) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.clone()
}

func (m *memDB) stores() service.Stores {
	return service.Stores{
		Tx:         m,
		Products:   memProducts{m},
		Warehouses: memWarehouses{m},
		Lots:       memLots{m},
		Stock:      memStock{m},
	}
}

// Products

type memProducts struct{ db *memDB }

func (r memProducts) Create(ctx context.Context, p *domain.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.st.products {
		if existing.SKU == p.SKU {
			return apperrors.Conflict("a product with this sku already exists")
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = r.db.tick()
	r.db.st.products[p.ID] = *p
	return nil
}

func (r memProducts) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.st.products[id]
	if !ok {
		return nil, apperrors.NotFound("product")
	}
	return &p, nil
}

func (r memProducts) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	r.db.mu.Lock()
	if r.db.slowSKU != "" && r.db.slowSKU == sku {
		r.db.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer r.db.mu.Unlock()
	if r.db.staleSKU != "" && r.db.staleSKU == sku {
		r.db.staleSKU = ""
		return nil, apperrors.NotFound("product")
	}
	for _, p := range r.db.st.products {
		if p.SKU == sku {
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("product")
}

func (r memProducts) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range filter.IDs {
		want[id] = true
	}
	out := []domain.Product{}
	for _, p := range r.db.st.products {
		if len(want) == 0 || want[p.ID] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].SKU < out[j].SKU
	})
	if filter.Offset > 0 {
		out = out[min(filter.Offset, len(out)):]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r memProducts) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.st.products[id]; !ok {
		return apperrors.NotFound("product")
	}
	for _, l := range r.db.st.lots {
		if l.ProductID == id {
			return apperrors.Conflict("product is still referenced by lots")
		}
	}
	delete(r.db.st.products, id)
	delete(r.db.st.certs, id)
	return nil
}

func (r memProducts) AddCertification(ctx context.Context, productID uuid.UUID, c *domain.Certification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.st.products[productID]; !ok {
		return apperrors.NotFound("product")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.db.st.certs[productID] = append(r.db.st.certs[productID], *c)
	return nil
}

func (r memProducts) ListCertifications(ctx context.Context, productID uuid.UUID) ([]domain.Certification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := append([]domain.Certification{}, r.db.st.certs[productID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ValidUntil.Before(out[j].ValidUntil) })
	return out, nil
}

// Warehouses and locations

type memWarehouses struct{ db *memDB }

func (r memWarehouses) Create(ctx context.Context, w *domain.Warehouse) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.st.warehouses {
		if e.Country == w.Country && e.City == w.City && e.Address == w.Address {
			return apperrors.Conflict("a warehouse already exists at this address")
		}
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	r.db.st.warehouses[w.ID] = *w
	return nil
}

func (r memWarehouses) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.st.warehouses[id]; !ok {
		return apperrors.NotFound("warehouse")
	}
	for locID, l := range r.db.st.locations {
		if l.WarehouseID != id {
			continue
		}
		for _, s := range r.db.st.stock {
			if s.LocationID == locID {
				return apperrors.Conflict("location is still referenced by stock_records")
			}
		}
	}
	for locID, l := range r.db.st.locations {
		if l.WarehouseID == id {
			delete(r.db.st.locations, locID)
		}
	}
	delete(r.db.st.warehouses, id)
	return nil
}

func (r memWarehouses) CreateLocation(ctx context.Context, l *domain.Location) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.st.warehouses[l.WarehouseID]; !ok {
		return apperrors.NotFound("warehouse")
	}
	for _, e := range r.db.st.locations {
		if e.WarehouseID == l.WarehouseID && e.Aisle == l.Aisle && e.Shelf == l.Shelf && e.Slot == l.Slot {
			return apperrors.Conflict("a location already occupies this aisle, shelf and slot")
		}
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	r.db.st.locations[l.ID] = *l
	return nil
}

func (r memWarehouses) GetLocation(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.st.locations[id]
	if !ok {
		return nil, apperrors.NotFound("location")
	}
	return &l, nil
}

func (r memWarehouses) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.st.locations[id]; !ok {
		return apperrors.NotFound("location")
	}
	for _, s := range r.db.st.stock {
		if s.LocationID == id {
			return apperrors.Conflict("location is still referenced by stock_records")
		}
	}
	delete(r.db.st.locations, id)
	return nil
}

// Lots

type memLots struct{ db *memDB }

func (r memLots) Create(ctx context.Context, lot *domain.Lot) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.st.products[lot.ProductID]; !ok {
		return apperrors.NotFound("product")
	}
	for _, e := range r.db.st.lots {
		if e.ProductID == lot.ProductID && e.Code == lot.Code {
			return apperrors.Conflict("a lot with this code already exists for the product")
		}
	}
	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}
	lot.CreatedAt = r.db.tick()
	r.db.st.lots[lot.ID] = *lot
	return nil
}

func (r memLots) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lot, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.st.lots[id]
	if !ok {
		return nil, apperrors.NotFound("lot")
	}
	return &l, nil
}

func (r memLots) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.st.lots[id]; !ok {
		return apperrors.NotFound("lot")
	}
	for _, s := range r.db.st.stock {
		if s.LotID == id {
			return apperrors.Conflict("lot is still referenced by stock_records")
		}
	}
	delete(r.db.st.lots, id)
	return nil
}

// Stock ledger

type memStock struct{ db *memDB }

func (r memStock) LockProduct(ctx context.Context, productID uuid.UUID) error { return nil }

func (r memStock) AddQuantity(ctx context.Context, lotID, locationID uuid.UUID, status domain.StockStatus, qty int64) (*domain.StockRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, s := range r.db.st.stock {
		if s.LotID == lotID && s.LocationID == locationID && s.Status == status {
			if s.Quantity+qty < 0 {
				return nil, apperrors.InvalidField("quantity", "must not be negative")
			}
			s.Quantity += qty
			r.db.st.stock[id] = s
			return &s, nil
		}
	}
	if qty < 0 {
		return nil, apperrors.InvalidField("quantity", "must not be negative")
	}
	rec := domain.StockRecord{
		ID: uuid.New(), LotID: lotID, LocationID: locationID,
		Status: status, Quantity: qty, ReceivedAt: r.db.tick(),
	}
	r.db.st.stock[rec.ID] = rec
	return &rec, nil
}

func (r memStock) ListAvailableForUpdate(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID) ([]domain.StockLine, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	lines := []domain.StockLine{}
	for _, s := range r.db.st.stock {
		lot := r.db.st.lots[s.LotID]
		if lot.ProductID != productID || s.Status != domain.StatusAvailable {
			continue
		}
		if locationID != nil && s.LocationID != *locationID {
			continue
		}
		lines = append(lines, domain.StockLine{StockRecord: s, ExpiresOn: lot.ExpiresOn})
	}
	domain.SortFEFO(lines)
	return lines, nil
}

var errInjected = errors.New("injected failure")

func (r memStock) SetQuantity(ctx context.Context, id uuid.UUID, qty int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.setQuantityCalls++
	if r.db.failSetQuantityAfter > 0 && r.db.setQuantityCalls >= r.db.failSetQuantityAfter {
		return errInjected
	}
	if qty < 0 {
		return apperrors.InvalidField("quantity", "must not be negative")
	}
	s := r.db.st.stock[id]
	s.Quantity = qty
	r.db.st.stock[id] = s
	return nil
}

func (r memStock) DeleteEmpty(ctx context.Context, ids []uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range ids {
		if s, ok := r.db.st.stock[id]; ok && s.Quantity == 0 {
			delete(r.db.st.stock, id)
		}
	}
	return nil
}

func (r memStock) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.st.stock, id)
	return nil
}

func (r memStock) TotalAvailable(ctx context.Context, productID uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var total int64
	for _, s := range r.db.st.stock {
		if r.db.st.lots[s.LotID].ProductID == productID && s.Status == domain.StatusAvailable {
			total += s.Quantity
		}
	}
	return total, nil
}

func expiryLess(a, b *time.Time) (less, equal bool) {
	switch {
	case a == nil && b == nil:
		return false, true
	case a == nil:
		return false, false
	case b == nil:
		return true, false
	default:
		return a.Before(*b), a.Equal(*b)
	}
}

func (r memStock) Detailed(ctx context.Context, productID uuid.UUID) ([]domain.DetailedStock, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	type key struct {
		code string
		loc  uuid.UUID
	}
	groups := map[key]*domain.DetailedStock{}
	for _, s := range r.db.st.stock {
		lot := r.db.st.lots[s.LotID]
		if lot.ProductID != productID {
			continue
		}
		k := key{lot.Code, s.LocationID}
		if groups[k] == nil {
			groups[k] = &domain.DetailedStock{LotCode: lot.Code, ExpiresOn: lot.ExpiresOn, LocationID: s.LocationID}
		}
		groups[k].Quantity += s.Quantity
	}
	out := []domain.DetailedStock{}
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if less, eq := expiryLess(out[i].ExpiresOn, out[j].ExpiresOn); !eq {
			return less
		}
		if out[i].LotCode != out[j].LotCode {
			return out[i].LotCode < out[j].LotCode
		}
		return out[i].LocationID.String() < out[j].LocationID.String()
	})
	return out, nil
}

func (r memStock) LocationsWithStock(ctx context.Context, productID uuid.UUID) ([]domain.LocationStock, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	groups := map[uuid.UUID]*domain.LocationStock{}
	for _, s := range r.db.st.stock {
		if r.db.st.lots[s.LotID].ProductID != productID {
			continue
		}
		if groups[s.LocationID] == nil {
			loc := r.db.st.locations[s.LocationID]
			groups[s.LocationID] = &domain.LocationStock{
				LocationID: loc.ID, WarehouseID: loc.WarehouseID,
				City:  r.db.st.warehouses[loc.WarehouseID].City,
				Aisle: loc.Aisle, Shelf: loc.Shelf, Slot: loc.Slot,
			}
		}
		groups[s.LocationID].Quantity += s.Quantity
	}
	out := []domain.LocationStock{}
	for _, g := range groups {
		if g.Quantity > 0 {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.City != b.City {
			return a.City < b.City
		}
		if a.Aisle != b.Aisle {
			return a.Aisle < b.Aisle
		}
		if a.Shelf != b.Shelf {
			return a.Shelf < b.Shelf
		}
		return a.Slot < b.Slot
	})
	return out, nil
}

func (r memStock) LotTotals(ctx context.Context, productID uuid.UUID) ([]domain.LotTotal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []domain.LotTotal{}
	for _, lot := range r.db.st.lots {
		if lot.ProductID != productID {
			continue
		}
		t := domain.LotTotal{LotID: lot.ID, Code: lot.Code, ExpiresOn: lot.ExpiresOn}
		for _, s := range r.db.st.stock {
			if s.LotID == lot.ID {
				t.Quantity += s.Quantity
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if less, eq := expiryLess(out[i].ExpiresOn, out[j].ExpiresOn); !eq {
			return less
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r memStock) ListExpiredForUpdate(ctx context.Context, asOf time.Time) ([]repository.ExpiredStock, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	out := []repository.ExpiredStock{}
	for _, s := range r.db.st.stock {
		lot := r.db.st.lots[s.LotID]
		if s.Status != domain.StatusAvailable || lot.ExpiresOn == nil || !lot.ExpiresOn.Before(day) {
			continue
		}
		out = append(out, repository.ExpiredStock{StockRecord: s, ProductID: lot.ProductID, LotCode: lot.Code, ExpiresOn: *lot.ExpiresOn})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresOn.Before(out[j].ExpiresOn) })
	return out, nil
}

// memCache is a DetailCache over raw JSON, so tests can plant corrupt entries.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	setErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, country tenant.Country, productID uuid.UUID) (*domain.ProductDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[repository.DetailKey(country, productID)]
	if !ok {
		return nil, nil
	}
	return repository.DecodeDetail(raw, productID)
}

func (c *memCache) Set(ctx context.Context, country tenant.Country, detail *domain.ProductDetail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	c.entries[repository.DetailKey(country, detail.ID)] = raw
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, country tenant.Country, productID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, repository.DetailKey(country, productID))
	return nil
}

func (c *memCache) put(country tenant.Country, productID uuid.UUID, raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[repository.DetailKey(country, productID)] = []byte(raw)
}

// fakeSupplier records association calls.
type fakeSupplier struct {
	mu     sync.Mutex
	calls  []service.AssociationRequest
	err    error
	onCall func(n int)
	// hang makes every call wait until its context ends.
	hang bool
}

func (f *fakeSupplier) CreateAssociation(ctx context.Context, req service.AssociationRequest) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(n)
	}
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}
