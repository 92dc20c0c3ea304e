package testutil

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
)

// FeedHeader is the column set of a complete product feed, in file order.
var FeedHeader = []string{
	"sku", "nombre", "categoria", "temp_min", "temp_max", "controlado",
	"precio", "moneda", "lead_time_dias", "lote_minimo", "activo",
}

// FeedRowFixture is one line of a product feed, every cell as written in the file.
type FeedRowFixture struct {
	SKU        string
	Name       string
	Category   string
	TempMin    string
	TempMax    string
	Controlled string
	Price      string
	Currency   string
	LeadTime   string
	MinLot     string
	Active     string
}

func (r FeedRowFixture) cells() []string {
	return []string{
		r.SKU, r.Name, r.Category, r.TempMin, r.TempMax, r.Controlled,
		r.Price, r.Currency, r.LeadTime, r.MinLot, r.Active,
	}
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Product creates a product input with a unique SKU
func (f *FixtureFactory) Product(opts ...func(*domain.NewProduct)) domain.NewProduct {
	seq := f.nextSeq()
	p := domain.NewProduct{
		SKU:      fmt.Sprintf("SKU-%04d", seq),
		Name:     fmt.Sprintf("Vaccine %d", seq),
		Category: PtrString("vaccines"),
		TempMin:  PtrFloat(2),
		TempMax:  PtrFloat(8),
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithSKU overrides the product SKU
func WithSKU(sku string) func(*domain.NewProduct) {
	return func(p *domain.NewProduct) {
		p.SKU = sku
	}
}

// Controlled marks the product as a controlled substance
func Controlled() func(*domain.NewProduct) {
	return func(p *domain.NewProduct) {
		p.Controlled = true
	}
}

// Warehouse creates a warehouse with a unique address
func (f *FixtureFactory) Warehouse(country string) domain.Warehouse {
	seq := f.nextSeq()
	return domain.Warehouse{
		ID:      uuid.New(),
		Country: country,
		City:    "Bogota",
		Address: fmt.Sprintf("Calle %d # 10-20", seq),
	}
}

// Location creates a location with a unique slot in the warehouse
func (f *FixtureFactory) Location(warehouseID uuid.UUID) domain.Location {
	seq := f.nextSeq()
	return domain.Location{
		ID:          uuid.New(),
		WarehouseID: warehouseID,
		Aisle:       "A",
		Shelf:       "1",
		Slot:        fmt.Sprintf("%02d", seq),
	}
}

// Lot creates a lot of the product; a nil expiry never expires.
func (f *FixtureFactory) Lot(productID uuid.UUID, expiresOn *time.Time) domain.Lot {
	seq := f.nextSeq()
	return domain.Lot{
		ID:        uuid.New(),
		ProductID: productID,
		Code:      fmt.Sprintf("LOT-%04d", seq),
		ExpiresOn: expiresOn,
	}
}

// FeedRow creates a valid feed line with a unique SKU
func (f *FixtureFactory) FeedRow(opts ...func(*FeedRowFixture)) FeedRowFixture {
	seq := f.nextSeq()
	row := FeedRowFixture{
		SKU:        fmt.Sprintf("SKU-%04d", seq),
		Name:       fmt.Sprintf("Insulina %d", seq),
		Category:   "biologicos",
		TempMin:    "2",
		TempMax:    "8",
		Controlled: "no",
		Price:      "12.50",
		Currency:   "COP",
		LeadTime:   "5",
		MinLot:     "10",
		Active:     "si",
	}
	for _, opt := range opts {
		opt(&row)
	}
	return row
}

// CSVFeed builds a product feed file.
type CSVFeed struct {
	Delimiter string
	Header    []string
	Rows      [][]string
	BOM       bool
}

// NewCSVFeed starts a comma separated feed with the full header
func NewCSVFeed(rows ...FeedRowFixture) *CSVFeed {
	feed := &CSVFeed{Delimiter: ",", Header: FeedHeader}
	for _, r := range rows {
		feed.Rows = append(feed.Rows, r.cells())
	}
	return feed
}

// Raw appends a line verbatim, split into cells
func (c *CSVFeed) Raw(cells ...string) *CSVFeed {
	c.Rows = append(c.Rows, cells)
	return c
}

// Bytes renders the feed. Cells are written unquoted.
func (c *CSVFeed) Bytes() []byte {
	var buf bytes.Buffer
	if c.BOM {
		buf.WriteString("\ufeff")
	}
	buf.WriteString(strings.Join(c.Header, c.Delimiter))
	buf.WriteString("\n")
	for _, row := range c.Rows {
		buf.WriteString(strings.Join(row, c.Delimiter))
		buf.WriteString("\n")
	}
	return buf.Bytes()
}
