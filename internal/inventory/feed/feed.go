// Package feed reads supplier product feeds: delimited text with a header row.
// It knows the feed's columns and cell formats but nothing about storage.
package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// Column names, as they appear in the header after trimming and lower-casing.
const (
	ColSKU        = "sku"
	ColName       = "nombre"
	ColCategory   = "categoria"
	ColTempMin    = "temp_min"
	ColTempMax    = "temp_max"
	ColControlled = "controlado"
	ColPrice      = "precio"
	ColCurrency   = "moneda"
	ColLeadTime   = "lead_time_dias"
	ColMinLot     = "lote_minimo"
	ColActive     = "activo"
)

// RequiredColumns must all be present in the header.
var RequiredColumns = []string{
	ColSKU, ColName, ColCategory, ColTempMin, ColTempMax, ColControlled,
	ColPrice, ColCurrency, ColLeadTime, ColMinLot, ColActive,
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// Row is one data record keyed by column name. Number is the spreadsheet line:
// the header is 1, the first data row 2.
type Row struct {
	Number int
	Cells  map[string]string
	// Err is set when the record itself could not be read.
	Err error
}

// Get returns the trimmed cell of a column, or "" when the row is short.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r.Cells[col])
}

// Feed is a parsed file.
type Feed struct {
	Dialect Dialect
	Header  []string
	Rows    []Row
}

// Parse reads a whole feed. A header missing any RequiredColumns is a Schema
// error and no row is returned. Undecodable UTF-8 is read as Latin-1, the
// encoding spreadsheet exports fall back to.
func Parse(data []byte, sniffer Sniffer) (*Feed, error) {
	data = bytes.TrimPrefix(data, bom)
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, apperrors.BadRequest("feed is not valid text")
		}
		data = decoded
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperrors.Schema(RequiredColumns)
	}

	dialect, err := sniffer.Sniff(data)
	if err != nil {
		dialect = DefaultDialect
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = dialect.Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rawHeader, err := r.Read()
	if err != nil {
		return nil, apperrors.Schema(RequiredColumns)
	}
	header := make([]string, len(rawHeader))
	present := make(map[string]bool, len(rawHeader))
	for i, h := range rawHeader {
		header[i] = strings.ToLower(strings.TrimSpace(h))
		present[header[i]] = true
	}

	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.Schema(missing)
	}

	f := &Feed{Dialect: dialect, Header: header}
	for number := 2; ; number++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row := Row{Number: number, Cells: make(map[string]string, len(header))}
		if err != nil {
			row.Err = fmt.Errorf("malformed record: %w", err)
			f.Rows = append(f.Rows, row)
			continue
		}
		for i, v := range rec {
			if i < len(header) {
				row.Cells[header[i]] = v
			}
		}
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

// Product converts the row's catalog columns. sku, nombre and categoria are required.
func (r Row) Product() (domain.NewProduct, error) {
	var p domain.NewProduct
	if r.Err != nil {
		return p, r.Err
	}

	var blank []string
	for _, col := range []string{ColSKU, ColName, ColCategory} {
		if r.Get(col) == "" {
			blank = append(blank, col)
		}
	}
	if len(blank) > 0 {
		return p, fmt.Errorf("required fields are blank: %s", strings.Join(blank, ", "))
	}
	p.SKU, p.Name = r.Get(ColSKU), r.Get(ColName)
	category := r.Get(ColCategory)
	p.Category = &category

	var err error
	if p.TempMin, err = ParseFloat(r.Get(ColTempMin)); err != nil {
		return p, fmt.Errorf("%s: %w", ColTempMin, err)
	}
	if p.TempMax, err = ParseFloat(r.Get(ColTempMax)); err != nil {
		return p, fmt.Errorf("%s: %w", ColTempMax, err)
	}
	if p.TempMin != nil && p.TempMax != nil && *p.TempMin > *p.TempMax {
		return p, fmt.Errorf("%s must not exceed %s", ColTempMin, ColTempMax)
	}

	controlled, err := ParseBool(r.Get(ColControlled))
	if err != nil {
		return p, fmt.Errorf("%s: %w", ColControlled, err)
	}
	p.Controlled = controlled != nil && *controlled
	return p, nil
}

// Association builds the supplier offer of the row for an upserted product.
// sku, precio, moneda, lead_time_dias and lote_minimo are required; activo
// defaults to false.
func (r Row) Association(productID uuid.UUID) (domain.SupplierAssociation, error) {
	a := domain.SupplierAssociation{ProductID: productID}
	for _, col := range []string{ColSKU, ColPrice, ColCurrency, ColLeadTime, ColMinLot} {
		if r.Get(col) == "" {
			return a, fmt.Errorf("association field is blank: %s", col)
		}
	}
	a.SupplierSKU = r.Get(ColSKU)
	a.Currency = strings.ToUpper(r.Get(ColCurrency))

	price, err := ParseDecimal(r.Get(ColPrice))
	if err != nil {
		return a, fmt.Errorf("%s: %w", ColPrice, err)
	}
	a.Price = *price

	lead, err := ParseInt(r.Get(ColLeadTime))
	if err != nil {
		return a, fmt.Errorf("%s: %w", ColLeadTime, err)
	}
	a.LeadTimeDays = *lead

	minLot, err := ParseInt(r.Get(ColMinLot))
	if err != nil {
		return a, fmt.Errorf("%s: %w", ColMinLot, err)
	}
	a.MinLot = *minLot

	active, err := ParseBool(r.Get(ColActive))
	if err != nil {
		return a, fmt.Errorf("%s: %w", ColActive, err)
	}
	a.Active = active != nil && *active
	return a, nil
}
