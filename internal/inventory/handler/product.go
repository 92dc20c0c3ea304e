package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/service"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
	"github.com/stockflow/inventory-backend/pkg/httputil"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// HeaderSupplierID names the supplier a CSV upload belongs to.
const HeaderSupplierID = "X-Supplier-ID"

// ProductHandler handles product endpoints
type ProductHandler struct {
	catalog        Catalog
	queries        Queries
	ingest         Ingester
	maxUploadBytes int64
	logger         *logger.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(catalog Catalog, queries Queries, ingest Ingester, maxUploadBytes int64, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		catalog:        catalog,
		queries:        queries,
		ingest:         ingest,
		maxUploadBytes: maxUploadBytes,
		logger:         log,
	}
}

type createProductRequest struct {
	SKU        string   `json:"sku" validate:"required,max=64"`
	Name       string   `json:"name" validate:"required,max=255"`
	Category   *string  `json:"category" validate:"omitempty,max=100"`
	TempMin    *float64 `json:"temp_min"`
	TempMax    *float64 `json:"temp_max"`
	Controlled bool     `json:"controlled"`
}

// Create creates a product. A duplicate SKU is a 409.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), domain.NewProduct{
		SKU:        req.SKU,
		Name:       req.Name,
		Category:   req.Category,
		TempMin:    req.TempMin,
		TempMax:    req.TempMax,
		Controlled: req.Controlled,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, product)
}

// List lists products, optionally restricted to ?ids=a,b and paged with
// ?limit= and ?offset=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter domain.ProductFilter

	if raw := strings.TrimSpace(q.Get("ids")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				httputil.Error(w, apperrors.InvalidField("ids", "must be a comma separated list of UUIDs"))
				return
			}
			filter.IDs = append(filter.IDs, id)
		}
	}

	var err error
	if filter.Limit, err = intQuery(q.Get("limit")); err != nil {
		httputil.Error(w, apperrors.InvalidField("limit", "must be a non-negative integer"))
		return
	}
	if filter.Offset, err = intQuery(q.Get("offset")); err != nil {
		httputil.Error(w, apperrors.InvalidField("offset", "must be a non-negative integer"))
		return
	}

	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, products, &httputil.Meta{
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Count:  len(products),
	})
}

func intQuery(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.ErrValidation
	}
	return n, nil
}

// Get gets a product by ID
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, product)
}

// Detail returns the cached product view with certifications and lot totals.
func (h *ProductHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.queries.ProductDetail(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, detail)
}

// Delete deletes a product without lots
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

type addCertificationRequest struct {
	Authority  string `json:"authority" validate:"required,max=255"`
	Type       string `json:"type" validate:"required"`
	ValidUntil string `json:"valid_until" validate:"required"`
}

// AddCertification attaches a certification to a product
func (h *ProductHandler) AddCertification(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req addCertificationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}
	validUntil, err := parseDate("valid_until", req.ValidUntil)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	cert, err := h.catalog.AddCertification(r.Context(), id, service.NewCertification{
		Authority:  req.Authority,
		Type:       req.Type,
		ValidUntil: validUntil,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, cert)
}

// UploadCSV ingests a product feed sent as the multipart field "file".
// The supplier comes from the X-Supplier-ID header.
func (h *ProductHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	supplierID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderSupplierID)))
	if err != nil {
		httputil.Error(w, apperrors.InvalidField("supplier_id", "X-Supplier-ID must be a valid UUID"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httputil.Error(w, apperrors.BadRequest("file too large or invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.Error(w, apperrors.BadRequest("missing file in request"))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		httputil.Error(w, apperrors.InvalidField("file", "must be a .csv file"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.Error(w, apperrors.BadRequest("failed to read uploaded file"))
		return
	}

	country, err := tenant.CountryFrom(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.ingest.Process(r.Context(), service.IngestRequest{
		Data:       data,
		Country:    country,
		SupplierID: supplierID,
		TraceID:    httputil.GetTraceID(r.Context()),
		Filename:   header.Filename,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}
