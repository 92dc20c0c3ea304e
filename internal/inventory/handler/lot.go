package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/pkg/httputil"
	"github.com/stockflow/inventory-backend/pkg/logger"
)

// LotHandler handles lot endpoints
type LotHandler struct {
	catalog Catalog
	logger  *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(catalog Catalog, log *logger.Logger) *LotHandler {
	return &LotHandler{
		catalog: catalog,
		logger:  log,
	}
}

type createLotRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Code      string    `json:"code" validate:"required,max=64"`
	// ExpiresOn is omitted for lots that never expire.
	ExpiresOn *string `json:"expires_on"`
}

// Create creates a lot of an existing product
func (h *LotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}
	expiresOn, err := parseOptionalDate("expires_on", req.ExpiresOn)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lot := domain.Lot{ProductID: req.ProductID, Code: req.Code, ExpiresOn: expiresOn}
	if err := h.catalog.CreateLot(r.Context(), &lot); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, lot)
}

// Delete deletes a lot that holds no stock
func (h *LotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if err := h.catalog.DeleteLot(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
