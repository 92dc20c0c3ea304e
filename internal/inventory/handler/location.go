package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/pkg/httputil"
	"github.com/stockflow/inventory-backend/pkg/logger"
)

// LocationHandler handles warehouse and location endpoints
type LocationHandler struct {
	catalog Catalog
	logger  *logger.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(catalog Catalog, log *logger.Logger) *LocationHandler {
	return &LocationHandler{
		catalog: catalog,
		logger:  log,
	}
}

// Warehouse handlers

type createWarehouseRequest struct {
	// Country defaults to the request's X-Country.
	Country string `json:"country"`
	City    string `json:"city" validate:"required,max=100"`
	Address string `json:"address" validate:"required,max=255"`
}

func (h *LocationHandler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req createWarehouseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	warehouse := domain.Warehouse{Country: req.Country, City: req.City, Address: req.Address}
	if err := h.catalog.CreateWarehouse(r.Context(), &warehouse); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, warehouse)
}

func (h *LocationHandler) DeleteWarehouse(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if err := h.catalog.DeleteWarehouse(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// Location handlers

type createLocationRequest struct {
	WarehouseID uuid.UUID `json:"warehouse_id" validate:"required"`
	Aisle       string    `json:"aisle" validate:"required,max=20"`
	Shelf       string    `json:"shelf" validate:"required,max=20"`
	Slot        string    `json:"slot" validate:"required,max=20"`
}

func (h *LocationHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	location := domain.Location{
		WarehouseID: req.WarehouseID,
		Aisle:       req.Aisle,
		Shelf:       req.Shelf,
		Slot:        req.Slot,
	}
	if err := h.catalog.CreateLocation(r.Context(), &location); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, location)
}

func (h *LocationHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if err := h.catalog.DeleteLocation(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
