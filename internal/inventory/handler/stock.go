package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/service"
	"github.com/stockflow/inventory-backend/pkg/httputil"
	"github.com/stockflow/inventory-backend/pkg/logger"
)

// StockHandler handles stock movement and stock query endpoints
type StockHandler struct {
	stock   Stock
	queries Queries
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(stock Stock, queries Queries, log *logger.Logger) *StockHandler {
	return &StockHandler{
		stock:   stock,
		queries: queries,
		logger:  log,
	}
}

type stockEntryRequest struct {
	LotID      uuid.UUID `json:"lot_id" validate:"required"`
	LocationID uuid.UUID `json:"location_id" validate:"required"`
	Quantity   int64     `json:"quantity" validate:"gt=0"`
	// Status defaults to AVAILABLE.
	Status string `json:"status"`
}

// Receive applies a stock entry
func (h *StockHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req stockEntryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.stock.ReceiveStock(r.Context(), service.StockEntry{
		LotID:      req.LotID,
		LocationID: req.LocationID,
		Quantity:   req.Quantity,
		Status:     req.Status,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, rec)
}

type dispatchRequest struct {
	ProductID  uuid.UUID  `json:"product_id" validate:"required"`
	Quantity   int64      `json:"quantity" validate:"gt=0"`
	LocationID *uuid.UUID `json:"location_id"`
}

type dispatchResponse struct {
	ProductID uuid.UUID            `json:"product_id"`
	Requested int64                `json:"requested"`
	Consumed  []domain.Consumption `json:"consumed"`
}

// Dispatch removes stock earliest expiry first. Insufficient stock is a 409
// and nothing is removed.
func (h *StockHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	plan, err := h.stock.DispatchFEFO(r.Context(), req.ProductID, req.Quantity, req.LocationID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, dispatchResponse{
		ProductID: req.ProductID,
		Requested: req.Quantity,
		Consumed:  plan,
	})
}

type totalResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Available int64     `json:"available"`
}

// Total returns the dispatchable quantity of a product
func (h *StockHandler) Total(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "productID")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	total, err := h.queries.TotalStock(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, totalResponse{ProductID: id, Available: total})
}

// Detailed returns the product's stock by lot and location
func (h *StockHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "productID")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rows, err := h.queries.DetailedStock(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rows)
}

// Locations returns the locations holding the product
func (h *StockHandler) Locations(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "productID")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rows, err := h.queries.LocationsWithStock(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rows)
}
