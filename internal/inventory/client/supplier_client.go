package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stockflow/inventory-backend/internal/inventory/service"
	"github.com/stockflow/inventory-backend/pkg/logger"
)

// SupplierClient provides an HTTP client for the supplier service
type SupplierClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewSupplierClient creates a new supplier service client
func NewSupplierClient(baseURL string, timeout time.Duration, log *logger.Logger) *SupplierClient {
	return &SupplierClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("supplier-client"),
	}
}

// CreateAssociation posts one supplier-product association. The country and
// trace id travel as headers so the supplier service stores it in the same
// country and logs under the same trace.
func (c *SupplierClient) CreateAssociation(ctx context.Context, req service.AssociationRequest) error {
	payload, err := json.Marshal(req.Association)
	if err != nil {
		return fmt.Errorf("failed to marshal association: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/suppliers/%s/products", c.baseURL, req.SupplierID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Country", req.Country.String())
	if req.TraceID != "" {
		httpReq.Header.Set("X-Trace-ID", req.TraceID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call supplier service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("supplier_id", req.SupplierID.String()).
			Str("product_id", req.Association.ProductID.String()).
			Str("body", string(body)).
			Msg("supplier association rejected")
		return fmt.Errorf("supplier association failed with status %d", resp.StatusCode)
	}

	c.logger.Debug().
		Str("supplier_id", req.SupplierID.String()).
		Str("product_id", req.Association.ProductID.String()).
		Msg("supplier association created")
	return nil
}
