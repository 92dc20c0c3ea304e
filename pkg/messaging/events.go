package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Consumed from the catalog service
	EventBulkUploadRequested = "catalog.products.bulk_upload"

	// Published by the inventory service
	EventStockReceived      = "inventory.stock.received"
	EventStockDispatched    = "inventory.stock.dispatched"
	EventStockExpired       = "inventory.stock.expired"
	EventBulkUploadComplete = "inventory.products.bulk_processed"
)

// Exchange names
const (
	ExchangeCatalogEvents   = "catalog.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Catalog Events

// BulkUploadContext identifies who asked for a bulk upload.
type BulkUploadContext struct {
	Country string `json:"country"`
	TraceID string `json:"trace_id,omitempty"`
}

// BulkUploadRequestedEvent carries a CSV product feed, base64 encoded.
type BulkUploadRequestedEvent struct {
	CSVBase64  string            `json:"csv_base64"`
	SupplierID string            `json:"supplier_id"`
	Filename   string            `json:"filename,omitempty"`
	Ctx        BulkUploadContext `json:"ctx"`
}

// Inventory Events

// StockReceivedEvent is published after a stock entry is applied
type StockReceivedEvent struct {
	Country    string `json:"country"`
	StockID    string `json:"stock_id"`
	LotID      string `json:"lot_id"`
	LocationID string `json:"location_id"`
	Status     string `json:"status"`
	Received   int64  `json:"received"`
	Quantity   int64  `json:"quantity"`
}

// ConsumedStock is one line of a dispatch.
type ConsumedStock struct {
	StockID    string `json:"stock_id"`
	LotID      string `json:"lot_id"`
	LocationID string `json:"location_id"`
	Consumed   int64  `json:"consumed"`
}

// StockDispatchedEvent is published after a FEFO depletion commits
type StockDispatchedEvent struct {
	Country    string          `json:"country"`
	ProductID  string          `json:"product_id"`
	Requested  int64           `json:"requested"`
	LocationID string          `json:"location_id,omitempty"`
	Consumed   []ConsumedStock `json:"consumed"`
}

// StockExpiredEvent is published when the sweeper moves a record to EXPIRED
type StockExpiredEvent struct {
	Country    string    `json:"country"`
	ProductID  string    `json:"product_id"`
	LotID      string    `json:"lot_id"`
	LotCode    string    `json:"lot_code"`
	LocationID string    `json:"location_id"`
	Quantity   int64     `json:"quantity"`
	ExpiresOn  time.Time `json:"expires_on"`
}

// BulkUploadCompletedEvent summarises one processed CSV feed
type BulkUploadCompletedEvent struct {
	Country    string `json:"country"`
	SupplierID string `json:"supplier_id"`
	Filename   string `json:"filename,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
	Total      int    `json:"total"`
	Inserted   int    `json:"inserted"`
	Failed     int    `json:"failed"`
}
