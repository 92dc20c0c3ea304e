package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stockflow/inventory-backend/pkg/httputil"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// Services are the dependencies behind the HTTP surface.
type Services struct {
	Catalog Catalog
	Stock   Stock
	Queries Queries
	Ingest  Ingester
}

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	DefaultCountry tenant.Country
	AllowedOrigins []string
	MaxUploadBytes int64
	// Health reports the state of each dependency for /health.
	Health func(ctx context.Context) map[string]interface{}
}

// NewRouter builds the inventory API.
func NewRouter(svc Services, cfg RouterConfig, log *logger.Logger) http.Handler {
	products := NewProductHandler(svc.Catalog, svc.Queries, svc.Ingest, cfg.MaxUploadBytes, log)
	locations := NewLocationHandler(svc.Catalog, log)
	lots := NewLotHandler(svc.Catalog, log)
	stock := NewStockHandler(svc.Stock, svc.Queries, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", httputil.HeaderRequestID, httputil.HeaderTraceID, httputil.HeaderCountry, HeaderSupplierID},
		ExposedHeaders:   []string{httputil.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httputil.CountryMiddleware(cfg.DefaultCountry))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":  "healthy",
			"service": "inventory-service",
		}
		if cfg.Health != nil {
			for k, v := range cfg.Health(r.Context()) {
				status[k] = v
			}
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.List)
			r.Post("/", products.Create)
			r.Post("/upload-csv", products.UploadCSV)
			r.Get("/{id}", products.Get)
			r.Delete("/{id}", products.Delete)
			r.Get("/{id}/detail", products.Detail)
			r.Post("/{id}/certifications", products.AddCertification)
		})

		r.Post("/warehouses", locations.CreateWarehouse)
		r.Delete("/warehouses/{id}", locations.DeleteWarehouse)
		r.Post("/locations", locations.CreateLocation)
		r.Delete("/locations/{id}", locations.DeleteLocation)

		r.Post("/lots", lots.Create)
		r.Delete("/lots/{id}", lots.Delete)

		r.Route("/stock", func(r chi.Router) {
			r.Post("/entries", stock.Receive)
			r.Post("/dispatch", stock.Dispatch)
			r.Get("/{productID}", stock.Total)
			r.Get("/{productID}/detail", stock.Detailed)
			r.Get("/{productID}/locations", stock.Locations)
		})
	})

	return r
}
