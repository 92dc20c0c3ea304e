package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stockflow/inventory-backend/internal/inventory/client"
	"github.com/stockflow/inventory-backend/internal/inventory/consumers"
	"github.com/stockflow/inventory-backend/internal/inventory/events"
	"github.com/stockflow/inventory-backend/internal/inventory/handler"
	"github.com/stockflow/inventory-backend/internal/inventory/repository"
	"github.com/stockflow/inventory-backend/internal/inventory/service"
	"github.com/stockflow/inventory-backend/pkg/config"
	"github.com/stockflow/inventory-backend/pkg/database"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/messaging"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	defaultCountry, err := tenant.ParseCountry(cfg.Inventory.DefaultCountry)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid inventory.default_country")
	}

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		// The cache is read-through: the service still answers from PostgreSQL.
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, product detail cache degraded")
	}
	pingCancel()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	if err := rmq.DeclareDeadLetterQueue("inventory-service"); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	// Initialize event publisher
	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	stores := service.Stores{
		Tx:         db,
		Products:   repository.NewProductRepository(db),
		Warehouses: repository.NewWarehouseRepository(db),
		Lots:       repository.NewLotRepository(db),
		Stock:      repository.NewStockRepository(db),
	}
	detailCache := repository.NewDetailCache(redisClient, cfg.Redis.DetailTTL)
	supplierClient := client.NewSupplierClient(cfg.Supplier.BaseURL, cfg.Supplier.Timeout, log)

	// Initialize services
	catalogService := service.NewCatalogService(stores, detailCache, log)
	stockService := service.NewStockService(stores, detailCache, publisher, log)
	queryService := service.NewQueryService(stores, detailCache, log)
	ingestService := service.NewIngestService(stores, supplierClient, publisher, service.IngestOptions{
		Workers:         cfg.Ingest.Workers,
		SupplierTimeout: cfg.Supplier.Timeout,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start bulk upload consumer
	bulkConsumer, err := consumers.NewBulkUploadConsumer(rmq, ingestService, defaultCountry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bulk upload consumer")
	}
	if err := bulkConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start bulk upload consumer")
	}

	// Start expiry sweeper
	sweeper := service.NewExpirySweeper(stockService, cfg.Inventory.ExpirySweepInterval, log)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	router := handler.NewRouter(
		handler.Services{
			Catalog: catalogService,
			Stock:   stockService,
			Queries: queryService,
			Ingest:  ingestService,
		},
		handler.RouterConfig{
			DefaultCountry: defaultCountry,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxUploadBytes: cfg.Ingest.MaxUploadBytes,
			Health: func(ctx context.Context) map[string]interface{} {
				redisStatus := map[string]string{"status": "up"}
				if err := redisClient.Ping(ctx).Err(); err != nil {
					redisStatus = map[string]string{"status": "down", "error": err.Error()}
				}
				return map[string]interface{}{
					"database": db.Health(ctx),
					"rabbitmq": rmq.Health(),
					"redis":    redisStatus,
				}
			},
		},
		log,
	)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Str("default_country", defaultCountry.String()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop the consumer and the sweeper
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
