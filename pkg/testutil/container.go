// Package testutil provides testing utilities for the inventory service.
// It includes a testcontainers PostgreSQL suite migrated for every country,
// sqlmock helpers, HTTP helpers and fixture factories.
package testutil

import (
	"context"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/stockflow/inventory-backend/pkg/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	// DSN is a libpq key/value DSN, the form the migrator extends with search_path.
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "stockflow_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer container.Terminate(ctx)
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	defaults := DefaultPostgresConfig()
	if cfg.Image == "" {
		cfg.Image = defaults.Image
	}
	if cfg.Database == "" {
		cfg.Database = defaults.Database
	}
	if cfg.Username == "" {
		cfg.Username = defaults.Username
	}
	if cfg.Password == "" {
		cfg.Password = defaults.Password
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	parsed, err := config.ParseDatabaseURL(url)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               parsed.ToDSN(),
	}, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}
