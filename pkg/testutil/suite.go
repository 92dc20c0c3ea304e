package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stockflow/inventory-backend/pkg/database"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	containerOnce   sync.Once
	containerErr    error
)

// tables in truncation order; CASCADE covers the foreign keys anyway.
var inventoryTables = []string{
	"stock_records", "lots", "product_certifications", "certifications",
	"products", "locations", "warehouses",
}

// IntegrationSuite provides a base for integration tests with real PostgreSQL.
// Every country schema is migrated once when the suite starts.
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite.
// Call this in TestMain to set up shared test infrastructure.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	if err := database.MigrateAll(ctx, container.DSN, log); err != nil {
		return nil, err
	}

	db, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		DB:        db,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
	})
	return globalContainer, containerErr
}

// CountryContext returns a context scoped to the country's schema
func (s *IntegrationSuite) CountryContext(country tenant.Country) context.Context {
	return tenant.WithCountry(context.Background(), country)
}

// Reset empties every inventory table of the country so each test starts clean.
func (s *IntegrationSuite) Reset(t *testing.T, ctx context.Context, country tenant.Country) {
	t.Helper()

	qualified := make([]string, len(inventoryTables))
	for i, table := range inventoryTables {
		qualified[i] = country.Schema() + "." + table
	}
	query := fmt.Sprintf("TRUNCATE %s CASCADE", strings.Join(qualified, ", "))
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		t.Fatalf("failed to reset %s: %v", country.Schema(), err)
	}
}

// Cleanup closes the suite's connection pool
func (s *IntegrationSuite) Cleanup(ctx context.Context) error {
	// The container is shared; TerminateContainer removes it.
	return s.DB.Close()
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		_ = globalContainer.Terminate(ctx)
	}
}
