package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	goosedb "github.com/pressly/goose/v3/database"
	"github.com/stockflow/inventory-backend/pkg/config"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations exposes the embedded SQL files, rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrate creates the country schema if needed and applies every pending migration
// into it. dsn must be a libpq key/value DSN; its search_path is replaced so
// every pooled connection goose opens lands in the country schema.
func Migrate(ctx context.Context, dsn string, country tenant.Country, log *logger.Logger) error {
	schema := country.Schema()

	bootstrap, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer bootstrap.Close()

	if _, err := bootstrap.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}

	db, err := sql.Open("postgres", config.WithSearchPath(dsn, schema))
	if err != nil {
		return fmt.Errorf("failed to open database for %s: %w", schema, err)
	}
	defer db.Close()

	store, err := goosedb.NewStore(goosedb.DialectPostgres, schema+".goose_db_version")
	if err != nil {
		return fmt.Errorf("failed to create migration store: %w", err)
	}

	provider, err := goose.NewProvider("", db, Migrations(), goose.WithStore(store))
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate %s: %w", schema, err)
	}

	for _, r := range results {
		log.Info().
			Str("schema", schema).
			Int64("version", r.Source.Version).
			Dur("duration", r.Duration).
			Msg("applied migration")
	}
	return nil
}

// MigrateAll runs Migrate for every supported country.
func MigrateAll(ctx context.Context, dsn string, log *logger.Logger) error {
	for _, country := range tenant.All {
		if err := Migrate(ctx, dsn, country, log); err != nil {
			return err
		}
	}
	return nil
}
