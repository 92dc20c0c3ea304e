// Command migrate applies the embedded schema migrations to every country schema.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stockflow/inventory-backend/pkg/config"
	"github.com/stockflow/inventory-backend/pkg/database"
	"github.com/stockflow/inventory-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load("migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("migrate", cfg.Server.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := database.MigrateAll(ctx, cfg.Database.DSN(), log); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("all country schemas are up to date")
}
