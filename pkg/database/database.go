package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stockflow/inventory-backend/pkg/config"
	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// Querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// DB wraps sqlx.DB with additional functionality
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// New creates a new database connection
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &DB{
		DB:     db,
		logger: log,
	}, nil
}

// NewWithDSN creates a new database connection with a DSN string
func NewWithDSN(dsn string, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{
		DB:     db,
		logger: log,
	}, nil
}

// Wrap adapts an existing handle, typically one backed by sqlmock.
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: db, logger: log}
}

// Ping checks the database connection
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"status": "up",
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}

type txKey struct{}

// WithinTx runs fn inside one transaction and commits when fn returns nil.
// Any error, or a panic, rolls the transaction back.
//
// When ctx carries a country the transaction starts with
//
//	SET LOCAL search_path TO inv_<country>, public
//
// so repositories address their tables unqualified. The transaction travels in the
// context handed to fn; repositories pick it up through Querier. A nested call joins
// the outer transaction instead of opening a new one.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !rollbackAlreadyDone(rbErr) {
				db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if country, cerr := tenant.CountryFrom(ctx); cerr == nil {
		// SET LOCAL takes no bind parameters; the schema comes from the closed Country set.
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s, public", country.Schema())); err != nil {
			return fmt.Errorf("failed to set search_path for %s: %w", country, err)
		}
	}

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rollbackAlreadyDone reports rollback errors that only mean database/sql has
// already rolled the transaction back because its context ended.
func rollbackAlreadyDone(err error) bool {
	return errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Querier returns the transaction carried by ctx, or the pool when there is none.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return db.DB
}

func txFrom(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
