package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/internal/inventory/repository"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
	"github.com/stockflow/inventory-backend/pkg/tenant"
	"github.com/stockflow/inventory-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockRepository_AddQuantity_Upserts(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewStockRepository(mockDB.Database())

	lotID, locID, stockID := uuid.New(), uuid.New(), uuid.New()
	received := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	mockDB.ExpectQuery("ON CONFLICT (lot_id, location_id, status) DO UPDATE SET quantity = stock_records.quantity + EXCLUDED.quantity").
		WithArgs(testutil.AnyUUID{}, lotID, locID, "AVAILABLE", int64(30)).
		WillReturnRows(testutil.MockRows("id", "lot_id", "location_id", "status", "quantity", "received_at").
			AddRow(stockID, lotID, locID, "AVAILABLE", int64(80), received))

	rec, err := repo.AddQuantity(context.Background(), lotID, locID, domain.StatusAvailable, 30)
	require.NoError(t, err)
	assert.Equal(t, stockID, rec.ID)
	assert.Equal(t, int64(80), rec.Quantity)
	assert.Equal(t, domain.StatusAvailable, rec.Status)
	assert.Equal(t, received, rec.ReceivedAt)
	mockDB.ExpectationsWereMet(t)
}

func TestStockRepository_AddQuantity_NegativeRejectedByCheck(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewStockRepository(mockDB.Database())

	mockDB.ExpectQuery("INSERT INTO stock_records").
		WillReturnError(&pq.Error{Code: "23514", Constraint: "stock_records_quantity_non_negative"})

	_, err := repo.AddQuantity(context.Background(), uuid.New(), uuid.New(), domain.StatusAvailable, -5)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestStockRepository_ListAvailableForUpdate(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewStockRepository(mockDB.Database())

	productID, locID := uuid.New(), uuid.New()
	expiry := testutil.Date(2026, 6, 1)
	now := time.Now().UTC()

	cols := []string{"id", "lot_id", "location_id", "status", "quantity", "received_at", "expires_on"}
	mockDB.ExpectQuery("ORDER BY l.expires_on ASC NULLS LAST, s.received_at ASC, s.id ASC FOR UPDATE OF s").
		WithArgs(productID, "AVAILABLE", locID).
		WillReturnRows(testutil.MockRows(cols...).
			AddRow(uuid.New(), uuid.New(), locID, "AVAILABLE", int64(50), now, expiry).
			AddRow(uuid.New(), uuid.New(), locID, "AVAILABLE", int64(70), now, nil))

	lines, err := repo.ListAvailableForUpdate(context.Background(), productID, &locID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.NotNil(t, lines[0].ExpiresOn)
	assert.True(t, expiry.Equal(*lines[0].ExpiresOn))
	assert.Nil(t, lines[1].ExpiresOn)
	assert.Equal(t, int64(70), lines[1].Quantity)
	mockDB.ExpectationsWereMet(t)
}

func TestStockRepository_ListAvailableForUpdate_AnyLocation(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewStockRepository(mockDB.Database())

	productID := uuid.New()
	mockDB.ExpectQuery("FROM stock_records s").
		WithArgs(productID, "AVAILABLE", nil).
		WillReturnRows(testutil.MockRows("id"))

	lines, err := repo.ListAvailableForUpdate(context.Background(), productID, nil)
	require.NoError(t, err)
	assert.Empty(t, lines)
	mockDB.ExpectationsWereMet(t)
}

func TestStockRepository_DeleteEmpty(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewStockRepository(mockDB.Database())

	a, b := uuid.New(), uuid.New()
	mockDB.ExpectExec("DELETE FROM stock_records WHERE id = ANY($1::uuid[]) AND quantity = 0").
		WithArgs(pq.Array([]string{a.String(), b.String()})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteEmpty(context.Background(), []uuid.UUID{a, b}))
	// Nothing to delete issues no statement.
	require.NoError(t, repo.DeleteEmpty(context.Background(), nil))
	mockDB.ExpectationsWereMet(t)
}

func TestStockRepository_TotalAvailable_CountsOnlyAvailable(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewStockRepository(mockDB.Database())

	productID := uuid.New()
	mockDB.ExpectQuery("SELECT COALESCE(SUM(s.quantity), 0)").
		WithArgs(productID, "AVAILABLE").
		WillReturnRows(testutil.MockRows("coalesce").AddRow(int64(120)))

	total, err := repo.TotalAvailable(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), total)
	mockDB.ExpectationsWereMet(t)
}

func TestStockRepository_RunsInCountrySchema(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	db := mockDB.Database()
	repo := repository.NewStockRepository(db)

	productID := uuid.New()
	mockDB.ExpectCountryTx(tenant.Peru)
	mockDB.ExpectExec("SELECT pg_advisory_xact_lock(hashtext($1))").
		WithArgs(productID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectCommit()

	ctx := tenant.WithCountry(context.Background(), tenant.Peru)
	err := db.WithinTx(ctx, func(ctx context.Context) error {
		return repo.LockProduct(ctx, productID)
	})
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestStockRepository_LocationsWithStock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewStockRepository(mockDB.Database())

	productID, locID, whID := uuid.New(), uuid.New(), uuid.New()
	mockDB.ExpectQuery("HAVING SUM(s.quantity) > 0 ORDER BY w.city, loc.aisle, loc.shelf, loc.slot").
		WithArgs(productID).
		WillReturnRows(testutil.MockRows("location_id", "warehouse_id", "city", "aisle", "shelf", "slot", "quantity").
			AddRow(locID, whID, "Bogota", "A", "1", "03", int64(45)))

	rows, err := repo.LocationsWithStock(context.Background(), productID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bogota", rows[0].City)
	assert.Equal(t, int64(45), rows[0].Quantity)
	mockDB.ExpectationsWereMet(t)
}

func TestStockRepository_ReadsWrapDriverErrors(t *testing.T) {
	driverErr := errors.New("connection reset by peer")
	productID := uuid.New()

	tests := []struct {
		name  string
		query string
		msg   string
		call  func(repo *repository.StockRepository) error
	}{
		{"available for update", "FOR UPDATE OF s", "failed to list available stock", func(repo *repository.StockRepository) error {
			_, err := repo.ListAvailableForUpdate(context.Background(), productID, nil)
			return err
		}},
		{"total available", "SELECT COALESCE(SUM(s.quantity), 0)", "failed to total available stock", func(repo *repository.StockRepository) error {
			_, err := repo.TotalAvailable(context.Background(), productID)
			return err
		}},
		{"detailed", "GROUP BY l.code, l.expires_on, s.location_id", "failed to list stock detail", func(repo *repository.StockRepository) error {
			_, err := repo.Detailed(context.Background(), productID)
			return err
		}},
		{"locations", "JOIN warehouses w", "failed to list locations with stock", func(repo *repository.StockRepository) error {
			_, err := repo.LocationsWithStock(context.Background(), productID)
			return err
		}},
		{"lot totals", "LEFT JOIN stock_records s", "failed to total lots", func(repo *repository.StockRepository) error {
			_, err := repo.LotTotals(context.Background(), productID)
			return err
		}},
		{"expired", "l.expires_on < $2", "failed to list expired stock", func(repo *repository.StockRepository) error {
			_, err := repo.ListExpiredForUpdate(context.Background(), time.Now())
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := testutil.NewMockDB(t)
			defer mockDB.Close()
			repo := repository.NewStockRepository(mockDB.Database())

			mockDB.ExpectQuery(tt.query).WillReturnError(driverErr)

			err := tt.call(repo)
			require.Error(t, err)
			assert.ErrorIs(t, err, driverErr)
			assert.ErrorContains(t, err, tt.msg)
			mockDB.ExpectationsWereMet(t)
		})
	}
}
