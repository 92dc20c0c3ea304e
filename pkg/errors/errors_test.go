package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsSurviveWrapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		check  func(error) bool
		status int
	}{
		{"not found", apperrors.NotFound("lot"), apperrors.IsNotFound, http.StatusNotFound},
		{"conflict", apperrors.Conflict("sku exists"), apperrors.IsConflict, http.StatusConflict},
		{"validation", apperrors.InvalidField("quantity", "must be positive"), apperrors.IsValidation, http.StatusBadRequest},
		{"insufficient", apperrors.InsufficientStock(10, 3), apperrors.IsInsufficientStock, http.StatusConflict},
		{"schema", apperrors.Schema([]string{"sku"}), apperrors.IsSchema, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.check(wrapped))

			var appErr *apperrors.AppError
			require.True(t, apperrors.As(wrapped, &appErr))
			assert.Equal(t, tt.status, appErr.StatusCode)
		})
	}
}

func TestKindsDoNotOverlap(t *testing.T) {
	err := apperrors.NotFound("product")
	assert.False(t, apperrors.IsConflict(err))
	assert.False(t, apperrors.IsValidation(err))
	assert.False(t, apperrors.IsInsufficientStock(err))
}

func TestInsufficientStock_Details(t *testing.T) {
	err := apperrors.InsufficientStock(120, 80)
	assert.Equal(t, "120", err.Details["requested"])
	assert.Equal(t, "80", err.Details["available"])
	assert.Contains(t, err.Error(), "requested 120")
}
