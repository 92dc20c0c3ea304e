package tenant_test

import (
	"context"
	"testing"

	"github.com/stockflow/inventory-backend/pkg/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountry(t *testing.T) {
	tests := []struct {
		raw     string
		want    tenant.Country
		wantErr bool
	}{
		{"co", tenant.Colombia, false},
		{" EC ", tenant.Ecuador, false},
		{"Mx", tenant.Mexico, false},
		{"pe", tenant.Peru, false},
		{"us", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := tenant.ParseCountry(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, tenant.ErrUnknownCountry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountry_Schema(t *testing.T) {
	assert.Equal(t, "inv_co", tenant.Colombia.Schema())
	assert.Equal(t, "inv_pe", tenant.Peru.Schema())
}

func TestCountryContext(t *testing.T) {
	_, err := tenant.CountryFrom(context.Background())
	assert.ErrorIs(t, err, tenant.ErrNoCountryInContext)

	ctx := tenant.WithCountry(context.Background(), tenant.Mexico)
	got, err := tenant.CountryFrom(ctx)
	require.NoError(t, err)
	assert.Equal(t, tenant.Mexico, got)
}
