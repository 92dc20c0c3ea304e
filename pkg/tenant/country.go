// Package tenant carries the country partition a request operates on.
// Every country owns its own PostgreSQL schema and its own cache namespace.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Country is the closed set of markets served.
type Country string

const (
	Colombia Country = "co"
	Ecuador  Country = "ec"
	Mexico   Country = "mx"
	Peru     Country = "pe"
)

// All lists every supported country in a stable order.
var All = []Country{Colombia, Ecuador, Mexico, Peru}

var (
	// ErrNoCountryInContext is returned when country context is missing
	ErrNoCountryInContext = errors.New("no country in context")
	// ErrUnknownCountry is returned by ParseCountry for codes outside the closed set
	ErrUnknownCountry = errors.New("unknown country")
)

// Valid reports whether c is one of the supported countries.
func (c Country) Valid() bool {
	switch c {
	case Colombia, Ecuador, Mexico, Peru:
		return true
	default:
		return false
	}
}

// Schema returns the PostgreSQL schema holding the country's inventory.
func (c Country) Schema() string {
	return "inv_" + string(c)
}

func (c Country) String() string { return string(c) }

// ParseCountry normalises a two-letter code. Case and surrounding space are ignored.
func ParseCountry(raw string) (Country, error) {
	c := Country(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCountry, raw)
	}
	return c, nil
}

type contextKey struct{}

// WithCountry stores the country in ctx.
func WithCountry(ctx context.Context, c Country) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// CountryFrom extracts the country from context.
// Returns ErrNoCountryInContext if none was set.
func CountryFrom(ctx context.Context) (Country, error) {
	c, ok := ctx.Value(contextKey{}).(Country)
	if !ok || c == "" {
		return "", ErrNoCountryInContext
	}
	return c, nil
}
