package feed

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	trueTokens  = map[string]bool{"true": true, "1": true, "si": true, "yes": true, "y": true, "verdadero": true, "t": true, "x": true}
	falseTokens = map[string]bool{"false": true, "0": true, "no": true, "n": true, "falso": true, "f": true}
)

// fold lower-cases s and strips diacritics, so "Sí" and "SI" both read "si".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// ParseBool reads a yes/no cell. Blank is absent (nil). Integers read as
// non-zero = true.
func ParseBool(raw string) (*bool, error) {
	v := fold(strings.TrimSpace(raw))
	if v == "" {
		return nil, nil
	}
	var b bool
	switch {
	case trueTokens[v]:
		b = true
	case falseTokens[v]:
		b = false
	default:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean value %q", raw)
		}
		b = n != 0
	}
	return &b, nil
}

// ParseFloat reads a number written with either ',' or '.' as decimal separator.
func ParseFloat(raw string) (*float64, error) {
	v := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("invalid number %q", raw)
	}
	return &f, nil
}

// ParseDecimal is ParseFloat without the binary rounding, for prices.
func ParseDecimal(raw string) (*decimal.Decimal, error) {
	v := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q", raw)
	}
	return &d, nil
}

// ParseInt reads a whole number.
func ParseInt(raw string) (*int, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	return &n, nil
}
