package domain

import (
	"strings"

	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
)

// StockStatus is the closed set of states a StockRecord can be in.
// Only AVAILABLE stock counts toward the sellable total and is eligible for FEFO.
type StockStatus string

const (
	StatusAvailable StockStatus = "AVAILABLE"
	StatusBlocked   StockStatus = "BLOCKED"
	StatusExpired   StockStatus = "EXPIRED"
	StatusDamaged   StockStatus = "DAMAGED"
)

// Valid reports whether s is a known status.
func (s StockStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusBlocked, StatusExpired, StatusDamaged:
		return true
	default:
		return false
	}
}

// Dispatchable reports whether FEFO may consume stock in this status.
func (s StockStatus) Dispatchable() bool {
	switch s {
	case StatusAvailable:
		return true
	case StatusBlocked, StatusExpired, StatusDamaged:
		return false
	default:
		return false
	}
}

// ParseStockStatus normalises raw input; empty means AVAILABLE.
func ParseStockStatus(raw string) (StockStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return StatusAvailable, nil
	}
	s := StockStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", apperrors.InvalidField("status", "must be one of: AVAILABLE, BLOCKED, EXPIRED, DAMAGED")
	}
	return s, nil
}

// CertificationType identifies the regulatory body behind a certification.
type CertificationType string

const (
	CertINVIMA CertificationType = "INVIMA"
	CertFDA    CertificationType = "FDA"
	CertEMA    CertificationType = "EMA"
	CertLocal  CertificationType = "LOCAL"
)

// Valid reports whether t is a known certification type.
func (t CertificationType) Valid() bool {
	switch t {
	case CertINVIMA, CertFDA, CertEMA, CertLocal:
		return true
	default:
		return false
	}
}

// International reports whether the authority is recognised across markets.
func (t CertificationType) International() bool {
	switch t {
	case CertFDA, CertEMA:
		return true
	case CertINVIMA, CertLocal:
		return false
	default:
		return false
	}
}

// ParseCertificationType normalises raw input.
func ParseCertificationType(raw string) (CertificationType, error) {
	t := CertificationType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", apperrors.InvalidField("type", "must be one of: INVIMA, FDA, EMA, LOCAL")
	}
	return t, nil
}
