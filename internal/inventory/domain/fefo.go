package domain

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/stockflow/inventory-backend/pkg/errors"
)

// StockLine is a StockRecord joined with its lot's expiry, the input to FEFO.
type StockLine struct {
	StockRecord
	ExpiresOn *time.Time `db:"expires_on" json:"expires_on,omitempty"`
}

// Consumption is one step of a depletion plan.
type Consumption struct {
	StockID    uuid.UUID `json:"stock_id"`
	LotID      uuid.UUID `json:"lot_id"`
	LocationID uuid.UUID `json:"location_id"`
	Consumed   int64     `json:"consumed"`
	// Remaining is the record's quantity once the plan is applied; zero means delete.
	Remaining int64 `json:"-"`
}

// FEFOLess orders lines first-expired-first-out: dated lots before undated ones,
// earlier expiry first, then earlier receipt, then id so the order is total.
func FEFOLess(a, b StockLine) bool {
	switch {
	case a.ExpiresOn == nil && b.ExpiresOn != nil:
		return false
	case a.ExpiresOn != nil && b.ExpiresOn == nil:
		return true
	case a.ExpiresOn != nil && b.ExpiresOn != nil && !a.ExpiresOn.Equal(*b.ExpiresOn):
		return a.ExpiresOn.Before(*b.ExpiresOn)
	}
	if !a.ReceivedAt.Equal(b.ReceivedAt) {
		return a.ReceivedAt.Before(b.ReceivedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// SortFEFO sorts lines in place into depletion order.
func SortFEFO(lines []StockLine) {
	sort.SliceStable(lines, func(i, j int) bool { return FEFOLess(lines[i], lines[j]) })
}

// PlanFEFO decides how to take qty units out of lines without touching them.
// Only dispatchable lines are considered and zero-quantity lines are skipped.
// The plan is all-or-nothing: if the lines hold less than qty it returns an
// InsufficientStock error and no plan.
func PlanFEFO(lines []StockLine, qty int64) ([]Consumption, error) {
	if qty <= 0 {
		return nil, apperrors.InvalidField("quantity", "must be greater than 0")
	}

	ordered := make([]StockLine, 0, len(lines))
	var available int64
	for _, l := range lines {
		if !l.Status.Dispatchable() || l.Quantity <= 0 {
			continue
		}
		ordered = append(ordered, l)
		available += l.Quantity
	}
	if available < qty {
		return nil, apperrors.InsufficientStock(qty, available)
	}
	SortFEFO(ordered)

	plan := make([]Consumption, 0, len(ordered))
	remaining := qty
	for _, l := range ordered {
		if remaining == 0 {
			break
		}
		take := min(l.Quantity, remaining)
		remaining -= take
		plan = append(plan, Consumption{
			StockID:    l.ID,
			LotID:      l.LotID,
			LocationID: l.LocationID,
			Consumed:   take,
			Remaining:  l.Quantity - take,
		})
	}
	return plan, nil
}

// TotalConsumed sums a plan.
func TotalConsumed(plan []Consumption) int64 {
	var n int64
	for _, c := range plan {
		n += c.Consumed
	}
	return n
}
