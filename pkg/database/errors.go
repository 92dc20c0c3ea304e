package database

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/stockflow/inventory-backend/pkg/errors"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
)

// MapPQError converts a PostgreSQL error raised by an insert or update to an AppError.
// Returns nil if the error is not a pq.Error or has no mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case codeUniqueViolation:
		return errors.Conflict(formatConstraintMessage(pqErr))

	// An insert pointing at a missing parent.
	case codeForeignKeyViolation:
		return errors.NotFound(referencedEntity(pqErr))

	case codeCheckViolation:
		return mapCheckConstraint(pqErr)

	case codeNotNullViolation:
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// MapDeleteError converts errors raised by deleting an entity. A foreign key violation
// here means the row is still referenced, which is a conflict rather than a missing parent.
func MapDeleteError(err error, entity string) *errors.AppError {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation {
		return errors.Conflict(fmt.Sprintf("%s is still referenced by %s", entity, pqErr.Table))
	}
	return MapPQError(err)
}

// Translate maps err through MapPQError, otherwise wraps it with msg.
func Translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// TranslateDelete is Translate for deleting entity.
func TranslateDelete(err error, entity string) error {
	if err == nil {
		return nil
	}
	if appErr := MapDeleteError(err, entity); appErr != nil {
		return appErr
	}
	return fmt.Errorf("failed to delete %s: %w", entity, err)
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.InvalidField("quantity", "must not be negative")

	case strings.Contains(constraint, "status_valid"):
		return errors.InvalidField("status", "must be one of: AVAILABLE, BLOCKED, EXPIRED, DAMAGED")

	case strings.Contains(constraint, "type_valid"):
		return errors.InvalidField("type", "must be one of: INVIMA, FDA, EMA, LOCAL")

	case strings.Contains(constraint, "temp_range"):
		return errors.InvalidField("temp_min", "must not exceed temp_max")

	default:
		return errors.Validation(map[string]string{"constraint": constraint})
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "products_sku"):
		return "a product with this sku already exists"
	case strings.Contains(constraint, "lots_product_code"):
		return "a lot with this code already exists for the product"
	case strings.Contains(constraint, "locations_slot"):
		return "a location already occupies this aisle, shelf and slot"
	case strings.Contains(constraint, "warehouses_address"):
		return "a warehouse already exists at this address"
	case strings.Contains(constraint, "product_certifications"):
		return "certification already attached to the product"
	default:
		return "a record with these values already exists"
	}
}

// referencedEntity names the missing parent from the error detail,
// e.g. `Key (lot_id)=(...) is not present in table "lots".` -> lot.
func referencedEntity(pqErr *pq.Error) string {
	const marker = `table "`
	detail := pqErr.Detail
	i := strings.LastIndex(detail, marker)
	if i < 0 {
		return "referenced record"
	}
	table := detail[i+len(marker):]
	if j := strings.Index(table, `"`); j >= 0 {
		table = table[:j]
	}
	return strings.TrimSuffix(table, "s")
}
