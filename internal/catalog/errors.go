package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownEquipment  = errors.New("unknown equipment")
	ErrUnknownOrder      = errors.New("unknown order")
	ErrInvalidQuantity   = errors.New("quantity must be positive")

	// ErrEquipmentInUse rejects deleting equipment that active orders still reference.
	ErrEquipmentInUse = errors.New("equipment has active orders")

	// ErrEquipmentChange rejects amending an order onto a different item.
	ErrEquipmentChange = fmt.Errorf("%w: an order cannot be moved to other equipment", ErrUnknownEquipment)
)

// Field names used as FieldErrors keys.
const (
	FieldName        = "name"
	FieldCategory    = "category"
	FieldDescription = "description"
	FieldStock       = "stock"
	FieldUnitPrice   = "unitPrice"
	FieldEquipmentID = "equipmentId"
	FieldQuantity    = "quantity"
)

// User facing validation messages.
const (
	MsgInvalidName         = "Invalid name"
	MsgCategoryTooShort    = "Category min 3 chars"
	MsgDescriptionShort    = "Description min 20 chars"
	MsgStockOutOfRange     = "Stock between 1 and 1000"
	MsgPriceOutOfRange     = "Price between 1 and 100000"
	MsgSelectEquipment     = "Please select equipment"
	MsgQuantityNotPositive = "Quantity must be a positive number"
)

// MsgQuantityExceedsStock is reported when an order asks for more than available.
func MsgQuantityExceedsStock(available int) string {
	return fmt.Sprintf("Quantity cannot exceed available stock (%d)", available)
}

// FieldErrors maps a field name to its message. An empty map means valid input.
type FieldErrors map[string]string

// ValidationError carries field errors back to the caller. It unwraps to the
// consistency error behind them, if any, so errors.Is(err, ErrInsufficientStock)
// holds for a quantity that exceeds stock.
type ValidationError struct {
	Fields FieldErrors
	cause  error
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return e.cause }

func newValidationError(fields FieldErrors, cause error) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields, cause: cause}
}
