package catalog

import (
	"regexp"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MinCategoryLen    = 3
	MinDescriptionLen = 20
	MinStock          = 1
	MaxStock          = 1000
)

var (
	MinUnitPrice = decimal.NewFromInt(1)
	MaxUnitPrice = decimal.NewFromInt(100000)

	namePattern = regexp.MustCompile(`^[a-zA-Z0-9 ]+$`)
)

// ValidateEquipment checks a catalog entry. It never consults the store.
func ValidateEquipment(f EquipmentForm) FieldErrors {
	errs := FieldErrors{}
	if !namePattern.MatchString(f.Name) {
		errs[FieldName] = MsgInvalidName
	}
	if utf8.RuneCountInString(f.Category) < MinCategoryLen {
		errs[FieldCategory] = MsgCategoryTooShort
	}
	if utf8.RuneCountInString(f.Description) < MinDescriptionLen {
		errs[FieldDescription] = MsgDescriptionShort
	}
	if n, ok := f.Stock.Int(); !ok || n < MinStock || n > MaxStock {
		errs[FieldStock] = MsgStockOutOfRange
	}
	if p, ok := f.UnitPrice.Decimal(); !ok || p.LessThan(MinUnitPrice) || p.GreaterThan(MaxUnitPrice) {
		errs[FieldUnitPrice] = MsgPriceOutOfRange
	}
	return errs
}

// CheckEquipment is ValidateEquipment returning a *ValidationError, or nil.
func CheckEquipment(f EquipmentForm) error {
	return newValidationError(ValidateEquipment(f), nil)
}

// ValidateOrder checks an order against the pre-reservation stock in snap:
// the stock as it would be with this order's own earlier effect undone.
// The stock limit is only checked once the quantity is a positive integer.
func ValidateOrder(f OrderForm, snap StockSnapshot) FieldErrors {
	errs, _ := checkOrder(f, snap)
	return errs
}

// CheckOrder is ValidateOrder returning a *ValidationError, or nil.
func CheckOrder(f OrderForm, snap StockSnapshot) error {
	return newValidationError(checkOrder(f, snap))
}

func checkOrder(f OrderForm, snap StockSnapshot) (FieldErrors, error) {
	errs := FieldErrors{}
	var cause error

	available, found := snap[f.EquipmentID]
	if f.EquipmentID == "" || !found {
		errs[FieldEquipmentID] = MsgSelectEquipment
		if f.EquipmentID != "" {
			cause = ErrUnknownEquipment
		}
	}

	q, ok := f.Quantity.Int()
	switch {
	case !ok || q <= 0:
		errs[FieldQuantity] = MsgQuantityNotPositive
	case found && q > available:
		errs[FieldQuantity] = MsgQuantityExceedsStock(available)
		cause = ErrInsufficientStock
	}
	return errs, cause
}
