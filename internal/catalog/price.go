package catalog

import "github.com/shopspring/decimal"

// ComputeTotal returns unitPrice × quantity in exact decimal arithmetic.
func ComputeTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// PreviewTotal is ComputeTotal for raw form input. It returns zero when either
// field is blank or does not parse.
func PreviewTotal(unitPrice, quantity Value) decimal.Decimal {
	p, ok := unitPrice.Decimal()
	if !ok {
		return decimal.Zero
	}
	q, ok := quantity.Int()
	if !ok {
		return decimal.Zero
	}
	return ComputeTotal(p, q)
}

// PreviewOrderTotal prices an order form against the catalog, returning zero
// while the form is incomplete or names an unknown item.
func PreviewOrderTotal(items []Equipment, f OrderForm) decimal.Decimal {
	if f.EquipmentID == "" || f.Quantity.Empty() {
		return decimal.Zero
	}
	eq, ok := FindEquipment(items, f.EquipmentID)
	if !ok {
		return decimal.Zero
	}
	return PreviewTotal(Value(eq.UnitPrice.String()), f.Quantity)
}
