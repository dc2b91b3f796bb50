package orders

import "math"

// MoneyTolerance is the allowed drift between stored and recomputed amounts.
const MoneyTolerance = 0.01

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeTotals derives the monetary fields from the line items. Tax is rounded
// to cents; item subtotals are rounded individually so they match what gets
// persisted per row.
func ComputeTotals(items []OrderItem, taxRate float64) (subtotal, tax, total float64) {
	for i := range items {
		items[i].Subtotal = Round2(items[i].UnitPrice * float64(items[i].Quantity))
		subtotal += items[i].Subtotal
	}
	subtotal = Round2(subtotal)
	tax = Round2(subtotal * taxRate)
	total = Round2(subtotal + tax)
	return subtotal, tax, total
}

// TotalsConsistent reports whether the stored amounts satisfy the order-level
// invariants within tolerance: total == subtotal + tax and
// subtotal == sum(unit_price * quantity).
func (o *Order) TotalsConsistent() bool {
	var itemSum float64
	for _, it := range o.Items {
		itemSum += it.UnitPrice * float64(it.Quantity)
	}
	if math.Abs(o.Subtotal-itemSum) > MoneyTolerance {
		return false
	}
	return math.Abs(o.Total-(o.Subtotal+o.Tax)) <= MoneyTolerance
}
