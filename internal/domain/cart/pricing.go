package cart

import "github.com/shopspring/decimal"

// EffectiveUnitPrice returns the unit price after applying the item's
// percentage discount: price * (1 - discount/100) when the discount lies in
// (0, 100], otherwise the plain price.
func EffectiveUnitPrice(it Item) decimal.Decimal {
	if it.Discount.IsPositive() && !it.Discount.GreaterThan(hundred) {
		factor := hundred.Sub(it.Discount).Div(hundred)
		return it.Price.Mul(factor)
	}
	return it.Price
}

// Subtotal returns the discount-aware cart total, rounded to 2 decimal
// places: sum of effective unit price times quantity across all lines.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		line := EffectiveUnitPrice(it).Mul(decimal.NewFromInt(int64(it.Quantity)))
		sum = sum.Add(line)
	}
	return sum.Round(2)
}

// TotalQuantity returns the sum of quantities across all lines.
func TotalQuantity(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}
