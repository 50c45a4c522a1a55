package cart

import "time"

// Upsert adds the product to the item list, accumulating quantity when a line
// for the same product already exists. It returns the updated list and the
// resulting line quantity. The input slice is not modified.
func Upsert(items []Item, p Product, quantity int, now time.Time) ([]Item, int) {
	out := make([]Item, len(items))
	copy(out, items)

	for i := range out {
		if out[i].ID == p.ID {
			out[i].Quantity += quantity
			out[i].UpdatedAt = now
			return out, out[i].Quantity
		}
	}

	out = append(out, NewItem(p, quantity, now))
	return out, quantity
}

// Remove deletes the line for productID. It reports whether the line existed.
func Remove(items []Item, productID string) ([]Item, bool) {
	for i := range items {
		if items[i].ID == productID {
			out := make([]Item, 0, len(items)-1)
			out = append(out, items[:i]...)
			out = append(out, items[i+1:]...)
			return out, true
		}
	}
	return items, false
}

// SetQuantity sets the absolute quantity of the line for productID. It
// reports whether the line existed. The input slice is not modified.
func SetQuantity(items []Item, productID string, quantity int, now time.Time) ([]Item, bool) {
	for i := range items {
		if items[i].ID == productID {
			out := make([]Item, len(items))
			copy(out, items)
			out[i].Quantity = quantity
			out[i].UpdatedAt = now
			return out, true
		}
	}
	return items, false
}

// Find returns the line for productID, or nil when absent.
func Find(items []Item, productID string) *Item {
	for i := range items {
		if items[i].ID == productID {
			return &items[i]
		}
	}
	return nil
}
