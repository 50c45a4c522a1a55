package cart

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NormalizeUserID trims the given identifier and falls back to GuestUserID
// when it is empty or exceeds MaxUserIDLen.
func NormalizeUserID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxUserIDLen {
		return GuestUserID
	}
	return id
}

// ValidateUserID checks that id is a non-empty string of at most MaxUserIDLen
// characters after trimming. It returns the trimmed identifier.
func ValidateUserID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &ValidationError{Field: "userId", Reason: "must be a non-empty string"}
	}
	if len(id) > MaxUserIDLen {
		return "", &ValidationError{Field: "userId", Reason: "must be at most 50 characters"}
	}
	return id, nil
}

// ValidateQuantity checks that q lies within [MinQuantity, MaxQuantity].
func ValidateQuantity(q int) error {
	if q < MinQuantity || q > MaxQuantity {
		return &ValidationError{Field: "quantity", Reason: "must be an integer between 1 and 99"}
	}
	return nil
}

// ParseQuantity parses a textual quantity and range-checks it. Non-integer
// input is rejected before the range check.
func ParseQuantity(s string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ValidationError{Field: "quantity", Reason: "must be an integer between 1 and 99"}
	}
	if err := ValidateQuantity(q); err != nil {
		return 0, err
	}
	return q, nil
}

// ValidateProduct checks a product payload field by field and returns the
// first violated rule only. Aggregating all violations is the admin product
// validator's job, not this one's.
func ValidateProduct(p Product) error {
	if strings.TrimSpace(p.ID) == "" {
		return &ValidationError{Field: "product.id", Reason: "is required"}
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return &ValidationError{Field: "product.name", Reason: "is required"}
	}
	if len(name) > MaxNameLen {
		return &ValidationError{Field: "product.name", Reason: "must be at most 100 characters"}
	}
	if p.Price.IsNegative() || p.Price.GreaterThan(MaxPrice) {
		return &ValidationError{Field: "product.price", Reason: "must be between 0 and 999999"}
	}
	if !p.OriginalPrice.IsZero() &&
		(p.OriginalPrice.IsNegative() || p.OriginalPrice.GreaterThan(MaxPrice)) {
		return &ValidationError{Field: "product.originalPrice", Reason: "must be between 0 and 999999"}
	}
	if p.Discount.IsNegative() || p.Discount.GreaterThan(hundred) {
		return &ValidationError{Field: "product.discount", Reason: "must be between 0 and 100"}
	}
	return nil
}
