package cartsync

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cartbridge/internal/domain/cart"
	"github.com/xenking/cartbridge/internal/remote"
)

// FailureKind classifies an unsuccessful result.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureValidation FailureKind = "validation"
	FailureNotFound   FailureKind = "not_found"
	FailureStorage    FailureKind = "storage"
)

// Result is the uniform shape every operation returns. Failures carry the
// underlying typed error so callers can still use errors.Is/As.
type Result struct {
	Success bool
	Message string
	Kind    FailureKind
	Err     error
}

// CartResult is returned by operations that yield the cart contents.
type CartResult struct {
	Result
	Items     []cart.Item
	ItemCount int
}

// TotalResult is returned by Total.
type TotalResult struct {
	Result
	Total decimal.Decimal
}

// CountResult is returned by ItemCount.
type CountResult struct {
	Result
	Count int
}

func ok(message string) Result {
	return Result{Success: true, Message: message}
}

// failure classifies err into the result taxonomy. Errors that are neither
// validation nor not-found (quota, serialization, I/O on the local store)
// surface as the generic storage failure.
func failure(err error) Result {
	kind := FailureStorage
	message := "cart operation failed"

	var vErr *cart.ValidationError
	var nfErr *cart.NotFoundError
	switch {
	case errors.As(err, &vErr):
		kind = FailureValidation
		message = vErr.Error()
	case errors.As(err, &nfErr):
		kind = FailureNotFound
		message = nfErr.Error()
	}

	return Result{Success: false, Message: message, Kind: kind, Err: err}
}

// isTransient reports whether err marks the remote API as unusable rather
// than rejecting this particular request.
func isTransient(err error) bool {
	var tErr *remote.TransientError
	return errors.As(err, &tErr)
}
