// Package cartsync keeps a customer cart consistent between the remote cart
// API and the local file-backed fallback store.
//
// Every operation follows the same policy: validate all inputs before any
// I/O, use the remote API while it is available, and switch one-way to the
// local store for the rest of the session the moment a remote call fails.
// Both paths produce the same observable result shape.
package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cartbridge/internal/availability"
	"github.com/xenking/cartbridge/internal/domain/cart"
)

// RemoteClient is the remote API surface the Syncer drives.
// *remote.Client implements it.
type RemoteClient interface {
	Get(ctx context.Context, userID string) ([]cart.Item, error)
	Add(ctx context.Context, userID string, p cart.Product, quantity int) (int, error)
	Remove(ctx context.Context, userID, productID string) error
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error
	Clear(ctx context.Context, userID string) error
	Total(ctx context.Context, userID string) (decimal.Decimal, error)
	Count(ctx context.Context, userID string) (int, error)
}

// LocalStore is the fallback persistence surface. *local.Store implements it.
type LocalStore interface {
	Get(userID string) ([]cart.Item, error)
	Set(userID string, items []cart.Item) error
	Remove(userID string) error
}

// Event is delivered to subscribers after every successful mutation.
type Event struct {
	UserID    string
	ItemCount int
}

// Config holds optional Syncer settings.
type Config struct {
	Logger *zap.Logger
	// Now is the clock used for item timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Syncer is the cart façade: one public operation set over two backing
// stores, selected by the injected availability state.
type Syncer struct {
	remote RemoteClient
	local  LocalStore
	state  *availability.State
	lg     *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	listeners []func(Event)
}

// NewSyncer builds a Syncer. The availability state is constructor-injected
// so tests can run independent Syncer instances with their own flags.
func NewSyncer(remoteClient RemoteClient, localStore LocalStore, state *availability.State, cfg Config) *Syncer {
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		remote: remoteClient,
		local:  localStore,
		state:  state,
		lg:     lg,
		now:    now,
	}
}

// OnCartChanged registers a callback invoked after every successful mutation
// through either path. Callbacks run synchronously on the mutating goroutine.
func (s *Syncer) OnCartChanged(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Syncer) notify(userID string, itemCount int) {
	s.mu.RLock()
	listeners := make([]func(Event), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	ev := Event{UserID: userID, ItemCount: itemCount}
	for _, fn := range listeners {
		fn(ev)
	}
}

// Get returns the user's cart from the active source of truth.
func (s *Syncer) Get(ctx context.Context, userID string) (res CartResult) {
	defer s.guard(&res.Result)
	userID = cart.NormalizeUserID(userID)

	if s.state.Available() {
		items, err := s.remote.Get(ctx, userID)
		switch {
		case err == nil:
			return cartResult("cart retrieved", items)
		case isTransient(err):
			s.state.MarkUnavailable(err.Error())
		default:
			return CartResult{Result: failure(err)}
		}
	}

	items, err := s.local.Get(userID)
	if err != nil {
		return CartResult{Result: failure(err)}
	}
	return cartResult("cart retrieved", items)
}

// Add validates the product and quantity, then upserts a line for the
// product, accumulating quantity when the line already exists.
func (s *Syncer) Add(ctx context.Context, userID string, p cart.Product, quantity int) (res CartResult) {
	defer s.guard(&res.Result)

	if err := cart.ValidateProduct(p); err != nil {
		return CartResult{Result: failure(err)}
	}
	if err := cart.ValidateQuantity(quantity); err != nil {
		return CartResult{Result: failure(err)}
	}
	userID = cart.NormalizeUserID(userID)

	if s.state.Available() {
		_, err := s.remote.Add(ctx, userID, p, quantity)
		switch {
		case err == nil:
			if res, fetched := s.remoteCartResult(ctx, userID, "item added to cart"); fetched {
				s.notify(userID, res.ItemCount)
				return res
			}
		case isTransient(err):
			s.state.MarkUnavailable(err.Error())
		default:
			return CartResult{Result: failure(err)}
		}
	}

	items, err := s.local.Get(userID)
	if err != nil {
		return CartResult{Result: failure(err)}
	}
	items, _ = cart.Upsert(items, p, quantity, s.now())
	if err := s.local.Set(userID, items); err != nil {
		return CartResult{Result: failure(err)}
	}

	res = cartResult("item added to cart", items)
	s.notify(userID, res.ItemCount)
	return res
}

// Remove deletes the line for productID. Removing an absent line is a
// not-found failure and leaves the store untouched.
func (s *Syncer) Remove(ctx context.Context, userID, productID string) (res CartResult) {
	defer s.guard(&res.Result)
	userID = cart.NormalizeUserID(userID)

	if s.state.Available() {
		err := s.remote.Remove(ctx, userID, productID)
		switch {
		case err == nil:
			if res, fetched := s.remoteCartResult(ctx, userID, "item removed from cart"); fetched {
				s.notify(userID, res.ItemCount)
				return res
			}
		case isTransient(err):
			s.state.MarkUnavailable(err.Error())
		default:
			return CartResult{Result: failure(err)}
		}
	}

	items, err := s.local.Get(userID)
	if err != nil {
		return CartResult{Result: failure(err)}
	}
	items, found := cart.Remove(items, productID)
	if !found {
		return CartResult{Result: failure(&cart.NotFoundError{ProductID: productID})}
	}
	if err := s.local.Set(userID, items); err != nil {
		return CartResult{Result: failure(err)}
	}

	res = cartResult("item removed from cart", items)
	s.notify(userID, res.ItemCount)
	return res
}

// UpdateQuantity sets the absolute quantity of an existing line.
func (s *Syncer) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (res CartResult) {
	defer s.guard(&res.Result)

	if err := cart.ValidateQuantity(quantity); err != nil {
		return CartResult{Result: failure(err)}
	}
	userID = cart.NormalizeUserID(userID)

	if s.state.Available() {
		err := s.remote.UpdateQuantity(ctx, userID, productID, quantity)
		switch {
		case err == nil:
			if res, fetched := s.remoteCartResult(ctx, userID, "cart updated"); fetched {
				s.notify(userID, res.ItemCount)
				return res
			}
		case isTransient(err):
			s.state.MarkUnavailable(err.Error())
		default:
			return CartResult{Result: failure(err)}
		}
	}

	items, err := s.local.Get(userID)
	if err != nil {
		return CartResult{Result: failure(err)}
	}
	items, found := cart.SetQuantity(items, productID, quantity, s.now())
	if !found {
		return CartResult{Result: failure(&cart.NotFoundError{ProductID: productID})}
	}
	if err := s.local.Set(userID, items); err != nil {
		return CartResult{Result: failure(err)}
	}

	res = cartResult("cart updated", items)
	s.notify(userID, res.ItemCount)
	return res
}

// Clear destroys the user's cart. Clearing an already-empty cart succeeds.
func (s *Syncer) Clear(ctx context.Context, userID string) (res CartResult) {
	defer s.guard(&res.Result)
	userID = cart.NormalizeUserID(userID)

	if s.state.Available() {
		err := s.remote.Clear(ctx, userID)
		switch {
		case err == nil:
			// No post-mutation re-fetch here: a cleared cart is empty by
			// definition.
			res = cartResult("cart cleared", nil)
			s.notify(userID, 0)
			return res
		case isTransient(err):
			s.state.MarkUnavailable(err.Error())
		default:
			return CartResult{Result: failure(err)}
		}
	}

	if err := s.local.Remove(userID); err != nil {
		return CartResult{Result: failure(err)}
	}

	res = cartResult("cart cleared", nil)
	s.notify(userID, 0)
	return res
}

// Total returns the discount-aware cart total. The remote path reads the
// server's aggregate; the local path computes it from the stored lines.
func (s *Syncer) Total(ctx context.Context, userID string) (res TotalResult) {
	defer s.guard(&res.Result)
	userID = cart.NormalizeUserID(userID)

	if s.state.Available() {
		total, err := s.remote.Total(ctx, userID)
		switch {
		case err == nil:
			return TotalResult{Result: ok("cart total"), Total: total}
		case isTransient(err):
			s.state.MarkUnavailable(err.Error())
		default:
			return TotalResult{Result: failure(err)}
		}
	}

	items, err := s.local.Get(userID)
	if err != nil {
		return TotalResult{Result: failure(err)}
	}
	return TotalResult{Result: ok("cart total"), Total: cart.Subtotal(items)}
}

// ItemCount returns the total quantity across all cart lines.
func (s *Syncer) ItemCount(ctx context.Context, userID string) (res CountResult) {
	defer s.guard(&res.Result)
	userID = cart.NormalizeUserID(userID)

	if s.state.Available() {
		count, err := s.remote.Count(ctx, userID)
		switch {
		case err == nil:
			return CountResult{Result: ok("cart count"), Count: count}
		case isTransient(err):
			s.state.MarkUnavailable(err.Error())
		default:
			return CountResult{Result: failure(err)}
		}
	}

	items, err := s.local.Get(userID)
	if err != nil {
		return CountResult{Result: failure(err)}
	}
	return CountResult{Result: ok("cart count"), Count: cart.TotalQuantity(items)}
}

// remoteCartResult fetches the authoritative post-mutation cart so the
// return value reflects server state rather than a locally predicted one.
// When the extra round trip fails transiently it flips availability and
// reports fetched=false, sending the caller down the local path.
func (s *Syncer) remoteCartResult(ctx context.Context, userID, message string) (CartResult, bool) {
	items, err := s.remote.Get(ctx, userID)
	if err != nil {
		s.state.MarkUnavailable(err.Error())
		return CartResult{}, false
	}
	return cartResult(message, items), true
}

// guard converts panics escaping an operation into the generic failure
// result. No fault crosses the façade boundary unshaped.
func (s *Syncer) guard(res *Result) {
	if rec := recover(); rec != nil {
		s.lg.Error("cart operation panicked", zap.Any("panic", rec), zap.Stack("stack"))
		*res = Result{Success: false, Message: "cart operation failed", Kind: FailureStorage}
	}
}

func cartResult(message string, items []cart.Item) CartResult {
	return CartResult{
		Result:    ok(message),
		Items:     items,
		ItemCount: cart.TotalQuantity(items),
	}
}
