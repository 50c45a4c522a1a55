// Package handler exposes the cart HTTP API consumed by the remote client.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cartbridge/internal/domain/cart"
)

// Store is the persistence surface the handler drives.
// *postgres.CartRepository implements it.
type Store interface {
	Get(ctx context.Context, userID string) ([]cart.Item, error)
	Upsert(ctx context.Context, userID string, p cart.Product, quantity int) (int, error)
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
	Count(ctx context.Context, userID string) (int, error)
}

// Handler serves the cart API routes.
type Handler struct {
	store Store
}

// NewHandler constructs a Handler over the given store.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes attaches all cart routes to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart/{userId}", h.getCart)
	mux.HandleFunc("POST /api/cart/add", h.addItem)
	mux.HandleFunc("DELETE /api/cart/remove/{userId}/{productId}", h.removeItem)
	mux.HandleFunc("PUT /api/cart/update/{userId}/{productId}", h.updateQuantity)
	mux.HandleFunc("DELETE /api/cart/clear/{userId}", h.clearCart)
	mux.HandleFunc("GET /api/cart/total/{userId}", h.cartTotal)
	mux.HandleFunc("GET /api/cart/count/{userId}", h.cartCount)
}

// itemRow is the wire shape of one cart line.
type itemRow struct {
	ProductID     string    `json:"product_id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"original_price"`
	Discount      float64   `json:"discount"`
	ImageURL      string    `json:"image_url"`
	Quantity      int       `json:"quantity"`
	AddedAt       time.Time `json:"added_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// envelope is the uniform success/message response body. Zero-valued extras
// are omitted so each endpoint only reports its own aggregate.
type envelope struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	NewQuantity int     `json:"newQuantity,omitempty"`
	Total       float64 `json:"total"`
	Count       int     `json:"count"`
}

type addRequest struct {
	Product  addProduct `json:"product"`
	Quantity int        `json:"quantity"`
	UserID   string     `json:"userId"`
}

type addProduct struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"original_price"`
	Discount      float64 `json:"discount"`
	ImageURL      string  `json:"image_url"`
}

type updateRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	userID := cart.NormalizeUserID(r.PathValue("userId"))

	items, err := h.store.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rows := make([]itemRow, len(items))
	for i, it := range items {
		rows[i] = toRow(it)
	}
	writeJSON(w, r, http.StatusOK, rows)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, r, &cart.ValidationError{Field: "request", Reason: "malformed JSON body"})
		return
	}

	p := cart.Product{
		ID:            req.Product.ID,
		Name:          req.Product.Name,
		Price:         decimal.NewFromFloat(req.Product.Price),
		OriginalPrice: decimal.NewFromFloat(req.Product.OriginalPrice),
		Discount:      decimal.NewFromFloat(req.Product.Discount),
		ImageURL:      req.Product.ImageURL,
	}
	if err := cart.ValidateProduct(p); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := cart.ValidateQuantity(req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	userID := cart.NormalizeUserID(req.UserID)

	newQuantity, err := h.store.Upsert(r.Context(), userID, p, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, envelope{
		Success:     true,
		Message:     "item added to cart",
		NewQuantity: newQuantity,
	})
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	userID := cart.NormalizeUserID(r.PathValue("userId"))
	productID := r.PathValue("productId")

	if err := h.store.Remove(r.Context(), userID, productID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "item removed from cart"})
}

func (h *Handler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	userID := cart.NormalizeUserID(r.PathValue("userId"))
	productID := r.PathValue("productId")

	var req updateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, r, &cart.ValidationError{Field: "request", Reason: "malformed JSON body"})
		return
	}
	if err := cart.ValidateQuantity(req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.store.SetQuantity(r.Context(), userID, productID, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "cart updated"})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	userID := cart.NormalizeUserID(r.PathValue("userId"))

	if err := h.store.Clear(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "cart cleared"})
}

func (h *Handler) cartTotal(w http.ResponseWriter, r *http.Request) {
	userID := cart.NormalizeUserID(r.PathValue("userId"))

	items, err := h.store.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	total := cart.Subtotal(items).InexactFloat64()
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "cart total", Total: total})
}

func (h *Handler) cartCount(w http.ResponseWriter, r *http.Request) {
	userID := cart.NormalizeUserID(r.PathValue("userId"))

	count, err := h.store.Count(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "cart count", Count: count})
}

// writeError maps domain errors to HTTP status codes. Storage failures are
// logged server-side and reported as an opaque 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *cart.NotFoundError
		validation *cart.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		writeJSON(w, r, http.StatusNotFound, envelope{Message: notFound.Error()})
	case errors.As(err, &validation):
		writeJSON(w, r, http.StatusBadRequest, envelope{Message: validation.Error()})
	default:
		zctx.From(r.Context()).Error("cart request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, r, http.StatusInternalServerError, envelope{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Debug("write response", zap.Error(err))
	}
}

func toRow(it cart.Item) itemRow {
	return itemRow{
		ProductID:     it.ID,
		Name:          it.Name,
		Price:         it.Price.InexactFloat64(),
		OriginalPrice: it.OriginalPrice.InexactFloat64(),
		Discount:      it.Discount.InexactFloat64(),
		ImageURL:      it.ImageURL,
		Quantity:      it.Quantity,
		AddedAt:       it.AddedAt,
		UpdatedAt:     it.UpdatedAt,
	}
}
