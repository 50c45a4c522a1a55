// Package remote wraps the external cart HTTP API. Each cart action maps to
// one request; transport failures and server errors come back as
// TransientError values so the caller can fall back to local storage instead
// of failing hard.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/cartbridge/internal/domain/cart"
)

// DefaultTimeout bounds every remote call so that availability decisions are
// made promptly instead of hanging on a dead endpoint.
const DefaultTimeout = 5 * time.Second

// TransientError indicates the remote API could not serve the request:
// a transport failure, a timeout, or a 5xx response. It signals the caller
// to switch to the local store.
type TransientError struct {
	Op     string
	Status int // zero for transport failures
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("cart api %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("cart api %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Config configures the remote cart client.
type Config struct {
	// BaseURL is the API root, e.g. "https://example.com". The client appends
	// /api/cart/... paths to it.
	BaseURL string
	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the underlying client. When nil, a client with an
	// otel-instrumented transport is used.
	HTTPClient *http.Client
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Client issues cart API requests.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	lg      *zap.Logger
}

// NewClient validates the base URL and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("remote: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, errors.Wrap(err, "remote: parse base URL")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		timeout: timeout,
		lg:      lg,
	}, nil
}

// cartRow is the wire shape of one cart line as returned by the API.
type cartRow struct {
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

// envelope is the uniform success/message response body.
type envelope struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	NewQuantity int     `json:"newQuantity"`
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

// Get fetches the user's cart.
func (c *Client) Get(ctx context.Context, userID string) ([]cart.Item, error) {
	var rows []cartRow
	err := c.do(ctx, "get cart", http.MethodGet, c.cartPath("", userID), nil, &rows)
	if err != nil {
		return nil, err
	}

	items := make([]cart.Item, len(rows))
	for i, r := range rows {
		items[i] = r.toItem()
	}
	return items, nil
}

// Add upserts a line for the product, accumulating quantity server-side when
// the line already exists. It returns the resulting line quantity.
func (c *Client) Add(ctx context.Context, userID string, p cart.Product, quantity int) (int, error) {
	body := addRequest{
		Product: addProduct{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.Price.InexactFloat64(),
			OriginalPrice: p.OriginalPrice.InexactFloat64(),
			Discount:      p.Discount.InexactFloat64(),
			ImageURL:      p.ImageURL,
		},
		Quantity: quantity,
		UserID:   userID,
	}

	var resp envelope
	if err := c.do(ctx, "add item", http.MethodPost, "/api/cart/add", body, &resp); err != nil {
		return 0, err
	}
	return resp.NewQuantity, nil
}

// Remove deletes the line for productID from the user's cart.
func (c *Client) Remove(ctx context.Context, userID, productID string) error {
	return c.do(ctx, "remove item", http.MethodDelete,
		c.cartPath("remove", userID, productID), nil, nil)
}

// UpdateQuantity sets the absolute quantity of an existing line.
func (c *Client) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	return c.do(ctx, "update quantity", http.MethodPut,
		c.cartPath("update", userID, productID), updateRequest{Quantity: quantity}, nil)
}

// Clear deletes every line of the user's cart.
func (c *Client) Clear(ctx context.Context, userID string) error {
	return c.do(ctx, "clear cart", http.MethodDelete, c.cartPath("clear", userID), nil, nil)
}

// Total returns the server-computed discount-aware cart total.
func (c *Client) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	var resp envelope
	if err := c.do(ctx, "cart total", http.MethodGet, c.cartPath("total", userID), nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(resp.Total).Round(2), nil
}

// Count returns the total item quantity in the user's cart.
func (c *Client) Count(ctx context.Context, userID string) (int, error) {
	var resp envelope
	if err := c.do(ctx, "cart count", http.MethodGet, c.cartPath("count", userID), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// cartPath builds /api/cart[/op]/{userID}[/{productID}] with escaped segments.
func (c *Client) cartPath(op string, segments ...string) string {
	parts := []string{"/api/cart"}
	if op != "" {
		parts = append(parts, op)
	}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return strings.Join(parts, "/")
}

// do performs one API call. Transport failures and 5xx responses come back
// as *TransientError; 404 maps to cart.NotFoundError and other 4xx to
// cart.ValidationError using the server's message.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.lg.Debug("cart api request failed", zap.String("op", op), zap.Error(err))
		return &TransientError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransientError{Op: op, Err: err}
	}

	if resp.StatusCode >= 500 {
		c.lg.Debug("cart api server error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return &TransientError{Op: op, Status: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		return mapClientError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &TransientError{Op: op, Err: errors.Wrap(err, "decode response")}
		}
	}
	return nil
}

// mapClientError converts a 4xx response into the matching domain error.
func mapClientError(status int, data []byte) error {
	var env envelope
	_ = json.Unmarshal(data, &env)

	if status == http.StatusNotFound {
		return &cart.NotFoundError{ProductID: productIDFromMessage(env.Message)}
	}
	reason := env.Message
	if reason == "" {
		reason = fmt.Sprintf("rejected with status %d", status)
	}
	return &cart.ValidationError{Field: "request", Reason: reason}
}

// productIDFromMessage extracts the product id from messages shaped like
// "product <id> not found in cart". Best effort; an empty id is acceptable.
func productIDFromMessage(msg string) string {
	fields := strings.Fields(msg)
	if len(fields) >= 2 && fields[0] == "product" {
		return fields[1]
	}
	return ""
}

func (r cartRow) toItem() cart.Item {
	return cart.Item{
		ID:            r.ProductID,
		Name:          r.Name,
		Price:         decimal.NewFromFloat(r.Price),
		OriginalPrice: decimal.NewFromFloat(r.OriginalPrice),
		Discount:      decimal.NewFromFloat(r.Discount),
		ImageURL:      r.ImageURL,
		Quantity:      r.Quantity,
		AddedAt:       r.AddedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
