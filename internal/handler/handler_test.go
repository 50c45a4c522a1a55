package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cartbridge/internal/domain/cart"
	"github.com/xenking/cartbridge/internal/remote"
)

// memStore is an in-memory Store used to exercise the handler without a
// database.
type memStore struct {
	mu    sync.Mutex
	carts map[string][]cart.Item
	err   error
}

func newMemStore() *memStore {
	return &memStore{carts: make(map[string][]cart.Item)}
}

func (s *memStore) Get(_ context.Context, userID string) ([]cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]cart.Item(nil), s.carts[userID]...), nil
}

func (s *memStore) Upsert(_ context.Context, userID string, p cart.Product, quantity int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	items, qty := cart.Upsert(s.carts[userID], p, quantity, time.Now())
	s.carts[userID] = items
	return qty, nil
}

func (s *memStore) SetQuantity(_ context.Context, userID, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	items, found := cart.SetQuantity(s.carts[userID], productID, quantity, time.Now())
	if !found {
		return &cart.NotFoundError{ProductID: productID}
	}
	s.carts[userID] = items
	return nil
}

func (s *memStore) Remove(_ context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	items, found := cart.Remove(s.carts[userID], productID)
	if !found {
		return &cart.NotFoundError{ProductID: productID}
	}
	s.carts[userID] = items
	return nil
}

func (s *memStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.carts, userID)
	return nil
}

func (s *memStore) Count(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return cart.TotalQuantity(s.carts[userID]), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()
	store := newMemStore()
	mux := http.NewServeMux()
	NewHandler(store).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func addBody(t *testing.T, userID, productID string, price, discount float64, quantity int) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(addRequest{
		Product: addProduct{
			ID:       productID,
			Name:     "Test Product",
			Price:    price,
			Discount: discount,
		},
		Quantity: quantity,
		UserID:   userID,
	})
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestAddAccumulatesQuantity(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/cart/add", "application/json",
		addBody(t, "alice", "p1", 9.99, 0, 2))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)
	assert.Equal(t, 2, env.NewQuantity)

	resp, err = http.Post(srv.URL+"/api/cart/add", "application/json",
		addBody(t, "alice", "p1", 9.99, 0, 3))
	require.NoError(t, err)
	env = decodeEnvelope(t, resp)
	assert.Equal(t, 5, env.NewQuantity)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	srv, store := newTestServer(t)

	tests := []struct {
		name string
		body *bytes.Reader
	}{
		{"zero quantity", addBody(t, "alice", "p1", 9.99, 0, 0)},
		{"quantity above limit", addBody(t, "alice", "p1", 9.99, 0, 100)},
		{"empty product id", addBody(t, "alice", "", 9.99, 0, 1)},
		{"negative price", addBody(t, "alice", "p1", -1, 0, 1)},
		{"discount above 100", addBody(t, "alice", "p1", 9.99, 150, 1)},
		{"malformed json", bytes.NewReader([]byte("{not json"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/cart/add", "application/json", tt.body)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			env := decodeEnvelope(t, resp)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
		})
	}
	assert.Empty(t, store.carts, "rejected requests must not touch the store")
}

func TestGetCartRows(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/cart/add", "application/json",
		addBody(t, "bob", "p1", 100, 25, 2))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/cart/bob")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []itemRow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ProductID)
	assert.InDelta(t, 100, rows[0].Price, 1e-9)
	assert.InDelta(t, 25, rows[0].Discount, 1e-9)
	assert.Equal(t, 2, rows[0].Quantity)
}

func TestRemoveMissingLineIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/cart/remove/alice/ghost", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.Equal(t, "product ghost not found in cart", env.Message)
}

func TestTotalAppliesDiscount(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/cart/add", "application/json",
		addBody(t, "carol", "p1", 100, 25, 2))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/cart/total/carol")
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)
	assert.InDelta(t, 150, env.Total, 1e-9)
}

func TestClearIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)

	for range 2 {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/cart/clear/alice", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}
}

func TestStorageFailureIsOpaque(t *testing.T) {
	srv, store := newTestServer(t)
	store.err = assert.AnError

	resp, err := http.Get(srv.URL + "/api/cart/alice")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.Equal(t, "internal error", env.Message)
}

// TestClientRoundTrip drives the handler through the remote client to pin the
// wire contract between the two.
func TestClientRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	client, err := remote.NewClient(remote.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	ctx := context.Background()
	p := cart.Product{
		ID:       "prod-1",
		Name:     "Widget",
		Price:    decimal.NewFromInt(100),
		Discount: decimal.NewFromInt(25),
	}

	qty, err := client.Add(ctx, "dave", p, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)

	items, err := client.Get(ctx, "dave")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "prod-1", items[0].ID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, items[0].Price.Equal(decimal.NewFromInt(100)))

	total, err := client.Total(ctx, "dave")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(150)), "got total %s", total)

	count, err := client.Count(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, client.UpdateQuantity(ctx, "dave", "prod-1", 7))
	count, err = client.Count(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	require.NoError(t, client.Remove(ctx, "dave", "prod-1"))
	err = client.Remove(ctx, "dave", "prod-1")
	var notFound *cart.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "prod-1", notFound.ProductID)

	require.NoError(t, client.Clear(ctx, "dave"))
	items, err = client.Get(ctx, "dave")
	require.NoError(t, err)
	assert.Empty(t, items)
}
