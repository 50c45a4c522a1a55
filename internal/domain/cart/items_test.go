package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestUpsert_NewLine(t *testing.T) {
	p := validProduct()

	items, qty := Upsert(nil, p, 2, testNow)

	require.Len(t, items, 1)
	assert.Equal(t, 2, qty)
	assert.Equal(t, "p1", items[0].ID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, testNow, items[0].AddedAt)
	assert.Equal(t, testNow, items[0].UpdatedAt)
	// OriginalPrice defaults to Price.
	assert.True(t, items[0].Price.Equal(items[0].OriginalPrice))
}

func TestUpsert_AccumulatesQuantity(t *testing.T) {
	p := validProduct()
	later := testNow.Add(time.Minute)

	items, _ := Upsert(nil, p, 2, testNow)
	items, qty := Upsert(items, p, 3, later)

	require.Len(t, items, 1)
	assert.Equal(t, 5, qty)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, testNow, items[0].AddedAt)
	assert.Equal(t, later, items[0].UpdatedAt)
}

func TestUpsert_DoesNotMutateInput(t *testing.T) {
	p := validProduct()
	orig, _ := Upsert(nil, p, 1, testNow)

	_, _ = Upsert(orig, p, 4, testNow)

	assert.Equal(t, 1, orig[0].Quantity)
}

func TestRemove(t *testing.T) {
	p1 := validProduct()
	p2 := validProduct()
	p2.ID = "p2"

	items, _ := Upsert(nil, p1, 1, testNow)
	items, _ = Upsert(items, p2, 2, testNow)

	t.Run("present id", func(t *testing.T) {
		out, ok := Remove(items, "p1")
		require.True(t, ok)
		require.Len(t, out, 1)
		assert.Equal(t, "p2", out[0].ID)
	})

	t.Run("absent id", func(t *testing.T) {
		out, ok := Remove(items, "missing")
		assert.False(t, ok)
		assert.Len(t, out, 2)
	})
}

func TestSetQuantity(t *testing.T) {
	p := validProduct()
	items, _ := Upsert(nil, p, 1, testNow)
	later := testNow.Add(time.Hour)

	out, ok := SetQuantity(items, "p1", 9, later)
	require.True(t, ok)
	assert.Equal(t, 9, out[0].Quantity)
	assert.Equal(t, later, out[0].UpdatedAt)
	// Input untouched.
	assert.Equal(t, 1, items[0].Quantity)

	_, ok = SetQuantity(items, "missing", 5, later)
	assert.False(t, ok)
}

func TestFind(t *testing.T) {
	p := validProduct()
	items, _ := Upsert(nil, p, 1, testNow)

	require.NotNil(t, Find(items, "p1"))
	assert.Nil(t, Find(items, "nope"))
}
