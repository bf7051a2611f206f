package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCart_AddItemMergesSameVariant(t *testing.T) {
	cart := &Cart{UserID: 1}

	cart.AddItem(&CartItem{ID: "a", ProductID: 10, Size: "M", Color: "Red", Quantity: 2, Price: dec("19.99")})
	merged := cart.AddItem(&CartItem{ID: "b", ProductID: 10, Size: "m", Color: "red", Quantity: 1, Price: dec("19.99")})

	require.Len(t, cart.Items, 1)
	assert.Equal(t, "a", merged.ID)
	assert.Equal(t, 3, merged.Quantity)
	assert.Equal(t, 3, cart.TotalItems)
	assert.True(t, dec("59.97").Equal(cart.TotalPrice), "got %s", cart.TotalPrice)
}

func TestCart_AddItemDifferentSize(t *testing.T) {
	cart := &Cart{UserID: 1}

	cart.AddItem(&CartItem{ID: "a", ProductID: 10, Size: "M", Color: "Red", Quantity: 1, Price: dec("10")})
	cart.AddItem(&CartItem{ID: "b", ProductID: 10, Size: "L", Color: "Red", Quantity: 1, Price: dec("12.50")})

	require.Len(t, cart.Items, 2)
	assert.Equal(t, 2, cart.TotalItems)
	assert.True(t, dec("22.50").Equal(cart.TotalPrice))
}

func TestCart_RemoveMatching(t *testing.T) {
	newCart := func() *Cart {
		c := &Cart{UserID: 1}
		c.AddItem(&CartItem{ID: "a", ProductID: 10, Size: "M", Color: "Red", Quantity: 1, Price: dec("10")})
		c.AddItem(&CartItem{ID: "b", ProductID: 10, Size: "L", Color: "Blue", Quantity: 2, Price: dec("10")})
		c.AddItem(&CartItem{ID: "c", ProductID: 11, Size: "M", Color: "Red", Quantity: 1, Price: dec("5")})
		return c
	}

	tests := []struct {
		name        string
		size, color string
		wantRemoved int
		wantTotal   string
	}{
		{name: "any variant", wantRemoved: 2, wantTotal: "5"},
		{name: "size only", size: "L", wantRemoved: 1, wantTotal: "15"},
		{name: "exact variant, color case-insensitive", size: "M", color: "RED", wantRemoved: 1, wantTotal: "25"},
		{name: "exact variant, size case-insensitive", size: "m", color: "red", wantRemoved: 1, wantTotal: "25"},
		{name: "size only, lower case", size: "l", wantRemoved: 1, wantTotal: "15"},
		{name: "no match", size: "XL", wantRemoved: 0, wantTotal: "35"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCart()
			removed := c.RemoveMatching(10, tt.size, tt.color)
			assert.Equal(t, tt.wantRemoved, removed)
			assert.True(t, dec(tt.wantTotal).Equal(c.TotalPrice), "got %s", c.TotalPrice)
		})
	}
}

func TestCart_RecalculateIsFullReduction(t *testing.T) {
	cart := &Cart{
		Items: []*CartItem{
			{ID: "a", Quantity: 3, Price: dec("0.10")},
			{ID: "b", Quantity: 7, Price: dec("0.20")},
		},
		TotalItems: 99,
		TotalPrice: dec("1000"),
	}

	cart.Recalculate()

	assert.Equal(t, 10, cart.TotalItems)
	assert.True(t, dec("1.70").Equal(cart.TotalPrice))
	assert.True(t, dec("0.30").Equal(cart.Items[0].Subtotal))
}
