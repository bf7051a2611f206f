package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	g := NewFake("s3cret")
	sig := Sign("s3cret", "order_1", "pay_1")

	tests := []struct {
		name               string
		order, payment, sg string
		want               bool
	}{
		{"valid", "order_1", "pay_1", sig, true},
		{"uppercase hex", "order_1", "pay_1", strings.ToUpper(sig), true},
		{"swapped ids", "pay_1", "order_1", sig, false},
		{"other payment", "order_1", "pay_2", sig, false},
		{"not hex", "order_1", "pay_1", "zz", false},
		{"empty", "order_1", "pay_1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.VerifySignature(tt.order, tt.payment, tt.sg))
		})
	}
}

func TestSign_WrongSecret(t *testing.T) {
	assert.NotEqual(t, Sign("a", "o", "p"), Sign("b", "o", "p"))
	assert.Len(t, Sign("a", "o", "p"), 64)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(64000), MinorUnits(decimal.RequireFromString("640")))
	assert.Equal(t, int64(89999), MinorUnits(decimal.RequireFromString("899.99")))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005")))
}

func TestFake_CreateOrder(t *testing.T) {
	g := NewFake("s")
	o, err := g.CreateOrder(context.Background(), decimal.RequireFromString("10.50"), "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1050), o.Amount)
	assert.NotEmpty(t, o.ID)
	assert.Len(t, g.Orders, 1)
}
