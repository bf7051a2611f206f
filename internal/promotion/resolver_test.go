package promotion

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorseWayne/storefront/internal/clock"
	"github.com/MorseWayne/storefront/internal/domain"
)

var day = time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func int64p(v int64) *int64 { return &v }

func product() *domain.Product {
	return &domain.Product{
		ID:         1,
		Title:      "Linen Shirt",
		Price:      d("1000"),
		CategoryID: 5,
		Status:     domain.ProductStatusActive,
		Variants: []*domain.Variant{
			{ID: 11, ProductID: 1, Size: "M", Color: "White", Quantity: 3, Price: d("1000")},
			{ID: 12, ProductID: 1, Size: "L", Color: "White", Quantity: 1, Price: d("1199.99")},
		},
	}
}

func offer(id int64, pct string, category *int64, products ...int64) *domain.Offer {
	return &domain.Offer{
		ID:                 id,
		Name:               "offer",
		DiscountPercentage: d(pct),
		StartDate:          day.AddDate(0, 0, -1),
		EndDate:            day.AddDate(0, 0, 1),
		CategoryID:         category,
		ProductIDs:         products,
		Status:             domain.OfferStatusActive,
	}
}

func TestResolve_NoOffers(t *testing.T) {
	assert.Nil(t, Resolve(product(), nil, day))
	assert.Nil(t, Resolve(product(), []*domain.Offer{offer(1, "10", nil, 99)}, day))
}

func TestResolve_PicksHighestDiscount(t *testing.T) {
	offers := []*domain.Offer{
		offer(1, "10", nil, 1),
		offer(2, "25", int64p(5)),
		offer(3, "15", nil, 1, 2),
	}

	po := Resolve(product(), offers, day)
	require.NotNil(t, po)

	assert.Equal(t, int64(2), po.BestOffer.OfferID)
	assert.Equal(t, domain.OfferTypeCategory, po.BestOffer.Type)
	assert.True(t, d("25").Equal(po.DiscountPercentage))
	assert.True(t, d("750").Equal(po.DiscountedPrice))
	assert.True(t, d("250").Equal(po.Savings))
	require.Len(t, po.ApplicableOffers, 3)
	assert.Equal(t, domain.OfferTypeProduct, po.ApplicableOffers[1].Type)

	require.Len(t, po.Variants, 2)
	assert.True(t, d("899.99").Equal(po.Variants[1].DiscountedPrice), "got %s", po.Variants[1].DiscountedPrice)
	assert.True(t, d("300").Equal(po.Variants[1].Savings))
}

func TestResolve_TieBreakIsOrderIndependent(t *testing.T) {
	offers := []*domain.Offer{
		offer(7, "20", nil, 1),
		offer(3, "20", int64p(5)),
		offer(9, "20", nil, 1),
		offer(4, "5", nil, 1),
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(offers), func(a, b int) { offers[a], offers[b] = offers[b], offers[a] })
		po := Resolve(product(), offers, day)
		require.NotNil(t, po)
		assert.Equal(t, int64(3), po.BestOffer.OfferID)
	}
}

func TestResolve_IgnoresInactiveAndOutOfWindow(t *testing.T) {
	inactive := offer(1, "50", nil, 1)
	inactive.Status = domain.OfferStatusInactive

	expired := offer(2, "40", nil, 1)
	expired.EndDate = day.AddDate(0, 0, -1)

	future := offer(3, "30", nil, 1)
	future.StartDate = day.AddDate(0, 0, 1)

	lastDay := offer(4, "10", nil, 1)
	lastDay.EndDate = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	po := Resolve(product(), []*domain.Offer{inactive, expired, future, lastDay}, day)
	require.NotNil(t, po)
	assert.Equal(t, int64(4), po.BestOffer.OfferID)
	assert.Len(t, po.ApplicableOffers, 1)
}

func TestUnitPrice(t *testing.T) {
	p := product()
	po := Resolve(p, []*domain.Offer{offer(1, "10", nil, 1)}, day)

	assert.True(t, d("900").Equal(UnitPrice(po, p.Variants[0])))
	assert.True(t, d("1000").Equal(UnitPrice(nil, p.Variants[0])))
}

type stubSource struct {
	offers []*domain.Offer
	err    error
	calls  int
}

func (s *stubSource) ListAll(ctx context.Context) ([]*domain.Offer, error) {
	s.calls++
	return s.offers, s.err
}

func TestResolver_ForProducts(t *testing.T) {
	src := &stubSource{offers: []*domain.Offer{offer(1, "10", nil, 1)}}
	r := NewResolver(src, clock.NewFixed(day))

	other := &domain.Product{ID: 2, CategoryID: 8, Price: d("50")}
	got, err := r.ForProducts(context.Background(), []*domain.Product{product(), other})
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Contains(t, got, int64(1))
	assert.NotContains(t, got, int64(2))

	src.err = errors.New("db down")
	_, err = r.ForProduct(context.Background(), product())
	assert.Error(t, err)
}

func TestDayCache(t *testing.T) {
	o := offer(1, "10", nil, 1)
	o.StartDate = day
	o.EndDate = day
	cache := NewDayCache([]*domain.Offer{o}, time.UTC)

	assert.NotNil(t, cache.Resolve(product(), day))
	assert.NotNil(t, cache.Resolve(product(), day.Add(-10*time.Hour)))
	assert.Nil(t, cache.Resolve(product(), day.AddDate(0, 0, 1)))
	assert.Equal(t, 2, cache.Days())
}
