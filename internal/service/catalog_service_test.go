package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
)

func TestCartService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addOffer(t, "spring", "10", nil, env.product.ID)

	add := func(size, color string, qty int) (*domain.Cart, error) {
		return env.cartSvc.AddItem(ctx, &domain.AddToCartRequest{
			UserID:    env.userID,
			ProductID: env.product.ID,
			Variant:   domain.VariantSelector{Size: size, Color: color},
			Quantity:  qty,
		})
	}

	empty, err := env.cartSvc.Get(ctx, env.userID)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	_, err = add("M", "Red", 2)
	require.NoError(t, err)
	cart, err := add("m", "red", 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "same variant merges regardless of case")
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, dec("900").Equal(cart.Items[0].Price), "offer price is captured")

	cart, err = add("L", "Blue", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.TotalItems)
	assert.True(t, dec("3600").Equal(cart.TotalPrice), "got %s", cart.TotalPrice)

	_, err = add("M", "Red", 3)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	_, err = add("XL", "Red", 1)
	require.ErrorIs(t, err, domain.ErrVariantNotFound)

	red := cart.FindVariant(env.product.ID, "M", "Red")
	require.NotNil(t, red)
	_, err = env.cartSvc.UpdateQuantity(ctx, env.userID, red.ID, 6)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	_, err = env.cartSvc.UpdateQuantity(ctx, env.userID, red.ID, 0)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = env.cartSvc.UpdateQuantity(ctx, env.userID, "missing", 1)
	require.ErrorIs(t, err, domain.ErrCartItemNotFound)

	cart, err = env.cartSvc.UpdateQuantity(ctx, env.userID, red.ID, 1)
	require.NoError(t, err)
	assert.True(t, dec("1800").Equal(cart.TotalPrice), "got %s", cart.TotalPrice)

	cart, err = env.cartSvc.RemoveItem(ctx, env.userID, &domain.RemoveFromCartRequest{ProductID: env.product.ID, Size: "L", Color: "Blue"})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	_, err = env.cartSvc.RemoveItem(ctx, env.userID, &domain.RemoveFromCartRequest{ProductID: env.product.ID, Size: "L", Color: "Blue"})
	require.ErrorIs(t, err, domain.ErrCartItemNotFound)

	// 商品被删除后购物车行仍保留，名称显示为 Unknown Product
	env.store.mu.Lock()
	delete(env.store.products, env.product.ID)
	env.store.mu.Unlock()
	cart, err = env.cartSvc.Get(ctx, env.userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 0, cart.Items[0].AvailableQuantity)
}

func TestCouponService_Preview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.couponSvc.Preview(ctx, env.userID, &domain.ApplyCouponRequest{Code: "SAVE"})
	require.ErrorIs(t, err, domain.ErrCartNotFound)

	coupon, err := env.couponSvc.Create(ctx, &domain.CouponRequest{
		Code:               "save",
		DiscountPercentage: dec("50"),
		MaxDiscount:        dec("300"),
		ExpiryDate:         "2024-03-31",
	})
	require.NoError(t, err)
	assert.Equal(t, "SAVE", coupon.Code)

	_, err = env.couponSvc.Create(ctx, &domain.CouponRequest{Code: "SAVE", DiscountPercentage: dec("5"), ExpiryDate: "2024-03-31"})
	require.ErrorIs(t, err, domain.ErrCouponExists)

	_, err = env.cartSvc.AddItem(ctx, &domain.AddToCartRequest{
		UserID:    env.userID,
		ProductID: env.product.ID,
		Variant:   domain.VariantSelector{Size: "M", Color: "Red"},
		Quantity:  1,
	})
	require.NoError(t, err)

	preview, err := env.couponSvc.Preview(ctx, env.userID, &domain.ApplyCouponRequest{Code: "save"})
	require.NoError(t, err)
	assert.True(t, dec("300").Equal(preview.Discount), "discount is capped")
	assert.True(t, dec("700").Equal(preview.Total))

	env.clock.Set(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	_, err = env.couponSvc.Preview(ctx, env.userID, &domain.ApplyCouponRequest{Code: "save"})
	require.ErrorIs(t, err, domain.ErrCouponExpired)

	active, err := env.couponSvc.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active, "expired coupons are hidden from users")
	all, err := env.couponSvc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProductService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewProductService(mockProductRepo{env.store}, mockCategoryRepo{env.store}, env.resolver, zap.NewNop())

	_, err := svc.CreateProduct(ctx, &domain.CreateProductRequest{
		Title:      "tee",
		Price:      dec("10"),
		CategoryID: env.category.ID,
		Variants:   []domain.VariantRequest{{Size: "S", Color: "Black", Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrProductExists)

	_, err = svc.CreateProduct(ctx, &domain.CreateProductRequest{
		Title:      "Hoodie",
		Price:      dec("10"),
		CategoryID: 9999,
		Variants:   []domain.VariantRequest{{Size: "S", Color: "Black", Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)

	hoodie, err := svc.CreateProduct(ctx, &domain.CreateProductRequest{
		Title:      " Hoodie ",
		Price:      dec("1500"),
		CategoryID: env.category.ID,
		Variants:   []domain.VariantRequest{{Size: "S", Color: "Black", Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hoodie", hoodie.Title)
	require.Len(t, hoodie.Variants, 1)
	assert.True(t, dec("1500").Equal(hoodie.Variants[0].Price), "zero variant price inherits product price")

	_, err = svc.UpdateProduct(ctx, hoodie.ID, &domain.UpdateProductRequest{
		Variants: []domain.VariantRequest{{Size: "s", Color: "black", Quantity: 2}},
	})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	inactive := domain.ProductStatusInactive
	updated, err := svc.UpdateProduct(ctx, hoodie.ID, &domain.UpdateProductRequest{
		Status:   &inactive,
		Variants: []domain.VariantRequest{{ID: hoodie.Variants[0].ID, Size: "S", Color: "Black", Quantity: 9, Price: dec("1400")}, {Size: "M", Color: "Black", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Variants, 2)
	assert.Equal(t, 9, updated.Variants[0].Quantity)

	_, err = svc.GetStorefront(ctx, hoodie.ID)
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	listed, err := svc.ListStorefront(ctx, &domain.ProductListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), listed.Total)
	admin, err := svc.ListProducts(ctx, &domain.ProductListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), admin.Total)

	env.addOffer(t, "tees", "25", int64Ptr(env.category.ID))
	view, err := svc.GetStorefront(ctx, env.product.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Offer)
	assert.True(t, dec("750").Equal(view.Offer.DiscountedPrice))
}

func TestOfferService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewOfferService(mockOfferRepo{env.store}, mockCategoryRepo{env.store}, time.UTC, zap.NewNop())

	_, err := svc.Create(ctx, &domain.OfferRequest{Name: "none", DiscountPercentage: dec("10"), StartDate: "2024-03-01", EndDate: "2024-03-31"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = svc.Create(ctx, &domain.OfferRequest{Name: "bad", DiscountPercentage: dec("10"), StartDate: "2024-03-01", EndDate: "2024-03-31", CategoryID: int64Ptr(9999)})
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)

	offer, err := svc.Create(ctx, &domain.OfferRequest{Name: "march", DiscountPercentage: dec("15"), StartDate: "2024-03-01", EndDate: "2024-03-31", CategoryID: int64Ptr(env.category.ID)})
	require.NoError(t, err)
	assert.Equal(t, domain.OfferTypeCategory, offer.Type())

	updated, err := svc.Update(ctx, offer.ID, &domain.OfferRequest{Name: "march", DiscountPercentage: dec("5"), StartDate: "2024-03-01", EndDate: "2024-03-31", ProductIDs: []int64{env.product.ID}})
	require.NoError(t, err)
	assert.Equal(t, domain.OfferTypeProduct, updated.Type())

	_, err = svc.Update(ctx, 9999, &domain.OfferRequest{Name: "x", StartDate: "2024-03-01", EndDate: "2024-03-31", ProductIDs: []int64{1}})
	require.ErrorIs(t, err, domain.ErrOfferNotFound)

	require.NoError(t, svc.Delete(ctx, offer.ID))
	require.ErrorIs(t, svc.Delete(ctx, offer.ID), domain.ErrOfferNotFound)
}

func TestCategoryService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewCategoryService(mockCategoryRepo{env.store}, zap.NewNop())

	_, err := svc.Create(ctx, &domain.CreateCategoryRequest{Name: "shirts"})
	require.ErrorIs(t, err, domain.ErrCategoryExists)

	pants, err := svc.Create(ctx, &domain.CreateCategoryRequest{Name: "Pants"})
	require.NoError(t, err)
	assert.True(t, pants.IsActive())

	inactive := domain.CategoryStatusInactive
	_, err = svc.Update(ctx, pants.ID, &domain.UpdateCategoryRequest{Status: &inactive})
	require.NoError(t, err)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAddressService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewAddressService(mockAddressRepo{env.store}, zap.NewNop())
	const userID = 77

	req := &domain.AddressRequest{Name: "Zed", Phone: "1234567", City: "Goa", State: "GA", PostalCode: "403001", Country: "IN"}
	first, err := svc.Create(ctx, userID, req)
	require.NoError(t, err)
	assert.True(t, first.IsDefault, "first address becomes default")

	req.IsDefault = true
	second, err := svc.Create(ctx, userID, req)
	require.NoError(t, err)
	assert.True(t, second.IsDefault)

	list, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].IsDefault)

	_, err = svc.Update(ctx, env.userID, second.ID, req)
	require.ErrorIs(t, err, domain.ErrAddressNotFound)
	require.ErrorIs(t, svc.Delete(ctx, env.userID, second.ID), domain.ErrAddressNotFound)
	require.NoError(t, svc.Delete(ctx, userID, second.ID))
}

func TestWishlistService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewWishlistService(mockWishlistRepo{env.store}, mockProductRepo{env.store}, env.resolver, zap.NewNop())
	env.addOffer(t, "tees", "20", int64Ptr(env.category.ID))

	require.NoError(t, svc.Add(ctx, env.userID, env.product.ID))
	require.ErrorIs(t, svc.Add(ctx, env.userID, env.product.ID), domain.ErrWishlistDuplicate)
	require.ErrorIs(t, svc.Add(ctx, env.userID, 9999), domain.ErrProductNotFound)

	entries, err := svc.List(ctx, env.userID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, dec("800").Equal(entries[0].OfferPrice))
	assert.True(t, entries[0].InStock)

	require.NoError(t, svc.Remove(ctx, env.userID, env.product.ID))
	require.ErrorIs(t, svc.Remove(ctx, env.userID, env.product.ID), domain.ErrWishlistNotFound)
}

func TestWalletService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewWalletService(mockWalletRepo{env.store}, zap.NewNop())

	_, err := mockWalletRepo{env.store}.Credit(ctx, &domain.WalletCredit{UserID: env.userID, Amount: dec("120.50"), Reference: "manual:1"})
	require.NoError(t, err)

	w, err := svc.Get(ctx, env.userID)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.True(t, dec("120.50").Equal(w.Balance))
	require.Len(t, w.Transactions, 1)

	_, err = mockWalletRepo{env.store}.Credit(ctx, &domain.WalletCredit{UserID: env.userID, Amount: dec("-1")})
	require.Error(t, err)

	missing, err := svc.Get(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReportService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addOffer(t, "tees", "20", int64Ptr(env.category.ID))
	svc := NewReportService(env.orders, mockOfferRepo{env.store}, mockProductRepo{env.store}, env.clock, zap.NewNop())

	env.place(t, "COD", env.line("M", "Red", 1))
	cancelled := env.place(t, "COD", env.line("L", "Blue", 1))
	_, err := env.orderSvc.UpdateStatus(ctx, cancelled.ID, &domain.UpdateOrderStatusRequest{OrderStatus: "Cancelled"})
	require.NoError(t, err)

	req := &domain.SalesReportRequest{StartDate: "2024-03-10", EndDate: "2024-03-10"}
	r, err := svc.Sales(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Summary.OrderCount)
	assert.True(t, dec("1050").Equal(r.Summary.GrossSales), "got %s", r.Summary.GrossSales)
	assert.True(t, dec("200").Equal(r.Summary.DiscountTotal), "got %s", r.Summary.DiscountTotal)
	assert.True(t, dec("850").Equal(r.Summary.NetRevenue), "got %s", r.Summary.NetRevenue)

	empty, err := svc.Sales(ctx, &domain.SalesReportRequest{StartDate: "2024-03-11", EndDate: "2024-03-12"})
	require.NoError(t, err)
	assert.Zero(t, empty.Summary.OrderCount)

	_, err = svc.Sales(ctx, &domain.SalesReportRequest{StartDate: "2024-03-10", EndDate: "2024-03-09"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	file, err := svc.Download(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, file.Data)
	assert.True(t, strings.HasSuffix(file.Filename, ".xlsx"))

	pdf, err := svc.Download(ctx, &domain.SalesReportRequest{StartDate: "2024-03-10", EndDate: "2024-03-10", Format: domain.ReportFormatPDF})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)

	_, err = svc.Download(ctx, &domain.SalesReportRequest{StartDate: "2024-03-10", EndDate: "2024-03-10", Format: "csv"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
