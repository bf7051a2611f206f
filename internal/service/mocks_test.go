package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/repo"
)

// memStore 进程内数据集，各仓储模拟共享同一份数据，
// 以便下单、取消等跨仓储事务在测试中也保持原子
type memStore struct {
	mu sync.Mutex

	users      map[int64]*domain.User
	wallets    map[int64]*domain.Wallet // userID -> wallet
	addresses  map[int64]*domain.Address
	categories map[int64]*domain.Category
	products   map[int64]*domain.Product
	offers     map[int64]*domain.Offer
	coupons    map[int64]*domain.Coupon
	couponUses map[[2]int64]bool // {couponID, userID}
	carts      map[int64]*domain.Cart
	wishlist   map[int64][]*domain.WishlistItem
	orders     map[int64]*domain.Order

	invalidated []int64
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[int64]*domain.User),
		wallets:    make(map[int64]*domain.Wallet),
		addresses:  make(map[int64]*domain.Address),
		categories: make(map[int64]*domain.Category),
		products:   make(map[int64]*domain.Product),
		offers:     make(map[int64]*domain.Offer),
		coupons:    make(map[int64]*domain.Coupon),
		couponUses: make(map[[2]int64]bool),
		carts:      make(map[int64]*domain.Cart),
		wishlist:   make(map[int64][]*domain.WishlistItem),
		orders:     make(map[int64]*domain.Order),
		nextID:     100,
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

// clone 深拷贝，模拟数据库读写时的序列化边界
func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

// ---- users ----

// copyUser 用户的凭据字段不参与 JSON 序列化，单独浅拷贝
func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

type mockUserRepo struct{ s *memStore }

func (m mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return domain.ErrUserExists
		}
	}
	user.ID = m.s.id()
	m.s.users[user.ID] = copyUser(user)
	m.s.wallets[user.ID] = &domain.Wallet{ID: m.s.id(), UserID: user.ID, Balance: decimal.Zero}
	return nil
}

func (m mockUserRepo) find(match func(u *domain.User) bool) *domain.User {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if match(u) {
			return copyUser(u)
		}
	}
	return nil
}

func (m mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id }), nil
}

func (m mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return strings.EqualFold(u.Username, username) }), nil
}

func (m mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (m mockUserRepo) GetByGoogleSub(ctx context.Context, sub string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.GoogleSub != "" && u.GoogleSub == sub }), nil
}

func (m mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	m.s.users[user.ID] = copyUser(user)
	return nil
}

func (m mockUserRepo) List(ctx context.Context, req *domain.UserListRequest) ([]*domain.User, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.User
	for _, u := range m.s.users {
		if req.Keyword == "" || strings.Contains(u.Username, req.Keyword) {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m mockUserRepo) UpdateStatus(ctx context.Context, userID int64, isActive bool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsActive = isActive
	return nil
}

// ---- wallets ----

type mockWalletRepo struct{ s *memStore }

func (m mockWalletRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return clone(m.s.wallets[userID]), nil
}

func (m mockWalletRepo) Create(ctx context.Context, userID int64) (*domain.Wallet, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if w, ok := m.s.wallets[userID]; ok {
		return clone(w), nil
	}
	w := &domain.Wallet{ID: m.s.id(), UserID: userID, Balance: decimal.Zero}
	m.s.wallets[userID] = w
	return clone(w), nil
}

func (m mockWalletRepo) Credit(ctx context.Context, credit *domain.WalletCredit) (*domain.WalletTransaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.credit(credit)
}

// credit 调用方持有锁
func (s *memStore) credit(credit *domain.WalletCredit) (*domain.WalletTransaction, error) {
	if err := credit.Validate(); err != nil {
		return nil, err
	}
	w, ok := s.wallets[credit.UserID]
	if !ok {
		if !credit.CreateIfMissing {
			return nil, domain.ErrWalletNotFound
		}
		w = &domain.Wallet{ID: s.id(), UserID: credit.UserID, Balance: decimal.Zero}
		s.wallets[credit.UserID] = w
	}
	txn := &domain.WalletTransaction{
		ID:          s.id(),
		WalletID:    w.ID,
		Type:        domain.TransactionCredit,
		Amount:      credit.Amount,
		OrderID:     credit.OrderID,
		Reference:   credit.Reference,
		Description: credit.Description,
	}
	w.Transactions = append([]*domain.WalletTransaction{txn}, w.Transactions...)
	w.Balance = w.Balance.Add(credit.Amount)
	return clone(txn), nil
}

// ---- addresses ----

type mockAddressRepo struct{ s *memStore }

func (m mockAddressRepo) Create(ctx context.Context, addr *domain.Address) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if addr.IsDefault {
		m.s.clearDefault(addr.UserID)
	}
	addr.ID = m.s.id()
	m.s.addresses[addr.ID] = clone(addr)
	return nil
}

func (s *memStore) clearDefault(userID int64) {
	for _, a := range s.addresses {
		if a.UserID == userID {
			a.IsDefault = false
		}
	}
}

func (m mockAddressRepo) GetByID(ctx context.Context, userID, id int64) (*domain.Address, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.addresses[id]
	if !ok || a.UserID != userID {
		return nil, nil
	}
	return clone(a), nil
}

func (m mockAddressRepo) ListByUser(ctx context.Context, userID int64) ([]*domain.Address, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.Address
	for _, a := range m.s.addresses {
		if a.UserID == userID {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m mockAddressRepo) Update(ctx context.Context, addr *domain.Address) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.addresses[addr.ID]
	if !ok || a.UserID != addr.UserID {
		return domain.ErrAddressNotFound
	}
	if addr.IsDefault {
		m.s.clearDefault(addr.UserID)
	}
	m.s.addresses[addr.ID] = clone(addr)
	return nil
}

func (m mockAddressRepo) Delete(ctx context.Context, userID, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.addresses[id]
	if !ok || a.UserID != userID {
		return domain.ErrAddressNotFound
	}
	delete(m.s.addresses, id)
	return nil
}

// ---- categories ----

type mockCategoryRepo struct{ s *memStore }

func (m mockCategoryRepo) Create(ctx context.Context, c *domain.Category) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return domain.ErrCategoryExists
		}
	}
	c.ID = m.s.id()
	m.s.categories[c.ID] = clone(c)
	return nil
}

func (m mockCategoryRepo) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return clone(m.s.categories[id]), nil
}

func (m mockCategoryRepo) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.categories {
		if strings.EqualFold(c.Name, name) {
			return clone(c), nil
		}
	}
	return nil, nil
}

func (m mockCategoryRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Category, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.Category
	for _, c := range m.s.categories {
		if !activeOnly || c.IsActive() {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m mockCategoryRepo) Update(ctx context.Context, c *domain.Category) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.categories[c.ID]; !ok {
		return domain.ErrCategoryNotFound
	}
	m.s.categories[c.ID] = clone(c)
	return nil
}

// ---- products ----

type mockProductRepo struct{ s *memStore }

func (m mockProductRepo) Create(ctx context.Context, product *domain.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.products {
		if strings.EqualFold(p.Title, product.Title) {
			return domain.ErrProductExists
		}
	}
	product.ID = m.s.id()
	for _, v := range product.Variants {
		v.ID = m.s.id()
		v.ProductID = product.ID
	}
	m.s.products[product.ID] = clone(product)
	return nil
}

func (m mockProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return clone(m.s.products[id]), nil
}

func (m mockProductRepo) GetByTitle(ctx context.Context, title string) (*domain.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.products {
		if strings.EqualFold(p.Title, strings.TrimSpace(title)) {
			return clone(p), nil
		}
	}
	return nil, nil
}

func (m mockProductRepo) Update(ctx context.Context, product *domain.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	for _, v := range product.Variants {
		if v.ID == 0 {
			v.ID = m.s.id()
		}
		v.ProductID = product.ID
	}
	m.s.products[product.ID] = clone(product)
	return nil
}

func (m mockProductRepo) List(ctx context.Context, req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.s.products {
		if req.Listed {
			c := m.s.categories[p.CategoryID]
			if !p.IsAvailable() || c == nil || !c.IsActive() {
				continue
			}
		}
		if req.CategoryID != nil && p.CategoryID != *req.CategoryID {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m mockProductRepo) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	seen := make(map[int64]bool)
	var out []*domain.Product
	for _, id := range ids {
		if p, ok := m.s.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (m mockProductRepo) Invalidate(ctx context.Context, ids ...int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.invalidated = append(m.s.invalidated, ids...)
	return nil
}

// variant 调用方持有锁
func (s *memStore) variant(id int64) *domain.Variant {
	for _, p := range s.products {
		if v := p.FindVariantByID(id); v != nil {
			return v
		}
	}
	return nil
}

// ---- offers ----

type mockOfferRepo struct{ s *memStore }

func (m mockOfferRepo) Create(ctx context.Context, o *domain.Offer) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o.ID = m.s.id()
	m.s.offers[o.ID] = clone(o)
	return nil
}

func (m mockOfferRepo) GetByID(ctx context.Context, id int64) (*domain.Offer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return clone(m.s.offers[id]), nil
}

func (m mockOfferRepo) ListAll(ctx context.Context) ([]*domain.Offer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.Offer
	for _, o := range m.s.offers {
		out = append(out, clone(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m mockOfferRepo) Update(ctx context.Context, o *domain.Offer) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.offers[o.ID]; !ok {
		return domain.ErrOfferNotFound
	}
	m.s.offers[o.ID] = clone(o)
	return nil
}

func (m mockOfferRepo) Delete(ctx context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.offers[id]; !ok {
		return domain.ErrOfferNotFound
	}
	delete(m.s.offers, id)
	return nil
}

// ---- coupons ----

type mockCouponRepo struct{ s *memStore }

func (m mockCouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.coupons {
		if existing.Code == c.Code {
			return domain.ErrCouponExists
		}
	}
	c.ID = m.s.id()
	m.s.coupons[c.ID] = clone(c)
	return nil
}

func (m mockCouponRepo) GetByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return clone(m.s.coupons[id]), nil
}

func (m mockCouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.coupons {
		if c.Code == code {
			return clone(c), nil
		}
	}
	return nil, nil
}

func (m mockCouponRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Coupon, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.Coupon
	for _, c := range m.s.coupons {
		if !activeOnly || c.Status == domain.CouponStatusActive {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m mockCouponRepo) Update(ctx context.Context, c *domain.Coupon) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.coupons[c.ID]; !ok {
		return domain.ErrCouponNotFound
	}
	m.s.coupons[c.ID] = clone(c)
	return nil
}

func (m mockCouponRepo) Delete(ctx context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.coupons[id]; !ok {
		return domain.ErrCouponNotFound
	}
	delete(m.s.coupons, id)
	return nil
}

func (m mockCouponRepo) HasUsed(ctx context.Context, couponID, userID int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.couponUses[[2]int64{couponID, userID}], nil
}

// ---- carts ----

type mockCartRepo struct{ s *memStore }

func (m mockCartRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Cart, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return clone(m.s.carts[userID]), nil
}

func (m mockCartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if cart.ID == 0 {
		cart.ID = m.s.id()
	}
	m.s.carts[cart.UserID] = clone(cart)
	return nil
}

// ---- wishlist ----

type mockWishlistRepo struct{ s *memStore }

func (m mockWishlistRepo) Add(ctx context.Context, item *domain.WishlistItem) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.wishlist[item.UserID] {
		if existing.ProductID == item.ProductID {
			return domain.ErrWishlistDuplicate
		}
	}
	item.ID = m.s.id()
	m.s.wishlist[item.UserID] = append(m.s.wishlist[item.UserID], clone(item))
	return nil
}

func (m mockWishlistRepo) Remove(ctx context.Context, userID, productID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	items := m.s.wishlist[userID]
	for i, item := range items {
		if item.ProductID == productID {
			m.s.wishlist[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return domain.ErrWishlistNotFound
}

func (m mockWishlistRepo) ListByUser(ctx context.Context, userID int64) ([]*domain.WishlistItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.WishlistItem
	for _, item := range m.s.wishlist[userID] {
		out = append(out, clone(item))
	}
	return out, nil
}

// ---- orders ----

type mockOrderRepo struct {
	s *memStore
	// failPlace 模拟事务中途失败
	failPlace error
}

// PlaceOrder 与 MySQL 实现一致：条件扣减库存、记录券使用、写订单、清理购物车，任一步失败整体不生效
func (m *mockOrderRepo) PlaceOrder(ctx context.Context, order *domain.Order, couponID *int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	need := make(map[int64]int)
	for _, item := range order.Items {
		need[item.VariantID] += item.Quantity
	}
	for id, qty := range need {
		v := m.s.variant(id)
		if v == nil || v.Quantity < qty {
			return domain.ErrInsufficientStock
		}
	}
	if couponID != nil && m.s.couponUses[[2]int64{*couponID, order.UserID}] {
		return domain.ErrCouponUsed
	}
	if m.failPlace != nil {
		return m.failPlace
	}

	for id, qty := range need {
		m.s.variant(id).Quantity -= qty
	}
	for _, item := range order.Items {
		if p := m.s.products[item.ProductID]; p != nil {
			if c := m.s.categories[p.CategoryID]; c != nil {
				c.SalesCount += int64(item.Quantity)
			}
		}
	}
	if couponID != nil {
		m.s.couponUses[[2]int64{*couponID, order.UserID}] = true
	}
	order.ID = m.s.id()
	order.CreatedAt = order.OrderDate
	m.s.orders[order.ID] = clone(order)

	if cart := m.s.carts[order.UserID]; cart != nil {
		for _, item := range order.Items {
			cart.RemoveMatching(item.ProductID, item.Size, item.Color)
		}
	}
	return nil
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return clone(m.s.orders[id]), nil
}

func (m *mockOrderRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.orders {
		if o.GatewayOrderID == gatewayOrderID {
			return clone(o), nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepo) List(ctx context.Context, req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.s.orders {
		if req.UserID != nil && o.UserID != *req.UserID {
			continue
		}
		if req.Status != nil && o.OrderStatus != *req.Status {
			continue
		}
		out = append(out, clone(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (m *mockOrderRepo) ListBetween(ctx context.Context, start, end time.Time) ([]*domain.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.s.orders {
		if !o.OrderDate.Before(start) && o.OrderDate.Before(end) {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Mutate 在副本上执行修改，全部成功才写回
func (m *mockOrderRepo) Mutate(ctx context.Context, id int64, fn repo.OrderMutator) (*domain.Order, *domain.WalletTransaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stored, ok := m.s.orders[id]
	if !ok {
		return nil, nil, domain.ErrOrderNotFound
	}
	order := clone(stored)
	change, err := fn(order)
	if err != nil {
		return nil, nil, err
	}
	if change == nil {
		change = &repo.OrderChange{}
	}

	// 先校验再落地，保持原子
	if change.Credit != nil {
		if err := change.Credit.Validate(); err != nil {
			return nil, nil, err
		}
		if _, ok := m.s.wallets[change.Credit.UserID]; !ok && !change.Credit.CreateIfMissing {
			return nil, nil, domain.ErrWalletNotFound
		}
	}
	for _, r := range change.Restock {
		if m.s.variant(r.VariantID) == nil {
			return nil, nil, fmt.Errorf("restock: variant %d missing", r.VariantID)
		}
	}

	var txn *domain.WalletTransaction
	if change.Credit != nil {
		if txn, err = m.s.credit(change.Credit); err != nil {
			return nil, nil, err
		}
	}
	for _, r := range change.Restock {
		m.s.variant(r.VariantID).Quantity += r.Quantity
	}
	if change.Delete {
		delete(m.s.orders, id)
	} else {
		m.s.orders[id] = clone(order)
	}
	return order, txn, nil
}
