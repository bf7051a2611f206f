// Package promotion 解析商品在某一时刻可用的最优优惠。
package promotion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/storefront/internal/clock"
	"github.com/MorseWayne/storefront/internal/domain"
)

// Resolve 计算商品在 at 时刻的最优优惠，没有可用优惠时返回 nil。
// 折扣相同的优惠按 ID 升序取第一个，结果与优惠列表顺序无关。
func Resolve(p *domain.Product, offers []*domain.Offer, at time.Time) *domain.ProductOffer {
	if p == nil {
		return nil
	}

	var applicable []*domain.Offer
	for _, o := range offers {
		if o.ActiveOn(at) && o.Covers(p) {
			applicable = append(applicable, o)
		}
	}
	return build(p, applicable)
}

func build(p *domain.Product, applicable []*domain.Offer) *domain.ProductOffer {
	if len(applicable) == 0 {
		return nil
	}

	sorted := make([]*domain.Offer, len(applicable))
	copy(sorted, applicable)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].DiscountPercentage.Cmp(sorted[j].DiscountPercentage); c != 0 {
			return c > 0
		}
		return sorted[i].ID < sorted[j].ID
	})

	result := &domain.ProductOffer{
		ApplicableOffers: make([]domain.ApplicableOffer, 0, len(sorted)),
	}
	for _, o := range sorted {
		result.ApplicableOffers = append(result.ApplicableOffers, domain.ApplicableOffer{
			OfferID:            o.ID,
			Name:               o.Name,
			Type:               o.Type(),
			DiscountPercentage: o.DiscountPercentage,
			EndDate:            o.EndDate,
		})
	}

	pct := sorted[0].DiscountPercentage
	result.BestOffer = result.ApplicableOffers[0]
	result.DiscountPercentage = pct
	result.OriginalPrice = p.Price
	result.DiscountedPrice = domain.ApplyDiscount(p.Price, pct)
	result.Savings = p.Price.Sub(result.DiscountedPrice)

	result.Variants = make([]domain.VariantPrice, 0, len(p.Variants))
	for _, v := range p.Variants {
		discounted := domain.ApplyDiscount(v.Price, pct)
		result.Variants = append(result.Variants, domain.VariantPrice{
			VariantID:       v.ID,
			Size:            v.Size,
			Color:           v.Color,
			OriginalPrice:   v.Price,
			DiscountedPrice: discounted,
			Savings:         v.Price.Sub(discounted),
		})
	}
	return result
}

// OfferSource 优惠数据来源
type OfferSource interface {
	ListAll(ctx context.Context) ([]*domain.Offer, error)
}

// Resolver 结合数据源与时钟解析当前优惠
type Resolver struct {
	source OfferSource
	clock  clock.Clock
}

// NewResolver 创建解析器
func NewResolver(source OfferSource, clk clock.Clock) *Resolver {
	return &Resolver{source: source, clock: clk}
}

// ForProduct 单个商品的当前最优优惠
func (r *Resolver) ForProduct(ctx context.Context, p *domain.Product) (*domain.ProductOffer, error) {
	offers, err := r.source.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	return Resolve(p, offers, r.clock.Now()), nil
}

// ForProducts 批量解析，优惠列表只读取一次
func (r *Resolver) ForProducts(ctx context.Context, products []*domain.Product) (map[int64]*domain.ProductOffer, error) {
	offers, err := r.source.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	now := r.clock.Now()
	out := make(map[int64]*domain.ProductOffer, len(products))
	for _, p := range products {
		if po := Resolve(p, offers, now); po != nil {
			out[p.ID] = po
		}
	}
	return out, nil
}

// UnitPrice 规格当前成交单价：有优惠取折后价，否则取原价
func UnitPrice(po *domain.ProductOffer, v *domain.Variant) decimal.Decimal {
	if d, ok := po.VariantDiscountedPrice(v.ID); ok {
		return d
	}
	return v.Price
}
