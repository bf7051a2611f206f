package promotion

import (
	"time"

	"github.com/MorseWayne/storefront/internal/domain"
)

// DayCache 在一次报表计算中按自然日缓存当日有效的优惠，
// 同一天的多个订单不再重复过滤全部优惠。非并发安全。
type DayCache struct {
	offers []*domain.Offer
	loc    *time.Location
	byDay  map[string][]*domain.Offer
}

// NewDayCache 基于一份优惠快照创建缓存，日期按 loc 切分
func NewDayCache(offers []*domain.Offer, loc *time.Location) *DayCache {
	if loc == nil {
		loc = time.Local
	}
	return &DayCache{
		offers: offers,
		loc:    loc,
		byDay:  make(map[string][]*domain.Offer),
	}
}

// Resolve 商品在 at 所在自然日的最优优惠
func (c *DayCache) Resolve(p *domain.Product, at time.Time) *domain.ProductOffer {
	if p == nil {
		return nil
	}
	var applicable []*domain.Offer
	for _, o := range c.activeOn(at) {
		if o.Covers(p) {
			applicable = append(applicable, o)
		}
	}
	return build(p, applicable)
}

func (c *DayCache) activeOn(at time.Time) []*domain.Offer {
	local := at.In(c.loc)
	key := local.Format(domain.DateLayout)
	if offers, ok := c.byDay[key]; ok {
		return offers
	}
	var active []*domain.Offer
	for _, o := range c.offers {
		if o.ActiveOn(local) {
			active = append(active, o)
		}
	}
	c.byDay[key] = active
	return active
}

// Days 已缓存的天数
func (c *DayCache) Days() int {
	return len(c.byDay)
}
