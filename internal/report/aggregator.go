// Package report 汇总销售报表并渲染为 xlsx / pdf
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/promotion"
)

// Input 一次报表计算所需的数据快照
type Input struct {
	Start    time.Time
	End      time.Time
	Orders   []*domain.Order
	Offers   []*domain.Offer
	Products map[int64]*domain.Product
	Location *time.Location
	Now      time.Time
}

// Aggregate 逐单重新解析下单当日的优惠，计算毛销售额、折扣与净收入。
// 已退货的行不计入；商品已被删除时沿用订单行记录的成交价。
func Aggregate(in Input) *domain.SalesReport {
	days := promotion.NewDayCache(in.Offers, in.Location)

	report := &domain.SalesReport{
		StartDate:   in.Start,
		EndDate:     in.End,
		GeneratedAt: in.Now,
		Rows:        make([]*domain.SalesReportRow, 0, len(in.Orders)),
		Summary: domain.SalesSummary{
			GrossSales:    decimal.Zero,
			DiscountTotal: decimal.Zero,
			NetRevenue:    decimal.Zero,
		},
	}

	for _, o := range in.Orders {
		row := aggregateOrder(o, in.Products, days)
		report.Rows = append(report.Rows, row)

		report.Summary.OrderCount++
		report.Summary.ItemCount += row.ItemCount
		report.Summary.GrossSales = report.Summary.GrossSales.Add(row.GrossAmount)
		report.Summary.DiscountTotal = report.Summary.DiscountTotal.Add(row.Discount)
		report.Summary.NetRevenue = report.Summary.NetRevenue.Add(row.NetRevenue)
	}
	return report
}

func aggregateOrder(o *domain.Order, products map[int64]*domain.Product, days *promotion.DayCache) *domain.SalesReportRow {
	row := &domain.SalesReportRow{
		OrderID:        o.ID,
		OrderDate:      o.OrderDate,
		UserID:         o.UserID,
		PaymentMethod:  o.PaymentMethod,
		OrderStatus:    o.OrderStatus,
		GrossAmount:    o.ShippingCharge,
		OfferDiscount:  decimal.Zero,
		CouponDiscount: o.Discount,
	}

	for _, item := range o.Items {
		if item.ProductStatus == domain.ItemStatusReturned {
			continue
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		row.ItemCount += item.Quantity
		row.GrossAmount = row.GrossAmount.Add(item.Price.Mul(qty))
		row.OfferDiscount = row.OfferDiscount.Add(lineDiscount(item, products[item.ProductID], o.OrderDate, days).Mul(qty))
	}

	row.Discount = row.OfferDiscount.Add(row.CouponDiscount)
	row.NetRevenue = row.GrossAmount.Sub(row.Discount)
	if row.NetRevenue.IsNegative() {
		row.NetRevenue = decimal.Zero
	}
	return row
}

// lineDiscount 单件折扣额，按订单行记录的原价折算
func lineDiscount(item *domain.OrderItem, p *domain.Product, at time.Time, days *promotion.DayCache) decimal.Decimal {
	if p == nil {
		return item.Price.Sub(item.OfferPrice)
	}
	po := days.Resolve(p, at)
	if po == nil {
		return decimal.Zero
	}
	return item.Price.Sub(domain.ApplyDiscount(item.Price, po.DiscountPercentage))
}
