package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportFormat 报表下载格式
type ReportFormat string

const (
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatXLSX ReportFormat = "xlsx"
)

// SalesReportRequest 报表查询，日期包含起止两天
type SalesReportRequest struct {
	StartDate string       `form:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string       `form:"end_date" binding:"required,datetime=2006-01-02"`
	Format    ReportFormat `form:"format" binding:"omitempty,oneof=pdf xlsx"`
}

// SalesReportRow 单个订单的报表行
type SalesReportRow struct {
	OrderID        int64           `json:"order_id"`
	OrderDate      time.Time       `json:"order_date"`
	UserID         int64           `json:"user_id"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	OrderStatus    OrderStatus     `json:"order_status"`
	ItemCount      int             `json:"item_count"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	OfferDiscount  decimal.Decimal `json:"offer_discount"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	Discount       decimal.Decimal `json:"discount"`
	NetRevenue     decimal.Decimal `json:"net_revenue"`
}

// SalesSummary 报表汇总
type SalesSummary struct {
	OrderCount    int             `json:"order_count"`
	ItemCount     int             `json:"item_count"`
	GrossSales    decimal.Decimal `json:"gross_sales"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	NetRevenue    decimal.Decimal `json:"net_revenue"`
}

// SalesReport 销售报表
type SalesReport struct {
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	GeneratedAt time.Time         `json:"generated_at"`
	Rows        []*SalesReportRow `json:"rows"`
	Summary     SalesSummary      `json:"summary"`
}
