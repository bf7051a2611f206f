package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/clock"
	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/repo"
	"github.com/MorseWayne/storefront/internal/report"
)

// ReportFile 渲染后的报表文件
type ReportFile struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ReportService 销售报表
type ReportService interface {
	Sales(ctx context.Context, req *domain.SalesReportRequest) (*domain.SalesReport, error)
	Download(ctx context.Context, req *domain.SalesReportRequest) (*ReportFile, error)
}

type reportService struct {
	orders   repo.OrderRepository
	offers   repo.OfferRepository
	products repo.ProductRepository
	clock    clock.Clock
	logger   *zap.Logger
}

// NewReportService 创建报表服务实例，日期按时钟所在时区切分
func NewReportService(orders repo.OrderRepository, offers repo.OfferRepository, products repo.ProductRepository, clk clock.Clock, logger *zap.Logger) ReportService {
	return &reportService{
		orders:   orders,
		offers:   offers,
		products: products,
		clock:    clk,
		logger:   logger,
	}
}

// Sales 统计 [start_date, end_date] 两端包含的订单，已取消的订单不计入
func (s *reportService) Sales(ctx context.Context, req *domain.SalesReportRequest) (*domain.SalesReport, error) {
	now := s.clock.Now()
	loc := now.Location()

	start, err := time.ParseInLocation(domain.DateLayout, req.StartDate, loc)
	if err != nil {
		return nil, domain.Invalid("invalid start_date")
	}
	end, err := time.ParseInLocation(domain.DateLayout, req.EndDate, loc)
	if err != nil {
		return nil, domain.Invalid("invalid end_date")
	}
	if end.Before(start) {
		return nil, domain.Invalid("end_date must not be before start_date")
	}

	all, err := s.orders.ListBetween(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]*domain.Order, 0, len(all))
	for _, o := range all {
		if o.OrderStatus != domain.OrderStatusCancelled {
			orders = append(orders, o)
		}
	}

	offers, err := s.offers.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	products, err := s.productsOf(ctx, orders)
	if err != nil {
		return nil, err
	}

	r := report.Aggregate(report.Input{
		Start:    start,
		End:      end,
		Orders:   orders,
		Offers:   offers,
		Products: products,
		Location: loc,
		Now:      now,
	})
	s.logger.Info("sales report generated",
		zap.String("start", req.StartDate),
		zap.String("end", req.EndDate),
		zap.Int("orders", r.Summary.OrderCount),
		zap.String("net_revenue", r.Summary.NetRevenue.String()),
	)
	return r, nil
}

func (s *reportService) productsOf(ctx context.Context, orders []*domain.Order) (map[int64]*domain.Product, error) {
	var ids []int64
	for _, o := range orders {
		for _, item := range o.Items {
			ids = append(ids, item.ProductID)
		}
	}
	out := make(map[int64]*domain.Product)
	if len(ids) == 0 {
		return out, nil
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// Download 渲染报表，默认 xlsx
func (s *reportService) Download(ctx context.Context, req *domain.SalesReportRequest) (*ReportFile, error) {
	format := req.Format
	if format == "" {
		format = domain.ReportFormatXLSX
	}
	if format != domain.ReportFormatXLSX && format != domain.ReportFormatPDF {
		return nil, domain.Invalid("format must be pdf or xlsx")
	}

	r, err := s.Sales(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := report.Render(r, format)
	if err != nil {
		s.logger.Error("failed to render report", zap.String("format", string(format)), zap.Error(err))
		return nil, fmt.Errorf("render report: %w", err)
	}
	return &ReportFile{
		Data:        data,
		ContentType: report.ContentType(format),
		Filename:    report.Filename(r, format),
	}, nil
}
