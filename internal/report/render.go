package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	"github.com/MorseWayne/storefront/internal/domain"
)

const sheetName = "Sales Report"

var columns = []string{
	"Order ID", "Order Date", "User ID", "Payment", "Status", "Items",
	"Gross", "Offer Discount", "Coupon Discount", "Net Revenue",
}

// ContentType 下载响应的 MIME 类型
func ContentType(format domain.ReportFormat) string {
	if format == domain.ReportFormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename 下载文件名，如 sales_2026-04-01_2026-04-30.xlsx
func Filename(r *domain.SalesReport, format domain.ReportFormat) string {
	return fmt.Sprintf("sales_%s_%s.%s",
		r.StartDate.Format(domain.DateLayout), r.EndDate.Format(domain.DateLayout), format)
}

// Render 按格式渲染报表，格式为空时默认 xlsx
func Render(r *domain.SalesReport, format domain.ReportFormat) ([]byte, error) {
	switch format {
	case domain.ReportFormatPDF:
		return PDF(r)
	case domain.ReportFormatXLSX, "":
		return XLSX(r)
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

func rowValues(row *domain.SalesReportRow) []any {
	return []any{
		row.OrderID,
		row.OrderDate.Format(domain.DateLayout),
		row.UserID,
		string(row.PaymentMethod),
		string(row.OrderStatus),
		row.ItemCount,
		row.GrossAmount.StringFixed(2),
		row.OfferDiscount.StringFixed(2),
		row.CouponDiscount.StringFixed(2),
		row.NetRevenue.StringFixed(2),
	}
}

// XLSX 渲染为 Excel 工作簿
func XLSX(r *domain.SalesReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	title := fmt.Sprintf("Sales report %s to %s",
		r.StartDate.Format(domain.DateLayout), r.EndDate.Format(domain.DateLayout))
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return nil, err
	}

	const headerRow = 3
	if err := setRow(f, headerRow, toAny(columns)); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), headerRow)
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return nil, err
	}

	for i, row := range r.Rows {
		if err := setRow(f, headerRow+1+i, rowValues(row)); err != nil {
			return nil, err
		}
	}

	s := r.Summary
	summaryRow := headerRow + len(r.Rows) + 2
	summary := []any{"Total", "", "", "", "", s.ItemCount, s.GrossSales.StringFixed(2), "", "", s.NetRevenue.StringFixed(2)}
	if err := setRow(f, summaryRow, summary); err != nil {
		return nil, err
	}
	if err := setRow(f, summaryRow+1, []any{"Orders", s.OrderCount, "", "", "", "", "Discounts", s.DiscountTotal.StringFixed(2)}); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "A", "J", 16); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// PDF 渲染为横向 A4 表格
func PDF(r *domain.SalesReport) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Sales Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s to %s, generated %s",
		r.StartDate.Format(domain.DateLayout), r.EndDate.Format(domain.DateLayout),
		r.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	widths := []float64{22, 26, 20, 28, 30, 16, 32, 34, 34, 34}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range columns {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range r.Rows {
		for i, v := range rowValues(row) {
			align := "L"
			if i >= 5 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, cellText(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	s := r.Summary
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	for _, line := range []string{
		"Orders: " + strconv.Itoa(s.OrderCount),
		"Items: " + strconv.Itoa(s.ItemCount),
		"Gross sales: " + s.GrossSales.StringFixed(2),
		"Discounts: " + s.DiscountTotal.StringFixed(2),
		"Net revenue: " + s.NetRevenue.StringFixed(2),
	} {
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func cellText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
