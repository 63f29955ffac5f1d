package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"kasirpos/backend/internal/domain"
)

// Excel renders the report as a three-sheet workbook: Summary, Top Products
// and Transaction Detail. Header rows are bold and frozen.
func Excel(report domain.SalesReport, period domain.ReportPeriod) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDDDDD"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	const summarySheet = "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	summaryRows := [][]any{
		{"Sales Report", ""},
		{"Period", periodLabel(period)},
		{"Total Transactions", report.Summary.TotalTransactions},
		{"Total Revenue", report.Summary.TotalRevenue},
		{"", ""},
		{"Date", "Revenue"},
	}
	for _, day := range sortedDates(report.RevenueByDate) {
		summaryRows = append(summaryRows, []any{day, report.RevenueByDate[day]})
	}
	if err := writeRows(f, summarySheet, summaryRows); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "A6", "B6", headerStyle); err != nil {
		return nil, err
	}

	const topSheet = "Top Products"
	if _, err := f.NewSheet(topSheet); err != nil {
		return nil, err
	}
	topRows := [][]any{{"Rank", "Product", "Qty Sold", "Revenue"}}
	for i, top := range report.TopProducts {
		topRows = append(topRows, []any{i + 1, top.Name, top.Qty, top.Revenue})
	}
	if err := writeRows(f, topSheet, topRows); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(topSheet, "A1", "D1", headerStyle); err != nil {
		return nil, err
	}
	if err := freezeHeaderRow(f, topSheet); err != nil {
		return nil, err
	}

	const detailSheet = "Transaction Detail"
	if _, err := f.NewSheet(detailSheet); err != nil {
		return nil, err
	}
	detailRows := [][]any{{"Date", "Transaction ID", "Cashier", "Product", "Qty", "Price", "Subtotal", "Transaction Total"}}
	for _, tx := range report.Transactions {
		cashier := tx.UserID
		if tx.User != nil {
			cashier = tx.User.FullName
		}
		for _, item := range tx.Items {
			productName := item.ProductID
			if item.Product != nil {
				productName = item.Product.Name
			}
			detailRows = append(detailRows, []any{
				tx.CreatedAt.UTC().Format("2006-01-02 15:04"),
				tx.ID,
				cashier,
				productName,
				item.Qty,
				item.Price,
				item.Subtotal,
				tx.Total,
			})
		}
	}
	if err := writeRows(f, detailSheet, detailRows); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(detailSheet, "A1", "H1", headerStyle); err != nil {
		return nil, err
	}
	if err := freezeHeaderRow(f, detailSheet); err != nil {
		return nil, err
	}
	if len(detailRows) > 1 {
		if err := f.AutoFilter(detailSheet, fmt.Sprintf("A1:H%d", len(detailRows)), nil); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func freezeHeaderRow(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func sortedDates(revenueByDate map[string]int64) []string {
	dates := make([]string, 0, len(revenueByDate))
	for day := range revenueByDate {
		dates = append(dates, day)
	}
	// ISO dates sort correctly as strings.
	sort.Strings(dates)
	return dates
}
