// Package export renders sales reports as downloadable PDF and Excel files.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"kasirpos/backend/internal/domain"
)

// PDF renders the report as an A4 document: summary block, top products
// table and the transaction detail table.
func PDF(report domain.SalesReport, period domain.ReportPeriod) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Sales Report", false)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Sales Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Period: %s", periodLabel(period)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format("2006-01-02 15:04 UTC")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total transactions: %d", report.Summary.TotalTransactions), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Total revenue: %d", report.Summary.TotalRevenue), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Top Products", "", 1, "L", false, 0, "")
	writeTableHeader(pdf, []tableColumn{
		{"#", 10}, {"Product", 80}, {"Qty", 30}, {"Revenue", 40},
	})
	pdf.SetFont("Helvetica", "", 9)
	for i, top := range report.TopProducts {
		pdf.CellFormat(10, 6, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(80, 6, top.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", top.Qty), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", top.Revenue), "1", 1, "R", false, 0, "")
	}
	if len(report.TopProducts) == 0 {
		pdf.CellFormat(160, 6, "No sales in period", "1", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Transactions", "", 1, "L", false, 0, "")
	writeTableHeader(pdf, []tableColumn{
		{"Date", 35}, {"ID", 70}, {"Cashier", 45}, {"Total", 30},
	})
	pdf.SetFont("Helvetica", "", 8)
	for _, tx := range report.Transactions {
		cashier := tx.UserID
		if tx.User != nil {
			cashier = tx.User.FullName
		}
		pdf.CellFormat(35, 6, tx.CreatedAt.UTC().Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(70, 6, tx.ID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, cashier, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", tx.Total), "1", 1, "R", false, 0, "")
	}
	if len(report.Transactions) == 0 {
		pdf.CellFormat(180, 6, "No transactions in period", "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type tableColumn struct {
	label string
	width float64
}

func writeTableHeader(pdf *gofpdf.Fpdf, columns []tableColumn) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, col := range columns {
		lineBreak := 0
		if i == len(columns)-1 {
			lineBreak = 1
		}
		pdf.CellFormat(col.width, 7, col.label, "1", lineBreak, "C", true, 0, "")
	}
}

func periodLabel(period domain.ReportPeriod) string {
	if period.StartDate == "" && period.EndDate == "" {
		return "all time"
	}
	return fmt.Sprintf("%s to %s", period.StartDate, period.EndDate)
}
