// Package reports renders the current bill snapshot into a human-readable
// invoice. It owns no business logic: callers hand it already-computed cart
// lines and totals.
package reports

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/smartbillpro/billing_backend/models"
)

const invoiceSheet = "Sheet1"

// BuildInvoiceWorkbook lays out the invoice: header row, one row per cart
// line with its line subtotal, then the five totals.
func BuildInvoiceWorkbook(storeName string, date time.Time, lines []models.CartLine, totals models.Totals) (*excelize.File, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(invoiceSheet); err != nil {
		return nil, err
	}

	f.SetCellValue(invoiceSheet, "A1", storeName)
	f.SetCellValue(invoiceSheet, "A2", "Date: "+date.Format("January 2, 2006"))

	// Line items
	f.SetCellValue(invoiceSheet, "A4", "Product")
	f.SetCellValue(invoiceSheet, "B4", "Quantity")
	f.SetCellValue(invoiceSheet, "C4", "Price")
	f.SetCellValue(invoiceSheet, "D4", "Subtotal")

	row := 5
	for _, line := range lines {
		lineTotal := line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		f.SetCellValue(invoiceSheet, "A"+fmt.Sprint(row), line.Name)
		f.SetCellValue(invoiceSheet, "B"+fmt.Sprint(row), line.Quantity)
		f.SetCellValue(invoiceSheet, "C"+fmt.Sprint(row), line.Price.StringFixed(2))
		f.SetCellValue(invoiceSheet, "D"+fmt.Sprint(row), lineTotal.StringFixed(2))
		row++
	}

	view := totals.View()
	row++
	f.SetCellValue(invoiceSheet, "C"+fmt.Sprint(row), "Subtotal")
	f.SetCellValue(invoiceSheet, "D"+fmt.Sprint(row), view.Subtotal)
	row++
	f.SetCellValue(invoiceSheet, "C"+fmt.Sprint(row), "Discount")
	f.SetCellValue(invoiceSheet, "D"+fmt.Sprint(row), "-"+view.DiscountAmount)
	row++
	f.SetCellValue(invoiceSheet, "C"+fmt.Sprint(row), "After Discount")
	f.SetCellValue(invoiceSheet, "D"+fmt.Sprint(row), view.DiscountedTotal)
	row++
	f.SetCellValue(invoiceSheet, "C"+fmt.Sprint(row), "Tax")
	f.SetCellValue(invoiceSheet, "D"+fmt.Sprint(row), "+"+view.TaxAmount)
	row++
	f.SetCellValue(invoiceSheet, "C"+fmt.Sprint(row), "Total")
	f.SetCellValue(invoiceSheet, "D"+fmt.Sprint(row), view.FinalTotal)

	return f, nil
}

// WriteInvoice streams the workbook as an xlsx attachment.
func WriteInvoice(w http.ResponseWriter, storeName string, date time.Time, lines []models.CartLine, totals models.Totals) error {
	f, err := BuildInvoiceWorkbook(storeName, date, lines, totals)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=invoice.xlsx")
	return f.Write(w)
}
