// Package export renders persisted sales summaries into downloadable files.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"salesportal/internal/domain"
	"salesportal/internal/recon"
)

var workbookHeader = []any{
	"User", "Store", "Branch", "Period",
	"Regular Qty", "Regular Amt", "Non-Regular Qty", "Non-Regular Amt",
	"Total Qty Sold", "Total Amt",
	"Cash & Check", "Charge", "Gift Check", "Credit Note", "Total Payments",
	"Match", "Variance", "Transactions", "Head Count",
}

// WriteWorkbook renders summaries as an XLSX workbook with one sheet per
// reporting period, each sheet ending in a subtotal row. Sheets are ordered
// by period date.
func WriteWorkbook(w io.Writer, summaries []domain.SalesSummary) error {
	byPeriod := make(map[time.Time][]domain.SalesSummary)
	for _, s := range summaries {
		byPeriod[s.Period] = append(byPeriod[s.Period], s)
	}
	periods := make([]time.Time, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	f := excelize.NewFile()
	defer f.Close()

	for i, p := range periods {
		name := p.Format("2006-01-02")
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return err
			}
		}
		if err := writeSheet(f, name, byPeriod[p]); err != nil {
			return err
		}
	}
	if len(periods) == 0 {
		if err := writeSheet(f, "Sheet1", nil); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writeSheet(f *excelize.File, name string, rows []domain.SalesSummary) error {
	if err := f.SetSheetRow(name, "A1", &workbookHeader); err != nil {
		return err
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StoreID != rows[j].StoreID {
			return rows[i].StoreID < rows[j].StoreID
		}
		return rows[i].Branch < rows[j].Branch
	})

	var sub domain.SalesSummary
	for i, s := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		match := "Yes"
		if !s.AmountsMatch {
			match = "No"
		}
		row := []any{
			s.UserID, s.StoreID, s.Branch, s.PeriodLabel,
			s.RegularQty, s.RegularAmt, s.NonRegularQty, s.NonRegularAmt,
			s.TotalQtySold, s.TotalAmt,
			s.CashCheck, s.Charge, s.GiftCheck, s.CreditNote, s.TotalPayments,
			match, s.Variance, s.TransactionCount, s.HeadCount,
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}

		sub.RegularQty += s.RegularQty
		sub.RegularAmt += s.RegularAmt
		sub.NonRegularQty += s.NonRegularQty
		sub.NonRegularAmt += s.NonRegularAmt
		sub.TotalQtySold += s.TotalQtySold
		sub.TotalAmt += s.TotalAmt
		sub.CashCheck += s.CashCheck
		sub.Charge += s.Charge
		sub.GiftCheck += s.GiftCheck
		sub.CreditNote += s.CreditNote
		sub.TotalPayments += s.TotalPayments
		sub.Variance += s.Variance
		sub.TransactionCount += s.TransactionCount
		sub.HeadCount += s.HeadCount
	}

	cell := fmt.Sprintf("A%d", len(rows)+2)
	subtotal := []any{
		"Subtotal", "", "", "",
		sub.RegularQty, recon.Round2(sub.RegularAmt), sub.NonRegularQty, recon.Round2(sub.NonRegularAmt),
		sub.TotalQtySold, recon.Round2(sub.TotalAmt),
		recon.Round2(sub.CashCheck), recon.Round2(sub.Charge), recon.Round2(sub.GiftCheck), recon.Round2(sub.CreditNote), recon.Round2(sub.TotalPayments),
		"", recon.Round2(sub.Variance), sub.TransactionCount, sub.HeadCount,
	}
	return f.SetSheetRow(name, cell, &subtotal)
}

// ToCSV renders summaries as a flat CSV for tooling that cannot read XLSX.
func ToCSV(summaries []domain.SalesSummary) string {
	lines := []string{
		"user,store,branch,period,regular_qty,regular_amt,non_regular_qty,non_regular_amt,total_qty_sold,total_amt,cash_check,charge,gift_check,credit_note,total_payments,amounts_match,variance,transaction_count,head_count",
	}
	for _, s := range summaries {
		lines = append(lines, fmt.Sprintf("%s,%s,%s,%s,%g,%.2f,%g,%.2f,%g,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%t,%.2f,%d,%d",
			s.UserID, s.StoreID, s.Branch, s.Period.Format("2006-01-02"),
			s.RegularQty, s.RegularAmt, s.NonRegularQty, s.NonRegularAmt,
			s.TotalQtySold, s.TotalAmt,
			s.CashCheck, s.Charge, s.GiftCheck, s.CreditNote, s.TotalPayments,
			s.AmountsMatch, s.Variance, s.TransactionCount, s.HeadCount,
		))
	}
	return strings.Join(lines, "\n") + "\n"
}
