package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"salesportal/internal/domain"
)

func sampleSummaries() []domain.SalesSummary {
	d1 := time.Date(2025, time.March, 6, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)
	return []domain.SalesSummary{
		{
			UserID: "amina", StoreID: "S012", Branch: "S012 - MAIN",
			Period: d2, PeriodLabel: "March 07, 2025",
			TotalQtySold: 3, TotalAmt: 150, TotalPayments: 150, AmountsMatch: true,
		},
		{
			UserID: "ben", StoreID: "S044", Branch: "S044 - ANNEX",
			Period: d2, PeriodLabel: "March 07, 2025",
			TotalQtySold: 2, TotalAmt: 80, TotalPayments: 75, AmountsMatch: false, Variance: -5,
		},
		{
			UserID: "amina", StoreID: "S012", Branch: "S012 - MAIN",
			Period: d1, PeriodLabel: "March 06, 2025",
			TotalQtySold: 1, TotalAmt: 40, TotalPayments: 40, AmountsMatch: true,
		},
	}
}

func TestWriteWorkbookOneSheetPerPeriod(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, sampleSummaries()); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 {
		t.Fatalf("expected 2 sheets, got %v", sheets)
	}
	if sheets[0] != "2025-03-06" || sheets[1] != "2025-03-07" {
		t.Fatalf("expected sheets ordered by period, got %v", sheets)
	}

	rows, err := f.GetRows("2025-03-07")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// header, two data rows, subtotal
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	last := rows[len(rows)-1]
	if last[0] != "Subtotal" {
		t.Fatalf("expected subtotal row, got %v", last)
	}
	if last[9] != "230" {
		t.Fatalf("expected subtotal amount 230, got %q", last[9])
	}
}

func TestWriteWorkbookEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, nil); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()
	if len(f.GetSheetList()) != 1 {
		t.Fatalf("expected single sheet for empty export, got %v", f.GetSheetList())
	}
}

func TestToCSV(t *testing.T) {
	out := ToCSV(sampleSummaries()[:1])
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "amina,S012,S012 - MAIN,2025-03-07") {
		t.Fatalf("unexpected row: %q", lines[1])
	}
	if !strings.Contains(lines[1], "true") {
		t.Fatalf("expected amounts_match true in row: %q", lines[1])
	}
}
