package normalize

import (
	"strings"

	"salesportal/internal/domain"
	"salesportal/internal/sheet"
)

// PaymentHeaderAnchors mark a payment report's header row.
var PaymentHeaderAnchors = []string{"terminal", "cash", "cash & check", "cash and check"}

// paymentBuckets maps header spellings to the four payment buckets plus the
// two optional tally columns. One bucket can own several physical columns,
// e.g. charge absorbs card and e-wallet columns alike.
var paymentBuckets = map[string][]string{
	"cash_check":  {"cash", "check", "cheque", "cash & check", "cash and check"},
	"charge":      {"charge", "card", "credit card", "debit card", "e-wallet", "ewallet", "installment"},
	"gift_check":  {"gc", "gift check", "gift certificate", "gift cheque"},
	"credit_note": {"credit note", "credit memo"},
	"txn_count":   {"transaction count", "no. of transactions", "transactions", "txn count"},
	"head_count":  {"head count", "customer count", "customers"},
}

// PaymentResult is the outcome of normalizing one payment file.
type PaymentResult struct {
	Branch string
	Period *domain.ReportingPeriod
	Rows   []domain.PaymentRow
}

// Payments normalizes a payment grid. Header cells are bucketed once, then
// each data row sums its cells into the buckets. Subtotal rows are skipped so
// totals are never double counted.
func Payments(g sheet.Grid) (*PaymentResult, error) {
	hdr, err := sheet.Locate(g, PaymentHeaderAnchors, nil)
	if err != nil {
		return nil, err
	}

	buckets := bucketColumns(g[hdr.RowIndex])
	res := &PaymentResult{
		Branch: hdr.Branch,
		Period: ExtractPeriod(g),
	}
	for i := hdr.RowIndex + 1; i < len(g); i++ {
		if !isPaymentRow(g, i, buckets) {
			continue
		}
		row := domain.PaymentRow{
			CashCheck:        sumCells(g, i, buckets["cash_check"]),
			Charge:           sumCells(g, i, buckets["charge"]),
			GiftCheck:        sumCells(g, i, buckets["gift_check"]),
			CreditNote:       sumCells(g, i, buckets["credit_note"]),
			TransactionCount: int(sumCells(g, i, buckets["txn_count"])),
			HeadCount:        int(sumCells(g, i, buckets["head_count"])),
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// bucketColumns classifies every header cell into a bucket, keeping all
// matching column indexes per bucket.
func bucketColumns(headerRow []string) map[string][]int {
	out := make(map[string][]int)
	for col, cell := range headerRow {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		for bucket, aliases := range paymentBuckets {
			for _, a := range aliases {
				if strings.EqualFold(cell, a) {
					out[bucket] = append(out[bucket], col)
				}
			}
		}
	}
	return out
}

// isPaymentRow keeps rows that carry at least one bucketed value and are not
// subtotal lines.
func isPaymentRow(g sheet.Grid, row int, buckets map[string][]int) bool {
	if strings.Contains(strings.ToLower(firstNonEmpty(g, row)), "total") {
		return false
	}
	for _, cols := range buckets {
		for _, col := range cols {
			if g.Cell(row, col) != "" {
				return true
			}
		}
	}
	return false
}

func firstNonEmpty(g sheet.Grid, row int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	for _, cell := range g[row] {
		if s := strings.TrimSpace(cell); s != "" {
			return s
		}
	}
	return ""
}

func sumCells(g sheet.Grid, row int, cols []int) float64 {
	var total float64
	for _, col := range cols {
		if cell := g.Cell(row, col); cell != "" {
			total += ParseNumber(cell)
		}
	}
	return total
}
