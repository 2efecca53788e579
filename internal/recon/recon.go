// Package recon validates staged uploads against each other and the
// submitting user, aggregates them, and reconciles sales against payments.
package recon

import (
	"errors"
	"math"
	"time"

	"salesportal/internal/domain"
)

var (
	ErrBranchMismatch    = errors.New("branch tokens of the two files do not match")
	ErrBranchAssignment  = errors.New("file branch does not match the user's assigned branch")
	ErrInvalidPeriodDate = errors.New("reporting period must be before today")
	ErrPeriodMismatch    = errors.New("reporting periods of the two files do not match")
	ErrPeriodMissing     = errors.New("no reporting period found in either file")
	ErrUnmatchedRows     = errors.New("item rows with uncataloged barcodes present")
	ErrSessionIncomplete = errors.New("both an item-sales file and a payment file are required")
)

// MatchEpsilon is the absolute tolerance under which sales and payments are
// considered reconciled.
const MatchEpsilon = 0.01

// ValidateSession runs every cross-file and user gate over a staged session.
// Gates only fire on data that is present: a missing branch token or period
// skips its gate rather than failing it. now anchors the recency check.
func ValidateSession(s *domain.UploadSession, userBranch string, now time.Time) error {
	var itemBranch, payBranch string
	var itemPeriod, payPeriod *domain.ReportingPeriod
	if s.Items != nil {
		itemBranch = s.Items.Branch
		itemPeriod = s.Items.Period
	}
	if s.Payments != nil {
		payBranch = s.Payments.Branch
		payPeriod = s.Payments.Period
	}

	if err := ValidateBranchTokens(itemBranch, payBranch); err != nil {
		return err
	}
	for _, b := range []string{itemBranch, payBranch} {
		if err := ValidateAssignment(b, userBranch); err != nil {
			return err
		}
	}
	for _, p := range []*domain.ReportingPeriod{itemPeriod, payPeriod} {
		if err := ValidatePeriodDate(p, now); err != nil {
			return err
		}
	}
	return ValidatePeriods(itemPeriod, payPeriod)
}

// ValidateBranchTokens fails when both files carry a branch token and the
// tokens differ. Comparison is order independent.
func ValidateBranchTokens(a, b string) error {
	na, nb := domain.NormalizeBranch(a), domain.NormalizeBranch(b)
	if na == "" || nb == "" {
		return nil
	}
	if na != nb {
		return ErrBranchMismatch
	}
	return nil
}

// ValidateAssignment fails when a file's branch token differs from the
// user's assigned branch.
func ValidateAssignment(fileBranch, userBranch string) error {
	nf, nu := domain.NormalizeBranch(fileBranch), domain.NormalizeBranch(userBranch)
	if nf == "" || nu == "" {
		return nil
	}
	if nf != nu {
		return ErrBranchAssignment
	}
	return nil
}

// ValidatePeriodDate requires a period to fall strictly before today in UTC.
// Same-day reports are rejected because the business day is still open.
func ValidatePeriodDate(p *domain.ReportingPeriod, now time.Time) error {
	if p == nil {
		return nil
	}
	today := now.UTC().Truncate(24 * time.Hour)
	if !p.Date.Before(today) {
		return ErrInvalidPeriodDate
	}
	return nil
}

// ValidatePeriods fails when both files carry a period and the dates differ.
func ValidatePeriods(a, b *domain.ReportingPeriod) error {
	if a == nil || b == nil {
		return nil
	}
	if !a.Date.Equal(b.Date) {
		return ErrPeriodMismatch
	}
	return nil
}

// AggregateItems sums matched item rows into classification buckets. Each
// bucket is rounded once, half away from zero, after all additions; the
// grand totals derive from the rounded buckets so the reported columns
// always add up.
func AggregateItems(rows []domain.ItemRow) domain.ItemTotals {
	var t domain.ItemTotals
	for _, r := range rows {
		switch r.Classification {
		case domain.ClassificationRegular:
			t.RegularQty += r.Quantity
			t.RegularAmt += r.Amount
		default:
			t.NonRegularQty += r.Quantity
			t.NonRegularAmt += r.Amount
		}
	}
	t.RegularAmt = Round2(t.RegularAmt)
	t.NonRegularAmt = Round2(t.NonRegularAmt)
	t.TotalQtySold = t.RegularQty + t.NonRegularQty
	t.TotalAmt = Round2(t.RegularAmt + t.NonRegularAmt)
	return t
}

// AggregatePayments sums payment rows into their buckets, rounding each
// bucket and the grand total once at the end.
func AggregatePayments(rows []domain.PaymentRow) domain.PaymentTotals {
	var t domain.PaymentTotals
	for _, r := range rows {
		t.CashCheck += r.CashCheck
		t.Charge += r.Charge
		t.GiftCheck += r.GiftCheck
		t.CreditNote += r.CreditNote
		t.TransactionCount += r.TransactionCount
		t.HeadCount += r.HeadCount
	}
	t.CashCheck = Round2(t.CashCheck)
	t.Charge = Round2(t.Charge)
	t.GiftCheck = Round2(t.GiftCheck)
	t.CreditNote = Round2(t.CreditNote)
	t.TotalPayments = Round2(t.CashCheck + t.Charge + t.GiftCheck + t.CreditNote)
	return t
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Outcome is the advisory result of reconciling sales against payments.
// A mismatch never blocks submission; it is surfaced to the reviewer.
type Outcome struct {
	TotalSales    float64 `json:"total_sales"`
	TotalPayments float64 `json:"total_payments"`
	Variance      float64 `json:"variance"`
	AmountsMatch  bool    `json:"amounts_match"`
	Direction     string  `json:"direction,omitempty"`
}

// Reconcile compares total sales to total payments under MatchEpsilon.
// Variance is payments minus sales; Direction reads "Over" when payments
// exceed sales and "Under" when they fall short.
func Reconcile(totalSales, totalPayments float64) Outcome {
	variance := Round2(totalPayments - totalSales)
	o := Outcome{
		TotalSales:    totalSales,
		TotalPayments: totalPayments,
		Variance:      variance,
		AmountsMatch:  math.Abs(totalPayments-totalSales) < MatchEpsilon,
	}
	if !o.AmountsMatch {
		if variance > 0 {
			o.Direction = "Over"
		} else {
			o.Direction = "Under"
		}
	}
	return o
}
