package recon

import (
	"errors"
	"testing"
	"time"

	"salesportal/internal/domain"
)

func period(y int, m time.Month, d int) *domain.ReportingPeriod {
	p := domain.NewReportingPeriod(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	return &p
}

func TestValidateBranchTokensOrderIndependent(t *testing.T) {
	if err := ValidateBranchTokens("S012 - MAIN", "S013 - ANNEX"); !errors.Is(err, ErrBranchMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := ValidateBranchTokens("S013 - ANNEX", "S012 - MAIN"); !errors.Is(err, ErrBranchMismatch) {
		t.Fatalf("expected mismatch regardless of order, got %v", err)
	}
	if err := ValidateBranchTokens("s012 - main", "S012  -  MAIN"); err != nil {
		t.Fatalf("expected case and spacing to be ignored, got %v", err)
	}
	if err := ValidateBranchTokens("", "S012 - MAIN"); err != nil {
		t.Fatalf("expected missing token to skip the gate, got %v", err)
	}
}

func TestValidateAssignment(t *testing.T) {
	if err := ValidateAssignment("S012 - MAIN", "S099 - OTHER"); !errors.Is(err, ErrBranchAssignment) {
		t.Fatalf("expected assignment failure, got %v", err)
	}
	if err := ValidateAssignment("S012 - MAIN", "S012 - MAIN"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
}

func TestValidatePeriodDateRejectsTodayAndFuture(t *testing.T) {
	now := time.Date(2025, time.March, 8, 15, 30, 0, 0, time.UTC)
	if err := ValidatePeriodDate(period(2025, time.March, 8), now); !errors.Is(err, ErrInvalidPeriodDate) {
		t.Fatalf("expected today to be rejected, got %v", err)
	}
	if err := ValidatePeriodDate(period(2025, time.March, 9), now); !errors.Is(err, ErrInvalidPeriodDate) {
		t.Fatalf("expected future date to be rejected, got %v", err)
	}
	if err := ValidatePeriodDate(period(2025, time.March, 7), now); err != nil {
		t.Fatalf("expected yesterday to pass, got %v", err)
	}
	if err := ValidatePeriodDate(nil, now); err != nil {
		t.Fatalf("expected missing period to skip the gate, got %v", err)
	}
}

func TestValidatePeriods(t *testing.T) {
	if err := ValidatePeriods(period(2025, time.March, 7), period(2025, time.March, 6)); !errors.Is(err, ErrPeriodMismatch) {
		t.Fatalf("expected period mismatch, got %v", err)
	}
	if err := ValidatePeriods(period(2025, time.March, 7), period(2025, time.March, 7)); err != nil {
		t.Fatalf("expected equal dates to pass, got %v", err)
	}
	if err := ValidatePeriods(nil, period(2025, time.March, 7)); err != nil {
		t.Fatalf("expected missing period to skip the gate, got %v", err)
	}
}

func TestValidateSession(t *testing.T) {
	now := time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC)
	s := &domain.UploadSession{
		Items:    &domain.ItemUpload{Branch: "S012 - MAIN", Period: period(2025, time.March, 7)},
		Payments: &domain.PaymentUpload{Branch: "S012 - MAIN", Period: period(2025, time.March, 7)},
	}
	if err := ValidateSession(s, "S012 - MAIN", now); err != nil {
		t.Fatalf("expected clean session to pass, got %v", err)
	}
	if err := ValidateSession(s, "S099 - OTHER", now); !errors.Is(err, ErrBranchAssignment) {
		t.Fatalf("expected assignment gate, got %v", err)
	}
}

func TestAggregateItems(t *testing.T) {
	rows := []domain.ItemRow{
		{Classification: domain.ClassificationRegular, Quantity: 2, Amount: 100.006},
		{Classification: domain.ClassificationRegular, Quantity: 1, Amount: 50},
		{Classification: domain.ClassificationNonRegular, Quantity: 3, Amount: 75.004},
	}
	tot := AggregateItems(rows)
	if tot.RegularQty != 3 || tot.NonRegularQty != 3 || tot.TotalQtySold != 6 {
		t.Fatalf("unexpected quantities: %+v", tot)
	}
	if tot.RegularAmt != 150.01 {
		t.Fatalf("expected half-away-from-zero rounding to 150.01, got %v", tot.RegularAmt)
	}
	if tot.NonRegularAmt != 75.00 {
		t.Fatalf("expected 75.00, got %v", tot.NonRegularAmt)
	}
	if tot.TotalAmt != 225.01 {
		t.Fatalf("expected total derived from rounded buckets, got %v", tot.TotalAmt)
	}
}

func TestAggregateItemsTotalDerivesFromRoundedBuckets(t *testing.T) {
	// Sub-cent amounts round up in both buckets; the grand total must be the
	// sum of the rounded buckets, not a separately rounded raw sum.
	rows := []domain.ItemRow{
		{Classification: domain.ClassificationRegular, Quantity: 1, Amount: 0.005},
		{Classification: domain.ClassificationNonRegular, Quantity: 2, Amount: 0.005},
	}
	tot := AggregateItems(rows)
	if tot.RegularAmt != 0.01 || tot.NonRegularAmt != 0.01 {
		t.Fatalf("expected both buckets rounded to 0.01, got %+v", tot)
	}
	if tot.TotalAmt != Round2(tot.RegularAmt+tot.NonRegularAmt) {
		t.Fatalf("expected TotalAmt %v to equal rounded bucket sum %v", tot.TotalAmt, Round2(tot.RegularAmt+tot.NonRegularAmt))
	}
	if tot.TotalAmt != 0.02 {
		t.Fatalf("expected 0.02, got %v", tot.TotalAmt)
	}
	if tot.TotalQtySold != tot.RegularQty+tot.NonRegularQty {
		t.Fatalf("expected quantity total to equal bucket sum, got %+v", tot)
	}
}

func TestAggregatePayments(t *testing.T) {
	rows := []domain.PaymentRow{
		{CashCheck: 100.004, Charge: 50, TransactionCount: 12, HeadCount: 20},
		{CashCheck: 99.997, GiftCheck: 5, CreditNote: 1, TransactionCount: 8, HeadCount: 15},
	}
	tot := AggregatePayments(rows)
	if tot.CashCheck != 200.00 {
		t.Fatalf("expected 200.00, got %v", tot.CashCheck)
	}
	if tot.TotalPayments != 256.00 {
		t.Fatalf("expected 256.00, got %v", tot.TotalPayments)
	}
	if tot.TransactionCount != 20 || tot.HeadCount != 35 {
		t.Fatalf("unexpected tallies: %+v", tot)
	}
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{1.0051, 1.01},
		{-1.0051, -1.01},
		{2.344, 2.34},
		{2.346, 2.35},
		{0, 0},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Fatalf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestReconcileEpsilon(t *testing.T) {
	o := Reconcile(0, 0.0099)
	if !o.AmountsMatch {
		t.Fatalf("expected delta under epsilon to match, got %+v", o)
	}
	o = Reconcile(0, 0.01)
	if o.AmountsMatch {
		t.Fatalf("expected delta of exactly the epsilon to mismatch, got %+v", o)
	}
	if o.Direction != "Over" || o.Variance != 0.01 {
		t.Fatalf("expected Over by 0.01, got %+v", o)
	}
	o = Reconcile(100.00, 99.50)
	if o.AmountsMatch || o.Direction != "Under" || o.Variance != -0.50 {
		t.Fatalf("expected Under by 0.50, got %+v", o)
	}
}
