package domain

import (
	"strings"
	"time"
)

type Classification string

const (
	ClassificationRegular    Classification = "Regular"
	ClassificationNonRegular Classification = "Non-Regular"
)

type CatalogEntry struct {
	Barcode        string         `json:"barcode"`
	Classification Classification `json:"classification"`
}

// ItemRow is one normalized line from an item-sales upload, already joined
// against the catalog. Classification is empty when the barcode was unmatched.
type ItemRow struct {
	Barcode        string         `json:"barcode"`
	Description    string         `json:"description,omitempty"`
	Quantity       float64        `json:"quantity"`
	Amount         float64        `json:"amount"`
	Classification Classification `json:"classification,omitempty"`
}

// PaymentRow is one normalized line from a payment upload, with every
// recognized column already folded into its payment bucket.
type PaymentRow struct {
	CashCheck        float64 `json:"cash_check"`
	Charge           float64 `json:"charge"`
	GiftCheck        float64 `json:"gift_check"`
	CreditNote       float64 `json:"credit_note"`
	TransactionCount int     `json:"transaction_count"`
	HeadCount        int     `json:"head_count"`
}

// ReportingPeriod is a single business day extracted from an uploaded file.
type ReportingPeriod struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
}

const PeriodLabelLayout = "January 02, 2006"

func NewReportingPeriod(date time.Time) ReportingPeriod {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return ReportingPeriod{Date: d, Label: d.Format(PeriodLabelLayout)}
}

// BranchToken joins a store id and branch label into the single token that
// appears inside uploaded files, e.g. "S012 - MAIN".
func BranchToken(storeID, branchLabel string) string {
	storeID = strings.TrimSpace(storeID)
	branchLabel = strings.TrimSpace(branchLabel)
	if storeID == "" {
		return branchLabel
	}
	if branchLabel == "" {
		return storeID
	}
	return storeID + " - " + branchLabel
}

// NormalizeBranch canonicalizes a branch token for comparison.
func NormalizeBranch(token string) string {
	return strings.ToUpper(strings.Join(strings.Fields(token), " "))
}

type ItemUpload struct {
	FileName   string           `json:"file_name"`
	Branch     string           `json:"branch"`
	Period     *ReportingPeriod `json:"period,omitempty"`
	Rows       []ItemRow        `json:"rows"`
	Unmatched  []ItemRow        `json:"unmatched"`
	UploadedAt time.Time        `json:"uploaded_at"`
}

type PaymentUpload struct {
	FileName   string           `json:"file_name"`
	Branch     string           `json:"branch"`
	Period     *ReportingPeriod `json:"period,omitempty"`
	Rows       []PaymentRow     `json:"rows"`
	UploadedAt time.Time        `json:"uploaded_at"`
}

// UploadSession holds a user's staged uploads between upload and submission.
// At most one session exists per user.
type UploadSession struct {
	Username  string         `json:"username"`
	Items     *ItemUpload    `json:"items,omitempty"`
	Payments  *PaymentUpload `json:"payments,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SalesSummary is one submitted day of sales for one branch, keyed by
// (UserID, StoreID, Branch, Period).
type SalesSummary struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	StoreID     string    `json:"store_id"`
	Branch      string    `json:"branch"`
	Period      time.Time `json:"period"`
	PeriodLabel string    `json:"period_label"`

	RegularQty    float64 `json:"regular_qty"`
	RegularAmt    float64 `json:"regular_amt"`
	NonRegularQty float64 `json:"non_regular_qty"`
	NonRegularAmt float64 `json:"non_regular_amt"`
	TotalQtySold  float64 `json:"total_qty_sold"`
	TotalAmt      float64 `json:"total_amt"`

	CashCheck     float64 `json:"cash_check"`
	Charge        float64 `json:"charge"`
	GiftCheck     float64 `json:"gift_check"`
	CreditNote    float64 `json:"credit_note"`
	TotalPayments float64 `json:"total_payments"`

	AmountsMatch     bool    `json:"amounts_match"`
	Variance         float64 `json:"variance"`
	TransactionCount int     `json:"transaction_count"`
	HeadCount        int     `json:"head_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SummaryFilter struct {
	UserID  string
	StoreID string
	Branch  string
	From    time.Time
	To      time.Time
	Limit   int
}

type UserAccount struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	StoreID      string    `json:"store_id"`
	BranchLabel  string    `json:"branch_label"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Actor struct {
	Username    string
	Role        string
	StoreID     string
	BranchLabel string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	StoreID     string `json:"store_id"`
	Branch      string `json:"branch"`
	ExpiresAt   string `json:"expires_at"`
}

type EncoderCreateRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	StoreID     string `json:"store_id"`
	BranchLabel string `json:"branch_label"`
}

type BranchUpdateRequest struct {
	StoreID     string `json:"store_id"`
	BranchLabel string `json:"branch_label"`
}

type CatalogUploadResponse struct {
	Entries    int       `json:"entries"`
	ReplacedAt time.Time `json:"replaced_at"`
}

type CatalogPage struct {
	Entries []CatalogEntry `json:"entries"`
	Offset  int            `json:"offset"`
	Limit   int            `json:"limit"`
	Total   int            `json:"total"`
	HasMore bool           `json:"has_more"`
}

type ItemTotals struct {
	RegularQty    float64 `json:"regular_qty"`
	RegularAmt    float64 `json:"regular_amt"`
	NonRegularQty float64 `json:"non_regular_qty"`
	NonRegularAmt float64 `json:"non_regular_amt"`
	TotalQtySold  float64 `json:"total_qty_sold"`
	TotalAmt      float64 `json:"total_amt"`
}

type PaymentTotals struct {
	CashCheck        float64 `json:"cash_check"`
	Charge           float64 `json:"charge"`
	GiftCheck        float64 `json:"gift_check"`
	CreditNote       float64 `json:"credit_note"`
	TotalPayments    float64 `json:"total_payments"`
	TransactionCount int     `json:"transaction_count"`
	HeadCount        int     `json:"head_count"`
}

// SessionPreview is what the UI renders between uploads and submission.
type SessionPreview struct {
	Items          *ItemUpload    `json:"items,omitempty"`
	Payments       *PaymentUpload `json:"payments,omitempty"`
	ItemTotals     *ItemTotals    `json:"item_totals,omitempty"`
	PaymentTotals  *PaymentTotals `json:"payment_totals,omitempty"`
	UnmatchedCount int            `json:"unmatched_count"`
	Ready          bool           `json:"ready"`
}
