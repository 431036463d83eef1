package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// Allocation methods.
const (
	MethodExact        = "exact"
	MethodProportional = "proportional"
	MethodStandalone   = "standalone"
)

// Segment variance statuses.
const (
	StatusClean          = "CLEAN"
	StatusMissingInvoice = "MISSING_INVOICE"
	StatusUnderBilled    = "UNDER_BILLED"
	StatusOverBilled     = "OVER_BILLED"
	StatusUnpaidAR       = "UNPAID_AR"
	StatusUnknown        = "UNKNOWN"
)

// Allocation places part of an invoice or credit note onto a segment.
type Allocation struct {
	InvoiceID    string          `json:"invoice_id,omitempty"`
	CreditNoteID string          `json:"credit_note_id,omitempty"`
	SegmentID    string          `json:"segment_id"`
	Amount       decimal.Decimal `json:"allocated_amount"`
	Method       string          `json:"method"`
	OverlapDays  int             `json:"overlap_days,omitempty"`
}

// AppliedInvoice is the lineage detail of one invoice's contribution to
// a segment.
type AppliedInvoice struct {
	InvoiceID     string          `json:"invoice_id"`
	Allocated     decimal.Decimal `json:"allocated_amount"`
	InvoiceAmount decimal.Decimal `json:"invoice_amount"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	Status        string          `json:"invoice_status"`
	OverlapDays   int             `json:"overlap_days"`
	Method        string          `json:"method"`
}

// AppliedCredit is the lineage detail of one credit note's contribution.
type AppliedCredit struct {
	CreditNoteID  string          `json:"credit_note_id"`
	Allocated     decimal.Decimal `json:"allocated_amount"`
	CreditDate    time.Time       `json:"credit_date"`
	Reason        string          `json:"reason"`
	LinkedInvoice string          `json:"linked_invoice,omitempty"`
}

// SegmentVariance is the reconciled view of one revenue segment.
type SegmentVariance struct {
	SegmentID         string           `json:"segment_id"`
	RSXID             string           `json:"rsx_id"`
	SubscriptionID    string           `json:"subscription_id"`
	Period            string           `json:"period"`
	Expected          decimal.Decimal  `json:"expected_amount"`
	Invoiced          decimal.Decimal  `json:"invoiced_amount"`
	CreditNotes       decimal.Decimal  `json:"credit_notes_amount"`
	EffectiveInvoiced decimal.Decimal  `json:"effective_invoiced"`
	Collected         decimal.Decimal  `json:"collected_amount"`
	Variance          decimal.Decimal  `json:"variance"`
	Status            string           `json:"status"`
	IsProrated        bool             `json:"is_prorated"`
	Matched           bool             `json:"matched"`
	Currency          string           `json:"currency"`
	Invoices          []AppliedInvoice `json:"invoices,omitempty"`
	Credits           []AppliedCredit  `json:"credit_notes,omitempty"`
}

// AccountRollup aggregates segment variances up to one reconciliation
// entity.
type AccountRollup struct {
	RSXID               string          `json:"rsx_id"`
	AccountID           string          `json:"account_id"`
	AccountName         string          `json:"account_name"`
	CustomerID          string          `json:"customer_id,omitempty"`
	CustomerName        string          `json:"customer_name,omitempty"`
	MatchType           string          `json:"match_type"`
	Confidence          float64         `json:"confidence"`
	SubscriptionCount   int             `json:"subscription_count"`
	SegmentCount        int             `json:"segment_count"`
	CleanSegments       int             `json:"clean_segments"`
	TotalExpected       decimal.Decimal `json:"total_expected"`
	TotalInvoiced       decimal.Decimal `json:"total_invoiced"`
	TotalCredits        decimal.Decimal `json:"total_credits"`
	TotalEffective      decimal.Decimal `json:"total_effective"`
	TotalCollected      decimal.Decimal `json:"total_collected"`
	TotalVariance       decimal.Decimal `json:"total_variance"`
	AbsVariance         decimal.Decimal `json:"abs_variance"`
	PrimaryVarianceType string          `json:"primary_variance_type"`
	LineageStatus       string          `json:"lineage_status"`
	Periods             int             `json:"periods"`
	Currency            string          `json:"currency,omitempty"`
	StatusCounts        map[string]int  `json:"status_counts"`
}

// Lineage statuses on an account rollup.
const (
	LineageComplete   = "Complete"
	LineageIncomplete = "Incomplete"
	LineageUnknown    = "Unknown"
)

// Output is the full result of the reconciliation stage.
type Output struct {
	Allocations []Allocation      `json:"allocations"`
	Variances   []SegmentVariance `json:"variances"`
	Accounts    []AccountRollup   `json:"accounts"`
}
