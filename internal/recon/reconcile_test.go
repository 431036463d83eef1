package recon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revstrux/revstrux/internal/exclusion"
	"github.com/revstrux/revstrux/internal/identity"
	"github.com/revstrux/revstrux/internal/ingest"
	"github.com/revstrux/revstrux/internal/lifecycle"
)

var (
	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tol     = decimal.NewFromInt(1)
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func matchedSpine(accountID, customerID string) []identity.SpineEntry {
	return []identity.SpineEntry{{
		RSXID:       identity.RSXID(accountID),
		AccountID:   accountID,
		AccountName: "Account " + accountID,
		CustomerID:  customerID,
		MatchType:   identity.MatchExact,
		Confidence:  1,
	}}
}

func monthSegment(accountID, subID string, y int, m time.Month, expected string) lifecycle.Segment {
	start := day(y, m, 1)
	end := start.AddDate(0, 1, -1)
	return lifecycle.Segment{
		SegmentID:      "SEG-" + subID + "-" + start.Format("2006-01"),
		RSXID:          identity.RSXID(accountID),
		SubscriptionID: subID,
		AccountID:      accountID,
		Period:         start.Format("2006-01"),
		SegmentStart:   start,
		SegmentEnd:     end,
		DaysActive:     end.Day(),
		TotalDays:      end.Day(),
		MRREffective:   dec(expected),
		ExpectedAmount: dec(expected),
		Currency:       "USD",
		Matched:        true,
	}
}

// A fully invoiced, fully paid month reconciles CLEAN.
func TestReconcile_CleanSegment(t *testing.T) {
	in := Input{
		Spine:    matchedSpine("ACC-001", "CUST-001"),
		Segments: []lifecycle.Segment{monthSegment("ACC-001", "SUB-001", 2024, 1, "10000")},
		Invoices: []ingest.Invoice{{
			InvoiceID: "INV-001", CustomerID: "CUST-001", SubscriptionID: "SUB-001",
			InvoiceDate: day(2024, 1, 1), PeriodStart: day(2024, 1, 1), PeriodEnd: day(2024, 1, 31),
			Amount: dec("10000"), Status: "paid",
		}},
		Payments: []ingest.Payment{{
			PaymentID: "PAY-001", InvoiceID: "INV-001", PaymentDate: day(2024, 1, 15), Amount: dec("10000"),
		}},
		Tolerance: tol,
	}

	out, exclusions := Reconcile(in, testNow)
	require.Empty(t, exclusions)
	require.Len(t, out.Variances, 1)

	v := out.Variances[0]
	assert.Equal(t, StatusClean, v.Status)
	assert.True(t, v.Variance.IsZero())
	assert.Equal(t, "10000", v.Collected.String())
	require.Len(t, v.Invoices, 1)
	assert.Equal(t, MethodExact, v.Invoices[0].Method)

	require.Len(t, out.Accounts, 1)
	assert.Equal(t, StatusClean, out.Accounts[0].PrimaryVarianceType)
}

// A multi-month invoice splits proportionally by overlap days and the
// final segment absorbs the rounding residue, conserving the amount.
func TestReconcile_ProportionalAllocationConservesAmount(t *testing.T) {
	segments := []lifecycle.Segment{
		monthSegment("ACC-001", "SUB-001", 2024, 1, "3333.33"),
		monthSegment("ACC-001", "SUB-001", 2024, 2, "3333.33"),
		monthSegment("ACC-001", "SUB-001", 2024, 3, "3333.33"),
	}
	in := Input{
		Spine:    matchedSpine("ACC-001", "CUST-001"),
		Segments: segments,
		Invoices: []ingest.Invoice{{
			InvoiceID: "INV-Q1", CustomerID: "CUST-001",
			InvoiceDate: day(2024, 1, 1), PeriodStart: day(2024, 1, 1), PeriodEnd: day(2024, 3, 31),
			Amount: dec("10000"), Status: "paid",
		}},
		Tolerance: tol,
	}

	out, exclusions := Reconcile(in, testNow)
	require.Empty(t, exclusions)

	total := decimal.Zero
	for _, a := range out.Allocations {
		assert.Equal(t, MethodProportional, a.Method)
		total = total.Add(a.Amount)
	}
	assert.True(t, total.Equal(dec("10000")), "allocations must sum to the invoice amount, got %s", total)

	// 31+29+31 = 91 overlap days in 2024.
	assert.Equal(t, 31, out.Allocations[0].OverlapDays)
	assert.Equal(t, 29, out.Allocations[1].OverlapDays)
}

// Overlap days are counted inclusively on both ends, so an invoice
// running Jan 15 to Mar 14 splits 17/29/14 across the quarter.
func TestReconcile_MidPeriodInvoiceSplitsByOverlapDays(t *testing.T) {
	segments := []lifecycle.Segment{
		monthSegment("ACC-001", "SUB-001", 2024, 1, "2000"),
		monthSegment("ACC-001", "SUB-001", 2024, 2, "2000"),
		monthSegment("ACC-001", "SUB-001", 2024, 3, "2000"),
	}
	in := Input{
		Spine:    matchedSpine("ACC-001", "CUST-001"),
		Segments: segments,
		Invoices: []ingest.Invoice{{
			InvoiceID: "INV-MID", CustomerID: "CUST-001",
			InvoiceDate: day(2024, 1, 15), PeriodStart: day(2024, 1, 15), PeriodEnd: day(2024, 3, 14),
			Amount: dec("6000"), Status: "paid",
		}},
		Tolerance: tol,
	}

	out, exclusions := Reconcile(in, testNow)
	require.Empty(t, exclusions)
	require.Len(t, out.Allocations, 3)

	assert.Equal(t, 17, out.Allocations[0].OverlapDays)
	assert.Equal(t, 29, out.Allocations[1].OverlapDays)
	assert.Equal(t, 14, out.Allocations[2].OverlapDays)

	// 6000 * 17/60, 29/60, and the final slice takes the remainder.
	assert.Equal(t, "1700.00", out.Allocations[0].Amount.StringFixed(2))
	assert.Equal(t, "2900.00", out.Allocations[1].Amount.StringFixed(2))
	assert.Equal(t, "1400.00", out.Allocations[2].Amount.StringFixed(2))
}

// Void invoices are surfaced as exclusions, never allocated.
func TestReconcile_VoidInvoiceExcluded(t *testing.T) {
	in := Input{
		Spine:    matchedSpine("ACC-001", "CUST-001"),
		Segments: []lifecycle.Segment{monthSegment("ACC-001", "SUB-001", 2024, 1, "5000")},
		Invoices: []ingest.Invoice{{
			InvoiceID: "INV-VOID", CustomerID: "CUST-001",
			InvoiceDate: day(2024, 1, 1), PeriodStart: day(2024, 1, 1), PeriodEnd: day(2024, 1, 31),
			Amount: dec("5000"), Status: "void",
		}},
		Payments: []ingest.Payment{{
			PaymentID: "PAY-VOID", InvoiceID: "INV-VOID", PaymentDate: day(2024, 1, 15), Amount: dec("5000"),
		}},
		Tolerance: tol,
	}

	out, exclusions := Reconcile(in, testNow)
	require.Len(t, exclusions, 1)
	assert.Equal(t, exclusion.ReasonUnsupportedStructure, exclusions[0].ReasonCode)
	assert.Empty(t, out.Allocations)
	assert.Equal(t, StatusMissingInvoice, out.Variances[0].Status)
	// The payment on the voided invoice never reaches collected.
	assert.True(t, out.Variances[0].Collected.IsZero())
}

// Invoices with no overlapping segment, including those of unmatched
// customers, land in the exclusion log.
func TestReconcile_NoOverlapExcluded(t *testing.T) {
	in := Input{
		Spine:    matchedSpine("ACC-001", "CUST-001"),
		Segments: []lifecycle.Segment{monthSegment("ACC-001", "SUB-001", 2024, 1, "5000")},
		Invoices: []ingest.Invoice{
			{InvoiceID: "INV-LATE", CustomerID: "CUST-001",
				InvoiceDate: day(2024, 7, 1), PeriodStart: day(2024, 7, 1), PeriodEnd: day(2024, 7, 31),
				Amount: dec("5000"), Status: "paid"},
			{InvoiceID: "INV-ORPHAN", CustomerID: "CUST-UNKNOWN",
				InvoiceDate: day(2024, 1, 1), PeriodStart: day(2024, 1, 1), PeriodEnd: day(2024, 1, 31),
				Amount: dec("100"), Status: "paid"},
		},
		Tolerance: tol,
	}

	_, exclusions := Reconcile(in, testNow)
	require.Len(t, exclusions, 2)
	for _, e := range exclusions {
		assert.Equal(t, exclusion.ReasonAllocationAmbiguous, e.ReasonCode)
		assert.Equal(t, "invoice", e.RecordType)
	}
}

// A linked credit note mirrors its invoice's allocation proportions.
func TestReconcile_LinkedCreditMirrorsInvoice(t *testing.T) {
	segments := []lifecycle.Segment{
		monthSegment("ACC-001", "SUB-001", 2024, 1, "5000"),
		monthSegment("ACC-001", "SUB-001", 2024, 2, "5000"),
	}
	in := Input{
		Spine:    matchedSpine("ACC-001", "CUST-001"),
		Segments: segments,
		Invoices: []ingest.Invoice{{
			InvoiceID: "INV-001", CustomerID: "CUST-001",
			InvoiceDate: day(2024, 1, 1), PeriodStart: day(2024, 1, 1), PeriodEnd: day(2024, 2, 29),
			Amount: dec("10000"), Status: "paid",
		}},
		CreditNotes: []ingest.CreditNote{{
			CreditNoteID: "CN-001", CustomerID: "CUST-001", InvoiceID: "INV-001",
			CreditDate: day(2024, 3, 1), Amount: dec("1000"),
		}},
		Tolerance: tol,
	}

	out, exclusions := Reconcile(in, testNow)
	require.Empty(t, exclusions)

	creditTotal := decimal.Zero
	for _, v := range out.Variances {
		creditTotal = creditTotal.Add(v.CreditNotes)
		require.Len(t, v.Credits, 1)
		assert.Equal(t, "INV-001", v.Credits[0].LinkedInvoice)
	}
	assert.True(t, creditTotal.Equal(dec("1000")))
}

// A standalone credit note allocates to the single segment in its
// credit month; zero or many candidates exclude it.
func TestReconcile_StandaloneCredit(t *testing.T) {
	in := Input{
		Spine: matchedSpine("ACC-001", "CUST-001"),
		Segments: []lifecycle.Segment{
			monthSegment("ACC-001", "SUB-001", 2024, 1, "5000"),
			monthSegment("ACC-001", "SUB-001", 2024, 2, "5000"),
			monthSegment("ACC-001", "SUB-002", 2024, 2, "700"),
		},
		CreditNotes: []ingest.CreditNote{
			{CreditNoteID: "CN-OK", CustomerID: "CUST-001", CreditDate: day(2024, 1, 20), Amount: dec("250")},
			{CreditNoteID: "CN-AMBIG", CustomerID: "CUST-001", CreditDate: day(2024, 2, 5), Amount: dec("100")},
			{CreditNoteID: "CN-NONE", CustomerID: "CUST-001", CreditDate: day(2024, 9, 1), Amount: dec("100")},
			{CreditNoteID: "CN-ORPHAN", CustomerID: "CUST-X", CreditDate: day(2024, 1, 1), Amount: dec("100")},
		},
		Tolerance: tol,
	}

	out, exclusions := Reconcile(in, testNow)

	require.Len(t, exclusions, 3)
	for _, e := range exclusions {
		assert.Equal(t, exclusion.ReasonCreditNoteUnallocated, e.ReasonCode)
	}

	january := out.Variances[0]
	require.Len(t, january.Credits, 1)
	assert.Equal(t, "CN-OK", january.Credits[0].CreditNoteID)
	assert.True(t, january.CreditNotes.Equal(dec("250")))
}

// Billed within tolerance but uncollected classifies UNPAID_AR.
func TestReconcile_UnpaidAR(t *testing.T) {
	in := Input{
		Spine:    matchedSpine("ACC-001", "CUST-001"),
		Segments: []lifecycle.Segment{monthSegment("ACC-001", "SUB-001", 2024, 1, "5000")},
		Invoices: []ingest.Invoice{{
			InvoiceID: "INV-001", CustomerID: "CUST-001",
			InvoiceDate: day(2024, 1, 1), PeriodStart: day(2024, 1, 1), PeriodEnd: day(2024, 1, 31),
			Amount: dec("5000"), Status: "unpaid",
		}},
		Tolerance: tol,
	}

	out, _ := Reconcile(in, testNow)
	assert.Equal(t, StatusUnpaidAR, out.Variances[0].Status)
	assert.Equal(t, StatusUnpaidAR, out.Accounts[0].PrimaryVarianceType)
}

// Billing above and below expectation classifies OVER/UNDER_BILLED.
func TestReconcile_BillingVariances(t *testing.T) {
	mk := func(amount string) Input {
		return Input{
			Spine:    matchedSpine("ACC-001", "CUST-001"),
			Segments: []lifecycle.Segment{monthSegment("ACC-001", "SUB-001", 2024, 1, "5000")},
			Invoices: []ingest.Invoice{{
				InvoiceID: "INV-001", CustomerID: "CUST-001",
				InvoiceDate: day(2024, 1, 1), PeriodStart: day(2024, 1, 1), PeriodEnd: day(2024, 1, 31),
				Amount: dec(amount), Status: "paid",
			}},
			Payments: []ingest.Payment{{
				PaymentID: "PAY-001", InvoiceID: "INV-001", PaymentDate: day(2024, 2, 1), Amount: dec(amount),
			}},
			Tolerance: tol,
		}
	}

	over, _ := Reconcile(mk("6000"), testNow)
	assert.Equal(t, StatusOverBilled, over.Variances[0].Status)

	under, _ := Reconcile(mk("3500"), testNow)
	assert.Equal(t, StatusUnderBilled, under.Variances[0].Status)

	// A credit note can push an otherwise over-billed segment under.
	in := mk("6000")
	in.CreditNotes = []ingest.CreditNote{{
		CreditNoteID: "CN-BIG", CustomerID: "CUST-001", InvoiceID: "INV-001",
		CreditDate: day(2024, 2, 1), Amount: dec("2500"),
	}}
	credited, _ := Reconcile(in, testNow)
	assert.Equal(t, StatusUnderBilled, credited.Variances[0].Status)
	assert.Equal(t, "3500", credited.Variances[0].EffectiveInvoiced.String())

	// A credit exceeding its linked invoice drives effective below zero.
	in = mk("1000")
	in.CreditNotes = []ingest.CreditNote{{
		CreditNoteID: "CN-OVER", CustomerID: "CUST-001", InvoiceID: "INV-001",
		CreditDate: day(2024, 2, 1), Amount: dec("1500"),
	}}
	overCredited, _ := Reconcile(in, testNow)
	assert.Equal(t, StatusUnderBilled, overCredited.Variances[0].Status)
	assert.Equal(t, "-500", overCredited.Variances[0].EffectiveInvoiced.String())
}

// Segments of unmatched accounts always classify UNKNOWN.
func TestReconcile_UnknownForUnmatched(t *testing.T) {
	seg := monthSegment("ACC-009", "SUB-009", 2024, 1, "1200")
	seg.Matched = false
	in := Input{
		Spine: []identity.SpineEntry{{
			RSXID:     identity.RSXID("ACC-009"),
			AccountID: "ACC-009",
			MatchType: identity.MatchUnmatched,
		}},
		Segments:  []lifecycle.Segment{seg},
		Tolerance: tol,
	}

	out, _ := Reconcile(in, testNow)
	assert.Equal(t, StatusUnknown, out.Variances[0].Status)
	assert.Equal(t, StatusUnknown, out.Accounts[0].PrimaryVarianceType)
}

// The primary variance type is the status with the largest absolute
// aggregate variance, with the documented tie order.
func TestReconcile_PrimaryVarianceSelection(t *testing.T) {
	in := Input{
		Spine: matchedSpine("ACC-001", "CUST-001"),
		Segments: []lifecycle.Segment{
			monthSegment("ACC-001", "SUB-001", 2024, 1, "5000"), // missing invoice, |var| 5000
			monthSegment("ACC-001", "SUB-001", 2024, 2, "5000"), // over billed by 2000
		},
		Invoices: []ingest.Invoice{{
			InvoiceID: "INV-002", CustomerID: "CUST-001",
			InvoiceDate: day(2024, 2, 1), PeriodStart: day(2024, 2, 1), PeriodEnd: day(2024, 2, 29),
			Amount: dec("7000"), Status: "paid",
		}},
		Payments: []ingest.Payment{{
			PaymentID: "PAY-002", InvoiceID: "INV-002", PaymentDate: day(2024, 3, 1), Amount: dec("7000"),
		}},
		Tolerance: tol,
	}

	out, _ := Reconcile(in, testNow)
	require.Len(t, out.Accounts, 1)
	acc := out.Accounts[0]
	assert.Equal(t, StatusMissingInvoice, acc.PrimaryVarianceType)
	assert.Equal(t, 2, acc.SegmentCount)
	assert.Equal(t, 1, acc.StatusCounts[StatusMissingInvoice])
	assert.Equal(t, 1, acc.StatusCounts[StatusOverBilled])
	assert.True(t, acc.TotalVariance.Equal(dec("-3000")))
}
