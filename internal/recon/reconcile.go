package recon

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revstrux/revstrux/internal/exclusion"
	"github.com/revstrux/revstrux/internal/identity"
	"github.com/revstrux/revstrux/internal/ingest"
	"github.com/revstrux/revstrux/internal/lifecycle"
)

// Input bundles the reconciliation stage's inputs. Tolerance is the
// variance dead band in currency units.
type Input struct {
	Spine       []identity.SpineEntry
	Segments    []lifecycle.Segment
	Invoices    []ingest.Invoice
	Payments    []ingest.Payment
	CreditNotes []ingest.CreditNote
	Tolerance   decimal.Decimal
}

// Reconcile allocates invoices and credit notes onto segments, computes
// per-segment variance, and rolls results up to accounts.
func Reconcile(in Input, now time.Time) (*Output, []exclusion.Exclusion) {
	r := &run{
		in:            in,
		now:           now,
		customerToRSX: map[string]string{},
		segsByRSX:     map[string][]lifecycle.Segment{},
		invAllocs:     map[string][]int{},
		segInvoices:   map[string][]AppliedInvoice{},
		segCredits:    map[string][]AppliedCredit{},
	}

	for _, e := range in.Spine {
		if e.CustomerID != "" {
			r.customerToRSX[e.CustomerID] = e.RSXID
		}
	}
	for _, s := range in.Segments {
		r.segsByRSX[s.RSXID] = append(r.segsByRSX[s.RSXID], s)
	}
	for rsx := range r.segsByRSX {
		segs := r.segsByRSX[rsx]
		sort.Slice(segs, func(i, j int) bool {
			if !segs[i].SegmentStart.Equal(segs[j].SegmentStart) {
				return segs[i].SegmentStart.Before(segs[j].SegmentStart)
			}
			return segs[i].SegmentID < segs[j].SegmentID
		})
	}

	r.allocateInvoices()
	r.allocateCredits()
	out := r.variances()
	return out, r.exclusions
}

type run struct {
	in  Input
	now time.Time

	customerToRSX map[string]string
	segsByRSX     map[string][]lifecycle.Segment

	allocations []Allocation
	invAllocs   map[string][]int // invoice_id -> indexes into allocations
	segInvoices map[string][]AppliedInvoice
	segCredits  map[string][]AppliedCredit
	exclusions  []exclusion.Exclusion
}

func (r *run) exclude(recordType, recordID, reason, description string) {
	r.exclusions = append(r.exclusions, exclusion.Exclusion{
		RecordType:  recordType,
		RecordID:    recordID,
		ReasonCode:  reason,
		Description: description,
		ExcludedAt:  r.now,
	})
}

type overlapSeg struct {
	seg  lifecycle.Segment
	days int
}

// overlapping returns the rsx's segments whose inclusive day range
// intersects [start, end], with the overlap day count.
func (r *run) overlapping(rsxID, subscriptionID string, start, end time.Time) []overlapSeg {
	candidates := r.segsByRSX[rsxID]
	if subscriptionID != "" {
		var filtered []lifecycle.Segment
		for _, s := range candidates {
			if s.SubscriptionID == subscriptionID {
				filtered = append(filtered, s)
			}
		}
		// A hint pointing at an unknown subscription falls back to
		// every segment of the entity.
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	var out []overlapSeg
	for _, s := range candidates {
		os := maxDate(start, s.SegmentStart)
		oe := minDate(end, s.SegmentEnd)
		if os.After(oe) {
			continue
		}
		out = append(out, overlapSeg{seg: s, days: inclusiveDays(os, oe)})
	}
	return out
}

func (r *run) allocateInvoices() {
	for _, inv := range r.in.Invoices {
		if inv.Status == "void" {
			r.exclude("invoice", inv.InvoiceID, exclusion.ReasonUnsupportedStructure,
				fmt.Sprintf("Void invoice %s excluded from allocation.", inv.InvoiceID))
			continue
		}

		rsxID, matched := r.customerToRSX[inv.CustomerID]
		var overlaps []overlapSeg
		if matched {
			overlaps = r.overlapping(rsxID, inv.SubscriptionID, inv.PeriodStart, inv.PeriodEnd)
		}
		if len(overlaps) == 0 {
			r.exclude("invoice", inv.InvoiceID, exclusion.ReasonAllocationAmbiguous,
				fmt.Sprintf("Invoice %s has no matching segment.", inv.InvoiceID))
			continue
		}

		if len(overlaps) == 1 {
			r.addInvoiceAllocation(inv, overlaps[0].seg, inv.Amount, MethodExact, overlaps[0].days)
			continue
		}

		totalDays := 0
		for _, o := range overlaps {
			totalDays += o.days
		}
		remaining := inv.Amount
		for i, o := range overlaps {
			var amount decimal.Decimal
			if i == len(overlaps)-1 {
				// Final segment absorbs the rounding residue.
				amount = remaining
			} else {
				amount = inv.Amount.
					Mul(decimal.NewFromInt(int64(o.days))).
					Div(decimal.NewFromInt(int64(totalDays))).
					RoundBank(2)
				remaining = remaining.Sub(amount)
			}
			r.addInvoiceAllocation(inv, o.seg, amount, MethodProportional, o.days)
		}
	}
}

func (r *run) addInvoiceAllocation(inv ingest.Invoice, seg lifecycle.Segment, amount decimal.Decimal, method string, overlapDays int) {
	r.allocations = append(r.allocations, Allocation{
		InvoiceID:   inv.InvoiceID,
		SegmentID:   seg.SegmentID,
		Amount:      amount,
		Method:      method,
		OverlapDays: overlapDays,
	})
	r.invAllocs[inv.InvoiceID] = append(r.invAllocs[inv.InvoiceID], len(r.allocations)-1)
	r.segInvoices[seg.SegmentID] = append(r.segInvoices[seg.SegmentID], AppliedInvoice{
		InvoiceID:     inv.InvoiceID,
		Allocated:     amount,
		InvoiceAmount: inv.Amount,
		InvoiceDate:   inv.InvoiceDate,
		Status:        inv.Status,
		OverlapDays:   overlapDays,
		Method:        method,
	})
}

func (r *run) allocateCredits() {
	invoiceByID := make(map[string]ingest.Invoice, len(r.in.Invoices))
	for _, inv := range r.in.Invoices {
		invoiceByID[inv.InvoiceID] = inv
	}

	for _, cn := range r.in.CreditNotes {
		if cn.InvoiceID != "" {
			if idxs := r.invAllocs[cn.InvoiceID]; len(idxs) > 0 {
				r.mirrorCredit(cn, invoiceByID[cn.InvoiceID], idxs)
				continue
			}
			// Linked invoice was excluded; fall through to the
			// standalone path.
		}
		r.standaloneCredit(cn)
	}
}

// mirrorCredit distributes a linked credit note across its invoice's
// segments in the invoice's own allocation proportions.
func (r *run) mirrorCredit(cn ingest.CreditNote, inv ingest.Invoice, idxs []int) {
	remaining := cn.Amount
	for i, idx := range idxs {
		alloc := r.allocations[idx]
		var amount decimal.Decimal
		if i == len(idxs)-1 {
			amount = remaining
		} else if inv.Amount.IsZero() {
			amount = decimal.Zero
		} else {
			amount = cn.Amount.Mul(alloc.Amount).Div(inv.Amount).RoundBank(2)
			remaining = remaining.Sub(amount)
		}
		r.addCreditAllocation(cn, alloc.SegmentID, amount, alloc.Method, cn.InvoiceID)
	}
}

// standaloneCredit places an unlinked credit note onto the single
// segment overlapping its credit month, or excludes it.
func (r *run) standaloneCredit(cn ingest.CreditNote) {
	rsxID, matched := r.customerToRSX[cn.CustomerID]
	if !matched {
		r.exclude("credit_note", cn.CreditNoteID, exclusion.ReasonCreditNoteUnallocated,
			fmt.Sprintf("Credit note %s belongs to unmatched customer %s.", cn.CreditNoteID, cn.CustomerID))
		return
	}

	monthFirst := time.Date(cn.CreditDate.Year(), cn.CreditDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthLast := monthFirst.AddDate(0, 1, -1)
	overlaps := r.overlapping(rsxID, "", monthFirst, monthLast)

	if len(overlaps) != 1 {
		r.exclude("credit_note", cn.CreditNoteID, exclusion.ReasonCreditNoteUnallocated,
			fmt.Sprintf("Credit note %s matches %d segments in %s; exactly one required.",
				cn.CreditNoteID, len(overlaps), monthFirst.Format("2006-01")))
		return
	}
	r.addCreditAllocation(cn, overlaps[0].seg.SegmentID, cn.Amount, MethodStandalone, "")
}

func (r *run) addCreditAllocation(cn ingest.CreditNote, segmentID string, amount decimal.Decimal, method, linkedInvoice string) {
	r.allocations = append(r.allocations, Allocation{
		CreditNoteID: cn.CreditNoteID,
		SegmentID:    segmentID,
		Amount:       amount,
		Method:       method,
	})
	r.segCredits[segmentID] = append(r.segCredits[segmentID], AppliedCredit{
		CreditNoteID:  cn.CreditNoteID,
		Allocated:     amount,
		CreditDate:    cn.CreditDate,
		Reason:        cn.Reason,
		LinkedInvoice: linkedInvoice,
	})
}

func inclusiveDays(a, b time.Time) int {
	return int(b.Sub(a).Hours()/24) + 1
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
