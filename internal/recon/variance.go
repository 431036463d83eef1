package recon

import (
	"sort"

	"github.com/shopspring/decimal"
)

// varianceRank orders statuses for primary-variance tie breaking.
var varianceRank = map[string]int{
	StatusMissingInvoice: 0,
	StatusUnpaidAR:       1,
	StatusUnderBilled:    2,
	StatusOverBilled:     3,
	StatusUnknown:        4,
	StatusClean:          5,
}

func (r *run) variances() *Output {
	paymentTotals := map[string]decimal.Decimal{}
	for _, p := range r.in.Payments {
		paymentTotals[p.InvoiceID] = paymentTotals[p.InvoiceID].Add(p.Amount)
	}

	out := &Output{Allocations: r.allocations}

	for _, seg := range r.in.Segments {
		applied := r.segInvoices[seg.SegmentID]
		credits := r.segCredits[seg.SegmentID]

		invoiced := decimal.Zero
		collected := decimal.Zero
		for _, a := range applied {
			invoiced = invoiced.Add(a.Allocated)
			paid := paymentTotals[a.InvoiceID]
			if a.InvoiceAmount.IsPositive() && !paid.IsZero() {
				// Partially allocated invoices contribute their
				// payments in the same proportion.
				collected = collected.Add(paid.Mul(a.Allocated).Div(a.InvoiceAmount).RoundBank(2))
			}
		}
		creditTotal := decimal.Zero
		for _, c := range credits {
			creditTotal = creditTotal.Add(c.Allocated)
		}

		effective := invoiced.Sub(creditTotal)
		variance := effective.Sub(seg.ExpectedAmount)

		out.Variances = append(out.Variances, SegmentVariance{
			SegmentID:         seg.SegmentID,
			RSXID:             seg.RSXID,
			SubscriptionID:    seg.SubscriptionID,
			Period:            seg.Period,
			Expected:          seg.ExpectedAmount,
			Invoiced:          invoiced,
			CreditNotes:       creditTotal,
			EffectiveInvoiced: effective,
			Collected:         collected,
			Variance:          variance,
			Status:            r.classify(seg.Matched, seg.ExpectedAmount, effective, collected, variance),
			IsProrated:        seg.IsProrated,
			Matched:           seg.Matched,
			Currency:          seg.Currency,
			Invoices:          applied,
			Credits:           credits,
		})
	}

	out.Accounts = r.rollup(out.Variances)
	return out
}

// classify applies the variance decision table top to bottom.
func (r *run) classify(matched bool, expected, effective, collected, variance decimal.Decimal) string {
	tol := r.in.Tolerance
	switch {
	case !matched:
		return StatusUnknown
	case effective.IsZero() && expected.GreaterThan(tol):
		return StatusMissingInvoice
	case variance.Abs().LessThanOrEqual(tol):
		if collected.GreaterThanOrEqual(effective.Sub(tol)) {
			return StatusClean
		}
		return StatusUnpaidAR
	case variance.LessThan(tol.Neg()):
		return StatusUnderBilled
	default:
		return StatusOverBilled
	}
}

func (r *run) rollup(variances []SegmentVariance) []AccountRollup {
	bySeg := map[string][]SegmentVariance{}
	for _, v := range variances {
		bySeg[v.RSXID] = append(bySeg[v.RSXID], v)
	}
	subsBySeg := map[string]map[string]bool{}
	for _, s := range r.in.Segments {
		if subsBySeg[s.RSXID] == nil {
			subsBySeg[s.RSXID] = map[string]bool{}
		}
		subsBySeg[s.RSXID][s.SubscriptionID] = true
	}

	accounts := make([]AccountRollup, 0, len(r.in.Spine))
	for _, e := range r.in.Spine {
		acc := AccountRollup{
			RSXID:        e.RSXID,
			AccountID:    e.AccountID,
			AccountName:  e.AccountName,
			CustomerID:   e.CustomerID,
			CustomerName: e.CustomerName,
			MatchType:    e.MatchType,
			Confidence:   e.Confidence,
			StatusCounts: map[string]int{},
		}

		absByStatus := map[string]decimal.Decimal{}
		periods := map[string]bool{}
		withInvoices := 0
		for _, v := range bySeg[e.RSXID] {
			acc.SegmentCount++
			acc.StatusCounts[v.Status]++
			if v.Status == StatusClean {
				acc.CleanSegments++
			} else {
				absByStatus[v.Status] = absByStatus[v.Status].Add(v.Variance.Abs())
			}
			periods[v.Period] = true
			if len(v.Invoices) > 0 {
				withInvoices++
			}
			if acc.Currency == "" {
				acc.Currency = v.Currency
			}
			acc.TotalExpected = acc.TotalExpected.Add(v.Expected)
			acc.TotalInvoiced = acc.TotalInvoiced.Add(v.Invoiced)
			acc.TotalCredits = acc.TotalCredits.Add(v.CreditNotes)
			acc.TotalEffective = acc.TotalEffective.Add(v.EffectiveInvoiced)
			acc.TotalCollected = acc.TotalCollected.Add(v.Collected)
			acc.TotalVariance = acc.TotalVariance.Add(v.Variance)
		}
		acc.SubscriptionCount = len(subsBySeg[e.RSXID])
		acc.Periods = len(periods)
		acc.AbsVariance = acc.TotalVariance.Abs()
		acc.PrimaryVarianceType = primaryVariance(e.CustomerID == "", absByStatus)
		acc.LineageStatus = lineageStatus(e.CustomerID == "", acc.SegmentCount, withInvoices)

		accounts = append(accounts, acc)
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].AccountID < accounts[j].AccountID })
	return accounts
}

// lineageStatus grades invoice traceability per account.
func lineageStatus(unmatched bool, segments, withInvoices int) string {
	switch {
	case unmatched:
		return LineageUnknown
	case segments > 0 && withInvoices == segments:
		return LineageComplete
	default:
		return LineageIncomplete
	}
}

// primaryVariance picks the non-clean status carrying the largest
// absolute aggregate variance.
func primaryVariance(unmatched bool, absByStatus map[string]decimal.Decimal) string {
	best, bestAbs := "", decimal.Zero
	for status, abs := range absByStatus {
		switch {
		case best == "",
			abs.GreaterThan(bestAbs),
			abs.Equal(bestAbs) && varianceRank[status] < varianceRank[best]:
			best, bestAbs = status, abs
		}
	}
	if best != "" {
		return best
	}
	if unmatched {
		return StatusUnknown
	}
	return StatusClean
}
