package lifecycle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revstrux/revstrux/internal/exclusion"
	"github.com/revstrux/revstrux/internal/identity"
	"github.com/revstrux/revstrux/internal/ingest"
)

// Segment is one subscription-month slice of expected revenue. Segments
// within a subscription never overlap and tile the subscription's
// intersection with the reporting period exactly.
type Segment struct {
	SegmentID      string          `json:"segment_id"`
	RSXID          string          `json:"rsx_id"`
	SubscriptionID string          `json:"subscription_id"`
	AccountID      string          `json:"account_id"`
	Period         string          `json:"period"`
	SegmentStart   time.Time       `json:"segment_start"`
	SegmentEnd     time.Time       `json:"segment_end"`
	DaysActive     int             `json:"days_active"`
	TotalDays      int             `json:"total_days"`
	MRREffective   decimal.Decimal `json:"mrr_effective"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	IsProrated     bool            `json:"is_prorated"`
	Currency       string          `json:"currency"`
	Matched        bool            `json:"matched"`
}

// Input bundles everything the builder needs. PeriodStart must be the
// first day of a month and PeriodEnd the last day of a month, both
// inclusive.
type Input struct {
	Spine         []identity.SpineEntry
	Subscriptions []ingest.Subscription
	PeriodStart   time.Time
	PeriodEnd     time.Time
}

// Build expands every subscription intersecting the reporting period
// into calendar-month segments with day-count proration and ramp
// splits. Subscriptions the engine cannot express are returned as
// exclusions instead.
func Build(in Input, now time.Time) ([]Segment, []exclusion.Exclusion) {
	var segments []Segment
	var exclusions []exclusion.Exclusion

	spineByAccount := make(map[string]identity.SpineEntry, len(in.Spine))
	for _, e := range in.Spine {
		spineByAccount[e.AccountID] = e
	}

	exclude := func(sub ingest.Subscription, description string) {
		exclusions = append(exclusions, exclusion.Exclusion{
			RecordType:  "subscription",
			RecordID:    sub.SubscriptionID,
			ReasonCode:  exclusion.ReasonUnsupportedStructure,
			Description: description,
			ExcludedAt:  now,
		})
	}

	for _, sub := range in.Subscriptions {
		if sub.PricingModel == "usage" {
			exclude(sub, "Usage-based subscription excluded. Only flat and ramp supported.")
			continue
		}
		if sub.MRR.IsNegative() {
			exclude(sub, fmt.Sprintf("Negative MRR %s.", sub.MRR.StringFixed(2)))
			continue
		}
		if sub.EndDate != nil && sub.StartDate.After(*sub.EndDate) {
			exclude(sub, "Subscription start date is after its end date.")
			continue
		}

		rsxID := identity.RSXID(sub.AccountID)
		matched := false
		if e, ok := spineByAccount[sub.AccountID]; ok {
			rsxID = e.RSXID
			matched = e.CustomerID != ""
		}

		clampStart := maxDate(sub.StartDate, in.PeriodStart)
		clampEnd := in.PeriodEnd
		if sub.EndDate != nil {
			clampEnd = minDate(*sub.EndDate, in.PeriodEnd)
		}
		if clampStart.After(clampEnd) {
			continue
		}

		for ms := monthStart(clampStart); !ms.After(clampEnd); ms = ms.AddDate(0, 1, 0) {
			me := monthEnd(ms)
			segStart := maxDate(ms, clampStart)
			segEnd := minDate(me, clampEnd)

			for _, piece := range splitByRamp(sub, segStart, segEnd) {
				totalDays := me.Day()
				daysActive := inclusiveDays(piece.start, piece.end)
				expected := piece.mrr.
					Mul(decimal.NewFromInt(int64(daysActive))).
					Div(decimal.NewFromInt(int64(totalDays))).
					RoundBank(2)

				segments = append(segments, Segment{
					SegmentID:      segmentID(sub.SubscriptionID, segStart, piece.index),
					RSXID:          rsxID,
					SubscriptionID: sub.SubscriptionID,
					AccountID:      sub.AccountID,
					Period:         segStart.Format("2006-01"),
					SegmentStart:   piece.start,
					SegmentEnd:     piece.end,
					DaysActive:     daysActive,
					TotalDays:      totalDays,
					MRREffective:   piece.mrr,
					ExpectedAmount: expected,
					IsProrated:     daysActive < totalDays,
					Currency:       sub.Currency,
					Matched:        matched,
				})
			}
		}
	}

	return segments, exclusions
}

type rampPiece struct {
	start, end time.Time
	mrr        decimal.Decimal
	index      int
}

// splitByRamp cuts a month segment at every ramp step that takes effect
// inside it, so each piece carries a single effective MRR.
func splitByRamp(sub ingest.Subscription, start, end time.Time) []rampPiece {
	var cuts []time.Time
	for _, step := range sub.RampSchedule {
		if step.EffectiveDate.After(start) && !step.EffectiveDate.After(end) {
			cuts = append(cuts, step.EffectiveDate)
		}
	}

	pieces := make([]rampPiece, 0, len(cuts)+1)
	pieceStart := start
	for _, cut := range cuts {
		pieces = append(pieces, rampPiece{
			start: pieceStart,
			end:   cut.AddDate(0, 0, -1),
			mrr:   effectiveMRR(sub, pieceStart),
			index: len(pieces),
		})
		pieceStart = cut
	}
	pieces = append(pieces, rampPiece{
		start: pieceStart,
		end:   end,
		mrr:   effectiveMRR(sub, pieceStart),
		index: len(pieces),
	})
	return pieces
}

// effectiveMRR is the latest ramp override at or before the given date,
// falling back to the subscription's base MRR.
func effectiveMRR(sub ingest.Subscription, at time.Time) decimal.Decimal {
	mrr := sub.MRR
	for _, step := range sub.RampSchedule {
		if step.EffectiveDate.After(at) {
			break
		}
		mrr = step.MRR
	}
	return mrr
}

func segmentID(subscriptionID string, segStart time.Time, part int) string {
	id := fmt.Sprintf("SEG-%s-%s", subscriptionID, segStart.Format("2006-01"))
	if part > 0 {
		id = fmt.Sprintf("%s-%d", id, part+1)
	}
	return id
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, -1)
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
