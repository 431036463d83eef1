package lifecycle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revstrux/revstrux/internal/exclusion"
	"github.com/revstrux/revstrux/internal/identity"
	"github.com/revstrux/revstrux/internal/ingest"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func spineFor(accountIDs ...string) []identity.SpineEntry {
	out := make([]identity.SpineEntry, 0, len(accountIDs))
	for _, id := range accountIDs {
		out = append(out, identity.SpineEntry{
			RSXID:      identity.RSXID(id),
			AccountID:  id,
			CustomerID: "CUST-" + id,
			MatchType:  identity.MatchExact,
		})
	}
	return out
}

// A full-year flat subscription produces twelve unprorated segments of
// exactly the base MRR.
func TestBuild_FlatFullYear(t *testing.T) {
	in := Input{
		Spine: spineFor("ACC-001"),
		Subscriptions: []ingest.Subscription{{
			SubscriptionID: "SUB-001",
			AccountID:      "ACC-001",
			StartDate:      day(2024, 1, 1),
			EndDate:        ptr(day(2024, 12, 31)),
			MRR:            decimal.NewFromInt(10000),
			Currency:       "USD",
			PricingModel:   "flat",
		}},
		PeriodStart: day(2024, 1, 1),
		PeriodEnd:   day(2024, 12, 31),
	}

	segments, exclusions := Build(in, testNow)
	require.Empty(t, exclusions)
	require.Len(t, segments, 12)

	for _, s := range segments {
		assert.False(t, s.IsProrated, s.Period)
		assert.True(t, s.ExpectedAmount.Equal(decimal.NewFromInt(10000)), s.Period)
		assert.Equal(t, s.TotalDays, s.DaysActive)
		assert.True(t, s.Matched)
	}
	assert.Equal(t, "2024-01", segments[0].Period)
	assert.Equal(t, "2024-12", segments[11].Period)
}

// Mid-month start prorates the first month by inclusive day count with
// banker's rounding.
func TestBuild_MidMonthStartProrates(t *testing.T) {
	in := Input{
		Spine: spineFor("ACC-001"),
		Subscriptions: []ingest.Subscription{{
			SubscriptionID: "SUB-001",
			AccountID:      "ACC-001",
			StartDate:      day(2024, 3, 15),
			MRR:            decimal.NewFromInt(5000),
			PricingModel:   "flat",
		}},
		PeriodStart: day(2024, 3, 1),
		PeriodEnd:   day(2024, 4, 30),
	}

	segments, _ := Build(in, testNow)
	require.Len(t, segments, 2)

	march := segments[0]
	assert.Equal(t, "2024-03", march.Period)
	assert.Equal(t, 17, march.DaysActive) // Mar 15..31 inclusive
	assert.Equal(t, 31, march.TotalDays)
	assert.True(t, march.IsProrated)
	// 5000 * 17/31 = 2741.935... -> 2741.94
	assert.Equal(t, "2741.94", march.ExpectedAmount.StringFixed(2))

	april := segments[1]
	assert.False(t, april.IsProrated)
	assert.Equal(t, "5000.00", april.ExpectedAmount.StringFixed(2))
}

// Proration uses the calendar length of each month, so a leap February
// divides by 29.
func TestBuild_LeapFebruaryProrates(t *testing.T) {
	in := Input{
		Spine: spineFor("ACC-001"),
		Subscriptions: []ingest.Subscription{{
			SubscriptionID: "SUB-001",
			AccountID:      "ACC-001",
			StartDate:      day(2024, 2, 10),
			EndDate:        ptr(day(2024, 11, 20)),
			MRR:            decimal.NewFromInt(3000),
			PricingModel:   "flat",
		}},
		PeriodStart: day(2024, 1, 1),
		PeriodEnd:   day(2024, 12, 31),
	}

	segments, _ := Build(in, testNow)
	require.Len(t, segments, 10)

	feb := segments[0]
	assert.Equal(t, "2024-02", feb.Period)
	assert.Equal(t, 20, feb.DaysActive) // Feb 10..29 inclusive
	assert.Equal(t, 29, feb.TotalDays)
	assert.True(t, feb.IsProrated)
	// 3000 * 20/29 = 2068.9655... -> 2068.97
	assert.Equal(t, "2068.97", feb.ExpectedAmount.StringFixed(2))

	for _, s := range segments[1:9] {
		assert.False(t, s.IsProrated, s.Period)
		assert.Equal(t, "3000.00", s.ExpectedAmount.StringFixed(2), s.Period)
	}

	nov := segments[9]
	assert.Equal(t, "2024-11", nov.Period)
	assert.Equal(t, 20, nov.DaysActive)
	assert.True(t, nov.IsProrated)
	assert.Equal(t, "2000.00", nov.ExpectedAmount.StringFixed(2))
}

// A ramp step on the first of a month swaps the MRR without splitting.
func TestBuild_RampAtMonthBoundary(t *testing.T) {
	in := Input{
		Spine: spineFor("ACC-001"),
		Subscriptions: []ingest.Subscription{{
			SubscriptionID: "SUB-002",
			AccountID:      "ACC-001",
			StartDate:      day(2024, 3, 15),
			MRR:            decimal.NewFromInt(5000),
			PricingModel:   "ramp",
			RampSchedule: []ingest.RampStep{
				{EffectiveDate: day(2024, 7, 1), MRR: decimal.NewFromInt(8000)},
			},
		}},
		PeriodStart: day(2024, 6, 1),
		PeriodEnd:   day(2024, 8, 31),
	}

	segments, _ := Build(in, testNow)
	require.Len(t, segments, 3)
	assert.Equal(t, "5000.00", segments[0].ExpectedAmount.StringFixed(2))
	assert.Equal(t, "8000.00", segments[1].ExpectedAmount.StringFixed(2))
	assert.Equal(t, "8000.00", segments[2].ExpectedAmount.StringFixed(2))
	for _, s := range segments {
		assert.False(t, s.IsProrated)
	}
}

// A mid-month ramp step splits the month into two prorated pieces that
// tile the month exactly.
func TestBuild_RampMidMonthSplits(t *testing.T) {
	in := Input{
		Spine: spineFor("ACC-001"),
		Subscriptions: []ingest.Subscription{{
			SubscriptionID: "SUB-003",
			AccountID:      "ACC-001",
			StartDate:      day(2024, 1, 1),
			MRR:            decimal.NewFromInt(3000),
			PricingModel:   "ramp",
			RampSchedule: []ingest.RampStep{
				{EffectiveDate: day(2024, 5, 16), MRR: decimal.NewFromInt(6000)},
			},
		}},
		PeriodStart: day(2024, 5, 1),
		PeriodEnd:   day(2024, 5, 31),
	}

	segments, _ := Build(in, testNow)
	require.Len(t, segments, 2)

	first, second := segments[0], segments[1]
	assert.Equal(t, "2024-05", first.Period)
	assert.Equal(t, "2024-05", second.Period)
	assert.Equal(t, day(2024, 5, 1), first.SegmentStart)
	assert.Equal(t, day(2024, 5, 15), first.SegmentEnd)
	assert.Equal(t, day(2024, 5, 16), second.SegmentStart)
	assert.Equal(t, day(2024, 5, 31), second.SegmentEnd)
	assert.Equal(t, 15, first.DaysActive)
	assert.Equal(t, 16, second.DaysActive)

	// 3000*15/31 = 1451.612 -> 1451.61; 6000*16/31 = 3096.774 -> 3096.77
	assert.Equal(t, "1451.61", first.ExpectedAmount.StringFixed(2))
	assert.Equal(t, "3096.77", second.ExpectedAmount.StringFixed(2))
	assert.NotEqual(t, first.SegmentID, second.SegmentID)
}

// Subscriptions outside the reporting period produce nothing.
func TestBuild_NoIntersectionSkipped(t *testing.T) {
	in := Input{
		Spine: spineFor("ACC-001"),
		Subscriptions: []ingest.Subscription{{
			SubscriptionID: "SUB-004",
			AccountID:      "ACC-001",
			StartDate:      day(2025, 1, 1),
			MRR:            decimal.NewFromInt(100),
		}},
		PeriodStart: day(2024, 1, 1),
		PeriodEnd:   day(2024, 12, 31),
	}

	segments, exclusions := Build(in, testNow)
	assert.Empty(t, segments)
	assert.Empty(t, exclusions)
}

// A subscription starting on the last day of the reporting period
// produces a single-day segment.
func TestBuild_SingleDaySegmentAtPeriodEdge(t *testing.T) {
	in := Input{
		Spine: spineFor("ACC-001"),
		Subscriptions: []ingest.Subscription{{
			SubscriptionID: "SUB-005",
			AccountID:      "ACC-001",
			StartDate:      day(2024, 12, 31),
			MRR:            decimal.NewFromInt(3100),
		}},
		PeriodStart: day(2024, 1, 1),
		PeriodEnd:   day(2024, 12, 31),
	}

	segments, _ := Build(in, testNow)
	require.Len(t, segments, 1)

	s := segments[0]
	assert.Equal(t, "2024-12", s.Period)
	assert.Equal(t, day(2024, 12, 31), s.SegmentStart)
	assert.Equal(t, day(2024, 12, 31), s.SegmentEnd)
	assert.Equal(t, 1, s.DaysActive)
	assert.True(t, s.IsProrated)
	// 3100 * 1/31
	assert.Equal(t, "100.00", s.ExpectedAmount.StringFixed(2))
}

func TestBuild_StructuralExclusions(t *testing.T) {
	in := Input{
		Spine: spineFor("ACC-001"),
		Subscriptions: []ingest.Subscription{
			{SubscriptionID: "SUB-NEG", AccountID: "ACC-001", StartDate: day(2024, 1, 1),
				MRR: decimal.NewFromInt(-500)},
			{SubscriptionID: "SUB-INV", AccountID: "ACC-001", StartDate: day(2024, 6, 1),
				EndDate: ptr(day(2024, 1, 1)), MRR: decimal.NewFromInt(500)},
			{SubscriptionID: "SUB-USE", AccountID: "ACC-001", StartDate: day(2024, 1, 1),
				MRR: decimal.NewFromInt(500), PricingModel: "usage"},
		},
		PeriodStart: day(2024, 1, 1),
		PeriodEnd:   day(2024, 12, 31),
	}

	segments, exclusions := Build(in, testNow)
	assert.Empty(t, segments)
	require.Len(t, exclusions, 3)
	for _, e := range exclusions {
		assert.Equal(t, exclusion.ReasonUnsupportedStructure, e.ReasonCode)
		assert.Equal(t, "subscription", e.RecordType)
		assert.Equal(t, testNow, e.ExcludedAt)
	}
}

// Accounts without a billing link still get segments so their value
// surfaces as unknown exposure.
func TestBuild_UnmatchedAccountStillSegments(t *testing.T) {
	in := Input{
		Spine: []identity.SpineEntry{{
			RSXID:     identity.RSXID("ACC-009"),
			AccountID: "ACC-009",
			MatchType: identity.MatchUnmatched,
		}},
		Subscriptions: []ingest.Subscription{{
			SubscriptionID: "SUB-009",
			AccountID:      "ACC-009",
			StartDate:      day(2024, 1, 1),
			MRR:            decimal.NewFromInt(1200),
		}},
		PeriodStart: day(2024, 1, 1),
		PeriodEnd:   day(2024, 2, 29),
	}

	segments, _ := Build(in, testNow)
	require.Len(t, segments, 2)
	for _, s := range segments {
		assert.False(t, s.Matched)
		assert.Equal(t, identity.RSXID("ACC-009"), s.RSXID)
	}
}

func TestPeriodBounds(t *testing.T) {
	start, end, err := PeriodBounds("2024-01", "2024-12")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 1), start)
	assert.Equal(t, day(2024, 12, 31), end)

	_, _, err = PeriodBounds("2024-13", "2024-12")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, _, err = PeriodBounds("2024-06", "2024-01")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func ptr[T any](v T) *T { return &v }
