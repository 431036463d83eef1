package scoring

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/revstrux/revstrux/internal/config"
	"github.com/revstrux/revstrux/internal/identity"
	"github.com/revstrux/revstrux/internal/lifecycle"
	"github.com/revstrux/revstrux/internal/recon"
)

// Component is one weighted slice of the structural integrity score.
type Component struct {
	Value  float64 `json:"value"`
	Weight int     `json:"weight"`
	Label  string  `json:"label"`
}

// Coverage reports how much of the book the analysis actually covers.
type Coverage struct {
	SubscriptionCount  int     `json:"subscription_count"`
	TotalSubscriptions int     `json:"total_subscriptions"`
	SubscriptionPct    float64 `json:"subscription_pct"`
	ARRCovered         float64 `json:"arr_covered"`
	TotalARR           float64 `json:"total_arr"`
	ARRPct             float64 `json:"arr_pct"`
}

// RiskBucket is the revenue at risk for one variance kind.
type RiskBucket struct {
	Total    float64 `json:"total"`
	Accounts int     `json:"accounts"`
}

// Finding is one entry of the portfolio quick-findings list.
type Finding struct {
	RSXID               string  `json:"rsx_id"`
	AccountID           string  `json:"account_id"`
	AccountName         string  `json:"account_name"`
	PrimaryVarianceType string  `json:"primary_variance_type"`
	TotalVariance       float64 `json:"total_variance"`
	AbsVariance         float64 `json:"abs_variance"`
	TotalExpected       float64 `json:"total_expected"`
	SegmentCount        int     `json:"segment_count"`
}

// Score is the full output of the scoring stage.
type Score struct {
	Score          int                   `json:"score"`
	Band           string                `json:"band"`
	Color          string                `json:"color"`
	Interpretation string                `json:"interpretation"`
	Components     map[string]Component  `json:"components"`
	Coverage       Coverage              `json:"coverage"`
	RevenueAtRisk  map[string]RiskBucket `json:"revenue_at_risk"`
	UnknownARR     float64               `json:"unknown_arr"`
	Findings       []Finding             `json:"quick_findings"`
}

// Input bundles everything scoring consumes from earlier stages.
type Input struct {
	Spine    []identity.SpineEntry
	Segments []lifecycle.Segment
	Recon    *recon.Output
}

var interpretations = map[string]string{
	"green":  "Structure is coherent. Spot-check recommended.",
	"amber":  "Moderate drift detected. Review flagged accounts.",
	"orange": "Significant gaps. Investigate before month-end close.",
	"red":    "Structural breakdown. Do not rely on current revenue reporting.",
}

// Compute aggregates reconciliation output into the weighted score,
// coverage panel, revenue-at-risk buckets and quick findings.
func Compute(in Input, cfg config.EngineConfig) *Score {
	s := &Score{
		Components:    map[string]Component{},
		RevenueAtRisk: map[string]RiskBucket{},
	}

	emr := entityMatchRate(in.Spine)
	bcr := billingCoverageRate(in.Segments, in.Recon)
	vr := varianceCleanliness(in.Recon)
	lc := lineageCompleteness(in.Recon)

	weighted := cfg.Weights.EntityMatch*emr +
		cfg.Weights.BillingCoverage*bcr +
		cfg.Weights.Variance*vr +
		cfg.Weights.Lineage*lc
	s.Score = int(math.Round(weighted))

	switch {
	case s.Score >= 90:
		s.Band, s.Color = "Coherent", "green"
	case s.Score >= 75:
		s.Band, s.Color = "Drifting", "amber"
	case s.Score >= 60:
		s.Band, s.Color = "At Risk", "orange"
	default:
		s.Band, s.Color = "Breakdown", "red"
	}
	s.Interpretation = interpretations[s.Color]

	s.Components["entity_match_rate"] = Component{Value: round2(emr), Weight: pct(cfg.Weights.EntityMatch), Label: "Entity Match Rate"}
	s.Components["billing_coverage_rate"] = Component{Value: round2(bcr), Weight: pct(cfg.Weights.BillingCoverage), Label: "Billing Coverage Rate"}
	s.Components["variance_rate"] = Component{Value: round2(vr), Weight: pct(cfg.Weights.Variance), Label: "Variance Rate"}
	s.Components["lineage_completeness"] = Component{Value: round2(lc), Weight: pct(cfg.Weights.Lineage), Label: "Lineage Completeness"}

	s.Coverage = coverage(in.Segments)
	s.RevenueAtRisk, s.UnknownARR = revenueAtRisk(in.Recon)
	s.Findings = findings(in.Recon, cfg.TopFindings)
	return s
}

// entityMatchRate is the share of accounts carrying a confirmed billing
// link.
func entityMatchRate(spine []identity.SpineEntry) float64 {
	if len(spine) == 0 {
		return 0
	}
	matched := 0
	for _, e := range spine {
		if e.CustomerID != "" {
			matched++
		}
	}
	return float64(matched) / float64(len(spine)) * 100
}

// billingCoverageRate compares invoice dollars allocated onto matched
// segments with the expectation for those segments.
func billingCoverageRate(segments []lifecycle.Segment, out *recon.Output) float64 {
	expected := decimal.Zero
	for _, seg := range segments {
		if seg.Matched {
			expected = expected.Add(seg.ExpectedAmount)
		}
	}
	if !expected.IsPositive() {
		return 0
	}

	allocated := decimal.Zero
	for _, v := range out.Variances {
		if v.Matched {
			allocated = allocated.Add(v.Invoiced)
		}
	}

	rate, _ := allocated.Div(expected).Mul(decimal.NewFromInt(100)).Float64()
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

func varianceCleanliness(out *recon.Output) float64 {
	if len(out.Variances) == 0 {
		return 0
	}
	clean := 0
	for _, v := range out.Variances {
		if v.Status == recon.StatusClean {
			clean++
		}
	}
	return float64(clean) / float64(len(out.Variances)) * 100
}

// lineageCompleteness is the share of segments with at least one
// invoice allocation.
func lineageCompleteness(out *recon.Output) float64 {
	if len(out.Variances) == 0 {
		return 0
	}
	traced := 0
	for _, v := range out.Variances {
		if len(v.Invoices) > 0 {
			traced++
		}
	}
	return float64(traced) / float64(len(out.Variances)) * 100
}

func coverage(segments []lifecycle.Segment) Coverage {
	c := Coverage{}
	totalARR := decimal.Zero
	coveredARR := decimal.Zero
	subs := map[string]bool{}
	matchedSubs := map[string]bool{}

	for _, seg := range segments {
		subs[seg.SubscriptionID] = true
		totalARR = totalARR.Add(seg.ExpectedAmount)
		if seg.Matched {
			matchedSubs[seg.SubscriptionID] = true
			coveredARR = coveredARR.Add(seg.ExpectedAmount)
		}
	}

	c.TotalSubscriptions = len(subs)
	c.SubscriptionCount = len(matchedSubs)
	c.TotalARR = toFloat(totalARR)
	c.ARRCovered = toFloat(coveredARR)
	if c.TotalSubscriptions > 0 {
		c.SubscriptionPct = round2(float64(c.SubscriptionCount) / float64(c.TotalSubscriptions) * 100)
	}
	if totalARR.IsPositive() {
		pct, _ := coveredARR.Div(totalARR).Mul(decimal.NewFromInt(100)).Float64()
		c.ARRPct = round2(pct)
	}
	return c
}

// revenueAtRisk sums absolute account variance per primary variance
// type. Unknown exposure is additionally reported as the expectation of
// unmatched accounts.
func revenueAtRisk(out *recon.Output) (map[string]RiskBucket, float64) {
	buckets := map[string]RiskBucket{}
	unknownARR := decimal.Zero

	for _, acc := range out.Accounts {
		if acc.PrimaryVarianceType == recon.StatusClean {
			continue
		}
		b := buckets[acc.PrimaryVarianceType]
		b.Total = round2(b.Total + toFloat(acc.AbsVariance))
		b.Accounts++
		buckets[acc.PrimaryVarianceType] = b

		if acc.PrimaryVarianceType == recon.StatusUnknown {
			unknownARR = unknownARR.Add(acc.TotalExpected)
		}
	}
	return buckets, toFloat(unknownARR)
}

func findings(out *recon.Output, topN int) []Finding {
	var flagged []recon.AccountRollup
	for _, acc := range out.Accounts {
		if acc.PrimaryVarianceType != recon.StatusClean {
			flagged = append(flagged, acc)
		}
	}
	sort.Slice(flagged, func(i, j int) bool {
		if !flagged[i].AbsVariance.Equal(flagged[j].AbsVariance) {
			return flagged[i].AbsVariance.GreaterThan(flagged[j].AbsVariance)
		}
		return flagged[i].AccountID < flagged[j].AccountID
	})

	if topN <= 0 {
		topN = 5
	}
	if len(flagged) > topN {
		flagged = flagged[:topN]
	}

	findings := make([]Finding, 0, len(flagged))
	for _, acc := range flagged {
		findings = append(findings, Finding{
			RSXID:               acc.RSXID,
			AccountID:           acc.AccountID,
			AccountName:         acc.AccountName,
			PrimaryVarianceType: acc.PrimaryVarianceType,
			TotalVariance:       toFloat(acc.TotalVariance),
			AbsVariance:         toFloat(acc.AbsVariance),
			TotalExpected:       toFloat(acc.TotalExpected),
			SegmentCount:        acc.SegmentCount,
		})
	}
	return findings
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.RoundBank(2).Float64()
	return f
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func pct(weight float64) int {
	return int(math.Round(weight * 100))
}
