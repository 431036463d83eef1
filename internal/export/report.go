package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/revstrux/revstrux/internal/recon"
	"github.com/revstrux/revstrux/internal/scoring"
	sessiondomain "github.com/revstrux/revstrux/internal/session/domain"
)

// ReportData carries everything the integrity report renders.
type ReportData struct {
	Score       *scoring.Score
	Settings    sessiondomain.Settings
	GeneratedAt time.Time
}

// componentOrder keeps the report table stable across runs.
var componentOrder = []string{
	"entity_match_rate", "billing_coverage_rate", "variance_rate", "lineage_completeness",
}

var riskOrder = []struct {
	key   string
	label string
}{
	{recon.StatusMissingInvoice, "Missing Invoice"},
	{recon.StatusUnderBilled, "Under-billed"},
	{recon.StatusOverBilled, "Over-billed"},
	{recon.StatusUnpaidAR, "Unpaid AR"},
}

// Report renders the structural integrity report as a PDF.
func Report(data ReportData) (io.Reader, error) {
	if data.Score == nil {
		return nil, fmt.Errorf("report requires a computed score")
	}
	score := data.Score

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(12, "RevStrux - Structural Integrity Report", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(14,
		col.New(12).Add(
			text.New(fmt.Sprintf("Analysis Period: %s to %s", data.Settings.PeriodStart, data.Settings.PeriodEnd), props.Text{Top: 0}),
			text.New("Generated: "+data.GeneratedAt.Format("2006-01-02 15:04"), props.Text{Top: 5}),
		),
	)

	cov := score.Coverage
	m.AddRow(14,
		col.New(12).Add(
			text.New(fmt.Sprintf("Coverage: %.0f%% of subscriptions (%d of %d)",
				cov.SubscriptionPct, cov.SubscriptionCount, cov.TotalSubscriptions), props.Text{Top: 0}),
			text.New(fmt.Sprintf("ARR Coverage: %.0f%% ($%.0f of $%.0f)",
				cov.ARRPct, cov.ARRCovered, cov.TotalARR), props.Text{Top: 5}),
		),
	)

	m.AddRow(12,
		text.NewCol(12, fmt.Sprintf("Structural Integrity Score: %d - %s", score.Score, score.Band), props.Text{
			Size:  14,
			Style: fontstyle.Bold,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, score.Interpretation, props.Text{Size: 10}),
	)

	m.AddRow(8,
		text.NewCol(8, "Component", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Score", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Weight", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, key := range componentOrder {
		c, ok := score.Components[key]
		if !ok {
			continue
		}
		m.AddRow(7,
			text.NewCol(8, c.Label, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%.2f%%", c.Value), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, fmt.Sprintf("%d%%", c.Weight), props.Text{Size: 9, Align: align.Right}),
		)
	}

	totalAtRisk := 0.0
	for _, b := range score.RevenueAtRisk {
		totalAtRisk += b.Total
	}
	m.AddRow(12,
		text.NewCol(12, fmt.Sprintf("Revenue at Risk: $%.2f", totalAtRisk), props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   3,
		}),
	)
	m.AddRow(8,
		text.NewCol(6, "Type", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Accounts", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, r := range riskOrder {
		bucket := score.RevenueAtRisk[r.key]
		m.AddRow(7,
			text.NewCol(6, r.label, props.Text{Size: 9}),
			text.NewCol(3, fmt.Sprintf("$%.2f", bucket.Total), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, fmt.Sprintf("%d", bucket.Accounts), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(18,
		col.New(12).Add(
			text.New("Deferred revenue modelling is not included in this analysis.", props.Text{Size: 8, Style: fontstyle.Italic, Top: 4}),
			text.New("All calculations are deterministic and rule-based. No AI or machine learning is used.", props.Text{Size: 8, Style: fontstyle.Italic, Top: 8}),
			text.New("Generated by RevStrux", props.Text{Size: 8, Top: 12}),
		),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
