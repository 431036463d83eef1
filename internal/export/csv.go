// Package export renders analysis artifacts into downloadable CSV and
// PDF documents.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/revstrux/revstrux/internal/exclusion"
	"github.com/revstrux/revstrux/internal/recon"
)

var accountColumns = []string{
	"rsx_id", "account_id", "account_name", "match_type", "subscriptions",
	"periods", "expected_total", "invoiced_total", "credit_notes_total",
	"collected_total", "total_variance", "primary_variance_type",
	"lineage_status", "currency",
}

// WriteAccounts streams the account rollup table, optionally filtered
// to a set of primary variance types.
func WriteAccounts(w io.Writer, accounts []recon.AccountRollup, varianceTypes []string) error {
	allowed := map[string]bool{}
	for _, t := range varianceTypes {
		allowed[t] = true
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(accountColumns); err != nil {
		return err
	}
	for _, a := range accounts {
		if len(allowed) > 0 && !allowed[a.PrimaryVarianceType] {
			continue
		}
		record := []string{
			a.RSXID, a.AccountID, a.AccountName, a.MatchType,
			fmt.Sprintf("%d", a.SubscriptionCount),
			fmt.Sprintf("%d", a.Periods),
			a.TotalExpected.StringFixed(2),
			a.TotalInvoiced.StringFixed(2),
			a.TotalCredits.StringFixed(2),
			a.TotalCollected.StringFixed(2),
			a.TotalVariance.StringFixed(2),
			a.PrimaryVarianceType,
			a.LineageStatus,
			a.Currency,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var lineageColumns = []string{
	"period", "subscription_id", "segment_id", "expected", "invoiced",
	"credit_notes", "collected", "variance", "status", "prorated",
}

// WriteLineage streams every reconciled segment of one entity ordered
// by period.
func WriteLineage(w io.Writer, variances []recon.SegmentVariance, rsxID string) error {
	var segments []recon.SegmentVariance
	for _, v := range variances {
		if v.RSXID == rsxID {
			segments = append(segments, v)
		}
	}
	sort.Slice(segments, func(i, j int) bool {
		if segments[i].Period != segments[j].Period {
			return segments[i].Period < segments[j].Period
		}
		return segments[i].SegmentID < segments[j].SegmentID
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(lineageColumns); err != nil {
		return err
	}
	for _, s := range segments {
		prorated := "No"
		if s.IsProrated {
			prorated = "Yes"
		}
		record := []string{
			s.Period, s.SubscriptionID, s.SegmentID,
			s.Expected.StringFixed(2),
			s.Invoiced.StringFixed(2),
			s.CreditNotes.StringFixed(2),
			s.Collected.StringFixed(2),
			s.Variance.StringFixed(2),
			s.Status, prorated,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var exclusionColumns = []string{
	"record_type", "record_id", "reason_code", "description", "excluded_at", "session_id",
}

// WriteExclusions streams the exclusion log of one session.
func WriteExclusions(w io.Writer, exclusions []exclusion.Exclusion, sessionID string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exclusionColumns); err != nil {
		return err
	}
	for _, e := range exclusions {
		record := []string{
			e.RecordType, e.RecordID, e.ReasonCode, e.Description,
			e.ExcludedAt.Format(time.RFC3339), sessionID,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename builds the attachment name for a download, for example
// "RevStrux_Accounts_2024-06-30.csv".
func Filename(kind, suffix string, now time.Time) string {
	if suffix != "" {
		return fmt.Sprintf("RevStrux_%s_%s_%s.csv", kind, suffix, now.Format("2006-01-02"))
	}
	return fmt.Sprintf("RevStrux_%s_%s.csv", kind, now.Format("2006-01-02"))
}
