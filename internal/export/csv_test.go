package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revstrux/revstrux/internal/exclusion"
	"github.com/revstrux/revstrux/internal/recon"
)

func TestWriteAccounts_FiltersVarianceTypes(t *testing.T) {
	accounts := []recon.AccountRollup{
		{
			RSXID: "RSX-00000001", AccountID: "ACC-001", AccountName: "Acme Corporation",
			MatchType: "exact", SubscriptionCount: 1, Periods: 3,
			TotalExpected: decimal.NewFromInt(3000), TotalInvoiced: decimal.NewFromInt(3000),
			PrimaryVarianceType: recon.StatusClean, LineageStatus: recon.LineageComplete, Currency: "USD",
		},
		{
			RSXID: "RSX-00000002", AccountID: "ACC-002", AccountName: "Globex",
			MatchType: "fuzzy", SubscriptionCount: 1, Periods: 3,
			TotalExpected: decimal.NewFromInt(1500), TotalInvoiced: decimal.NewFromInt(1000),
			TotalVariance:       decimal.NewFromInt(-500),
			PrimaryVarianceType: recon.StatusUnderBilled, LineageStatus: recon.LineageIncomplete, Currency: "USD",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accounts, nil))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "rsx_id,account_id,account_name"))
	assert.Contains(t, lines[1], "3000.00")

	buf.Reset()
	require.NoError(t, WriteAccounts(&buf, accounts, []string{recon.StatusUnderBilled}))
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "ACC-002")
	assert.Contains(t, lines[1], "-500.00")
}

func TestWriteLineage_OrdersByPeriod(t *testing.T) {
	variances := []recon.SegmentVariance{
		{SegmentID: "SEG-2", RSXID: "RSX-00000001", SubscriptionID: "SUB-001", Period: "2024-02",
			Expected: decimal.NewFromInt(1000), Invoiced: decimal.NewFromInt(1000), Status: recon.StatusClean},
		{SegmentID: "SEG-1", RSXID: "RSX-00000001", SubscriptionID: "SUB-001", Period: "2024-01",
			Expected: decimal.NewFromInt(500), Invoiced: decimal.NewFromInt(500), Status: recon.StatusClean, IsProrated: true},
		{SegmentID: "SEG-9", RSXID: "RSX-00000099", SubscriptionID: "SUB-009", Period: "2024-01",
			Expected: decimal.NewFromInt(200), Status: recon.StatusMissingInvoice},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLineage(&buf, variances, "RSX-00000001"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "2024-01,SUB-001,SEG-1"))
	assert.True(t, strings.HasSuffix(lines[1], "Yes"))
	assert.True(t, strings.HasPrefix(lines[2], "2024-02,SUB-001,SEG-2"))
	assert.NotContains(t, buf.String(), "SEG-9")
}

func TestWriteExclusions(t *testing.T) {
	exclusions := []exclusion.Exclusion{
		{
			RecordType:  "subscription",
			RecordID:    "SUB-030",
			ReasonCode:  exclusion.ReasonUnsupportedStructure,
			Description: "usage-priced subscription cannot be modelled",
			ExcludedAt:  time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteExclusions(&buf, exclusions, "12345"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "record_type,record_id,reason_code,description,excluded_at,session_id", lines[0])
	assert.Contains(t, lines[1], "SUB-030")
	assert.Contains(t, lines[1], "2025-02-10T09:00:00Z")
	assert.True(t, strings.HasSuffix(lines[1], ",12345"))
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "RevStrux_Accounts_2025-02-10.csv", Filename("Accounts", "", now))
	assert.Equal(t, "RevStrux_Lineage_RSX-00000001_2025-02-10.csv", Filename("Lineage", "RSX-00000001", now))
}
