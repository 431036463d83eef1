package synthetic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revstrux/revstrux/internal/ingest"
)

func TestGenerate_IsDeterministic(t *testing.T) {
	a := Generate(DefaultSeed)
	b := Generate(DefaultSeed)

	for _, ft := range ingest.FileTypes {
		assert.Equal(t, a.CSV(ft), b.CSV(ft), ft)
	}

	other := Generate(7)
	assert.NotEqual(t, a.CSV(ingest.FileSubs), other.CSV(ingest.FileSubs))
}

func TestGenerate_Metadata(t *testing.T) {
	d := Generate(DefaultSeed)

	assert.Equal(t, 60, d.Metadata["total_accounts"])
	assert.Equal(t, 58, d.Metadata["total_customers"])
	assert.Equal(t, "2024-01", d.PeriodStart)
	assert.Equal(t, "2024-12", d.PeriodEnd)

	assert.Equal(t, len(d.Files[ingest.FileSubs]), d.Metadata["total_subscriptions"])
	assert.Equal(t, len(d.Files[ingest.FileInvoices]), d.Metadata["total_invoices"])
	assert.Equal(t, len(d.Files[ingest.FilePayments]), d.Metadata["total_payments"])
	assert.Equal(t, len(d.Files[ingest.FileCreditNotes]), d.Metadata["total_credit_notes"])
}

func TestGenerate_TablesPassValidation(t *testing.T) {
	d := Generate(DefaultSeed)
	for _, ft := range ingest.FileTypes {
		res := ingest.Validate(ft, d.Files[ft])
		assert.True(t, res.Valid, "%s: %v", ft, res.Errors)
	}
}

func TestGenerate_PlantedAnomalies(t *testing.T) {
	d := Generate(DefaultSeed)

	names := map[string]bool{}
	for _, c := range d.Files[ingest.FileCustomers] {
		names[c["customer_name"]] = true
	}
	assert.True(t, names["Techflow Incorporated"])
	assert.True(t, names["Apex System Solutions"])
	assert.True(t, names["Orphan Billing Co 1"])

	subsOf := func(aid string) map[string]bool {
		out := map[string]bool{}
		for _, s := range d.Files[ingest.FileSubs] {
			if s["account_id"] == aid {
				out[s["subscription_id"]] = true
			}
		}
		return out
	}

	// SYN-019 has no billing counterpart at all.
	assert.Empty(t, subsOf("SYN-019"))

	// SYN-012 skips its August and September invoices.
	gapSubs := subsOf("SYN-012")
	require.NotEmpty(t, gapSubs)
	for _, inv := range d.Files[ingest.FileInvoices] {
		if gapSubs[inv["subscription_id"]] {
			month := inv["period_start"][:7]
			assert.NotEqual(t, "2024-08", month)
			assert.NotEqual(t, "2024-09", month)
		}
	}

	// SYN-015 stops paying from October.
	arSubs := subsOf("SYN-015")
	require.NotEmpty(t, arSubs)
	unpaid := 0
	for _, inv := range d.Files[ingest.FileInvoices] {
		if !arSubs[inv["subscription_id"]] {
			continue
		}
		if inv["period_start"] >= "2024-10-01" {
			assert.Equal(t, "unpaid", inv["status"], inv["invoice_id"])
			unpaid++
		} else {
			assert.Equal(t, "paid", inv["status"], inv["invoice_id"])
		}
	}
	assert.Equal(t, 3*len(arSubs), unpaid)

	// The standalone credit note is dated outside the analysis window.
	var standalone ingest.Row
	for _, cn := range d.Files[ingest.FileCreditNotes] {
		if cn["credit_note_id"] == "CN-002" {
			standalone = cn
		}
	}
	require.NotNil(t, standalone)
	assert.Equal(t, "", standalone["invoice_id"])
	assert.True(t, strings.HasPrefix(standalone["credit_date"], "2025-"))
}

func TestCSV_UnknownTypeIsEmpty(t *testing.T) {
	d := Generate(DefaultSeed)
	assert.Empty(t, d.CSV("ledger"))
	assert.Contains(t, d.CSV(ingest.FileAccounts), "SYN-001")
}
