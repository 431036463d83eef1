package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_PadsShortRecords(t *testing.T) {
	csv := "account_id,account_name,account_status\nACC-001,Acme,active\nACC-002,Globex\n"
	rows, headers, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []string{"account_id", "account_name", "account_status"}, headers)
	require.Len(t, rows, 2)
	assert.Equal(t, "active", rows[0]["account_status"])
	assert.Equal(t, "", rows[1]["account_status"])
}

func TestCanonicalHeader_FoldsAliases(t *testing.T) {
	assert.Equal(t, "account_id", CanonicalHeader("Acct ID"))
	assert.Equal(t, "subscription_id", CanonicalHeader("sub_id"))
	assert.Equal(t, "mrr", CanonicalHeader("Monthly-Amount"))
	assert.Equal(t, "credit_date", CanonicalHeader("issue_date"))
	assert.Equal(t, "unknown_column", CanonicalHeader("Unknown Column"))
}

func TestNormalizeHeaders_ReportsMappings(t *testing.T) {
	rows := []Row{{"acct_id": "ACC-001", "company_name": "Acme", "account_status": "active"}}
	out, mappings := NormalizeHeaders(rows)

	require.Len(t, out, 1)
	assert.Equal(t, "ACC-001", out[0]["account_id"])
	assert.Equal(t, "Acme", out[0]["account_name"])

	require.Len(t, mappings, 2)
	assert.Equal(t, HeaderMapping{From: "acct_id", To: "account_id"}, mappings[0])
	assert.Equal(t, HeaderMapping{From: "company_name", To: "account_name"}, mappings[1])
}

func TestDetectFileType(t *testing.T) {
	ft, confidence := DetectFileType([]string{"account_id", "account_name", "account_status", "source_system"})
	assert.Equal(t, FileAccounts, ft)
	assert.InDelta(t, 1.0, confidence, 0.001)

	// Aliased headers still detect.
	ft, _ = DetectFileType([]string{"sub_id", "account_id", "sub_start", "monthly_fee", "currency", "billing_frequency", "pricing_model", "sub_status"})
	assert.Equal(t, FileSubs, ft)

	ft, _ = DetectFileType([]string{"foo", "bar", "baz"})
	assert.Equal(t, "", ft)
}

func TestNormalizeEnums_FoldsSynonyms(t *testing.T) {
	rows := []Row{
		{"invoice_id": "INV-001", "status": "Settled"},
		{"invoice_id": "INV-002", "status": "voided"},
		{"invoice_id": "INV-003", "status": "paid"},
	}
	out, notes := NormalizeEnums(FileInvoices, rows)

	assert.Equal(t, "paid", out[0]["status"])
	assert.Equal(t, "void", out[1]["status"])
	assert.Equal(t, "paid", out[2]["status"])
	require.Len(t, notes, 2)
	assert.Equal(t, EnumNormalization{Field: "status", From: "Settled", To: "paid"}, notes[0])
}

func TestValidate_CleanTable(t *testing.T) {
	rows := []Row{
		{"account_id": "ACC-001", "account_name": "Acme", "account_status": "active", "source_system": "salesforce"},
	}
	res := Validate(FileAccounts, rows)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidate_CollectsErrors(t *testing.T) {
	rows := []Row{
		{"invoice_id": "INV-001", "customer_id": "CUST-001", "invoice_date": "2024-01-01",
			"period_start": "2024-01-01", "period_end": "2024-01-31", "amount": "1000", "currency": "USD", "status": "paid"},
		{"invoice_id": "INV-001", "customer_id": "CUST-001", "invoice_date": "01/02/2024",
			"period_start": "2024-02-01", "period_end": "2024-01-31", "amount": "abc", "currency": "XYZ", "status": "maybe"},
	}
	res := Validate(FileInvoices, rows)
	require.False(t, res.Valid)

	messages := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		messages = append(messages, e.Message)
		assert.Equal(t, FileInvoices, e.File)
	}
	joined := strings.Join(messages, "\n")
	assert.Contains(t, joined, "Duplicate invoice_id: INV-001")
	assert.Contains(t, joined, "Invalid date format. Use YYYY-MM-DD")
	assert.Contains(t, joined, "period_end must not be before period_start")
	assert.Contains(t, joined, "Invalid amount format")
	assert.Contains(t, joined, "Invalid currency code: XYZ")
	assert.Contains(t, joined, "Invalid value 'maybe'")
}

func TestValidate_EmptyOptionalTableWarns(t *testing.T) {
	res := Validate(FileCreditNotes, nil)
	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)

	res = Validate(FileAccounts, nil)
	assert.False(t, res.Valid)
}

func TestValidate_MissingColumnReported(t *testing.T) {
	rows := []Row{{"account_id": "ACC-001", "account_name": "Acme"}}
	res := Validate(FileAccounts, rows)
	require.False(t, res.Valid)

	fields := map[string]bool{}
	for _, e := range res.Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["account_status"])
	assert.True(t, fields["source_system"])
}

func TestDecodeSubscriptions_RampOrdering(t *testing.T) {
	rows := []Row{{
		"subscription_id": "SUB-001", "account_id": "ACC-001", "start_date": "2024-01-01",
		"mrr": "5000", "currency": "USD", "billing_frequency": "monthly",
		"pricing_model": "ramp", "sub_status": "active",
		"ramp_schedule": `[{"effective_date":"2024-09-01","mrr":9000},{"effective_date":"2024-05-01","mrr":7000}]`,
	}}
	subs, err := DecodeSubscriptions(rows)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Len(t, subs[0].RampSchedule, 2)
	assert.True(t, subs[0].RampSchedule[0].EffectiveDate.Before(subs[0].RampSchedule[1].EffectiveDate))
	assert.Equal(t, "7000", subs[0].RampSchedule[0].MRR.String())
}

func TestDecodeSubscriptions_BadDateFails(t *testing.T) {
	rows := []Row{{
		"subscription_id": "SUB-001", "account_id": "ACC-001", "start_date": "January 1",
		"mrr": "5000", "currency": "USD", "billing_frequency": "monthly",
		"pricing_model": "flat", "sub_status": "active",
	}}
	_, err := DecodeSubscriptions(rows)
	assert.Error(t, err)
}

func TestTemplate_KnownAndUnknownTypes(t *testing.T) {
	for _, ft := range FileTypes {
		content := Template(ft)
		require.NotEmpty(t, content, ft)

		rows, headers, err := ParseCSV(strings.NewReader(content))
		require.NoError(t, err, ft)
		assert.NotEmpty(t, rows, ft)

		detected, _ := DetectFileType(headers)
		assert.Equal(t, ft, detected)

		res := Validate(ft, rows)
		assert.True(t, res.Valid, ft)
	}

	assert.Empty(t, Template("ledger"))
}
