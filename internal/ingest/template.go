package ingest

import (
	"bytes"
	"encoding/csv"
)

type template struct {
	headers []string
	rows    [][]string
}

var templates = map[string]template{
	FileAccounts: {
		headers: []string{"account_id", "account_name", "account_status", "source_system", "email_domain"},
		rows: [][]string{
			{"ACC-001", "Acme Corporation", "active", "salesforce", "acme.com"},
			{"ACC-002", "TechStart Ltd", "active", "hubspot", "techstart.io"},
		},
	},
	FileCustomers: {
		headers: []string{"customer_id", "customer_name", "customer_status", "source_system", "email_domain"},
		rows: [][]string{
			{"CUST-001", "Acme Corporation", "active", "stripe", "acme.com"},
			{"CUST-002", "TechStart Limited", "active", "chargebee", "techstart.io"},
		},
	},
	FileSubs: {
		headers: []string{"subscription_id", "account_id", "start_date", "end_date", "mrr", "currency", "billing_frequency", "pricing_model", "ramp_schedule", "sub_status"},
		rows: [][]string{
			{"SUB-001", "ACC-001", "2024-01-01", "2024-12-31", "10000", "USD", "monthly", "flat", "", "active"},
			{"SUB-002", "ACC-002", "2024-03-15", "", "5000", "USD", "monthly", "ramp", `[{"effective_date":"2024-07-01","mrr":8000}]`, "active"},
		},
	},
	FileInvoices: {
		headers: []string{"invoice_id", "customer_id", "subscription_id", "invoice_date", "period_start", "period_end", "amount", "currency", "status"},
		rows: [][]string{
			{"INV-001", "CUST-001", "SUB-001", "2024-01-01", "2024-01-01", "2024-01-31", "10000", "USD", "paid"},
			{"INV-002", "CUST-002", "SUB-002", "2024-04-01", "2024-04-01", "2024-04-30", "5000", "USD", "paid"},
		},
	},
	FilePayments: {
		headers: []string{"payment_id", "invoice_id", "payment_date", "amount", "currency"},
		rows: [][]string{
			{"PAY-001", "INV-001", "2024-01-15", "10000", "USD"},
			{"PAY-002", "INV-002", "2024-04-10", "5000", "USD"},
		},
	},
	FileCreditNotes: {
		headers: []string{"credit_note_id", "invoice_id", "customer_id", "credit_date", "amount", "currency", "reason"},
		rows: [][]string{
			{"CN-001", "INV-001", "CUST-001", "2024-02-01", "2000", "USD", "billing error correction"},
			{"CN-002", "", "CUST-002", "2024-05-15", "500", "USD", "goodwill credit - no linked invoice"},
		},
	},
}

// Template renders a downloadable starter CSV for the given file type.
// Returns "" for unknown types.
func Template(fileType string) string {
	t, ok := templates[fileType]
	if !ok {
		return ""
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(t.headers)
	for _, row := range t.rows {
		_ = w.Write(row)
	}
	w.Flush()
	return buf.String()
}
