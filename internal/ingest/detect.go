package ingest

import (
	"sort"
	"strings"
)

// File types accepted by the engine.
const (
	FileAccounts    = "accounts"
	FileCustomers   = "customers"
	FileSubs        = "subscriptions"
	FileInvoices    = "invoices"
	FilePayments    = "payments"
	FileCreditNotes = "credit_notes"
)

// FileTypes lists the accepted file types in canonical order.
var FileTypes = []string{FileAccounts, FileCustomers, FileSubs, FileInvoices, FilePayments, FileCreditNotes}

// RequiredFields are the canonical columns each table must carry.
var RequiredFields = map[string][]string{
	FileAccounts:    {"account_id", "account_name", "account_status", "source_system"},
	FileCustomers:   {"customer_id", "customer_name", "customer_status", "source_system"},
	FileSubs:        {"subscription_id", "account_id", "start_date", "mrr", "currency", "billing_frequency", "pricing_model", "sub_status"},
	FileInvoices:    {"invoice_id", "customer_id", "invoice_date", "period_start", "period_end", "amount", "currency", "status"},
	FilePayments:    {"payment_id", "invoice_id", "payment_date", "amount", "currency"},
	FileCreditNotes: {"credit_note_id", "customer_id", "credit_date", "amount", "currency"},
}

// IDFields maps each table to its primary key column.
var IDFields = map[string]string{
	FileAccounts:    "account_id",
	FileCustomers:   "customer_id",
	FileSubs:        "subscription_id",
	FileInvoices:    "invoice_id",
	FilePayments:    "payment_id",
	FileCreditNotes: "credit_note_id",
}

// headerAliases maps commonly seen export column names onto the canonical
// schema. Applied before detection scoring and validation.
var headerAliases = map[string]string{
	"acct_id":        "account_id",
	"acct_name":      "account_name",
	"company_name":   "account_name",
	"crm_id":         "account_id",
	"cust_id":        "customer_id",
	"cust_name":      "customer_name",
	"billing_name":   "customer_name",
	"sub_id":         "subscription_id",
	"sub_start":      "start_date",
	"sub_end":        "end_date",
	"monthly_amount": "mrr",
	"monthly_fee":    "mrr",
	"inv_id":         "invoice_id",
	"inv_date":       "invoice_date",
	"inv_amount":     "amount",
	"total":          "amount",
	"total_amount":   "amount",
	"pay_id":         "payment_id",
	"pay_date":       "payment_date",
	"paid_date":      "payment_date",
	"cn_id":          "credit_note_id",
	"credit_id":      "credit_note_id",
	"issue_date":     "credit_date",
	"credit_reason":  "reason",
	"domain":         "email_domain",
}

// HeaderMapping records one alias substitution applied during normalization.
type HeaderMapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CanonicalHeader lower-cases, snake-cases and de-aliases a column name.
func CanonicalHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	if canonical, ok := headerAliases[h]; ok {
		return canonical
	}
	return h
}

// NormalizeHeaders rewrites row keys to the canonical schema and reports
// which substitutions were made.
func NormalizeHeaders(rows []Row) ([]Row, []HeaderMapping) {
	var mappings []HeaderMapping
	seen := map[string]bool{}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		normalized := make(Row, len(row))
		for key, value := range row {
			canonical := CanonicalHeader(key)
			if canonical != key && !seen[key] {
				seen[key] = true
				mappings = append(mappings, HeaderMapping{From: key, To: canonical})
			}
			normalized[canonical] = value
		}
		out = append(out, normalized)
	}

	sort.Slice(mappings, func(i, j int) bool { return mappings[i].From < mappings[j].From })
	return out, mappings
}

// DetectFileType scores header overlap against each table's required
// columns and returns the best match. Confidence is the fraction of
// required columns present after alias normalization; below 0.5 the type
// is considered undetectable.
func DetectFileType(headers []string) (string, float64) {
	canonical := map[string]bool{}
	for _, h := range headers {
		canonical[CanonicalHeader(h)] = true
	}

	bestType, bestScore := "", 0.0
	for _, ft := range FileTypes {
		required := RequiredFields[ft]
		hits := 0
		for _, col := range required {
			if canonical[col] {
				hits++
			}
		}
		score := float64(hits) / float64(len(required))
		// Primary key presence breaks ties between similar schemas.
		if canonical[IDFields[ft]] {
			score += 0.05
		}
		if score > bestScore {
			bestType, bestScore = ft, score
		}
	}

	if bestScore < 0.5 {
		return "", bestScore
	}
	if bestScore > 1.0 {
		bestScore = 1.0
	}
	return bestType, bestScore
}

// EnumNormalization records one enum value substitution.
type EnumNormalization struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

var enumAliases = map[string]map[string]string{
	"status": {
		"posted":         "unpaid",
		"open":           "unpaid",
		"issued":         "unpaid",
		"settled":        "paid",
		"collected":      "paid",
		"partially_paid": "partial",
		"voided":         "void",
		"cancelled":      "void",
	},
	"sub_status": {
		"live":       "active",
		"terminated": "cancelled",
		"ended":      "expired",
	},
	"account_status": {
		"lead": "prospect",
		"lost": "churned",
	},
	"customer_status": {
		"suspended": "paused",
	},
}

// enumFields lists which columns get enum folding per file type.
var enumFields = map[string][]string{
	FileAccounts:  {"account_status"},
	FileCustomers: {"customer_status"},
	FileSubs:      {"sub_status"},
	FileInvoices:  {"status"},
}

// NormalizeEnums lower-cases enum columns and folds known synonyms onto
// the canonical vocabulary.
func NormalizeEnums(fileType string, rows []Row) ([]Row, []EnumNormalization) {
	fields := enumFields[fileType]
	if len(fields) == 0 {
		return rows, nil
	}

	var notes []EnumNormalization
	seen := map[string]bool{}

	for _, row := range rows {
		for _, field := range fields {
			raw, ok := row[field]
			if !ok || raw == "" {
				continue
			}
			value := strings.ToLower(strings.TrimSpace(raw))
			if mapped, ok := enumAliases[field][value]; ok {
				value = mapped
			}
			if value != raw && !seen[field+"|"+raw] {
				seen[field+"|"+raw] = true
				notes = append(notes, EnumNormalization{Field: field, From: raw, To: value})
			}
			row[field] = value
		}
	}

	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Field != notes[j].Field {
			return notes[i].Field < notes[j].Field
		}
		return notes[i].From < notes[j].From
	})
	return rows, notes
}
