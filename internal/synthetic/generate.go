// Package synthetic produces a deterministic demo data set with planted
// anomalies, one per variance class the engine detects.
package synthetic

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/revstrux/revstrux/internal/ingest"
)

// DefaultSeed reproduces the documented demo data set.
const DefaultSeed = 42

var companies = []string{
	"NovaTech Solutions", "Meridian Digital", "Apex Global Partners", "CloudBridge Systems",
	"DataVault Analytics", "Zenith Platforms", "Summit Software", "Pinnacle AI Labs",
	"Horizon Networks", "Quantum Logic", "Atlas Dynamics", "Velocity SaaS",
	"Fusion Collaborative", "Nexus Intelligence", "Prism Analytics",
	"ClearPath Software", "Matrix Operations", "Forge Automation", "Signal Processing Co",
	"Blueprint Tech", "Cascade Data", "Ironclad Security", "Lighthouse Labs",
	"Pioneer Digital", "Sterling Analytics", "TrueNorth Consulting", "Vanguard Systems",
	"WavePoint Tech", "Axiom Software", "BrightEdge Solutions", "Cobalt Platforms",
	"Dreamscape AI", "TechFlow Inc", "EchoBase Systems", "Frontier Logic", "GreenField SaaS",
	"HexaCore Computing", "InfiniteLoop Tech", "JadeStone Analytics", "Keystone Digital",
	"Apex Systems", "MoonRise Software", "NorthStar Data", "OmniStack Solutions",
	"Polaris Systems", "QuickSilver Tech", "RedShift Analytics", "SkyVault Cloud",
	"TerraFlow Data", "UltraViolet Labs", "VectorSpace AI", "XenonByte Systems",
	"Windmill Software", "YieldMax Analytics", "ZeroGravity Tech", "AlphaWave Digital",
	"BetaForge Solutions", "CoreSync Ltd", "DataPrime Corp", "LaunchPad Ventures",
}

var mrrChoices = []int{5000, 8000, 10000, 12000, 15000, 20000}

// Dataset is the generated demo workspace content, keyed by file type.
type Dataset struct {
	Files       map[string][]ingest.Row `json:"files"`
	PeriodStart string                  `json:"period_start"`
	PeriodEnd   string                  `json:"period_end"`
	Metadata    map[string]int          `json:"metadata"`
}

func accountID(n int) string { return fmt.Sprintf("SYN-%03d", n) }

func date(y, m, d int) string { return fmt.Sprintf("%04d-%02d-%02d", y, m, d) }

func lastDay(y, m int) int {
	return time.Date(y, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Generate builds the full demo data set. The same seed always yields
// the same rows, so analysis results are reproducible.
func Generate(seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))

	var accounts, customers, subs, invoices, payments, creditNotes []ingest.Row

	// Accounts: 60 CRM records, two prospects and one churned.
	for i := 0; i < 60; i++ {
		aid := accountID(i + 1)
		status := "active"
		if i >= 58 {
			status = "prospect"
		}
		if i == 25 {
			status = "churned"
		}
		accounts = append(accounts, ingest.Row{
			"account_id":     aid,
			"account_name":   companies[i],
			"account_status": status,
			"source_system":  "salesforce",
			"email_domain":   "",
		})
	}

	// SYN-019 and SYN-052 never get a billing counterpart.
	noBilling := map[string]bool{accountID(19): true, accountID(52): true}

	// Customers: exact names except two fuzzy variants, plus three
	// orphan billing records no CRM account explains.
	fuzzyNames := map[string]string{
		accountID(33): "Techflow Incorporated",
		accountID(41): "Apex System Solutions",
	}
	custIdx := 0
	for i := 0; i < 60 && custIdx < 55; i++ {
		acc := accounts[i]
		if acc["account_status"] == "prospect" || noBilling[acc["account_id"]] {
			continue
		}
		custIdx++
		name := acc["account_name"]
		if fuzzy, ok := fuzzyNames[acc["account_id"]]; ok {
			name = fuzzy
		}
		customers = append(customers, ingest.Row{
			"customer_id":     fmt.Sprintf("CUST-%03d", custIdx),
			"customer_name":   name,
			"customer_status": "active",
			"source_system":   "stripe",
			"email_domain":    "",
		})
	}
	for j := 1; j <= 3; j++ {
		customers = append(customers, ingest.Row{
			"customer_id":     fmt.Sprintf("CUST-%03d", 55+j),
			"customer_name":   fmt.Sprintf("Orphan Billing Co %d", j),
			"customer_status": "active",
			"source_system":   "stripe",
			"email_domain":    "",
		})
	}

	// Subscriptions: one per billed account, a second for every eighth.
	// Keyed by account id, which is how the contract system exports.
	subIdx := 0
	custByName := map[string]string{}
	for _, c := range customers {
		custByName[c["customer_name"]] = c["customer_id"]
	}
	type subPlan struct {
		subID     string
		accountID string
		startM    int
		startD    int
		mrr       int
		pricing   string
		ramp      string
	}
	var plans []subPlan
	for i := 0; i < 60; i++ {
		acc := accounts[i]
		if acc["account_status"] == "prospect" || noBilling[acc["account_id"]] {
			continue
		}
		count := 1
		if subIdx%8 == 0 && subIdx < 60 {
			count = 2
		}
		for k := 0; k < count && subIdx < 70; k++ {
			subIdx++
			plan := subPlan{
				subID:     fmt.Sprintf("SUB-%03d", subIdx),
				accountID: acc["account_id"],
				startM:    rng.Intn(6) + 1,
				startD:    1,
				mrr:       mrrChoices[rng.Intn(len(mrrChoices))],
				pricing:   "flat",
			}
			// Usage-priced contracts land in the exclusion log.
			if subIdx >= 28 && subIdx <= 32 {
				plan.pricing = "usage"
			}
			// Ramps step up mid-year.
			if subIdx >= 61 && subIdx <= 65 {
				plan.pricing = "ramp"
				plan.ramp = fmt.Sprintf(`[{"effective_date":"2024-07-01","mrr":%d}]`, plan.mrr*3/2)
			}
			// Mid-month start exercises proration.
			if plan.accountID == accountID(58) {
				plan.startM, plan.startD, plan.mrr = 3, 15, 10000
			}
			plans = append(plans, plan)
		}
	}
	for _, p := range plans {
		subs = append(subs, ingest.Row{
			"subscription_id":   p.subID,
			"account_id":        p.accountID,
			"start_date":        date(2024, p.startM, p.startD),
			"end_date":          date(2024, 12, 31),
			"mrr":               fmt.Sprintf("%d", p.mrr),
			"currency":          "USD",
			"billing_frequency": "monthly",
			"pricing_model":     p.pricing,
			"ramp_schedule":     p.ramp,
			"sub_status":        "active",
		})
	}

	// Customer lookup by account: names align except the fuzzy pair.
	custForAccount := func(aid string) string {
		for _, acc := range accounts {
			if acc["account_id"] != aid {
				continue
			}
			name := acc["account_name"]
			if fuzzy, ok := fuzzyNames[aid]; ok {
				name = fuzzy
			}
			return custByName[name]
		}
		return ""
	}

	invIdx, payIdx := 0, 0
	addPayment := func(invoiceID, payDate, amount string) {
		payIdx++
		payments = append(payments, ingest.Row{
			"payment_id":   fmt.Sprintf("PAY-%04d", payIdx),
			"invoice_id":   invoiceID,
			"payment_date": payDate,
			"amount":       amount,
			"currency":     "USD",
		})
	}

	for _, p := range plans {
		if p.pricing == "usage" {
			continue
		}
		cid := custForAccount(p.accountID)
		if cid == "" {
			continue
		}

		// One account gets a single annual invoice instead of twelve
		// monthly ones.
		if p.accountID == accountID(22) {
			invIdx++
			invoiceID := fmt.Sprintf("INV-%04d", invIdx)
			amount := fmt.Sprintf("%d", p.mrr*12)
			invoices = append(invoices, ingest.Row{
				"invoice_id":      invoiceID,
				"customer_id":     cid,
				"subscription_id": p.subID,
				"invoice_date":    "2024-01-01",
				"period_start":    "2024-01-01",
				"period_end":      "2024-12-31",
				"amount":          amount,
				"currency":        "USD",
				"status":          "paid",
			})
			addPayment(invoiceID, "2024-01-15", amount)
			continue
		}

		for m := p.startM; m <= 12; m++ {
			amount := float64(p.mrr)
			switch {
			case p.accountID == accountID(12) && (m == 8 || m == 9):
				// Missing invoices.
				continue
			case p.accountID == accountID(31) && m == 7:
				amount = 7500
			case p.accountID == accountID(44) && (m >= 5 && m <= 7):
				amount = float64(p.mrr) - 7333.33
			case p.accountID == accountID(7) && m == 6:
				amount = 15000
			case p.accountID == accountID(39) && m == 4:
				// Within tolerance.
				amount = float64(p.mrr) - 0.87
			}

			status := "paid"
			if p.accountID == accountID(15) && m >= 10 {
				status = "unpaid"
			}

			invIdx++
			invoiceID := fmt.Sprintf("INV-%04d", invIdx)
			amountStr := fmt.Sprintf("%.2f", amount)
			invoices = append(invoices, ingest.Row{
				"invoice_id":      invoiceID,
				"customer_id":     cid,
				"subscription_id": p.subID,
				"invoice_date":    date(2024, m, 1),
				"period_start":    date(2024, m, 1),
				"period_end":      date(2024, m, lastDay(2024, m)),
				"amount":          amountStr,
				"currency":        "USD",
				"status":          status,
			})
			if status == "paid" {
				addPayment(invoiceID, date(2024, m, 15), amountStr)
			}
		}
	}

	firstInvoiceFor := func(cid string) string {
		for _, inv := range invoices {
			if inv["customer_id"] == cid {
				return inv["invoice_id"]
			}
		}
		return ""
	}

	// Linked credit note against a real invoice.
	if cid := custForAccount(accountID(34)); cid != "" {
		if inv := firstInvoiceFor(cid); inv != "" {
			creditNotes = append(creditNotes, ingest.Row{
				"credit_note_id": "CN-001",
				"invoice_id":     inv,
				"customer_id":    cid,
				"credit_date":    "2024-03-15",
				"amount":         "2000",
				"currency":       "USD",
				"reason":         "billing error correction",
			})
		}
	}
	// Standalone credit note dated outside the analysis period, so it
	// cannot allocate.
	if cid := custForAccount(accountID(47)); cid != "" {
		creditNotes = append(creditNotes, ingest.Row{
			"credit_note_id": "CN-002",
			"invoice_id":     "",
			"customer_id":    cid,
			"credit_date":    "2025-06-15",
			"amount":         "1500",
			"currency":       "USD",
			"reason":         "goodwill credit",
		})
	}
	creditReasons := []string{"billing error", "goodwill", "dispute resolution"}
	creditAmounts := []string{"500", "1000", "1500", "2000"}
	for j := 0; j < 6; j++ {
		ci := j*5 + 3
		if ci >= len(customers) {
			ci = 0
		}
		cid := customers[ci]["customer_id"]
		linked := ""
		if j < 3 {
			linked = firstInvoiceFor(cid)
		}
		creditNotes = append(creditNotes, ingest.Row{
			"credit_note_id": fmt.Sprintf("CN-%03d", j+3),
			"invoice_id":     linked,
			"customer_id":    cid,
			"credit_date":    fmt.Sprintf("2024-%02d-10", (j+1)*2),
			"amount":         creditAmounts[rng.Intn(len(creditAmounts))],
			"currency":       "USD",
			"reason":         creditReasons[rng.Intn(len(creditReasons))],
		})
	}

	return &Dataset{
		Files: map[string][]ingest.Row{
			ingest.FileAccounts:    accounts,
			ingest.FileCustomers:   customers,
			ingest.FileSubs:        subs,
			ingest.FileInvoices:    invoices,
			ingest.FilePayments:    payments,
			ingest.FileCreditNotes: creditNotes,
		},
		PeriodStart: "2024-01",
		PeriodEnd:   "2024-12",
		Metadata: map[string]int{
			"total_accounts":      len(accounts),
			"total_customers":     len(customers),
			"total_subscriptions": len(subs),
			"total_invoices":      len(invoices),
			"total_payments":      len(payments),
			"total_credit_notes":  len(creditNotes),
		},
	}
}

// CSV renders one generated table as CSV using the canonical column
// order for its file type.
func (d *Dataset) CSV(fileType string) string {
	rows := d.Files[fileType]
	headers := headersFor(fileType)
	if len(rows) == 0 || len(headers) == 0 {
		return ""
	}
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		record := make([]string, len(headers))
		for i, h := range headers {
			record[i] = row[h]
		}
		out = append(out, record)
	}
	return ingest.RenderCSV(headers, out)
}

func headersFor(fileType string) []string {
	switch fileType {
	case ingest.FileAccounts:
		return []string{"account_id", "account_name", "account_status", "source_system", "email_domain"}
	case ingest.FileCustomers:
		return []string{"customer_id", "customer_name", "customer_status", "source_system", "email_domain"}
	case ingest.FileSubs:
		return []string{"subscription_id", "account_id", "start_date", "end_date", "mrr", "currency", "billing_frequency", "pricing_model", "ramp_schedule", "sub_status"}
	case ingest.FileInvoices:
		return []string{"invoice_id", "customer_id", "subscription_id", "invoice_date", "period_start", "period_end", "amount", "currency", "status"}
	case ingest.FilePayments:
		return []string{"payment_id", "invoice_id", "payment_date", "amount", "currency"}
	case ingest.FileCreditNotes:
		return []string{"credit_note_id", "invoice_id", "customer_id", "credit_date", "amount", "currency", "reason"}
	default:
		return nil
	}
}
