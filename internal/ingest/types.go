package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ParseDate parses an ISO-8601 calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

type Account struct {
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name"`
	Status       string `json:"account_status"`
	SourceSystem string `json:"source_system"`
	EmailDomain  string `json:"email_domain,omitempty"`
}

type Customer struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Status       string `json:"customer_status"`
	SourceSystem string `json:"source_system"`
	EmailDomain  string `json:"email_domain,omitempty"`
}

type RampStep struct {
	EffectiveDate time.Time
	MRR           decimal.Decimal
}

func (r *RampStep) UnmarshalJSON(data []byte) error {
	var raw struct {
		EffectiveDate string          `json:"effective_date"`
		MRR           decimal.Decimal `json:"mrr"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	effective, err := ParseDate(raw.EffectiveDate)
	if err != nil {
		return fmt.Errorf("ramp step effective_date: %w", err)
	}
	r.EffectiveDate = effective
	r.MRR = raw.MRR
	return nil
}

func (r RampStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EffectiveDate string          `json:"effective_date"`
		MRR           decimal.Decimal `json:"mrr"`
	}{r.EffectiveDate.Format(dateLayout), r.MRR})
}

type Subscription struct {
	SubscriptionID   string
	AccountID        string
	StartDate        time.Time
	EndDate          *time.Time
	MRR              decimal.Decimal
	Currency         string
	BillingFrequency string
	PricingModel     string
	Status           string
	RampSchedule     []RampStep
}

type Invoice struct {
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
	InvoiceDate    time.Time
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Amount         decimal.Decimal
	Currency       string
	Status         string
}

type Payment struct {
	PaymentID   string
	InvoiceID   string
	PaymentDate time.Time
	Amount      decimal.Decimal
	Currency    string
}

type CreditNote struct {
	CreditNoteID string
	CustomerID   string
	InvoiceID    string
	CreditDate   time.Time
	Amount       decimal.Decimal
	Currency     string
	Reason       string
}

// Dataset holds the six validated input tables as typed rowsets.
type Dataset struct {
	Accounts      []Account
	Customers     []Customer
	Subscriptions []Subscription
	Invoices      []Invoice
	Payments      []Payment
	CreditNotes   []CreditNote
}

// DecodeAccounts converts validated raw rows into typed accounts, ordered
// by account_id.
func DecodeAccounts(rows []Row) []Account {
	out := make([]Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, Account{
			AccountID:    row["account_id"],
			AccountName:  row["account_name"],
			Status:       row["account_status"],
			SourceSystem: row["source_system"],
			EmailDomain:  strings.ToLower(row["email_domain"]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

func DecodeCustomers(rows []Row) []Customer {
	out := make([]Customer, 0, len(rows))
	for _, row := range rows {
		out = append(out, Customer{
			CustomerID:   row["customer_id"],
			CustomerName: row["customer_name"],
			Status:       row["customer_status"],
			SourceSystem: row["source_system"],
			EmailDomain:  strings.ToLower(row["email_domain"]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out
}

func DecodeSubscriptions(rows []Row) ([]Subscription, error) {
	out := make([]Subscription, 0, len(rows))
	for _, row := range rows {
		start, err := ParseDate(row["start_date"])
		if err != nil {
			return nil, fmt.Errorf("subscription %s start_date: %w", row["subscription_id"], err)
		}
		sub := Subscription{
			SubscriptionID:   row["subscription_id"],
			AccountID:        row["account_id"],
			StartDate:        start,
			Currency:         row["currency"],
			BillingFrequency: row["billing_frequency"],
			PricingModel:     row["pricing_model"],
			Status:           row["sub_status"],
		}
		if raw := row["end_date"]; raw != "" {
			end, err := ParseDate(raw)
			if err != nil {
				return nil, fmt.Errorf("subscription %s end_date: %w", sub.SubscriptionID, err)
			}
			sub.EndDate = &end
		}
		mrr, err := decimal.NewFromString(row["mrr"])
		if err != nil {
			return nil, fmt.Errorf("subscription %s mrr: %w", sub.SubscriptionID, err)
		}
		sub.MRR = mrr
		if raw := row["ramp_schedule"]; raw != "" {
			var steps []RampStep
			if err := json.Unmarshal([]byte(raw), &steps); err == nil {
				sort.Slice(steps, func(i, j int) bool { return steps[i].EffectiveDate.Before(steps[j].EffectiveDate) })
				sub.RampSchedule = steps
			}
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscriptionID < out[j].SubscriptionID })
	return out, nil
}

func DecodeInvoices(rows []Row) ([]Invoice, error) {
	out := make([]Invoice, 0, len(rows))
	for _, row := range rows {
		invoiceDate, err := ParseDate(row["invoice_date"])
		if err != nil {
			return nil, fmt.Errorf("invoice %s invoice_date: %w", row["invoice_id"], err)
		}
		periodStart, err := ParseDate(row["period_start"])
		if err != nil {
			return nil, fmt.Errorf("invoice %s period_start: %w", row["invoice_id"], err)
		}
		periodEnd, err := ParseDate(row["period_end"])
		if err != nil {
			return nil, fmt.Errorf("invoice %s period_end: %w", row["invoice_id"], err)
		}
		amount, err := decimal.NewFromString(row["amount"])
		if err != nil {
			return nil, fmt.Errorf("invoice %s amount: %w", row["invoice_id"], err)
		}
		out = append(out, Invoice{
			InvoiceID:      row["invoice_id"],
			CustomerID:     row["customer_id"],
			SubscriptionID: row["subscription_id"],
			InvoiceDate:    invoiceDate,
			PeriodStart:    periodStart,
			PeriodEnd:      periodEnd,
			Amount:         amount,
			Currency:       row["currency"],
			Status:         row["status"],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceID < out[j].InvoiceID })
	return out, nil
}

func DecodePayments(rows []Row) ([]Payment, error) {
	out := make([]Payment, 0, len(rows))
	for _, row := range rows {
		paymentDate, err := ParseDate(row["payment_date"])
		if err != nil {
			return nil, fmt.Errorf("payment %s payment_date: %w", row["payment_id"], err)
		}
		amount, err := decimal.NewFromString(row["amount"])
		if err != nil {
			return nil, fmt.Errorf("payment %s amount: %w", row["payment_id"], err)
		}
		out = append(out, Payment{
			PaymentID:   row["payment_id"],
			InvoiceID:   row["invoice_id"],
			PaymentDate: paymentDate,
			Amount:      amount,
			Currency:    row["currency"],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID < out[j].PaymentID })
	return out, nil
}

func DecodeCreditNotes(rows []Row) ([]CreditNote, error) {
	out := make([]CreditNote, 0, len(rows))
	for _, row := range rows {
		creditDate, err := ParseDate(row["credit_date"])
		if err != nil {
			return nil, fmt.Errorf("credit note %s credit_date: %w", row["credit_note_id"], err)
		}
		amount, err := decimal.NewFromString(row["amount"])
		if err != nil {
			return nil, fmt.Errorf("credit note %s amount: %w", row["credit_note_id"], err)
		}
		out = append(out, CreditNote{
			CreditNoteID: row["credit_note_id"],
			CustomerID:   row["customer_id"],
			InvoiceID:    row["invoice_id"],
			CreditDate:   creditDate,
			Amount:       amount,
			Currency:     row["currency"],
			Reason:       row["reason"],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreditNoteID < out[j].CreditNoteID })
	return out, nil
}

// BuildDataset decodes the six raw rowsets into a typed dataset.
func BuildDataset(raw map[string][]Row) (*Dataset, error) {
	subs, err := DecodeSubscriptions(raw[FileSubs])
	if err != nil {
		return nil, err
	}
	invoices, err := DecodeInvoices(raw[FileInvoices])
	if err != nil {
		return nil, err
	}
	payments, err := DecodePayments(raw[FilePayments])
	if err != nil {
		return nil, err
	}
	creditNotes, err := DecodeCreditNotes(raw[FileCreditNotes])
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Accounts:      DecodeAccounts(raw[FileAccounts]),
		Customers:     DecodeCustomers(raw[FileCustomers]),
		Subscriptions: subs,
		Invoices:      invoices,
		Payments:      payments,
		CreditNotes:   creditNotes,
	}, nil
}
