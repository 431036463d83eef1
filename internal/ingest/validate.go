package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError pinpoints a problem in an uploaded table.
type ValidationError struct {
	File    string `json:"file"`
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of validating one table.
type Result struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

const maxValidationErrors = 500

var validCurrencies = map[string]bool{
	"USD": true, "GBP": true, "EUR": true, "INR": true, "AUD": true, "CAD": true,
	"SGD": true, "AED": true, "JPY": true, "CHF": true, "HKD": true, "NZD": true,
	"SEK": true, "NOK": true, "DKK": true, "ZAR": true,
}

var (
	validAccountStatuses  = []string{"active", "churned", "prospect"}
	validCustomerStatuses = []string{"active", "cancelled", "paused"}
	validSubStatuses      = []string{"active", "cancelled", "paused", "expired"}
	validBillingFreq      = []string{"monthly", "quarterly", "annual"}
	validPricingModels    = []string{"flat", "ramp", "usage"}
	validInvoiceStatuses  = []string{"paid", "unpaid", "partial", "void"}
)

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Validate checks a normalized table against the canonical schema. It never
// rejects structural issues the engine converts to exclusions (negative
// MRR, end before start on subscriptions); those surface during analysis.
func Validate(fileType string, rows []Row) Result {
	var errs, warnings []ValidationError

	required, ok := RequiredFields[fileType]
	if !ok {
		errs = append(errs, ValidationError{File: fileType, Message: fmt.Sprintf("Unknown file type: %s", fileType)})
		return Result{Valid: false, Errors: errs}
	}

	if len(rows) == 0 {
		if fileType == FileCreditNotes || fileType == FilePayments {
			warnings = append(warnings, ValidationError{File: fileType, Message: "No data rows. Analysis will proceed without this table."})
			return Result{Valid: true, Warnings: warnings}
		}
		errs = append(errs, ValidationError{File: fileType, Message: "No data rows found."})
		return Result{Valid: false, Errors: errs}
	}

	headers := map[string]bool{}
	for key := range rows[0] {
		headers[key] = true
	}
	for _, field := range required {
		if !headers[field] {
			errs = append(errs, ValidationError{File: fileType, Field: field, Message: fmt.Sprintf("Missing required column: %s", field)})
		}
	}

	seenIDs := map[string]bool{}
	pk := IDFields[fileType]

	for i, row := range rows {
		rn := i + 2 // header line is row 1

		for _, field := range required {
			if headers[field] && strings.TrimSpace(row[field]) == "" {
				errs = append(errs, ValidationError{File: fileType, Row: rn, Field: field, Message: fmt.Sprintf("Missing required field: %s", field)})
			}
		}

		if id := row[pk]; id != "" {
			if seenIDs[id] {
				errs = append(errs, ValidationError{File: fileType, Row: rn, Field: pk, Message: fmt.Sprintf("Duplicate %s: %s", pk, id)})
			}
			seenIDs[id] = true
		}

		errs = append(errs, validateRow(fileType, rn, row)...)

		if currency := row["currency"]; currency != "" && !validCurrencies[currency] {
			errs = append(errs, ValidationError{File: fileType, Row: rn, Field: "currency", Message: fmt.Sprintf("Invalid currency code: %s", currency)})
		}

		if len(errs) >= maxValidationErrors {
			errs = append(errs, ValidationError{Message: "Showing first 500 errors. Fix these and re-validate."})
			break
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

func validateRow(fileType string, rn int, row Row) []ValidationError {
	var errs []ValidationError

	badEnum := func(field string, allowed []string) {
		errs = append(errs, ValidationError{File: fileType, Row: rn, Field: field,
			Message: fmt.Sprintf("Invalid value '%s'. Allowed: %s", row[field], strings.Join(allowed, ", "))})
	}
	badDate := func(field string) {
		errs = append(errs, ValidationError{File: fileType, Row: rn, Field: field, Message: "Invalid date format. Use YYYY-MM-DD"})
	}
	badAmount := func(field string) {
		errs = append(errs, ValidationError{File: fileType, Row: rn, Field: field, Message: "Invalid amount format"})
	}

	switch fileType {
	case FileAccounts:
		if v := row["account_status"]; v != "" && !contains(validAccountStatuses, v) {
			badEnum("account_status", validAccountStatuses)
		}

	case FileCustomers:
		if v := row["customer_status"]; v != "" && !contains(validCustomerStatuses, v) {
			badEnum("customer_status", validCustomerStatuses)
		}

	case FileSubs:
		if v := row["sub_status"]; v != "" && !contains(validSubStatuses, v) {
			badEnum("sub_status", validSubStatuses)
		}
		if v := row["billing_frequency"]; v != "" && !contains(validBillingFreq, v) {
			badEnum("billing_frequency", validBillingFreq)
		}
		if v := row["pricing_model"]; v != "" && !contains(validPricingModels, v) {
			badEnum("pricing_model", validPricingModels)
		}
		for _, field := range []string{"start_date", "end_date"} {
			if v := row[field]; v != "" {
				if _, err := ParseDate(v); err != nil {
					badDate(field)
				}
			}
		}
		if v := row["mrr"]; v != "" {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				badAmount("mrr")
			}
		}

	case FileInvoices:
		if v := row["status"]; v != "" && !contains(validInvoiceStatuses, v) {
			badEnum("status", validInvoiceStatuses)
		}
		for _, field := range []string{"invoice_date", "period_start", "period_end"} {
			if v := row[field]; v != "" {
				if _, err := ParseDate(v); err != nil {
					badDate(field)
				}
			}
		}
		ps, psErr := ParseDate(row["period_start"])
		pe, peErr := ParseDate(row["period_end"])
		if psErr == nil && peErr == nil && pe.Before(ps) {
			errs = append(errs, ValidationError{File: fileType, Row: rn, Field: "period_end", Message: "period_end must not be before period_start"})
		}
		if v := row["amount"]; v != "" {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				badAmount("amount")
			}
		}

	case FilePayments:
		if v := row["payment_date"]; v != "" {
			if _, err := ParseDate(v); err != nil {
				badDate("payment_date")
			}
		}
		if v := row["amount"]; v != "" {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				badAmount("amount")
			}
		}

	case FileCreditNotes:
		if v := row["credit_date"]; v != "" {
			if _, err := ParseDate(v); err != nil {
				badDate("credit_date")
			}
		}
		if v := row["amount"]; v != "" {
			amount, err := strconv.ParseFloat(v, 64)
			if err != nil {
				badAmount("amount")
			} else if amount <= 0 {
				errs = append(errs, ValidationError{File: fileType, Row: rn, Field: "amount", Message: "Credit note amount must be a positive number"})
			}
		}
	}

	return errs
}
