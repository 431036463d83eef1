package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/revstrux/revstrux/internal/identity"
	"github.com/revstrux/revstrux/internal/ingest"
	sessiondomain "github.com/revstrux/revstrux/internal/session/domain"
)

var optionalFiles = map[string]bool{
	ingest.FilePayments:    true,
	ingest.FileCreditNotes: true,
}

// ValidateResult aggregates per-table validation with the identity
// summary produced when the data set is usable.
type ValidateResult struct {
	Valid           bool                        `json:"valid"`
	Errors          []ingest.ValidationError    `json:"errors"`
	Warnings        []ingest.ValidationError    `json:"warnings"`
	Files           map[string]ingest.Result    `json:"files"`
	IdentitySummary *identity.Summary           `json:"identity_summary,omitempty"`
	Status          sessiondomain.SessionStatus `json:"status"`
}

// Validate re-checks every uploaded table. Missing payments and credit
// notes only degrade the analysis, so they warn instead of failing.
// A valid data set immediately resolves identity and moves the session
// into review.
func (r *Runner) Validate(ctx context.Context, sessionID string) (*ValidateResult, error) {
	kindByFile := map[string]string{
		ingest.FileAccounts:    sessiondomain.DataAccountsRaw,
		ingest.FileCustomers:   sessiondomain.DataCustomersRaw,
		ingest.FileSubs:        sessiondomain.DataSubsRaw,
		ingest.FileInvoices:    sessiondomain.DataInvoicesRaw,
		ingest.FilePayments:    sessiondomain.DataPaymentsRaw,
		ingest.FileCreditNotes: sessiondomain.DataCreditNotesRaw,
	}

	out := &ValidateResult{Valid: true, Files: map[string]ingest.Result{}}
	rawByFile := map[string][]ingest.Row{}
	for _, fileType := range ingest.FileTypes {
		var rows []ingest.Row
		err := r.sessions.LoadData(ctx, sessionID, kindByFile[fileType], &rows)
		switch {
		case errors.Is(err, sessiondomain.ErrDataNotFound):
			if optionalFiles[fileType] {
				out.Warnings = append(out.Warnings, ingest.ValidationError{
					File:    fileType,
					Message: fmt.Sprintf("%s not uploaded. Analysis will proceed without it.", fileType),
				})
				continue
			}
			out.Valid = false
			out.Errors = append(out.Errors, ingest.ValidationError{
				File:    fileType,
				Message: fmt.Sprintf("Required file missing: %s", fileType),
			})
			continue
		case err != nil:
			return nil, err
		}
		rawByFile[fileType] = rows

		res := ingest.Validate(fileType, rows)
		out.Files[fileType] = res
		out.Errors = append(out.Errors, res.Errors...)
		out.Warnings = append(out.Warnings, res.Warnings...)
		if !res.Valid {
			out.Valid = false
		}
	}

	if !out.Valid {
		out.Status = sessiondomain.SessionStatusCreated
		return out, nil
	}

	accounts := ingest.DecodeAccounts(rawByFile[ingest.FileAccounts])
	customers := ingest.DecodeCustomers(rawByFile[ingest.FileCustomers])
	res := identity.Resolve(accounts, customers, r.engine.Get())

	var decisions []identity.Decision
	if err := r.sessions.GetDecisions(ctx, sessionID, &decisions); err == nil && len(decisions) > 0 {
		res.Replay(decisions)
	}

	if err := r.sessions.SaveData(ctx, sessionID, sessiondomain.DataIdentity, res); err != nil {
		return nil, err
	}
	if err := r.sessions.SetStatus(ctx, sessionID, sessiondomain.SessionStatusIdentityReview); err != nil {
		return nil, err
	}

	summary := res.Summary
	out.IdentitySummary = &summary
	out.Status = sessiondomain.SessionStatusIdentityReview
	return out, nil
}
