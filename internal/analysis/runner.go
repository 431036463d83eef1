package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/revstrux/revstrux/internal/clock"
	"github.com/revstrux/revstrux/internal/config"
	"github.com/revstrux/revstrux/internal/exclusion"
	"github.com/revstrux/revstrux/internal/identity"
	"github.com/revstrux/revstrux/internal/ingest"
	"github.com/revstrux/revstrux/internal/lifecycle"
	"github.com/revstrux/revstrux/internal/recon"
	"github.com/revstrux/revstrux/internal/scoring"
	sessiondomain "github.com/revstrux/revstrux/internal/session/domain"
)

var (
	ErrAlreadyRunning    = errors.New("analysis_already_running")
	ErrReviewPending     = errors.New("identity_review_required")
	ErrIdentityNotRun    = errors.New("identity_matching_not_run")
	ErrNothingToAnalyze  = errors.New("no_uploaded_data")
	ErrAnalysisCancelled = errors.New("analysis_cancelled")
)

// Pipeline step names in execution order.
var pipelineSteps = []string{"ingestion", "identity", "lifecycle", "reconciliation", "scoring"}

// Runner drives the five-stage pipeline for a session in a background
// goroutine. Concurrency exists across sessions, never within one.
type Runner struct {
	log      *zap.Logger
	sessions sessiondomain.Service
	engine   *config.EngineConfigHolder
	clock    clock.Clock

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

type RunnerParam struct {
	fx.In

	Log      *zap.Logger
	Sessions sessiondomain.Service
	Engine   *config.EngineConfigHolder
	Clock    clock.Clock
}

func NewRunner(p RunnerParam) *Runner {
	return &Runner{
		log:      p.Log.Named("analysis.runner"),
		sessions: p.Sessions,
		engine:   p.Engine,
		clock:    p.Clock,
		cancels:  map[string]context.CancelFunc{},
	}
}

// Start kicks off a background run and returns immediately. The review
// queue must be empty unless the caller explicitly bypasses it.
func (r *Runner) Start(ctx context.Context, sessionID string, bypassReview bool) error {
	res, err := r.loadIdentity(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(res.PendingReview) > 0 && !bypassReview {
		return ErrReviewPending
	}

	r.mu.Lock()
	if _, running := r.cancels[sessionID]; running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancels[sessionID] = cancel
	r.mu.Unlock()

	if err := r.sessions.SetStatus(ctx, sessionID, sessiondomain.SessionStatusProcessing); err != nil {
		r.finish(sessionID)
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.finish(sessionID)
		r.run(runCtx, sessionID, res)
	}()
	return nil
}

// Cancel requests a cooperative stop. The worker notices at the next
// stage boundary.
func (r *Runner) Cancel(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[sessionID]
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether a session has an active worker.
func (r *Runner) Running(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[sessionID]
	return ok
}

// Wait blocks until all workers have drained. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) finish(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[sessionID]; ok {
		cancel()
		delete(r.cancels, sessionID)
	}
}

type stepLogger struct {
	runner    *Runner
	sessionID string
	status    sessiondomain.ProcessingStatus
}

func (l *stepLogger) log(ctx context.Context, step, state, message string) {
	now := l.runner.clock.Now().Format(time.RFC3339)
	l.status.CurrentStep = step
	l.status.Steps[step] = sessiondomain.StepState{Status: state, Timestamp: now}
	if message != "" {
		l.status.Log = append(l.status.Log, sessiondomain.LogEntry{Step: step, Message: message})
	}
	if err := l.runner.sessions.SetProcessing(ctx, l.sessionID, l.status); err != nil {
		l.runner.log.Warn("processing status write failed",
			zap.String("session_id", l.sessionID), zap.Error(err))
	}
}

func (r *Runner) run(ctx context.Context, sessionID string, identityRes *identity.Result) {
	runID := uuid.NewString()
	log := r.log.With(zap.String("session_id", sessionID), zap.String("run_id", runID))
	log.Info("analysis started")

	steps := map[string]sessiondomain.StepState{}
	for _, step := range pipelineSteps {
		steps[step] = sessiondomain.StepState{Status: "pending"}
	}
	sl := &stepLogger{runner: r, sessionID: sessionID,
		status: sessiondomain.ProcessingStatus{Steps: steps}}

	err := r.pipeline(ctx, sessionID, identityRes, sl)
	if err != nil && ctx.Err() != nil {
		// A store write racing the cancel fails with the context's
		// error; that is still a cancellation.
		err = ErrAnalysisCancelled
	}
	switch {
	case errors.Is(err, ErrAnalysisCancelled):
		// Interrupted runs leave no partial artifacts behind.
		bg := context.Background()
		if clearErr := r.sessions.ClearData(bg, sessionID,
			sessiondomain.DataSegments, sessiondomain.DataReconciliation,
			sessiondomain.DataScore, sessiondomain.DataExclusions); clearErr != nil {
			log.Warn("artifact cleanup failed", zap.Error(clearErr))
		}
		_ = r.sessions.SetProcessing(bg, sessionID, sessiondomain.ProcessingStatus{})
		_ = r.sessions.SetStatus(bg, sessionID, sessiondomain.SessionStatusIdentityReview)
		log.Info("analysis cancelled")
	case err != nil:
		bg := context.Background()
		sl.status.Error = err.Error()
		sl.log(bg, sl.status.CurrentStep, "error", err.Error())
		_ = r.sessions.SetStatus(bg, sessionID, sessiondomain.SessionStatusError)
		log.Error("analysis failed", zap.Error(err))
	default:
		_ = r.sessions.SetStatus(context.Background(), sessionID, sessiondomain.SessionStatusCompleted)
		log.Info("analysis completed")
	}
}

func (r *Runner) pipeline(ctx context.Context, sessionID string, identityRes *identity.Result, sl *stepLogger) error {
	checkpoint := func() error {
		if ctx.Err() != nil {
			return ErrAnalysisCancelled
		}
		return nil
	}

	settings, err := r.sessions.GetSettings(ctx, sessionID)
	if err != nil {
		return err
	}

	// Step 1: ingestion.
	sl.log(ctx, "ingestion", "running", "Loading validated data...")
	dataset, err := r.loadDataset(ctx, sessionID)
	if err != nil {
		return err
	}
	sl.log(ctx, "ingestion", "complete", fmt.Sprintf("Loaded %d accounts, %d subscriptions, %d invoices",
		len(dataset.Accounts), len(dataset.Subscriptions), len(dataset.Invoices)))
	if err := checkpoint(); err != nil {
		return err
	}

	// Step 2: identity spine.
	sl.log(ctx, "identity", "running", "Building identity spine...")
	spine := identityRes.Spine()
	if err := r.sessions.SaveData(ctx, sessionID, sessiondomain.DataIdentity, identityRes); err != nil {
		return err
	}
	sl.log(ctx, "identity", "complete", fmt.Sprintf("%d reconciliation entities on the spine", len(spine)))
	if err := checkpoint(); err != nil {
		return err
	}

	// Step 3: lifecycle.
	sl.log(ctx, "lifecycle", "running", "Generating revenue segments...")
	periodStart, periodEnd, err := lifecycle.PeriodBounds(settings.PeriodStart, settings.PeriodEnd)
	if err != nil {
		return err
	}
	segments, exclusions := lifecycle.Build(lifecycle.Input{
		Spine:         spine,
		Subscriptions: dataset.Subscriptions,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
	}, r.clock.Now())
	if err := r.sessions.SaveData(ctx, sessionID, sessiondomain.DataSegments, segments); err != nil {
		return err
	}
	sl.log(ctx, "lifecycle", "complete", fmt.Sprintf("%d revenue segments generated, %d excluded",
		len(segments), len(exclusions)))
	if err := checkpoint(); err != nil {
		return err
	}

	// Step 4: reconciliation.
	sl.log(ctx, "reconciliation", "running", "Matching invoices and reconciling...")
	out, reconExclusions := recon.Reconcile(recon.Input{
		Spine:       spine,
		Segments:    segments,
		Invoices:    dataset.Invoices,
		Payments:    dataset.Payments,
		CreditNotes: dataset.CreditNotes,
		Tolerance:   decimal.NewFromFloat(settings.Tolerance),
	}, r.clock.Now())
	exclusions = append(exclusions, reconExclusions...)
	if err := r.sessions.SaveData(ctx, sessionID, sessiondomain.DataReconciliation, out); err != nil {
		return err
	}
	if err := r.sessions.SaveData(ctx, sessionID, sessiondomain.DataExclusions, exclusions); err != nil {
		return err
	}
	sl.log(ctx, "reconciliation", "complete", fmt.Sprintf("%d segments reconciled, %d total exclusions",
		len(out.Variances), len(exclusions)))
	if err := checkpoint(); err != nil {
		return err
	}

	// Step 5: scoring.
	sl.log(ctx, "scoring", "running", "Calculating structural integrity score...")
	score := scoring.Compute(scoring.Input{
		Spine:    spine,
		Segments: segments,
		Recon:    out,
	}, r.engine.Get())
	if err := r.sessions.SaveData(ctx, sessionID, sessiondomain.DataScore, score); err != nil {
		return err
	}
	if err := r.sessions.SetSummary(ctx, sessionID, map[string]any{
		"score":        score.Score,
		"band":         score.Band,
		"color":        score.Color,
		"completed_at": r.clock.Now().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	sl.log(ctx, "scoring", "complete", fmt.Sprintf("Score: %d (%s)", score.Score, score.Band))
	return nil
}

func (r *Runner) loadDataset(ctx context.Context, sessionID string) (*ingest.Dataset, error) {
	raw := map[string][]ingest.Row{}
	kindByFile := map[string]string{
		ingest.FileAccounts:    sessiondomain.DataAccountsRaw,
		ingest.FileCustomers:   sessiondomain.DataCustomersRaw,
		ingest.FileSubs:        sessiondomain.DataSubsRaw,
		ingest.FileInvoices:    sessiondomain.DataInvoicesRaw,
		ingest.FilePayments:    sessiondomain.DataPaymentsRaw,
		ingest.FileCreditNotes: sessiondomain.DataCreditNotesRaw,
	}
	for fileType, kind := range kindByFile {
		var rows []ingest.Row
		err := r.sessions.LoadData(ctx, sessionID, kind, &rows)
		if err != nil && !errors.Is(err, sessiondomain.ErrDataNotFound) {
			return nil, err
		}
		raw[fileType] = rows
	}
	if len(raw[ingest.FileAccounts]) == 0 && len(raw[ingest.FileSubs]) == 0 {
		return nil, ErrNothingToAnalyze
	}
	return ingest.BuildDataset(raw)
}

// Exclusions loads the exclusion log of the last completed run,
// optionally filtered by reason code.
func (r *Runner) Exclusions(ctx context.Context, sessionID, reasonCode string) ([]exclusion.Exclusion, error) {
	var exclusions []exclusion.Exclusion
	if err := r.sessions.LoadData(ctx, sessionID, sessiondomain.DataExclusions, &exclusions); err != nil {
		return nil, err
	}
	if reasonCode == "" {
		return exclusions, nil
	}
	filtered := make([]exclusion.Exclusion, 0, len(exclusions))
	for _, e := range exclusions {
		if e.ReasonCode == reasonCode {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}
