package analysis

import (
	"context"
	"errors"

	"github.com/revstrux/revstrux/internal/identity"
	sessiondomain "github.com/revstrux/revstrux/internal/session/domain"
)

func (r *Runner) loadIdentity(ctx context.Context, sessionID string) (*identity.Result, error) {
	var res identity.Result
	err := r.sessions.LoadData(ctx, sessionID, sessiondomain.DataIdentity, &res)
	if errors.Is(err, sessiondomain.ErrDataNotFound) {
		return nil, ErrIdentityNotRun
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Identity returns the current resolution state for the review UI.
func (r *Runner) Identity(ctx context.Context, sessionID string) (*identity.Result, error) {
	return r.loadIdentity(ctx, sessionID)
}

func (r *Runner) saveIdentity(ctx context.Context, sessionID string, res *identity.Result) error {
	if err := r.sessions.SaveData(ctx, sessionID, sessiondomain.DataIdentity, res); err != nil {
		return err
	}
	return r.sessions.SetDecisions(ctx, sessionID, res.Decisions)
}

// Decide records a reviewer verdict on a pending match.
func (r *Runner) Decide(ctx context.Context, sessionID, matchID, decision string) (*identity.Result, error) {
	res, err := r.loadIdentity(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := res.Decide(matchID, decision, r.clock.Now()); err != nil {
		return nil, err
	}
	if err := r.saveIdentity(ctx, sessionID, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Undo pops the most recent decision back onto the review queue.
func (r *Runner) Undo(ctx context.Context, sessionID string) (*identity.Result, identity.Decision, error) {
	res, err := r.loadIdentity(ctx, sessionID)
	if err != nil {
		return nil, identity.Decision{}, err
	}
	undone, err := res.Undo()
	if err != nil {
		return nil, identity.Decision{}, err
	}
	if err := r.saveIdentity(ctx, sessionID, res); err != nil {
		return nil, identity.Decision{}, err
	}
	return res, undone, nil
}

// ResetIdentity clears every decision, drops derived artifacts, and
// returns the session to review. Atomic from the caller's view: either
// the whole rewind lands or nothing does.
func (r *Runner) ResetIdentity(ctx context.Context, sessionID string) (*identity.Result, int, error) {
	if r.Running(sessionID) {
		return nil, 0, ErrAlreadyRunning
	}
	res, err := r.loadIdentity(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	cleared := len(res.Decisions)
	res.Reset()
	if err := r.sessions.ClearData(ctx, sessionID, sessiondomain.DerivedKinds...); err != nil {
		return nil, 0, err
	}
	if err := r.saveIdentity(ctx, sessionID, res); err != nil {
		return nil, 0, err
	}
	if err := r.sessions.SetStatus(ctx, sessionID, sessiondomain.SessionStatusIdentityReview); err != nil {
		return nil, 0, err
	}
	return res, cleared, nil
}
