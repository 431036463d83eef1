package identity

import (
	"errors"
	"time"
)

var (
	ErrMatchNotFound   = errors.New("match_not_found")
	ErrAlreadyDecided  = errors.New("match_already_decided")
	ErrInvalidDecision = errors.New("invalid_decision")
	ErrNoDecisions     = errors.New("no_decisions_to_undo")
)

// Decision is one operator verdict on a needs_review link. The log is
// append-only; replaying it over a fresh resolve restores the spine.
type Decision struct {
	MatchID   string    `json:"match_id"`
	Decision  string    `json:"decision"`
	DecidedAt time.Time `json:"decided_at"`
}

// Decide records a verdict and applies it to the link in place.
func (r *Result) Decide(matchID, decision string, at time.Time) error {
	if decision != StatusConfirmed && decision != StatusRejected {
		return ErrInvalidDecision
	}

	idx := -1
	for i, l := range r.Links {
		if l.MatchID == matchID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrMatchNotFound
	}
	if r.Links[idx].Status != StatusNeedsReview {
		return ErrAlreadyDecided
	}

	r.Decisions = append(r.Decisions, Decision{MatchID: matchID, Decision: decision, DecidedAt: at})
	r.applyDecision(idx, decision)
	r.rebuildQueue()
	r.recount(r.Summary.TotalAccounts, r.Summary.TotalCustomers)
	return nil
}

// Undo pops the most recent decision and restores the link to the
// review queue.
func (r *Result) Undo() (Decision, error) {
	if len(r.Decisions) == 0 {
		return Decision{}, ErrNoDecisions
	}
	last := r.Decisions[len(r.Decisions)-1]
	r.Decisions = r.Decisions[:len(r.Decisions)-1]

	for i, l := range r.Links {
		if l.MatchID == last.MatchID {
			r.Links[i].Status = StatusNeedsReview
			break
		}
	}
	r.rebuildQueue()
	r.recount(r.Summary.TotalAccounts, r.Summary.TotalCustomers)
	return last, nil
}

// Reset clears the decision log and restores the initial review queue.
// Only links the log touched are reverted.
func (r *Result) Reset() {
	reverted := map[string]bool{}
	for _, d := range r.Decisions {
		reverted[d.MatchID] = true
	}
	for i, l := range r.Links {
		if reverted[l.MatchID] {
			r.Links[i].Status = StatusNeedsReview
		}
	}
	r.Decisions = nil
	r.rebuildQueue()
	r.recount(r.Summary.TotalAccounts, r.Summary.TotalCustomers)
}

// Replay applies a stored decision log onto a fresh resolve result.
// Unknown or already-decided match ids are skipped, which keeps replay
// tolerant of inputs edited between runs.
func (r *Result) Replay(decisions []Decision) {
	for _, d := range decisions {
		for i, l := range r.Links {
			if l.MatchID == d.MatchID && l.Status == StatusNeedsReview {
				r.Decisions = append(r.Decisions, d)
				r.applyDecision(i, d.Decision)
				break
			}
		}
	}
	r.rebuildQueue()
	r.recount(r.Summary.TotalAccounts, r.Summary.TotalCustomers)
}

func (r *Result) applyDecision(idx int, decision string) {
	if decision == StatusConfirmed {
		r.Links[idx].Status = StatusConfirmed
	} else {
		r.Links[idx].Status = StatusRejected
	}
}
