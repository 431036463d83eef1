package identity

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/revstrux/revstrux/internal/config"
	"github.com/revstrux/revstrux/internal/ingest"
)

// Match types carried on identity links.
const (
	MatchExact          = "exact"
	MatchFuzzyConfirmed = "fuzzy_confirmed"
	MatchEmailSignal    = "email_signal"
	MatchUnmatched      = "unmatched"
)

// Link statuses.
const (
	StatusConfirmed   = "confirmed"
	StatusNeedsReview = "needs_review"
	StatusRejected    = "rejected"
	StatusUnmatched   = "unmatched"
)

// Link is one edge of the identity spine: an account paired with the
// billing customer the resolver believes is the same entity.
type Link struct {
	MatchID      string  `json:"match_id"`
	RSXID        string  `json:"rsx_id"`
	AccountID    string  `json:"account_id"`
	AccountName  string  `json:"account_name"`
	CustomerID   string  `json:"customer_id,omitempty"`
	CustomerName string  `json:"customer_name,omitempty"`
	MatchType    string  `json:"match_type"`
	Confidence   float64 `json:"confidence"`
	Evidence     string  `json:"evidence"`
	Status       string  `json:"status"`
}

// Summary is the headline view of a resolution pass.
type Summary struct {
	TotalAccounts      int `json:"total_accounts"`
	TotalCustomers     int `json:"total_customers"`
	AutoMatched        int `json:"auto_matched"`
	NeedsReview        int `json:"needs_review"`
	UnmatchedAccounts  int `json:"unmatched_accounts"`
	UnmatchedCustomers int `json:"unmatched_customers"`
}

// Result is the full output of resolve plus any replayed decisions. It
// is the document persisted under the session's identity kind.
type Result struct {
	Links              []Link     `json:"links"`
	UnmatchedCustomers []string   `json:"unmatched_customers"`
	PendingReview      []string   `json:"pending_review"`
	Decisions          []Decision `json:"decisions"`
	Summary            Summary    `json:"summary"`
}

// MatchID derives a stable identifier for an account/customer pairing.
// Re-running resolve on the same inputs yields the same ids, which is
// what lets the decision log replay.
func MatchID(accountID, customerID string) string {
	h := fnv.New64a()
	h.Write([]byte(accountID))
	h.Write([]byte{'|'})
	h.Write([]byte(customerID))
	return fmt.Sprintf("match-%016x", h.Sum64())
}

// RSXID derives the stable reconciliation entity id for an account.
func RSXID(accountID string) string {
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return fmt.Sprintf("RSX-%08x", h.Sum32())
}

// Resolve runs the three matching passes over accounts and customers.
// Pure function of its inputs; output ordering is deterministic.
func Resolve(accounts []ingest.Account, customers []ingest.Customer, cfg config.EngineConfig) *Result {
	res := &Result{}

	accountTokens := make(map[string][]string, len(accounts))
	for _, a := range accounts {
		accountTokens[a.AccountID] = NormalizeTokens(a.AccountName)
	}
	customerTokens := make(map[string][]string, len(customers))
	for _, c := range customers {
		customerTokens[c.CustomerID] = NormalizeTokens(c.CustomerName)
	}

	accountByID := make(map[string]ingest.Account, len(accounts))
	for _, a := range accounts {
		accountByID[a.AccountID] = a
	}
	customerByID := make(map[string]ingest.Customer, len(customers))
	for _, c := range customers {
		customerByID[c.CustomerID] = c
	}

	usedAccount := map[string]bool{}
	usedCustomer := map[string]bool{}

	emit := func(a ingest.Account, c ingest.Customer, matchType string, confidence float64, evidence, status string) {
		res.Links = append(res.Links, Link{
			MatchID:      MatchID(a.AccountID, c.CustomerID),
			RSXID:        RSXID(a.AccountID),
			AccountID:    a.AccountID,
			AccountName:  a.AccountName,
			CustomerID:   c.CustomerID,
			CustomerName: c.CustomerName,
			MatchType:    matchType,
			Confidence:   confidence,
			Evidence:     evidence,
			Status:       status,
		})
		usedAccount[a.AccountID] = true
		usedCustomer[c.CustomerID] = true
	}

	// Pass 1: exact normalized names.
	customersByName := map[string][]string{}
	for _, c := range customers {
		name := Normalize(c.CustomerName)
		customersByName[name] = append(customersByName[name], c.CustomerID)
	}
	for _, a := range accounts {
		name := Normalize(a.AccountName)
		candidates := customersByName[name]
		if name == "" || len(candidates) == 0 {
			continue
		}
		for _, cid := range candidates {
			if usedCustomer[cid] {
				continue
			}
			emit(a, customerByID[cid], MatchExact, 1.0,
				fmt.Sprintf("normalized names equal: %q", name), StatusConfirmed)
			break
		}
	}

	// Pass 2: fuzzy token-set similarity with greedy assignment.
	type candidate struct {
		accountID  string
		customerID string
		score      float64
	}
	var candidates []candidate
	for _, a := range accounts {
		if usedAccount[a.AccountID] {
			continue
		}
		for _, c := range customers {
			if usedCustomer[c.CustomerID] {
				continue
			}
			score := Similarity(accountTokens[a.AccountID], customerTokens[c.CustomerID])
			if score >= cfg.FuzzyReviewMin {
				candidates = append(candidates, candidate{a.AccountID, c.CustomerID, score})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].accountID != candidates[j].accountID {
			return candidates[i].accountID < candidates[j].accountID
		}
		return candidates[i].customerID < candidates[j].customerID
	})
	for _, cand := range candidates {
		if usedAccount[cand.accountID] || usedCustomer[cand.customerID] {
			continue
		}
		a, c := accountByID[cand.accountID], customerByID[cand.customerID]
		evidence := fmt.Sprintf("token-set similarity %.2f: %q ~ %q", cand.score, a.AccountName, c.CustomerName)
		if cand.score >= cfg.FuzzyConfirmMin {
			emit(a, c, MatchFuzzyConfirmed, cand.score, evidence, StatusConfirmed)
		} else {
			emit(a, c, MatchFuzzyConfirmed, cand.score, evidence, StatusNeedsReview)
		}
	}

	// Pass 3: unique email-domain signal.
	accountsByDomain := map[string][]string{}
	for _, a := range accounts {
		if !usedAccount[a.AccountID] && a.EmailDomain != "" {
			accountsByDomain[a.EmailDomain] = append(accountsByDomain[a.EmailDomain], a.AccountID)
		}
	}
	customersByDomain := map[string][]string{}
	for _, c := range customers {
		if !usedCustomer[c.CustomerID] && c.EmailDomain != "" {
			customersByDomain[c.EmailDomain] = append(customersByDomain[c.EmailDomain], c.CustomerID)
		}
	}
	domains := make([]string, 0, len(accountsByDomain))
	for domain := range accountsByDomain {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	for _, domain := range domains {
		aids, cids := accountsByDomain[domain], customersByDomain[domain]
		if len(aids) != 1 || len(cids) != 1 {
			continue
		}
		emit(accountByID[aids[0]], customerByID[cids[0]], MatchEmailSignal, cfg.EmailConfidence,
			fmt.Sprintf("unique shared email domain %q", domain), StatusConfirmed)
	}

	// Anything left on the account side still gets a reconciliation
	// entity so its subscriptions surface as unknown exposure.
	for _, a := range accounts {
		if usedAccount[a.AccountID] {
			continue
		}
		res.Links = append(res.Links, Link{
			MatchID:     MatchID(a.AccountID, ""),
			RSXID:       RSXID(a.AccountID),
			AccountID:   a.AccountID,
			AccountName: a.AccountName,
			MatchType:   MatchUnmatched,
			Evidence:    "no customer candidate",
			Status:      StatusUnmatched,
		})
	}
	for _, c := range customers {
		if !usedCustomer[c.CustomerID] {
			res.UnmatchedCustomers = append(res.UnmatchedCustomers, c.CustomerID)
		}
	}
	sort.Strings(res.UnmatchedCustomers)

	sort.Slice(res.Links, func(i, j int) bool { return res.Links[i].AccountID < res.Links[j].AccountID })

	res.rebuildQueue()
	res.recount(len(accounts), len(customers))
	return res
}

// rebuildQueue reorders the pending review queue by descending
// confidence, account_id ascending on ties, skipping decided links.
func (r *Result) rebuildQueue() {
	decided := map[string]bool{}
	for _, d := range r.Decisions {
		decided[d.MatchID] = true
	}

	var pending []Link
	for _, l := range r.Links {
		if l.Status == StatusNeedsReview && !decided[l.MatchID] {
			pending = append(pending, l)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Confidence != pending[j].Confidence {
			return pending[i].Confidence > pending[j].Confidence
		}
		return pending[i].AccountID < pending[j].AccountID
	})

	r.PendingReview = make([]string, 0, len(pending))
	for _, l := range pending {
		r.PendingReview = append(r.PendingReview, l.MatchID)
	}
}

func (r *Result) recount(totalAccounts, totalCustomers int) {
	s := Summary{TotalAccounts: totalAccounts, TotalCustomers: totalCustomers,
		UnmatchedCustomers: len(r.UnmatchedCustomers)}
	for _, l := range r.Links {
		switch l.Status {
		case StatusConfirmed:
			s.AutoMatched++
		case StatusNeedsReview:
			s.NeedsReview++
		case StatusUnmatched, StatusRejected:
			s.UnmatchedAccounts++
		}
	}
	r.Summary = s
}

// SpineEntry is the per-account crosswalk row the downstream stages
// consume. CustomerID is empty for unmatched accounts.
type SpineEntry struct {
	RSXID        string  `json:"rsx_id"`
	AccountID    string  `json:"account_id"`
	AccountName  string  `json:"account_name"`
	CustomerID   string  `json:"customer_id,omitempty"`
	CustomerName string  `json:"customer_name,omitempty"`
	MatchType    string  `json:"match_type"`
	Confidence   float64 `json:"confidence"`
}

// Spine returns one entry per account. Only confirmed links carry a
// customer; needs_review links still pending are treated as unmatched.
func (r *Result) Spine() []SpineEntry {
	out := make([]SpineEntry, 0, len(r.Links))
	for _, l := range r.Links {
		e := SpineEntry{
			RSXID:       l.RSXID,
			AccountID:   l.AccountID,
			AccountName: l.AccountName,
			MatchType:   MatchUnmatched,
		}
		if l.Status == StatusConfirmed {
			e.CustomerID = l.CustomerID
			e.CustomerName = l.CustomerName
			e.MatchType = l.MatchType
			e.Confidence = l.Confidence
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}
