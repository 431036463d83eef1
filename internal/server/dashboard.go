package server

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/revstrux/revstrux/internal/exclusion"
	"github.com/revstrux/revstrux/internal/recon"
	"github.com/revstrux/revstrux/internal/scoring"
	sessiondomain "github.com/revstrux/revstrux/internal/session/domain"
)

func (s *Server) loadRecon(ctx context.Context, sessionID string) (*recon.Output, error) {
	var out recon.Output
	if err := s.sessions.LoadData(ctx, sessionID, sessiondomain.DataReconciliation, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Server) loadScore(ctx context.Context, sessionID string) (*scoring.Score, error) {
	var score scoring.Score
	if err := s.sessions.LoadData(ctx, sessionID, sessiondomain.DataScore, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

func (s *Server) GetDashboard(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	score, err := s.loadScore(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	exclusions, err := s.runner.Exclusions(ctx, id, "")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	settings, err := s.sessions.GetSettings(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ambiguous := 0
	for _, e := range exclusions {
		if e.ReasonCode == exclusion.ReasonAllocationAmbiguous {
			ambiguous++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"score":                 score,
		"top_findings":          score.Findings,
		"total_exclusions":      len(exclusions),
		"ambiguous_allocations": ambiguous,
		"settings":              settings,
		"created_at":            sess.CreatedAt,
		"summary":               sess.Summary,
	})
}

func (s *Server) ListAccounts(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	out, err := s.loadRecon(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	accounts := out.Accounts

	if vt := strings.TrimSpace(c.Query("variance_type")); vt != "" {
		allowed := map[string]bool{}
		for _, t := range strings.Split(vt, ",") {
			allowed[strings.TrimSpace(t)] = true
		}
		accounts = filterAccounts(accounts, func(a recon.AccountRollup) bool {
			return allowed[a.PrimaryVarianceType]
		})
	}
	if mt := strings.TrimSpace(c.Query("match_type")); mt != "" {
		accounts = filterAccounts(accounts, func(a recon.AccountRollup) bool {
			return a.MatchType == mt
		})
	}
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		accounts = filterAccounts(accounts, func(a recon.AccountRollup) bool {
			return strings.Contains(strings.ToLower(a.AccountName), search) ||
				strings.Contains(strings.ToLower(a.RSXID), search)
		})
	}

	// Drill-down from a score component onto the accounts behind it.
	switch strings.TrimSpace(c.Query("component_filter")) {
	case "entity_match":
		accounts = filterAccounts(accounts, func(a recon.AccountRollup) bool {
			return a.MatchType != "exact"
		})
	case "billing_coverage":
		accounts = filterAccounts(accounts, func(a recon.AccountRollup) bool {
			return a.PrimaryVarianceType == recon.StatusMissingInvoice
		})
	case "variance":
		accounts = filterAccounts(accounts, func(a recon.AccountRollup) bool {
			return a.PrimaryVarianceType != recon.StatusClean && a.PrimaryVarianceType != recon.StatusUnknown
		})
	case "lineage":
		accounts = filterAccounts(accounts, func(a recon.AccountRollup) bool {
			return a.LineageStatus != recon.LineageComplete
		})
	}

	sortAccounts(accounts, strings.TrimSpace(c.Query("sort_by")), c.DefaultQuery("sort_dir", "desc"))

	c.JSON(http.StatusOK, gin.H{"accounts": accounts, "total": len(accounts)})
}

func filterAccounts(accounts []recon.AccountRollup, keep func(recon.AccountRollup) bool) []recon.AccountRollup {
	out := make([]recon.AccountRollup, 0, len(accounts))
	for _, a := range accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func sortAccounts(accounts []recon.AccountRollup, sortBy, sortDir string) {
	if sortBy == "" {
		return
	}
	desc := sortDir != "asc"

	compare := func(a, b recon.AccountRollup) int {
		switch sortBy {
		case "total_expected":
			return a.TotalExpected.Cmp(b.TotalExpected)
		case "total_invoiced":
			return a.TotalInvoiced.Cmp(b.TotalInvoiced)
		case "total_variance":
			return a.TotalVariance.Cmp(b.TotalVariance)
		case "abs_variance":
			return a.AbsVariance.Cmp(b.AbsVariance)
		case "account_name":
			return strings.Compare(strings.ToLower(a.AccountName), strings.ToLower(b.AccountName))
		case "rsx_id":
			return strings.Compare(a.RSXID, b.RSXID)
		default:
			return strings.Compare(a.AccountID, b.AccountID)
		}
	}

	sort.SliceStable(accounts, func(i, j int) bool {
		cmp := compare(accounts[i], accounts[j])
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func (s *Server) GetLineage(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	rsxID := strings.TrimSpace(c.Param("rsxId"))

	out, err := s.loadRecon(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var entity *recon.AccountRollup
	for i := range out.Accounts {
		if out.Accounts[i].RSXID == rsxID {
			entity = &out.Accounts[i]
			break
		}
	}
	if entity == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var segments []recon.SegmentVariance
	for _, v := range out.Variances {
		if v.RSXID == rsxID {
			segments = append(segments, v)
		}
	}
	sort.Slice(segments, func(i, j int) bool {
		if segments[i].Period != segments[j].Period {
			return segments[i].Period < segments[j].Period
		}
		return segments[i].SegmentID < segments[j].SegmentID
	})

	type subTotals struct {
		Segments         []recon.SegmentVariance `json:"segments"`
		TotalExpected    decimal.Decimal         `json:"total_expected"`
		TotalInvoiced    decimal.Decimal         `json:"total_invoiced"`
		TotalCreditNotes decimal.Decimal         `json:"total_credit_notes"`
		TotalCollected   decimal.Decimal         `json:"total_collected"`
		TotalVariance    decimal.Decimal         `json:"total_variance"`
	}

	subData := map[string]*subTotals{}
	var subIDs []string
	for _, seg := range segments {
		st, ok := subData[seg.SubscriptionID]
		if !ok {
			st = &subTotals{}
			subData[seg.SubscriptionID] = st
			subIDs = append(subIDs, seg.SubscriptionID)
		}
		st.Segments = append(st.Segments, seg)
		st.TotalExpected = st.TotalExpected.Add(seg.Expected)
		st.TotalInvoiced = st.TotalInvoiced.Add(seg.Invoiced)
		st.TotalCreditNotes = st.TotalCreditNotes.Add(seg.CreditNotes)
		st.TotalCollected = st.TotalCollected.Add(seg.Collected)
		st.TotalVariance = st.TotalVariance.Add(seg.Variance)
	}
	sort.Strings(subIDs)

	c.JSON(http.StatusOK, gin.H{
		"entity":            entity,
		"subscriptions":     subIDs,
		"subscription_data": subData,
		"total_expected":    entity.TotalExpected,
		"total_invoiced":    entity.TotalInvoiced,
		"total_variance":    entity.TotalVariance,
	})
}

func (s *Server) ListExclusions(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()

	all, err := s.runner.Exclusions(ctx, id, "")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary := map[string]int{}
	for _, e := range all {
		summary[e.ReasonCode]++
	}

	filtered := all
	if rc := strings.TrimSpace(c.Query("reason_code")); rc != "" {
		filtered = make([]exclusion.Exclusion, 0, len(all))
		for _, e := range all {
			if e.ReasonCode == rc {
				filtered = append(filtered, e)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"exclusions": filtered,
		"total":      len(filtered),
		"summary":    summary,
	})
}
