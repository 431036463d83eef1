package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) ValidateSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := s.sessions.Get(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.runner.Validate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) GetIdentity(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	res, err := s.runner.Identity(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":         res,
		"all_reviewed": len(res.PendingReview) == 0,
	})
}

type decideRequest struct {
	MatchID  string `json:"match_id"`
	Decision string `json:"decision"`
}

func (s *Server) DecideIdentity(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.runner.Decide(c.Request.Context(), id, strings.TrimSpace(req.MatchID), strings.TrimSpace(req.Decision))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"decisions_count": len(res.Decisions),
		"all_reviewed":    len(res.PendingReview) == 0,
		"summary":         res.Summary,
	})
}

func (s *Server) UndoIdentity(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	res, undone, err := s.runner.Undo(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"undone":       undone,
		"all_reviewed": len(res.PendingReview) == 0,
		"summary":      res.Summary,
	})
}

func (s *Server) ResetIdentity(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	res, cleared, err := s.runner.ResetIdentity(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"cleared": cleared,
		"summary": res.Summary,
	})
}

type analyzeRequest struct {
	BypassReview bool `json:"bypass_review"`
}

func (s *Server) StartAnalysis(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := s.sessions.Get(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	var req analyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	if err := s.runner.Start(c.Request.Context(), id, req.BypassReview); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "status": "processing"})
}

func (s *Server) CancelAnalysis(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	cancelled := s.runner.Cancel(id)
	c.JSON(http.StatusOK, gin.H{"ok": true, "cancelled": cancelled})
}
