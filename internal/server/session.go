package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) CreateSession(c *gin.Context) {
	patch := map[string]any{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&patch); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	sess, err := s.sessions.Create(c.Request.Context(), patch)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sess})
}

func (s *Server) ListSessions(c *gin.Context) {
	sessions, err := s.sessions.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sessions, "total": len(sessions)})
}

func (s *Server) GetSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	sess, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sess})
}

func (s *Server) DeleteSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if s.runner.Running(id) {
		s.runner.Cancel(id)
	}
	if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) GetSettings(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	settings, err := s.sessions.GetSettings(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) UpdateSettings(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	patch := map[string]any{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sess, err := s.sessions.UpdateSettings(c.Request.Context(), id, patch)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sess})
}

func (s *Server) GetStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	sess, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	processing, err := s.sessions.GetProcessing(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            sess.Status,
		"processing_status": processing,
		"summary":           sess.Summary,
	})
}
