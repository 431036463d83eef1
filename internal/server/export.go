package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/revstrux/revstrux/internal/export"
)

func (s *Server) ExportAccounts(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	out, err := s.loadRecon(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var varianceTypes []string
	if vt := strings.TrimSpace(c.Query("variance_type")); vt != "" {
		for _, t := range strings.Split(vt, ",") {
			varianceTypes = append(varianceTypes, strings.TrimSpace(t))
		}
	}

	var buf bytes.Buffer
	if err := export.WriteAccounts(&buf, out.Accounts, varianceTypes); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sendCSV(c, export.Filename("Accounts", "", s.clock.Now()), buf.Bytes())
}

func (s *Server) ExportLineage(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	rsxID := strings.TrimSpace(c.Param("rsxId"))

	out, err := s.loadRecon(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteLineage(&buf, out.Variances, rsxID); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sendCSV(c, export.Filename("Lineage", rsxID, s.clock.Now()), buf.Bytes())
}

func (s *Server) ExportExclusions(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	exclusions, err := s.runner.Exclusions(c.Request.Context(), id, "")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteExclusions(&buf, exclusions, id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sendCSV(c, export.Filename("Exclusions", id, s.clock.Now()), buf.Bytes())
}

func (s *Server) ExportReport(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()

	score, err := s.loadScore(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	settings, err := s.sessions.GetSettings(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := export.Report(export.ReportData{
		Score:       score,
		Settings:    settings,
		GeneratedAt: s.clock.Now(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pdf, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=RevStrux_Report_%s.pdf", s.clock.Now().Format("2006-01-02")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) sendCSV(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv", body)
}
