package server

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/revstrux/revstrux/internal/ingest"
	sessiondomain "github.com/revstrux/revstrux/internal/session/domain"
	"github.com/revstrux/revstrux/internal/synthetic"
)

const maxUploadBytes = 50 << 20

var kindByFileType = map[string]string{
	ingest.FileAccounts:    sessiondomain.DataAccountsRaw,
	ingest.FileCustomers:   sessiondomain.DataCustomersRaw,
	ingest.FileSubs:        sessiondomain.DataSubsRaw,
	ingest.FileInvoices:    sessiondomain.DataInvoicesRaw,
	ingest.FilePayments:    sessiondomain.DataPaymentsRaw,
	ingest.FileCreditNotes: sessiondomain.DataCreditNotesRaw,
}

// ingestFile parses one CSV stream, detects its type when the caller
// did not name one, and stores the normalized rows on the session.
func (s *Server) ingestFile(c *gin.Context, sessionID, fileName, declaredType string, file io.Reader) (*sessiondomain.FileUpload, error) {
	rows, headers, err := ingest.ParseCSV(file)
	if err != nil {
		return nil, newValidationError("file", "invalid_csv", err.Error())
	}

	rows, _ = ingest.NormalizeHeaders(rows)

	fileType := declaredType
	confidence := 1.0
	detected := declaredType == ""
	if detected {
		canonical := make([]string, 0, len(headers))
		for _, h := range headers {
			canonical = append(canonical, ingest.CanonicalHeader(h))
		}
		fileType, confidence = ingest.DetectFileType(canonical)
		if fileType == "" {
			return nil, newValidationError("file", "unrecognized_file", fmt.Sprintf("Could not detect file type for %s", fileName))
		}
	}
	kind, ok := kindByFileType[fileType]
	if !ok {
		return nil, newValidationError("file_type", "invalid_file_type", fmt.Sprintf("Unknown file type: %s", fileType))
	}

	rows, _ = ingest.NormalizeEnums(fileType, rows)
	result := ingest.Validate(fileType, rows)

	if err := s.sessions.SaveData(c.Request.Context(), sessionID, kind, rows); err != nil {
		return nil, err
	}

	upload := &sessiondomain.FileUpload{
		FileType:     fileType,
		FileName:     fileName,
		RowCount:     len(rows),
		Detected:     detected,
		Confidence:   confidence,
		Valid:        result.Valid,
		ErrorCount:   len(result.Errors),
		WarningCount: len(result.Warnings),
		UploadedAt:   s.clock.Now().Format(time.RFC3339),
	}
	return upload, nil
}

func (s *Server) recordUploads(c *gin.Context, sessionID string, uploads []*sessiondomain.FileUpload) error {
	status, err := s.sessions.GetUploadStatus(c.Request.Context(), sessionID)
	if err != nil {
		return err
	}
	for _, u := range uploads {
		status[u.FileType] = *u
	}
	return s.sessions.SetUploadStatus(c.Request.Context(), sessionID, status)
}

func (s *Server) UploadFile(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := s.sessions.Get(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "missing_file", "file is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		AbortWithError(c, newValidationError("file", "file_too_large", "file exceeds 50MB limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	declared := strings.TrimSpace(c.PostForm("file_type"))
	upload, err := s.ingestFile(c, id, fileHeader.Filename, declared, file)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.recordUploads(c, id, []*sessiondomain.FileUpload{upload}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": upload})
}

// UploadArchive accepts a ZIP of CSVs and routes each entry through
// detection, so a whole data room lands in one request.
func (s *Server) UploadArchive(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := s.sessions.Get(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "missing_file", "file is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		AbortWithError(c, newValidationError("file", "file_too_large", "file exceeds 50MB limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	reader, err := zip.NewReader(file, fileHeader.Size)
	if err != nil {
		AbortWithError(c, newValidationError("file", "invalid_zip", "could not read zip archive"))
		return
	}

	var uploads []*sessiondomain.FileUpload
	var skipped []string
	for _, entry := range reader.File {
		name := path.Base(entry.Name)
		if entry.FileInfo().IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(strings.ToLower(name), ".csv") {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			AbortWithError(c, err)
			return
		}
		upload, err := s.ingestFile(c, id, name, "", rc)
		rc.Close()
		if err != nil {
			skipped = append(skipped, name)
			continue
		}
		uploads = append(uploads, upload)
	}

	if len(uploads) == 0 {
		AbortWithError(c, newValidationError("file", "empty_archive", "no recognizable CSV files in archive"))
		return
	}
	if err := s.recordUploads(c, id, uploads); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": uploads, "skipped": skipped})
}

func (s *Server) GetUploadStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	status, err := s.sessions.GetUploadStatus(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) DownloadTemplate(c *gin.Context) {
	fileType := strings.TrimSpace(c.Param("fileType"))
	content := ingest.Template(fileType)
	if content == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_template.csv", fileType))
	c.Data(http.StatusOK, "text/csv", []byte(content))
}

// CreateSyntheticSession creates a demo workspace pre-loaded with the
// generated data set.
func (s *Server) CreateSyntheticSession(c *gin.Context) {
	data := synthetic.Generate(synthetic.DefaultSeed)

	sess, err := s.sessions.Create(c.Request.Context(), map[string]any{
		"period_start": data.PeriodStart,
		"period_end":   data.PeriodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	sessionID := sess.ID.String()

	var uploads []*sessiondomain.FileUpload
	for fileType, rows := range data.Files {
		if err := s.sessions.SaveData(c.Request.Context(), sessionID, kindByFileType[fileType], rows); err != nil {
			AbortWithError(c, err)
			return
		}
		uploads = append(uploads, &sessiondomain.FileUpload{
			FileType:   fileType,
			FileName:   fileType + "_synthetic.csv",
			RowCount:   len(rows),
			Valid:      true,
			UploadedAt: s.clock.Now().Format(time.RFC3339),
		})
	}
	if err := s.recordUploads(c, sessionID, uploads); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"metadata":   data.Metadata,
	})
}

func (s *Server) DownloadSynthetic(c *gin.Context) {
	fileType := strings.TrimSpace(c.Param("fileType"))
	data := synthetic.Generate(synthetic.DefaultSeed)
	content := data.CSV(fileType)
	if content == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_synthetic.csv", fileType))
	c.Data(http.StatusOK, "text/csv", []byte(content))
}
