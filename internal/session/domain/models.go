// Package domain contains persistence models for reconciliation sessions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SessionStatus represents lifecycle states for a session.
type SessionStatus string

const (
	SessionStatusCreated        SessionStatus = "created"
	SessionStatusIdentityReview SessionStatus = "identity_review"
	SessionStatusProcessing     SessionStatus = "processing"
	SessionStatusCompleted      SessionStatus = "completed"
	SessionStatusError          SessionStatus = "error"
)

// Derived-artifact kinds persisted per session.
const (
	DataAccountsRaw    = "accounts_raw"
	DataCustomersRaw   = "customers_raw"
	DataSubsRaw        = "subscriptions_raw"
	DataInvoicesRaw    = "invoices_raw"
	DataPaymentsRaw    = "payments_raw"
	DataCreditNotesRaw = "credit_notes_raw"
	DataIdentity       = "identity"
	DataSegments       = "segments"
	DataReconciliation = "reconciliation"
	DataScore          = "score"
	DataExclusions     = "exclusions"
)

// RawKinds lists the uploaded-table kinds in canonical order.
var RawKinds = []string{
	DataAccountsRaw, DataCustomersRaw, DataSubsRaw,
	DataInvoicesRaw, DataPaymentsRaw, DataCreditNotesRaw,
}

// DerivedKinds lists the artifact kinds a run produces.
var DerivedKinds = []string{
	DataIdentity, DataSegments, DataReconciliation, DataScore, DataExclusions,
}

// Session is one reconciliation workspace.
type Session struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"session_id"`
	Status           SessionStatus  `gorm:"type:text;not null" json:"status"`
	Settings         datatypes.JSON `gorm:"type:jsonb" json:"settings"`
	Decisions        datatypes.JSON `gorm:"type:jsonb" json:"decisions,omitempty"`
	UploadStatus     datatypes.JSON `gorm:"type:jsonb" json:"upload_status,omitempty"`
	ProcessingStatus datatypes.JSON `gorm:"type:jsonb" json:"processing_status,omitempty"`
	Summary          datatypes.JSON `gorm:"type:jsonb" json:"summary,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// SessionData is one derived or raw artifact blob, keyed by kind.
type SessionData struct {
	SessionID snowflake.ID   `gorm:"primaryKey"`
	Kind      string         `gorm:"primaryKey;type:text"`
	Data      datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SessionData) TableName() string { return "session_data" }

// StepState is the progress of one pipeline step.
type StepState struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// LogEntry is one line of the processing log.
type LogEntry struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// ProcessingStatus is the poller-facing view of a running analysis.
type ProcessingStatus struct {
	CurrentStep string               `json:"current_step"`
	Steps       map[string]StepState `json:"steps"`
	Log         []LogEntry           `json:"log"`
	Error       string               `json:"error,omitempty"`
}

// FileUpload records the outcome of one uploaded table.
type FileUpload struct {
	FileType     string  `json:"file_type"`
	FileName     string  `json:"file_name,omitempty"`
	RowCount     int     `json:"row_count"`
	Detected     bool    `json:"detected"`
	Confidence   float64 `json:"confidence,omitempty"`
	Valid        bool    `json:"valid"`
	ErrorCount   int     `json:"error_count"`
	WarningCount int     `json:"warning_count"`
	UploadedAt   string  `json:"uploaded_at"`
}

// UploadStatus maps file type to its upload record.
type UploadStatus map[string]FileUpload
