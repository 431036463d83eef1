package domain

import "context"

// Service owns session lifecycle and per-session artifact storage.
type Service interface {
	Create(ctx context.Context, patch map[string]any) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context) ([]Session, error)
	Delete(ctx context.Context, id string) error

	GetSettings(ctx context.Context, id string) (Settings, error)
	UpdateSettings(ctx context.Context, id string, patch map[string]any) (*Session, error)

	SetStatus(ctx context.Context, id string, status SessionStatus) error
	SetUploadStatus(ctx context.Context, id string, status UploadStatus) error
	GetUploadStatus(ctx context.Context, id string) (UploadStatus, error)
	SetProcessing(ctx context.Context, id string, status ProcessingStatus) error
	GetProcessing(ctx context.Context, id string) (ProcessingStatus, error)
	SetDecisions(ctx context.Context, id string, decisions any) error
	GetDecisions(ctx context.Context, id string, dst any) error
	SetSummary(ctx context.Context, id string, summary any) error

	SaveData(ctx context.Context, id, kind string, v any) error
	LoadData(ctx context.Context, id, kind string, dst any) error
	HasData(ctx context.Context, id, kind string) bool
	ClearData(ctx context.Context, id string, kinds ...string) error
}
