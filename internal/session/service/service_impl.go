package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/revstrux/revstrux/internal/clock"
	sessiondomain "github.com/revstrux/revstrux/internal/session/domain"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  sessiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  sessiondomain.Repository
}

func NewService(p ServiceParam) sessiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("session.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return 0, sessiondomain.ErrSessionNotFound
	}
	return parsed, nil
}

func (s *Service) find(ctx context.Context, id string) (*sessiondomain.Session, error) {
	sid, err := s.parseID(id)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.FindByID(ctx, s.db, sid)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, sessiondomain.ErrSessionNotFound
	}
	return session, nil
}

func marshal(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// Create opens a new session with defaults merged with the caller's
// settings patch.
func (s *Service) Create(ctx context.Context, patch map[string]any) (*sessiondomain.Session, error) {
	now := s.clock.Now()
	settings, err := sessiondomain.ApplySettings(sessiondomain.DefaultSettings(now), patch)
	if err != nil {
		return nil, err
	}
	settingsJSON, err := marshal(settings)
	if err != nil {
		return nil, err
	}

	session := &sessiondomain.Session{
		ID:        s.genID.Generate(),
		Status:    sessiondomain.SessionStatusCreated,
		Settings:  settingsJSON,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, session); err != nil {
		return nil, err
	}

	s.log.Info("session created", zap.String("session_id", session.ID.String()))
	return session, nil
}

func (s *Service) Get(ctx context.Context, id string) (*sessiondomain.Session, error) {
	return s.find(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]sessiondomain.Session, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	session, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, s.db, session.ID)
}

func (s *Service) GetSettings(ctx context.Context, id string) (sessiondomain.Settings, error) {
	session, err := s.find(ctx, id)
	if err != nil {
		return sessiondomain.Settings{}, err
	}
	var settings sessiondomain.Settings
	if err := json.Unmarshal(session.Settings, &settings); err != nil {
		return sessiondomain.Settings{}, err
	}
	return settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, id string, patch map[string]any) (*sessiondomain.Session, error) {
	session, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	var current sessiondomain.Settings
	if err := json.Unmarshal(session.Settings, &current); err != nil {
		return nil, err
	}
	updated, err := sessiondomain.ApplySettings(current, patch)
	if err != nil {
		return nil, err
	}
	session.Settings, err = marshal(updated)
	if err != nil {
		return nil, err
	}
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) SetStatus(ctx context.Context, id string, status sessiondomain.SessionStatus) error {
	return s.mutate(ctx, id, func(session *sessiondomain.Session) error {
		session.Status = status
		return nil
	})
}

func (s *Service) SetUploadStatus(ctx context.Context, id string, status sessiondomain.UploadStatus) error {
	return s.mutate(ctx, id, func(session *sessiondomain.Session) error {
		raw, err := marshal(status)
		if err != nil {
			return err
		}
		session.UploadStatus = raw
		return nil
	})
}

func (s *Service) GetUploadStatus(ctx context.Context, id string) (sessiondomain.UploadStatus, error) {
	session, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	status := sessiondomain.UploadStatus{}
	if len(session.UploadStatus) > 0 {
		if err := json.Unmarshal(session.UploadStatus, &status); err != nil {
			return nil, err
		}
	}
	return status, nil
}

func (s *Service) SetProcessing(ctx context.Context, id string, status sessiondomain.ProcessingStatus) error {
	return s.mutate(ctx, id, func(session *sessiondomain.Session) error {
		raw, err := marshal(status)
		if err != nil {
			return err
		}
		session.ProcessingStatus = raw
		return nil
	})
}

func (s *Service) GetProcessing(ctx context.Context, id string) (sessiondomain.ProcessingStatus, error) {
	session, err := s.find(ctx, id)
	if err != nil {
		return sessiondomain.ProcessingStatus{}, err
	}
	status := sessiondomain.ProcessingStatus{Steps: map[string]sessiondomain.StepState{}}
	if len(session.ProcessingStatus) > 0 {
		if err := json.Unmarshal(session.ProcessingStatus, &status); err != nil {
			return sessiondomain.ProcessingStatus{}, err
		}
	}
	return status, nil
}

func (s *Service) SetDecisions(ctx context.Context, id string, decisions any) error {
	return s.mutate(ctx, id, func(session *sessiondomain.Session) error {
		raw, err := marshal(decisions)
		if err != nil {
			return err
		}
		session.Decisions = raw
		return nil
	})
}

func (s *Service) GetDecisions(ctx context.Context, id string, dst any) error {
	session, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if len(session.Decisions) == 0 {
		return nil
	}
	return json.Unmarshal(session.Decisions, dst)
}

func (s *Service) SetSummary(ctx context.Context, id string, summary any) error {
	return s.mutate(ctx, id, func(session *sessiondomain.Session) error {
		raw, err := marshal(summary)
		if err != nil {
			return err
		}
		session.Summary = raw
		return nil
	})
}

func (s *Service) SaveData(ctx context.Context, id, kind string, v any) error {
	session, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	raw, err := marshal(v)
	if err != nil {
		return err
	}
	return s.repo.UpsertData(ctx, s.db, &sessiondomain.SessionData{
		SessionID: session.ID,
		Kind:      kind,
		Data:      raw,
		UpdatedAt: s.clock.Now(),
	})
}

func (s *Service) LoadData(ctx context.Context, id, kind string, dst any) error {
	session, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	raw, err := s.repo.FindData(ctx, s.db, session.ID, kind)
	if err != nil {
		return err
	}
	if raw == nil {
		return sessiondomain.ErrDataNotFound
	}
	return json.Unmarshal(raw, dst)
}

func (s *Service) HasData(ctx context.Context, id, kind string) bool {
	session, err := s.find(ctx, id)
	if err != nil {
		return false
	}
	raw, err := s.repo.FindData(ctx, s.db, session.ID, kind)
	return err == nil && raw != nil
}

func (s *Service) ClearData(ctx context.Context, id string, kinds ...string) error {
	session, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.DeleteData(ctx, s.db, session.ID, kinds)
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*sessiondomain.Session) error) error {
	session, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(session); err != nil {
		return err
	}
	session.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, session)
}
