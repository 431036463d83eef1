package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	sessiondomain "github.com/revstrux/revstrux/internal/session/domain"
)

type repo struct{}

func Provide() sessiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, session *sessiondomain.Session) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sessions (
			id, status, settings, decisions, upload_status, processing_status, summary,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.Status,
		session.Settings,
		session.Decisions,
		session.UploadStatus,
		session.ProcessingStatus,
		session.Summary,
		session.CreatedAt,
		session.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*sessiondomain.Session, error) {
	var session sessiondomain.Session
	err := db.WithContext(ctx).Raw(
		`SELECT id, status, settings, decisions, upload_status, processing_status, summary,
		 created_at, updated_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ID == 0 {
		return nil, nil
	}
	return &session, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]sessiondomain.Session, error) {
	var sessions []sessiondomain.Session
	err := db.WithContext(ctx).Raw(
		`SELECT id, status, settings, decisions, upload_status, processing_status, summary,
		 created_at, updated_at
		 FROM sessions ORDER BY created_at DESC`,
	).Scan(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, session *sessiondomain.Session) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sessions SET
			status = ?, settings = ?, decisions = ?, upload_status = ?,
			processing_status = ?, summary = ?, updated_at = ?
		 WHERE id = ?`,
		session.Status,
		session.Settings,
		session.Decisions,
		session.UploadStatus,
		session.ProcessingStatus,
		session.Summary,
		session.UpdatedAt,
		session.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM session_data WHERE session_id = ?`, id).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM sessions WHERE id = ?`, id).Error
}

func (r *repo) UpsertData(ctx context.Context, db *gorm.DB, data *sessiondomain.SessionData) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM session_data WHERE session_id = ? AND kind = ?`,
		data.SessionID, data.Kind,
	).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO session_data (session_id, kind, data, updated_at) VALUES (?, ?, ?, ?)`,
		data.SessionID,
		data.Kind,
		data.Data,
		data.UpdatedAt,
	).Error
}

func (r *repo) FindData(ctx context.Context, db *gorm.DB, sessionID snowflake.ID, kind string) (datatypes.JSON, error) {
	var data sessiondomain.SessionData
	err := db.WithContext(ctx).Raw(
		`SELECT session_id, kind, data, updated_at FROM session_data WHERE session_id = ? AND kind = ?`,
		sessionID, kind,
	).Scan(&data).Error
	if err != nil {
		return nil, err
	}
	if data.SessionID == 0 {
		return nil, nil
	}
	return data.Data, nil
}

func (r *repo) DeleteData(ctx context.Context, db *gorm.DB, sessionID snowflake.ID, kinds []string) error {
	if len(kinds) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM session_data WHERE session_id = ? AND kind IN ?`,
		sessionID, kinds,
	).Error
}
