package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, session *Session) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Session, error)
	List(ctx context.Context, db *gorm.DB) ([]Session, error)
	Update(ctx context.Context, db *gorm.DB, session *Session) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	UpsertData(ctx context.Context, db *gorm.DB, data *SessionData) error
	FindData(ctx context.Context, db *gorm.DB, sessionID snowflake.ID, kind string) (datatypes.JSON, error)
	DeleteData(ctx context.Context, db *gorm.DB, sessionID snowflake.ID, kinds []string) error
}
