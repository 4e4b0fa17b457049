package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hamlaty/contest-backend/internal/logger"
	pkgerrors "github.com/hamlaty/contest-backend/internal/pkg/errors"
	"github.com/hamlaty/contest-backend/internal/types"
)

type EntryRepo interface {
	GetByTaskAndUser(ctx context.Context, tx *gorm.DB, taskID uuid.UUID, externalUserID string) (*types.Entry, error)
	// InsertIgnore persists the entry unless one already exists for the same
	// (task, external user); it reports whether a row was written.
	InsertIgnore(ctx context.Context, tx *gorm.DB, entry *types.Entry) (bool, error)
}

type entryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntryRepo(db *gorm.DB, baseLog *logger.Logger) EntryRepo {
	repoLog := baseLog.With("repo", "EntryRepo")
	return &entryRepo{db: db, log: repoLog}
}

func (er *entryRepo) GetByTaskAndUser(ctx context.Context, tx *gorm.DB, taskID uuid.UUID, externalUserID string) (*types.Entry, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}

	var result types.Entry
	if err := transaction.WithContext(ctx).
		Where("task_id = ? AND external_user_id = ?", taskID, externalUserID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (er *entryRepo) InsertIgnore(ctx context.Context, tx *gorm.DB, entry *types.Entry) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "external_user_id"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
