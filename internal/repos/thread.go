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

type ThreadRepo interface {
	GetByScope(ctx context.Context, tx *gorm.DB, contestID uuid.UUID, pageID, externalUserID string) (*types.Thread, error)
	Upsert(ctx context.Context, tx *gorm.DB, thread *types.Thread) (*types.Thread, error)
	Save(ctx context.Context, tx *gorm.DB, thread *types.Thread) error
}

type threadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadRepo(db *gorm.DB, baseLog *logger.Logger) ThreadRepo {
	repoLog := baseLog.With("repo", "ThreadRepo")
	return &threadRepo{db: db, log: repoLog}
}

func (tr *threadRepo) GetByScope(ctx context.Context, tx *gorm.DB, contestID uuid.UUID, pageID, externalUserID string) (*types.Thread, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var result types.Thread
	if err := transaction.WithContext(ctx).
		Where("contest_id = ? AND page_id = ? AND external_user_id = ?", contestID, pageID, externalUserID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// Upsert creates the thread or, when the (contest, page, user) scope already
// exists, overwrites its walk state. Concurrent duplicate starts collapse
// onto the unique scope index instead of racing.
func (tr *threadRepo) Upsert(ctx context.Context, tx *gorm.DB, thread *types.Thread) (*types.Thread, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "contest_id"}, {Name: "page_id"}, {Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"cursor_index", "current_task_id", "state_json", "status", "updated_at",
			}),
		}).
		Create(thread).Error; err != nil {
		return nil, err
	}
	return tr.GetByScope(ctx, transaction, thread.ContestID, thread.PageID, thread.ExternalUserID)
}

func (tr *threadRepo) Save(ctx context.Context, tx *gorm.DB, thread *types.Thread) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	return transaction.WithContext(ctx).Save(thread).Error
}
