package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/logger"
	pkgerrors "github.com/hamlaty/contest-backend/internal/pkg/errors"
	"github.com/hamlaty/contest-backend/internal/types"
)

type TaskRepo interface {
	ListOrderedByContest(ctx context.Context, tx *gorm.DB, contestID uuid.UUID) ([]*types.Task, error)
	GetByID(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) (*types.Task, error)
	ListOptions(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) ([]*types.MCQOption, error)
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	repoLog := baseLog.With("repo", "TaskRepo")
	return &taskRepo{db: db, log: repoLog}
}

// ListOrderedByContest returns the contest's tasks in the one total order a
// Thread cursor indexes into: round position, then task position (nulls
// last), then creation time. Options are preloaded in display order.
func (tr *taskRepo) ListOrderedByContest(ctx context.Context, tx *gorm.DB, contestID uuid.UUID) ([]*types.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var results []*types.Task
	if err := transaction.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("round_position ASC NULLS LAST").
		Order("position ASC NULLS LAST").
		Order("created_at ASC").
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (tr *taskRepo) GetByID(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) (*types.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var result types.Task
	if err := transaction.WithContext(ctx).
		Where("id = ?", taskID).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (tr *taskRepo) ListOptions(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) ([]*types.MCQOption, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var results []*types.MCQOption
	if err := transaction.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
