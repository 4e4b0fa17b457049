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

type ContestRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, contestID uuid.UUID) (*types.Contest, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Contest, error)
}

type contestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContestRepo(db *gorm.DB, baseLog *logger.Logger) ContestRepo {
	repoLog := baseLog.With("repo", "ContestRepo")
	return &contestRepo{db: db, log: repoLog}
}

func (cr *contestRepo) GetByID(ctx context.Context, tx *gorm.DB, contestID uuid.UUID) (*types.Contest, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.Contest
	if err := transaction.WithContext(ctx).
		Where("id = ?", contestID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (cr *contestRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Contest, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.Contest
	if err := transaction.WithContext(ctx).
		Where("slug = ?", slug).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}
