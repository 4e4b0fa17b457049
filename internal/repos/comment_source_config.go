package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/logger"
	pkgerrors "github.com/hamlaty/contest-backend/internal/pkg/errors"
	"github.com/hamlaty/contest-backend/internal/types"
)

type CommentSourceConfigRepo interface {
	GetActiveByPagePost(ctx context.Context, tx *gorm.DB, pageID, postID string) (*types.CommentSourceConfig, error)
}

type commentSourceConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommentSourceConfigRepo(db *gorm.DB, baseLog *logger.Logger) CommentSourceConfigRepo {
	repoLog := baseLog.With("repo", "CommentSourceConfigRepo")
	return &commentSourceConfigRepo{db: db, log: repoLog}
}

func (sr *commentSourceConfigRepo) GetActiveByPagePost(ctx context.Context, tx *gorm.DB, pageID, postID string) (*types.CommentSourceConfig, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var result types.CommentSourceConfig
	if err := transaction.WithContext(ctx).
		Where("page_id = ? AND post_id = ? AND is_active = ?", pageID, postID, true).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}
