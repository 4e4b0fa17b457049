package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/logger"
	pkgerrors "github.com/hamlaty/contest-backend/internal/pkg/errors"
	"github.com/hamlaty/contest-backend/internal/types"
)

type PageLinkRepo interface {
	GetByPageID(ctx context.Context, tx *gorm.DB, pageID string) (*types.PageLink, error)
}

type pageLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPageLinkRepo(db *gorm.DB, baseLog *logger.Logger) PageLinkRepo {
	repoLog := baseLog.With("repo", "PageLinkRepo")
	return &pageLinkRepo{db: db, log: repoLog}
}

func (pr *pageLinkRepo) GetByPageID(ctx context.Context, tx *gorm.DB, pageID string) (*types.PageLink, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	var result types.PageLink
	if err := transaction.WithContext(ctx).
		Where("page_id = ?", pageID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}
