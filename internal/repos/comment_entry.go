package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/types"
)

type CommentEntryRepo interface {
	ExistsByCommentID(ctx context.Context, tx *gorm.DB, commentID string) (bool, error)
	// InsertIgnore persists the comment entry unless the comment id was
	// already recorded; it reports whether a row was written.
	InsertIgnore(ctx context.Context, tx *gorm.DB, entry *types.CommentEntry) (bool, error)
	CountByContestPostUser(ctx context.Context, tx *gorm.DB, contestID uuid.UUID, postID, externalUserID string) (int64, error)
}

type commentEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommentEntryRepo(db *gorm.DB, baseLog *logger.Logger) CommentEntryRepo {
	repoLog := baseLog.With("repo", "CommentEntryRepo")
	return &commentEntryRepo{db: db, log: repoLog}
}

func (cr *commentEntryRepo) ExistsByCommentID(ctx context.Context, tx *gorm.DB, commentID string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.CommentEntry{}).
		Where("comment_id = ?", commentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (cr *commentEntryRepo) InsertIgnore(ctx context.Context, tx *gorm.DB, entry *types.CommentEntry) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (cr *commentEntryRepo) CountByContestPostUser(ctx context.Context, tx *gorm.DB, contestID uuid.UUID, postID, externalUserID string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.CommentEntry{}).
		Where("contest_id = ? AND post_id = ? AND external_user_id = ?", contestID, postID, externalUserID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
