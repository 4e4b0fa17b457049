package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/types"
)

type AuditEventRepo interface {
	// InsertTrimmed appends one event and evicts everything older than the
	// newest cap rows in the same call.
	InsertTrimmed(ctx context.Context, tx *gorm.DB, event *types.AuditEvent, cap int) error
	ListNewest(ctx context.Context, tx *gorm.DB, limit int) ([]*types.AuditEvent, error)
}

type auditEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditEventRepo(db *gorm.DB, baseLog *logger.Logger) AuditEventRepo {
	repoLog := baseLog.With("repo", "AuditEventRepo")
	return &auditEventRepo{db: db, log: repoLog}
}

func (ar *auditEventRepo) InsertTrimmed(ctx context.Context, tx *gorm.DB, event *types.AuditEvent, cap int) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
		return err
	}
	if cap <= 0 {
		return nil
	}
	// Keyset eviction on the received_at index; one pass, no offset scan.
	return transaction.WithContext(ctx).Exec(
		`DELETE FROM audit_event WHERE id NOT IN (
			SELECT id FROM audit_event ORDER BY received_at DESC, id DESC LIMIT ?
		)`, cap).Error
}

func (ar *auditEventRepo) ListNewest(ctx context.Context, tx *gorm.DB, limit int) ([]*types.AuditEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	var results []*types.AuditEvent
	if err := transaction.WithContext(ctx).
		Order("received_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
