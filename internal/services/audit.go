package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/repos"
	"github.com/hamlaty/contest-backend/internal/types"
)

// AuditService appends one summarized row per ingested event to a bounded
// trailing log. Recording is best-effort: a failed append is logged and
// never aborts the event that triggered it.
type AuditService interface {
	Record(ctx context.Context, tx *gorm.DB, objectType, pageID, eventType string, payload map[string]any)
}

type auditService struct {
	log       *logger.Logger
	auditRepo repos.AuditEventRepo
	cap       int
}

func NewAuditService(log *logger.Logger, auditRepo repos.AuditEventRepo, cap int) AuditService {
	serviceLog := log.With("service", "AuditService")
	if cap <= 0 {
		cap = 50
	}
	return &auditService{log: serviceLog, auditRepo: auditRepo, cap: cap}
}

func (as *auditService) Record(ctx context.Context, tx *gorm.DB, objectType, pageID, eventType string, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		as.log.Warn("Audit payload marshal failed", "error", err)
		raw = []byte(`{}`)
	}
	event := &types.AuditEvent{
		ObjectType: objectType,
		PageID:     pageID,
		EventType:  eventType,
		Payload:    raw,
		ReceivedAt: time.Now().UTC(),
	}
	if err := as.auditRepo.InsertTrimmed(ctx, tx, event, as.cap); err != nil {
		as.log.Warn("Audit append failed", "object_type", objectType, "event_type", eventType, "error", err)
	}
}

// MaskUserID produces the short hash used in audit payloads so the trailing
// log never carries raw external ids.
func MaskUserID(externalUserID string) string {
	if externalUserID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(externalUserID))
	return "u:" + hex.EncodeToString(sum[:])[:10]
}
