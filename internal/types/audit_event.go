package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEvent is one row of the bounded trailing ingestion log. The table is
// capped by receipt time: on every insert, rows older than the newest N are
// evicted.
type AuditEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ObjectType string         `gorm:"column:object_type;not null" json:"object_type"`
	PageID     string         `gorm:"column:page_id;index" json:"page_id"`
	EventType  string         `gorm:"column:event_type;not null" json:"event_type"`
	Payload    datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	ReceivedAt time.Time      `gorm:"column:received_at;not null;index" json:"received_at"`
}

func (AuditEvent) TableName() string { return "audit_event" }

func (a *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
