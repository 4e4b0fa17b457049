package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ThreadStatus string

const (
	ThreadStatusActive    ThreadStatus = "ACTIVE"
	ThreadStatusCompleted ThreadStatus = "COMPLETED"
)

// Thread is one user's persisted walk through a contest's ordered tasks on
// the messenger channel. CursorIndex is a positional offset into the
// deterministic task ordering; StateJSON holds kind-specific sub-flow state
// tagged by task kind.
type Thread struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ContestID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_thread_scope,priority:1" json:"contest_id"`
	PageID         string         `gorm:"not null;uniqueIndex:ux_thread_scope,priority:2;column:page_id" json:"page_id"`
	ExternalUserID string         `gorm:"not null;uniqueIndex:ux_thread_scope,priority:3;column:external_user_id" json:"external_user_id"`
	CursorIndex    int            `gorm:"column:cursor_index;not null;default:0" json:"cursor_index"`
	CurrentTaskID  *uuid.UUID     `gorm:"type:uuid" json:"current_task_id,omitempty"`
	StateJSON      datatypes.JSON `gorm:"type:jsonb;column:state_json" json:"state_json"`
	Status         ThreadStatus   `gorm:"column:status;not null;default:'ACTIVE'" json:"status"`
	UserID         *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (Thread) TableName() string { return "thread" }

func (t *Thread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
