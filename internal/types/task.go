package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskKind string

const (
	TaskKindAnswerText  TaskKind = "ANSWER_TEXT"
	TaskKindMCQ         TaskKind = "MCQ"
	TaskKindPrediction  TaskKind = "PREDICTION"
	TaskKindScanQR      TaskKind = "SCAN_QR"
	TaskKindUploadImage TaskKind = "UPLOAD_IMAGE"
	TaskKindUploadVideo TaskKind = "UPLOAD_VIDEO"
	TaskKindCheckin     TaskKind = "CHECKIN"
	TaskKindReferral    TaskKind = "REFERRAL"
)

func ParseTaskKind(raw string) (TaskKind, bool) {
	switch TaskKind(raw) {
	case TaskKindAnswerText, TaskKindMCQ, TaskKindPrediction, TaskKindScanQR,
		TaskKindUploadImage, TaskKindUploadVideo, TaskKindCheckin, TaskKindReferral:
		return TaskKind(raw), true
	default:
		return "", false
	}
}

// Task is read-only to this core. Metadata carries kind-specific settings;
// for PREDICTION tasks: team_a, team_b, max_goals, allow_draw,
// requires_scores.
type Task struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ContestID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"contest_id"`
	Contest       *Contest       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ContestID;references:ID" json:"contest,omitempty"`
	RoundID       *uuid.UUID     `gorm:"type:uuid;index" json:"round_id,omitempty"`
	Kind          TaskKind       `gorm:"column:kind;not null;index" json:"kind"`
	Title         string         `gorm:"column:title;not null" json:"title"`
	Description   string         `gorm:"column:description" json:"description"`
	Metadata      datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	Position      *int           `gorm:"column:position" json:"position,omitempty"`
	RoundPosition *int           `gorm:"column:round_position" json:"round_position,omitempty"`
	Options       []MCQOption    `gorm:"foreignKey:TaskID;references:ID" json:"options,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (Task) TableName() string { return "task" }

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
