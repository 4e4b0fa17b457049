package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EntryStatus string

const (
	EntryStatusSubmitted EntryStatus = "SUBMITTED"
)

type PredictionWinner string

const (
	PredictionWinnerTeamA PredictionWinner = "TEAM_A"
	PredictionWinnerTeamB PredictionWinner = "TEAM_B"
	PredictionWinnerDraw  PredictionWinner = "DRAW"
)

// Entry is one response to one task via the messenger channel. The unique
// (task_id, external_user_id) index is the idempotency key for this channel.
type Entry struct {
	ID                   uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ContestID            uuid.UUID         `gorm:"type:uuid;not null;index" json:"contest_id"`
	TaskID               uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:ux_entry_task_user,priority:1" json:"task_id"`
	RoundID              *uuid.UUID        `gorm:"type:uuid;index" json:"round_id,omitempty"`
	PageID               string            `gorm:"not null;index;column:page_id" json:"page_id"`
	ExternalUserID       string            `gorm:"not null;uniqueIndex:ux_entry_task_user,priority:2;column:external_user_id" json:"external_user_id"`
	AnswerText           *string           `gorm:"column:answer_text" json:"answer_text,omitempty"`
	MCQOptionID          *uuid.UUID        `gorm:"type:uuid;column:mcq_option_id" json:"mcq_option_id,omitempty"`
	IsCorrect            *bool             `gorm:"column:is_correct" json:"is_correct,omitempty"`
	PredictionWinner     *PredictionWinner `gorm:"column:prediction_winner" json:"prediction_winner,omitempty"`
	PredictionTeamAScore *int              `gorm:"column:prediction_team_a_score" json:"prediction_team_a_score,omitempty"`
	PredictionTeamBScore *int              `gorm:"column:prediction_team_b_score" json:"prediction_team_b_score,omitempty"`
	Status               EntryStatus       `gorm:"column:status;not null;default:'SUBMITTED'" json:"status"`
	RawEvent             datatypes.JSON    `gorm:"type:jsonb;column:raw_event" json:"raw_event"`
	UserID               *uuid.UUID        `gorm:"type:uuid;index" json:"user_id,omitempty"`
	CreatedAt            time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"not null" json:"updated_at"`
}

func (Entry) TableName() string { return "entry" }

func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
