package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CommentInputMode string

const (
	CommentInputModeMCQ         CommentInputMode = "MCQ"
	CommentInputModeText        CommentInputMode = "TEXT"
	CommentInputModeMediaOnly   CommentInputMode = "MEDIA_ONLY"
	CommentInputModeTextOrMedia CommentInputMode = "TEXT_OR_MEDIA"
)

// CommentSourceConfig declares one contest post as a comment-answer source.
// Owned by the CRUD application; read-only here. AllowedOptions is a JSON
// array of labels used when no Task is linked.
type CommentSourceConfig struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ContestID            uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:ux_source_contest_post,priority:1" json:"contest_id"`
	Contest              *Contest         `gorm:"constraint:OnDelete:CASCADE;foreignKey:ContestID;references:ID" json:"contest,omitempty"`
	PageID               string           `gorm:"not null;index;column:page_id" json:"page_id"`
	PostID               string           `gorm:"not null;uniqueIndex:ux_source_contest_post,priority:2;column:post_id" json:"post_id"`
	IsActive             bool             `gorm:"column:is_active;not null;default:true" json:"is_active"`
	InputMode            CommentInputMode `gorm:"column:input_mode;not null" json:"input_mode"`
	TaskID               *uuid.UUID       `gorm:"type:uuid;index" json:"task_id,omitempty"`
	Task                 *Task            `gorm:"constraint:OnDelete:SET NULL;foreignKey:TaskID;references:ID" json:"task,omitempty"`
	AllowedOptions       datatypes.JSON   `gorm:"type:jsonb;column:allowed_options" json:"allowed_options"`
	AllowMultipleAnswers bool             `gorm:"column:allow_multiple_answers;not null;default:false" json:"allow_multiple_answers"`
	MaxAnswersPerUser    int              `gorm:"column:max_answers_per_user;not null;default:1" json:"max_answers_per_user"`
	AllowReplies         bool             `gorm:"column:allow_replies;not null;default:false" json:"allow_replies"`
	AllowMediaOnly       bool             `gorm:"column:allow_media_only;not null;default:false" json:"allow_media_only"`
	RequireText          bool             `gorm:"column:require_text;not null;default:false" json:"require_text"`
	CreatedAt            time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"not null" json:"updated_at"`
}

func (CommentSourceConfig) TableName() string { return "comment_source_config" }

func (c *CommentSourceConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
