package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CommentEntryStatus string

const (
	CommentEntryStatusPending      CommentEntryStatus = "PENDING"
	CommentEntryStatusDisqualified CommentEntryStatus = "DISQUALIFIED"
)

// CommentEntry is one response derived from a single external comment.
// CommentID is the idempotency key: at most one row exists per platform
// comment regardless of webhook redelivery. Rows are append-only.
type CommentEntry struct {
	ID                       uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ContestID                uuid.UUID          `gorm:"type:uuid;not null;index" json:"contest_id"`
	PageID                   string             `gorm:"not null;index;column:page_id" json:"page_id"`
	PostID                   string             `gorm:"not null;index;column:post_id" json:"post_id"`
	CommentID                string             `gorm:"uniqueIndex;not null;column:comment_id" json:"comment_id"`
	ParentCommentID          *string            `gorm:"column:parent_comment_id" json:"parent_comment_id,omitempty"`
	ExternalUserID           string             `gorm:"not null;index;column:external_user_id" json:"external_user_id"`
	ExternalUserName         *string            `gorm:"column:external_user_name" json:"external_user_name,omitempty"`
	ExternalCommentCreatedAt *time.Time         `gorm:"column:external_comment_created_at" json:"external_comment_created_at,omitempty"`
	MessageText              *string            `gorm:"column:message_text" json:"message_text,omitempty"`
	AnswerText               *string            `gorm:"column:answer_text" json:"answer_text,omitempty"`
	TaskID                   *uuid.UUID         `gorm:"type:uuid;index" json:"task_id,omitempty"`
	MCQOptionID              *uuid.UUID         `gorm:"type:uuid;column:mcq_option_id" json:"mcq_option_id,omitempty"`
	IsCorrect                *bool              `gorm:"column:is_correct" json:"is_correct,omitempty"`
	AttachmentKey            *string            `gorm:"column:attachment_key" json:"attachment_key,omitempty"`
	AttachmentURL            *string            `gorm:"column:attachment_url" json:"attachment_url,omitempty"`
	AttachmentETag           *string            `gorm:"column:attachment_etag" json:"attachment_etag,omitempty"`
	AttachmentSize           *int64             `gorm:"column:attachment_size" json:"attachment_size,omitempty"`
	AttachmentHash           *string            `gorm:"column:attachment_hash" json:"attachment_hash,omitempty"`
	Status                   CommentEntryStatus `gorm:"column:status;not null;default:'PENDING'" json:"status"`
	RawEvent                 datatypes.JSON     `gorm:"type:jsonb;column:raw_event" json:"raw_event"`
	CreatedAt                time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt                time.Time          `gorm:"not null" json:"updated_at"`
}

func (CommentEntry) TableName() string { return "comment_entry" }

func (c *CommentEntry) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
