package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MCQOption struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID    uuid.UUID `gorm:"type:uuid;not null;index" json:"task_id"`
	Label     string    `gorm:"column:label;not null" json:"label"`
	IsCorrect bool      `gorm:"column:is_correct;not null;default:false" json:"is_correct"`
	Position  int       `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MCQOption) TableName() string { return "mcq_option" }

func (o *MCQOption) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
