package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Contest is owned by the surrounding CRUD application; this core only
// reads it. Rules may embed prediction defaults (team_a, team_b, max_goals,
// allow_draw) used when a task's own metadata is silent.
type Contest struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Slug      string         `gorm:"uniqueIndex;not null;column:slug" json:"slug"`
	Title     string         `gorm:"column:title" json:"title"`
	Rules     datatypes.JSON `gorm:"type:jsonb;column:rules" json:"rules"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (Contest) TableName() string { return "contest" }

func (c *Contest) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
