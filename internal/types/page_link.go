package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PageLink binds a platform page to a contest and carries the page access
// token sealed with the token cipher. Nothing in this core ever stores the
// plaintext token.
type PageLink struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PageID            string    `gorm:"uniqueIndex;not null;column:page_id" json:"page_id"`
	ContestID         uuid.UUID `gorm:"type:uuid;not null;index" json:"contest_id"`
	Contest           *Contest  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ContestID;references:ID" json:"contest,omitempty"`
	SealedAccessToken string    `gorm:"column:sealed_access_token" json:"-"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

func (PageLink) TableName() string { return "page_link" }

func (p *PageLink) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
