package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a local mirror of an identity-provider account
type User struct {
	ID         uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	ExternalID string    `gorm:"size:191;uniqueIndex;not null" json:"-"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	ImageURL   string    `gorm:"type:text;not null" json:"imageUrl"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns an id when the caller did not
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
