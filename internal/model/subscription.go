package model

import (
	"time"

	"github.com/google/uuid"
)

// Subscription represents a viewer following a creator
type Subscription struct {
	ViewerID  uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"viewerId"`
	CreatorID uuid.UUID `gorm:"type:varchar(36);primaryKey;index" json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`

	Viewer  *User `gorm:"foreignKey:ViewerID;constraint:OnDelete:CASCADE;" json:"-"`
	Creator *User `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE;" json:"-"`
}

// TableName returns the table name for Subscription
func (Subscription) TableName() string {
	return "subscriptions"
}
