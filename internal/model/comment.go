package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a top-level comment on a video or a reply to one.
// Replies always point at a top-level comment; the tree is one level deep.
type Comment struct {
	ID        uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	UserID    uuid.UUID  `gorm:"type:varchar(36);not null;index" json:"userId"`
	VideoID   uuid.UUID  `gorm:"type:varchar(36);not null;index" json:"videoId"`
	ParentID  *uuid.UUID `gorm:"type:varchar(36);index" json:"parentId"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `gorm:"index" json:"updatedAt"`

	User    *User     `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Video   *Video    `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Replies []Comment `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE;" json:"-"`
}

// TableName returns the table name for Comment
func (Comment) TableName() string {
	return "comments"
}

// BeforeCreate assigns an id when the caller did not
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsReply reports whether the comment answers another comment
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}
