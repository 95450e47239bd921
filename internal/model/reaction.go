package model

import (
	"time"

	"github.com/google/uuid"
)

// ReactionType is the kind of a stored reaction
type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionDislike ReactionType = "dislike"
)

// Valid reports whether r is one of the two stored reaction kinds
func (r ReactionType) Valid() bool {
	return r == ReactionLike || r == ReactionDislike
}

// NextReaction returns the reaction that results from pressing pressed while
// current is stored. A nil current means no reaction; a nil result means the
// row is removed.
//
//	none    + like    -> like     (insert)
//	like    + like    -> none     (delete)
//	dislike + like    -> like     (update)
//
// and symmetrically for dislike.
func NextReaction(current *ReactionType, pressed ReactionType) *ReactionType {
	if current != nil && *current == pressed {
		return nil
	}
	next := pressed
	return &next
}

// VideoReaction is a user's like or dislike of a video
type VideoReaction struct {
	UserID    uuid.UUID    `gorm:"type:varchar(36);primaryKey" json:"userId"`
	VideoID   uuid.UUID    `gorm:"type:varchar(36);primaryKey;index" json:"videoId"`
	Type      ReactionType `gorm:"size:16;not null" json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`

	User  *User  `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Video *Video `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// TableName returns the table name for VideoReaction
func (VideoReaction) TableName() string {
	return "video_reactions"
}

// CommentReaction is a user's like or dislike of a comment
type CommentReaction struct {
	UserID    uuid.UUID    `gorm:"type:varchar(36);primaryKey" json:"userId"`
	CommentID uuid.UUID    `gorm:"type:varchar(36);primaryKey;index" json:"commentId"`
	Type      ReactionType `gorm:"size:16;not null" json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`

	User    *User    `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Comment *Comment `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// TableName returns the table name for CommentReaction
func (CommentReaction) TableName() string {
	return "comment_reactions"
}
