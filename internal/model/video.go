package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MuxStatus is the processing status of a video on the media host
type MuxStatus string

const (
	MuxStatusWaiting      MuxStatus = "waiting"
	MuxStatusPreparing    MuxStatus = "preparing"
	MuxStatusAssetCreated MuxStatus = "asset_created"
	MuxStatusReady        MuxStatus = "ready"
	MuxStatusErrored      MuxStatus = "errored"
	MuxStatusCancelled    MuxStatus = "cancelled"
	MuxStatusTimedOut     MuxStatus = "timed_out"
)

var knownMuxStatuses = map[MuxStatus]struct{}{
	MuxStatusWaiting:      {},
	MuxStatusPreparing:    {},
	MuxStatusAssetCreated: {},
	MuxStatusReady:        {},
	MuxStatusErrored:      {},
	MuxStatusCancelled:    {},
	MuxStatusTimedOut:     {},
}

// ParseMuxStatus maps a status reported by the media host onto the local enum.
// Values the enum does not define become MuxStatusCancelled.
func ParseMuxStatus(s string) MuxStatus {
	status := MuxStatus(s)
	if _, ok := knownMuxStatuses[status]; ok {
		return status
	}
	return MuxStatusCancelled
}

// Visibility controls whether a video is listed publicly
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is one of the defined visibilities
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Video represents an uploaded video and its media-host processing state
type Video struct {
	ID             uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title          string     `gorm:"size:255;not null" json:"title"`
	Description    *string    `gorm:"type:text" json:"description"`
	ThumbnailKey   *string    `gorm:"size:512" json:"thumbnailKey"`
	ThumbnailURL   *string    `gorm:"type:text" json:"thumbnailUrl"`
	PreviewKey     *string    `gorm:"size:512" json:"previewKey"`
	PreviewURL     *string    `gorm:"type:text" json:"previewUrl"`
	Duration       int64      `gorm:"not null;default:0" json:"duration"` // milliseconds
	CategoryID     *uuid.UUID `gorm:"type:varchar(36);index" json:"categoryId"`
	UserID         uuid.UUID  `gorm:"type:varchar(36);not null;index" json:"userId"`
	MuxStatus      MuxStatus  `gorm:"size:32;not null;default:'waiting'" json:"muxStatus"`
	Visibility     Visibility `gorm:"size:16;not null;default:'public';index" json:"visibility"`
	MuxAssetID     *string    `gorm:"size:191;uniqueIndex" json:"muxAssetId"`
	MuxUploadID    *string    `gorm:"size:191;uniqueIndex" json:"muxUploadId"`
	MuxPlaybackID  *string    `gorm:"size:191;uniqueIndex" json:"muxPlaybackId"`
	MuxTrackID     *string    `gorm:"size:191;uniqueIndex" json:"muxTrackId"`
	MuxTrackStatus *string    `gorm:"size:32" json:"muxTrackStatus"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"index" json:"updatedAt"`

	User     *User     `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Category *Category `gorm:"constraint:OnDelete:SET NULL;" json:"-"`
}

// TableName returns the table name for Video
func (Video) TableName() string {
	return "videos"
}

// BeforeCreate assigns an id when the caller did not
func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// StoredObjectKeys returns the object-storage keys the video references
func (v *Video) StoredObjectKeys() []string {
	var keys []string
	if v.ThumbnailKey != nil && *v.ThumbnailKey != "" {
		keys = append(keys, *v.ThumbnailKey)
	}
	if v.PreviewKey != nil && *v.PreviewKey != "" {
		keys = append(keys, *v.PreviewKey)
	}
	return keys
}

// VideoView records that a user has watched a video. One row per (user, video).
type VideoView struct {
	UserID    uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"userId"`
	VideoID   uuid.UUID `gorm:"type:varchar(36);primaryKey;index" json:"videoId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	User  *User  `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Video *Video `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// TableName returns the table name for VideoView
func (VideoView) TableName() string {
	return "video_views"
}
