package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CleanupStatus defines the status of a cleanup task
type CleanupStatus string

const (
	CleanupStatusPending CleanupStatus = "PENDING"
	CleanupStatusDone    CleanupStatus = "DONE"
	CleanupStatusFailed  CleanupStatus = "FAILED"
)

// CleanupKind defines what a cleanup task does
type CleanupKind string

const (
	CleanupKindDeleteObject CleanupKind = "delete_object"
)

// CleanupTask records an external side effect that must happen after a row
// mutation committed, such as removing an orphaned thumbnail from object
// storage. VideoID is informational only and carries no foreign key so the
// task outlives the video it came from.
type CleanupTask struct {
	ID            uuid.UUID     `gorm:"type:varchar(36);primaryKey"`
	Kind          CleanupKind   `gorm:"size:32;not null"`
	ObjectKey     string        `gorm:"size:512;not null"`
	VideoID       *uuid.UUID    `gorm:"type:varchar(36);index"`
	Status        CleanupStatus `gorm:"size:20;not null;index"`
	Attempts      int           `gorm:"not null;default:0"`
	LastError     string        `gorm:"size:500"`
	NextAttemptAt time.Time     `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for CleanupTask
func (CleanupTask) TableName() string {
	return "cleanup_tasks"
}

// BeforeCreate assigns an id when the caller did not
func (t *CleanupTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// NewDeleteObjectTasks builds pending delete tasks for the given object keys
func NewDeleteObjectTasks(videoID *uuid.UUID, keys []string, now time.Time) []*CleanupTask {
	tasks := make([]*CleanupTask, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		tasks = append(tasks, &CleanupTask{
			Kind:          CleanupKindDeleteObject,
			ObjectKey:     key,
			VideoID:       videoID,
			Status:        CleanupStatusPending,
			NextAttemptAt: now,
		})
	}
	return tasks
}

// AllModels lists every persisted model in migration order
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Video{},
		&VideoView{},
		&VideoReaction{},
		&Subscription{},
		&Comment{},
		&CommentReaction{},
		&CleanupTask{},
	}
}
