package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/user/vidtube-go/internal/model"
)

// CreateCleanupTasks stores tasks outside of any row mutation, for objects
// orphaned by a failed external call.
func (s *GormStore) CreateCleanupTasks(ctx context.Context, tasks []*model.CleanupTask) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&tasks).Error; err != nil {
		return errors.Wrap(err, "failed to create cleanup tasks")
	}
	return nil
}

// ListDueCleanupTasks returns pending tasks whose next attempt is due
func (s *GormStore) ListDueCleanupTasks(ctx context.Context, now time.Time, limit int) ([]*model.CleanupTask, error) {
	var tasks []*model.CleanupTask
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", string(model.CleanupStatusPending), now.UTC()).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cleanup tasks")
	}
	return tasks, nil
}

// CompleteCleanupTask marks a task as done
func (s *GormStore) CompleteCleanupTask(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&model.CleanupTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": string(model.CleanupStatusDone), "last_error": ""}).Error
	if err != nil {
		return errors.Wrap(err, "failed to complete cleanup task")
	}
	return nil
}

// RescheduleCleanupTask records a failed attempt
func (s *GormStore) RescheduleCleanupTask(ctx context.Context, id uuid.UUID, attempts int, status model.CleanupStatus, lastErr string, next time.Time) error {
	if len(lastErr) > 500 {
		lastErr = lastErr[:500]
	}
	err := s.db.WithContext(ctx).Model(&model.CleanupTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"status":          string(status),
			"last_error":      lastErr,
			"next_attempt_at": next.UTC(),
		}).Error
	if err != nil {
		return errors.Wrap(err, "failed to reschedule cleanup task")
	}
	return nil
}
