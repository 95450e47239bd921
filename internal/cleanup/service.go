// Package cleanup removes stored objects orphaned by committed row
// mutations. Tasks are written in the same transaction as the mutation,
// attempted right away, and retried by the Sweeper until they succeed or
// run out of attempts.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/user/vidtube-go/internal/config"
	"github.com/user/vidtube-go/internal/model"
	"github.com/user/vidtube-go/internal/server"
)

// MaxBackoff caps the delay between attempts of one task
const MaxBackoff = time.Hour

// TaskStore persists cleanup tasks
type TaskStore interface {
	CreateCleanupTasks(ctx context.Context, tasks []*model.CleanupTask) error
	ListDueCleanupTasks(ctx context.Context, now time.Time, limit int) ([]*model.CleanupTask, error)
	CompleteCleanupTask(ctx context.Context, id uuid.UUID) error
	RescheduleCleanupTask(ctx context.Context, id uuid.UUID, attempts int, status model.CleanupStatus, lastErr string, next time.Time) error
}

// ObjectDeleter removes stored objects
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Service runs cleanup tasks against object storage
type Service struct {
	store       TaskStore
	objects     ObjectDeleter
	limiter     *rate.Limiter
	maxAttempts int
	batchSize   int
	now         func() time.Time
}

// NewService creates a new cleanup service
func NewService(store TaskStore, objects ObjectDeleter, cfg *config.CleanupConfig) *Service {
	return &Service{
		store:       store,
		objects:     objects,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		maxAttempts: cfg.MaxAttempts,
		batchSize:   cfg.BatchSize,
		now:         time.Now,
	}
}

// Backoff returns the delay before the next attempt after attempts failures
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts >= 12 {
		return MaxBackoff
	}
	d := time.Duration(1<<uint(attempts)) * time.Second
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// Run attempts tasks that were just committed. Failures are left for the
// sweeper; Run never returns an error to the caller's request.
func (s *Service) Run(ctx context.Context, tasks []*model.CleanupTask) {
	for _, task := range tasks {
		if err := s.process(ctx, task); err != nil {
			log.Warn().Err(err).Str("key", task.ObjectKey).Msg("Cleanup attempt failed, will retry")
		}
	}
}

// Enqueue stores delete tasks for objects orphaned outside of a row
// mutation and attempts them right away.
func (s *Service) Enqueue(ctx context.Context, videoID *uuid.UUID, keys ...string) error {
	tasks := model.NewDeleteObjectTasks(videoID, keys, s.now().UTC())
	if len(tasks) == 0 {
		return nil
	}
	if err := s.store.CreateCleanupTasks(ctx, tasks); err != nil {
		return fmt.Errorf("failed to enqueue cleanup: %w", err)
	}
	s.Run(ctx, tasks)
	return nil
}

// Sweep processes one batch of due tasks and returns how many were done
func (s *Service) Sweep(ctx context.Context) (int, error) {
	tasks, err := s.store.ListDueCleanupTasks(ctx, s.now(), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list due tasks: %w", err)
	}

	done := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		if err := s.process(ctx, task); err != nil {
			log.Warn().
				Err(err).
				Str("task", task.ID.String()).
				Int("attempts", task.Attempts).
				Msg("Cleanup task failed")
			continue
		}
		done++
	}
	return done, nil
}

// process deletes the task's object and records the outcome
func (s *Service) process(ctx context.Context, task *model.CleanupTask) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	var runErr error
	switch task.Kind {
	case model.CleanupKindDeleteObject:
		runErr = s.objects.Delete(ctx, task.ObjectKey)
	default:
		runErr = fmt.Errorf("unknown cleanup kind %q", task.Kind)
	}

	if runErr == nil {
		task.Status = model.CleanupStatusDone
		server.RecordCleanup(string(model.CleanupStatusDone))
		if err := s.store.CompleteCleanupTask(ctx, task.ID); err != nil {
			log.Error().Err(err).Str("task", task.ID.String()).Msg("Failed to mark cleanup task done")
		}
		return nil
	}

	task.Attempts++
	task.LastError = runErr.Error()
	task.Status = model.CleanupStatusPending
	task.NextAttemptAt = s.now().UTC().Add(Backoff(task.Attempts))
	if task.Attempts >= s.maxAttempts {
		task.Status = model.CleanupStatusFailed
		log.Error().
			Err(runErr).
			Str("task", task.ID.String()).
			Str("key", task.ObjectKey).
			Msg("Cleanup task exhausted its attempts")
	}
	server.RecordCleanup(string(task.Status))

	if err := s.store.RescheduleCleanupTask(ctx, task.ID, task.Attempts, task.Status, task.LastError, task.NextAttemptAt); err != nil {
		log.Error().Err(err).Str("task", task.ID.String()).Msg("Failed to reschedule cleanup task")
	}
	return runErr
}
