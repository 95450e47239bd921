package cleanup

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/config"
)

// Sweeper periodically retries due cleanup tasks
type Sweeper struct {
	service      *Service
	config       *config.CleanupConfig
	initialDelay time.Duration
	running      atomic.Bool
	mu           sync.Mutex // held for the duration of one sweep
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewSweeper creates a new sweeper instance
func NewSweeper(service *Service, cfg *config.CleanupConfig) *Sweeper {
	return &Sweeper{
		service:      service,
		config:       cfg,
		initialDelay: 5 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

// Start begins sweeping after an initial delay and then every interval
func (s *Sweeper) Start(ctx context.Context) {
	if !s.config.Enabled {
		log.Info().Msg("Cleanup sweeper is disabled")
		return
	}

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	log.Info().Dur("delay", s.initialDelay).Msg("Cleanup sweeper starting with initial delay")

	select {
	case <-time.After(s.initialDelay):
		s.TrySweep(ctx)
	case <-s.stopCh:
		return
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.TrySweep(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// TrySweep runs one sweep unless another is in progress. It returns false
// when the sweep was skipped.
func (s *Sweeper) TrySweep(ctx context.Context) bool {
	if !s.mu.TryLock() {
		log.Warn().Msg("Cleanup sweep already running, skipping this trigger")
		return false
	}
	defer s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	startTime := time.Now()
	done, err := s.service.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Cleanup sweep failed")
		return true
	}
	if done > 0 {
		log.Info().Int("done", done).Dur("duration", time.Since(startTime)).Msg("Cleanup sweep completed")
	}
	return true
}

// Stop gracefully stops the sweeper and waits for a sweep in progress
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	log.Info().Msg("Cleanup sweeper stopped")
}

// IsRunning returns true if a sweep is currently running
func (s *Sweeper) IsRunning() bool {
	return s.running.Load()
}
