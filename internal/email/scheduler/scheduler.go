package scheduler

import (
	"context"
	"time"

	"mailmirror-backend/internal/email/usecase"
	"mailmirror-backend/pkg/logger"
)

// SyncScheduler periodically runs the full sync for every user that is due
type SyncScheduler struct {
	emailUsecase usecase.EmailUsecase
	interval     time.Duration
	enabled      bool
	stopChan     chan struct{}
}

// NewSyncScheduler creates a new scheduler
func NewSyncScheduler(emailUsecase usecase.EmailUsecase, interval time.Duration, enabled bool) *SyncScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SyncScheduler{
		emailUsecase: emailUsecase,
		interval:     interval,
		enabled:      enabled,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *SyncScheduler) Start() {
	if !s.enabled {
		logger.Info("[SyncScheduler] Sync disabled, scheduler not started")
		return
	}

	logger.Info("[SyncScheduler] Starting mailbox sync scheduler (interval: %v)", s.interval)

	go func() {
		// Run immediately on start
		s.runOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopChan:
				logger.Info("[SyncScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop() {
	close(s.stopChan)
}

func (s *SyncScheduler) runOnce() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[SyncScheduler] Panic in scheduled run: %v", r)
		}
	}()
	summary := s.emailUsecase.RunScheduledSyncForAllUsers(context.Background())
	logger.Info("[SyncScheduler] Run finished: %d users, %d succeeded, %d failed",
		summary.TotalUsers, summary.SuccessCount, summary.ErrorCount)
}
