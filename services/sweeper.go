package services

import (
	"context"
	"sync"
	"time"

	"campusquest/logger"
	"campusquest/models"
)

// ResetSweeper clears stale challenge completions in the background so
// rows left untouched since an earlier day read as reset even to queries
// that do not go through the progression service.
type ResetSweeper struct {
	prog     *Progression
	interval time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewResetSweeper(prog *Progression, interval time.Duration, log *logger.Logger) *ResetSweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &ResetSweeper{prog: prog, interval: interval, log: log.With("component", "reset_sweeper")}
}

// Start launches the sweep loop. It is a no-op if already running or if
// the interval is not positive.
func (s *ResetSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.Sweep(ctx); err != nil {
					s.log.Error("sweep failed", "error", err)
				} else if n > 0 {
					s.log.Info("stale challenges reset", "count", n)
				}
			}
		}
	}(s.done)
	s.log.Info("reset sweeper started", "interval", s.interval.String())
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *ResetSweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("reset sweeper stopped")
}

// Sweep normalizes every completed row that is stale as of now and returns
// how many rows it reset.
func (s *ResetSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.prog.clock.Now()
	loc := s.prog.clock.Location()

	var rows []models.ChallengeProgress
	if err := s.prog.db.WithContext(ctx).
		Where("completed = ?", true).
		Find(&rows).Error; err != nil {
		return 0, mapStoreError("scan completed challenges", err)
	}

	reset := 0
	for i := range rows {
		if ctx.Err() != nil {
			return reset, ctx.Err()
		}
		if ClassifyChallenge(&rows[i], now, loc) != ChallengeCompletedStale {
			continue
		}
		_, changed, err := s.prog.normalizeUnderLock(ctx, rows[i].ChallengeID, rows[i].UserID)
		if err != nil {
			return reset, err
		}
		if changed {
			reset++
		}
	}
	return reset, nil
}
