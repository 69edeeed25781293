package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionSweeper periodically deletes expired sessions and reset tokens
type SessionSweeper struct {
	auth     *AuthService
	resets   *ResetService
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSessionSweeper creates a sweeper. resets may be nil.
func NewSessionSweeper(auth *AuthService, resets *ResetService, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionSweeper{
		auth:     auth,
		resets:   resets,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop in the background until Stop is called
func (s *SessionSweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopCh:
				return
			}
		}
	}()

	s.logger.Info("Session sweeper started", "interval", s.interval)
}

// Stop ends the loop and waits for an in-progress sweep to finish
func (s *SessionSweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Session sweeper stopped")
}

func (s *SessionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.auth.CleanExpiredSessions(ctx)
	if s.resets != nil {
		s.resets.CleanExpiredTokens(ctx)
	}
}
