package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultSweepInterval = time.Hour
	// revokedRetention keeps revoked refresh tokens around long enough to
	// recognise replays before they are purged
	revokedRetention = 7 * 24 * time.Hour
)

// TokenStore is the refresh token storage the sweeper purges
type TokenStore interface {
	DeleteExpiredTokens(ctx context.Context) error
	CleanupRevokedTokens(ctx context.Context, olderThan time.Duration) error
}

// TokenSweeper periodically deletes expired refresh tokens and revoked tokens
// past their retention
type TokenSweeper struct {
	store      TokenStore
	interval   time.Duration
	startDelay time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex
}

// NewTokenSweeper creates a new token sweeper job
func NewTokenSweeper(store TokenStore, interval time.Duration) *TokenSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &TokenSweeper{
		store:      store,
		interval:   interval,
		startDelay: 5 * time.Second,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *TokenSweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	slog.Info("token sweeper started", slog.Duration("interval", s.interval))
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish
func (s *TokenSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	slog.Info("token sweeper stopped")
}

func (s *TokenSweeper) run() {
	defer s.wg.Done()

	select {
	case <-time.After(s.startDelay):
	case <-s.stopCh:
		return
	}
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *TokenSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.RunOnce(ctx); err != nil {
		slog.Warn("token sweep failed", slog.String("error", err.Error()))
	}
}

// RunOnce runs a single sweep. Both purges are attempted even if the first
// fails.
func (s *TokenSweeper) RunOnce(ctx context.Context) error {
	return errors.Join(
		s.store.DeleteExpiredTokens(ctx),
		s.store.CleanupRevokedTokens(ctx, revokedRetention),
	)
}

// IsRunning returns whether the sweeper is running
func (s *TokenSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
