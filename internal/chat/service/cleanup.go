package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vtype/vtype/internal/chat/metrics"
	"github.com/vtype/vtype/internal/chat/store"
	"github.com/vtype/vtype/pkg/jwtx"
)

// KVStats is a snapshot of per-category key counts in the KV store.
type KVStats struct {
	AccessTokenCount  int `json:"access_token_count"`
	RefreshTokenCount int `json:"refresh_token_count"`
	SessionCount      int `json:"session_count"`
	UserStatusCount   int `json:"user_status_count"`
	TotalKeys         int `json:"total_keys"`
}

// CleanupReport is what a manual cleanup run returns.
type CleanupReport struct {
	AccessTokensCleaned  int     `json:"accessTokensCleaned"`
	RefreshTokensCleaned int     `json:"refreshTokensCleaned"`
	SessionsCleaned      int     `json:"sessionsCleaned"`
	BeforeStats          KVStats `json:"beforeStats"`
	AfterStats           KVStats `json:"afterStats"`
}

// CleanupService sweeps the KV store for leaked token and session records.
// Native per-key TTLs are the primary expiry mechanism; these sweeps are a
// secondary pass that re-verifies stored tokens and removes entries the
// backend never expired. Three recurring jobs run on independent intervals,
// and RunAll serves the manual admin trigger.
type CleanupService struct {
	KV              store.KV
	AccessVerifier  jwtx.Verifier
	RefreshVerifier jwtx.Verifier
	Logger          *slog.Logger

	AccessInterval  time.Duration
	RefreshInterval time.Duration
	SessionInterval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCleanupService creates a cleanup service with the given sweep intervals.
// Non-positive intervals fall back to hourly access, daily refresh and
// 6-hourly session sweeps.
func NewCleanupService(
	kv store.KV,
	accessVerifier, refreshVerifier jwtx.Verifier,
	logger *slog.Logger,
	accessInterval, refreshInterval, sessionInterval time.Duration,
) *CleanupService {
	if accessInterval <= 0 {
		accessInterval = time.Hour
	}
	if refreshInterval <= 0 {
		refreshInterval = 24 * time.Hour
	}
	if sessionInterval <= 0 {
		sessionInterval = 6 * time.Hour
	}

	return &CleanupService{
		KV:              kv,
		AccessVerifier:  accessVerifier,
		RefreshVerifier: refreshVerifier,
		Logger:          logger,
		AccessInterval:  accessInterval,
		RefreshInterval: refreshInterval,
		SessionInterval: sessionInterval,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Start begins the background worker that runs the recurring sweeps.
// Non-blocking; call Stop() to gracefully shut the worker down.
func (s *CleanupService) Start() {
	go s.run()
	s.Logger.Info("cleanup service started",
		"access_interval", s.AccessInterval,
		"refresh_interval", s.RefreshInterval,
		"session_interval", s.SessionInterval,
	)
}

// Stop gracefully shuts down the background worker. Blocks until any
// in-progress sweep has finished.
func (s *CleanupService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("cleanup service stopped")
}

func (s *CleanupService) run() {
	defer close(s.doneCh)

	accessTicker := time.NewTicker(s.AccessInterval)
	defer accessTicker.Stop()
	refreshTicker := time.NewTicker(s.RefreshInterval)
	defer refreshTicker.Stop()
	sessionTicker := time.NewTicker(s.SessionInterval)
	defer sessionTicker.Stop()

	for {
		select {
		case <-accessTicker.C:
			s.sweep(context.Background(), s.SweepAccessTokens, "access token")
		case <-refreshTicker.C:
			s.sweep(context.Background(), s.SweepRefreshTokens, "refresh token")
		case <-sessionTicker.C:
			s.sweep(context.Background(), s.SweepSessions, "session")
		case <-s.stopCh:
			return
		}
	}
}

func (s *CleanupService) sweep(ctx context.Context, fn func(context.Context) (int, error), name string) {
	n, err := fn(ctx)
	if err != nil {
		s.Logger.Error("cleanup sweep failed", "sweep", name, "error", err)
		return
	}
	s.Logger.Info("cleanup sweep completed", "sweep", name, "removed", n)
}

// SweepAccessTokens re-verifies every stored access token and removes those
// that fail verification as expired, plus keys holding empty values.
// Per-key failures are logged and skipped.
func (s *CleanupService) SweepAccessTokens(ctx context.Context) (int, error) {
	n, err := s.sweepTokens(ctx, "access_token:*", s.AccessVerifier)
	if err == nil {
		metrics.CleanupRemovedTotal.WithLabelValues("access_token").Add(float64(n))
	}
	return n, err
}

// SweepRefreshTokens does the same for stored refresh tokens.
func (s *CleanupService) SweepRefreshTokens(ctx context.Context) (int, error) {
	n, err := s.sweepTokens(ctx, "refresh_token:*", s.RefreshVerifier)
	if err == nil {
		metrics.CleanupRemovedTotal.WithLabelValues("refresh_token").Add(float64(n))
	}
	return n, err
}

func (s *CleanupService) sweepTokens(ctx context.Context, pattern string, verifier jwtx.Verifier) (int, error) {
	keys, err := s.KV.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, key := range keys {
		token, err := s.KV.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // expired between scan and read
			}
			s.Logger.Warn("cleanup: failed to read key", "key", key, "error", err)
			continue
		}

		if token == "" {
			if err := s.KV.Del(ctx, key); err != nil {
				s.Logger.Warn("cleanup: failed to delete key", "key", key, "error", err)
				continue
			}
			cleaned++
			continue
		}

		// Only an expiry failure justifies deletion; anything else (bad
		// signature, malformed) is left for an operator to look at.
		if _, err := verifier.Verify(token); errors.Is(err, jwtx.ErrExpired) {
			if err := s.KV.Del(ctx, key); err != nil {
				s.Logger.Warn("cleanup: failed to delete key", "key", key, "error", err)
				continue
			}
			cleaned++
		}
	}
	return cleaned, nil
}

// SweepSessions removes session and user status entries that carry no TTL at
// all, treating them as leaked state.
func (s *CleanupService) SweepSessions(ctx context.Context) (int, error) {
	cleaned := 0
	for _, pattern := range []string{"session:*", "user_status:*"} {
		keys, err := s.KV.Keys(ctx, pattern)
		if err != nil {
			return cleaned, err
		}
		for _, key := range keys {
			ttl, err := s.KV.TTL(ctx, key)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				s.Logger.Warn("cleanup: failed to read ttl", "key", key, "error", err)
				continue
			}
			if ttl != store.NoTTL {
				continue
			}
			if err := s.KV.Del(ctx, key); err != nil {
				s.Logger.Warn("cleanup: failed to delete key", "key", key, "error", err)
				continue
			}
			cleaned++
		}
	}
	metrics.CleanupRemovedTotal.WithLabelValues("session").Add(float64(cleaned))
	return cleaned, nil
}

// Stats counts keys per category.
func (s *CleanupService) Stats(ctx context.Context) (KVStats, error) {
	var stats KVStats
	counts := []struct {
		pattern string
		dest    *int
	}{
		{"access_token:*", &stats.AccessTokenCount},
		{"refresh_token:*", &stats.RefreshTokenCount},
		{"session:*", &stats.SessionCount},
		{"user_status:*", &stats.UserStatusCount},
	}
	for _, c := range counts {
		keys, err := s.KV.Keys(ctx, c.pattern)
		if err != nil {
			return KVStats{}, err
		}
		*c.dest = len(keys)
		stats.TotalKeys += len(keys)
	}
	return stats, nil
}

// RunAll runs every sweep concurrently and reports what changed. Individual
// sweep errors are logged, not propagated; the report reflects whatever work
// completed.
func (s *CleanupService) RunAll(ctx context.Context) (CleanupReport, error) {
	before, err := s.Stats(ctx)
	if err != nil {
		return CleanupReport{}, err
	}

	var (
		report CleanupReport
		wg     sync.WaitGroup
	)
	report.BeforeStats = before

	wg.Add(3)
	go func() {
		defer wg.Done()
		n, err := s.SweepAccessTokens(ctx)
		if err != nil {
			s.Logger.Error("cleanup sweep failed", "sweep", "access token", "error", err)
		}
		report.AccessTokensCleaned = n
	}()
	go func() {
		defer wg.Done()
		n, err := s.SweepRefreshTokens(ctx)
		if err != nil {
			s.Logger.Error("cleanup sweep failed", "sweep", "refresh token", "error", err)
		}
		report.RefreshTokensCleaned = n
	}()
	go func() {
		defer wg.Done()
		n, err := s.SweepSessions(ctx)
		if err != nil {
			s.Logger.Error("cleanup sweep failed", "sweep", "session", "error", err)
		}
		report.SessionsCleaned = n
	}()
	wg.Wait()

	after, err := s.Stats(ctx)
	if err != nil {
		return CleanupReport{}, err
	}
	report.AfterStats = after

	return report, nil
}
