package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/vtype/vtype/internal/chat/metrics"
	"github.com/vtype/vtype/internal/chat/store/drivers/memory"
	"github.com/vtype/vtype/pkg/jwtx"
)

func newCleanupService(kv *memory.KV) *CleanupService {
	return NewCleanupService(
		kv,
		jwtx.Verifier{Secret: testAccessSecret, Kind: jwtx.KindAccess, Issuer: testIssuer},
		jwtx.Verifier{Secret: testRefreshSecret, Kind: jwtx.KindRefresh, Issuer: testIssuer},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		0, 0, 0,
	)
}

func signAccessAt(t *testing.T, issuedAt time.Time) string {
	t.Helper()
	signer := jwtx.Signer{
		Secret: testAccessSecret,
		Kind:   jwtx.KindAccess,
		Issuer: testIssuer,
		TTL:    time.Minute,
	}
	raw, err := signer.Sign("user-1", "user", issuedAt)
	require.NoError(t, err)
	return raw
}

func TestSweepAccessTokensRemovesOnlyExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewKV()
	svc := newCleanupService(kv)

	now := time.Now()
	// 5 stored access tokens, 2 of them expired. Stored without TTLs so the
	// sweep, not native eviction, is what removes them.
	require.NoError(t, kv.Set(ctx, "access_token:a", signAccessAt(t, now), 0))
	require.NoError(t, kv.Set(ctx, "access_token:b", signAccessAt(t, now), 0))
	require.NoError(t, kv.Set(ctx, "access_token:c", signAccessAt(t, now), 0))
	require.NoError(t, kv.Set(ctx, "access_token:d", signAccessAt(t, now.Add(-time.Hour)), 0))
	require.NoError(t, kv.Set(ctx, "access_token:e", signAccessAt(t, now.Add(-time.Hour)), 0))

	n, err := svc.SweepAccessTokens(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	keys, err := kv.Keys(ctx, "access_token:*")
	require.NoError(t, err)
	require.Len(t, keys, 3)
}

func TestSweepTokensRemovesEmptyValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewKV()
	svc := newCleanupService(kv)

	require.NoError(t, kv.Set(ctx, "access_token:empty", "", 0))
	// Garbage that is not expired-by-signature stays put for inspection.
	require.NoError(t, kv.Set(ctx, "access_token:garbage", "not.a.jwt", 0))

	n, err := svc.SweepAccessTokens(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	keys, err := kv.Keys(ctx, "access_token:*")
	require.NoError(t, err)
	require.Equal(t, []string{"access_token:garbage"}, keys)
}

func TestSweepSessionsRemovesOnlyKeysWithoutTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewKV()
	svc := newCleanupService(kv)

	require.NoError(t, kv.Set(ctx, "session:leaked", "x", 0))
	require.NoError(t, kv.Set(ctx, "session:fresh", "x", time.Hour))
	require.NoError(t, kv.Set(ctx, "user_status:leaked", "online", 0))
	require.NoError(t, kv.Set(ctx, "user_status:fresh", "online", time.Hour))

	n, err := svc.SweepSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	sessions, err := kv.Keys(ctx, "session:*")
	require.NoError(t, err)
	require.Equal(t, []string{"session:fresh"}, sessions)
}

func TestRunAllReportsBeforeAndAfter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewKV()
	svc := newCleanupService(kv)

	now := time.Now()
	require.NoError(t, kv.Set(ctx, "access_token:live", signAccessAt(t, now), 0))
	require.NoError(t, kv.Set(ctx, "access_token:dead", signAccessAt(t, now.Add(-time.Hour)), 0))
	require.NoError(t, kv.Set(ctx, "refresh_token:orphan", "", 0))
	require.NoError(t, kv.Set(ctx, "session:leaked", "x", 0))
	require.NoError(t, kv.Set(ctx, "user_status:ok", "online", time.Hour))

	report, err := svc.RunAll(ctx)
	require.NoError(t, err)

	require.Equal(t, 1, report.AccessTokensCleaned)
	require.Equal(t, 1, report.RefreshTokensCleaned)
	require.Equal(t, 1, report.SessionsCleaned)

	require.Equal(t, 2, report.BeforeStats.AccessTokenCount)
	require.Equal(t, 5, report.BeforeStats.TotalKeys)
	require.Equal(t, 1, report.AfterStats.AccessTokenCount)
	require.Equal(t, 2, report.AfterStats.TotalKeys)
}

// Not parallel: it reads the package-global sweep counter, and the parallel
// cleanup tests above also feed it once they resume.
func TestSweepCountsReachMetrics(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()
	svc := newCleanupService(kv)

	sessionsBefore := testutil.ToFloat64(metrics.CleanupRemovedTotal.WithLabelValues("session"))
	accessBefore := testutil.ToFloat64(metrics.CleanupRemovedTotal.WithLabelValues("access_token"))

	require.NoError(t, kv.Set(ctx, "session:leaked", "1", 0))
	require.NoError(t, kv.Set(ctx, "user_status:leaked", "online", 0))
	require.NoError(t, kv.Set(ctx, "access_token:stale", signAccessAt(t, time.Now().Add(-time.Hour)), 0))

	n, err := svc.SweepSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	m, err := svc.SweepAccessTokens(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, m)

	sessionsAfter := testutil.ToFloat64(metrics.CleanupRemovedTotal.WithLabelValues("session"))
	accessAfter := testutil.ToFloat64(metrics.CleanupRemovedTotal.WithLabelValues("access_token"))
	require.Equal(t, float64(2), sessionsAfter-sessionsBefore)
	require.Equal(t, float64(1), accessAfter-accessBefore)
}

func TestCleanupServiceStartStop(t *testing.T) {
	t.Parallel()
	kv := memory.NewKV()
	svc := newCleanupService(kv)

	svc.Start()
	svc.Stop()
}
