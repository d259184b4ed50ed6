package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vtype/vtype/internal/chat/domain"
	"github.com/vtype/vtype/internal/chat/store"
	"github.com/vtype/vtype/internal/chat/store/drivers/memory"
	"github.com/vtype/vtype/internal/chat/store/drivers/sqlite"
	"github.com/vtype/vtype/pkg/cryptox"
	"github.com/vtype/vtype/pkg/idx"
	"github.com/vtype/vtype/pkg/jwtx"
)

const testIssuer = "vtype-test"

var (
	testAccessSecret  = []byte("access-secret-for-tests")
	testRefreshSecret = []byte("refresh-secret-for-tests")
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func usePepper(t *testing.T) {
	t.Helper()
	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))
}

func newTokenService(t *testing.T, users store.Users) (*TokenService, *memory.KV) {
	t.Helper()

	kv := memory.NewKV()
	return &TokenService{
		AccessSigner: jwtx.Signer{
			Secret: testAccessSecret,
			Kind:   jwtx.KindAccess,
			Issuer: testIssuer,
			TTL:    jwtx.DefaultAccessTokenTTL,
		},
		RefreshSigner: jwtx.Signer{
			Secret: testRefreshSecret,
			Kind:   jwtx.KindRefresh,
			Issuer: testIssuer,
			TTL:    jwtx.DefaultRefreshTokenTTL,
		},
		AccessVerifier: jwtx.Verifier{
			Secret: testAccessSecret,
			Kind:   jwtx.KindAccess,
			Issuer: testIssuer,
		},
		RefreshVerifier: jwtx.Verifier{
			Secret: testRefreshSecret,
			Kind:   jwtx.KindRefresh,
			Issuer: testIssuer,
		},
		KV:    kv,
		Users: users,
	}, kv
}

func seedUser(t *testing.T, s store.Store, username string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Roles:        []string{"user"},
		IsActive:     true,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func seedMessage(t *testing.T, s store.Store, sender, receiver domain.User, content string, at time.Time) domain.Message {
	t.Helper()

	m := domain.Message{
		ID:         idx.NewAt(at).String(),
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Type:       domain.MessageTypeText,
		Content:    content,
		CreatedAt:  at,
	}
	require.NoError(t, s.Messages().CreateMessage(context.Background(), m))
	return m
}
