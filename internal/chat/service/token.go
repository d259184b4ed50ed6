package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vtype/vtype/internal/chat/domain"
	"github.com/vtype/vtype/internal/chat/store"
	"github.com/vtype/vtype/pkg/jwtx"
	"github.com/vtype/vtype/pkg/slogx"
)

const (
	refreshKeyPrefix   = "refresh_token:"
	blacklistKeyPrefix = "blacklist:"
)

// TokenService issues, verifies, rotates and revokes the HS256 token pairs
// that protect the HTTP API and the websocket handshake. Refresh tokens and
// blacklisted access tokens live in the KV store under TTLs matching the
// token lifetimes, so stale records expire on their own.
type TokenService struct {
	AccessSigner    jwtx.Signer
	RefreshSigner   jwtx.Signer
	AccessVerifier  jwtx.Verifier
	RefreshVerifier jwtx.Verifier
	KV              store.KV
	Users           store.Users
}

// IssuePair signs a fresh access/refresh pair for the user and stores the
// refresh token, replacing any previous one (one refresh session per user).
func (s *TokenService) IssuePair(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	now := time.Now()

	access, err := s.AccessSigner.Sign(user.ID, user.Username, now)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.RefreshSigner.Sign(user.ID, user.Username, now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.StoreRefresh(ctx, user.ID, refresh); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessSigner.TTL,
	}, nil
}

// StoreRefresh upserts the stored refresh token for a user. The TTL matches
// the token lifetime so the record expires with the token.
func (s *TokenService) StoreRefresh(ctx context.Context, userID, token string) error {
	return s.KV.Set(ctx, refreshKeyPrefix+userID, token, s.RefreshSigner.TTL)
}

// StoredRefresh returns the currently stored refresh token for a user.
func (s *TokenService) StoredRefresh(ctx context.Context, userID string) (string, error) {
	return s.KV.Get(ctx, refreshKeyPrefix+userID)
}

// RevokeRefresh drops the stored refresh token for a user.
func (s *TokenService) RevokeRefresh(ctx context.Context, userID string) error {
	return s.KV.Del(ctx, refreshKeyPrefix+userID)
}

// Blacklist records an access token as revoked for its remaining lifetime.
// Already expired tokens need no record.
func (s *TokenService) Blacklist(ctx context.Context, token string) error {
	claims, err := jwtx.DecodeUnverified(token)
	if err != nil {
		return err
	}
	remaining := claims.Remaining(time.Now())
	if remaining <= 0 {
		return nil
	}
	return s.KV.Set(ctx, blacklistKeyPrefix+token, "1", remaining)
}

// IsBlacklisted reports whether an access token has been revoked.
func (s *TokenService) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return s.KV.Exists(ctx, blacklistKeyPrefix+token)
}

// VerifyAccess validates an access token's signature, expiry and kind.
func (s *TokenService) VerifyAccess(token string) (jwtx.Claims, error) {
	return s.AccessVerifier.Verify(token)
}

// VerifyRefresh validates a refresh token's signature, expiry and kind.
func (s *TokenService) VerifyRefresh(token string) (jwtx.Claims, error) {
	return s.RefreshVerifier.Verify(token)
}

// Refresh rotates a refresh token: the presented token must verify, must
// match the stored one, and its user must still exist and be active. On
// success a fresh pair is issued and the stored refresh token replaced,
// invalidating the presented one.
func (s *TokenService) Refresh(ctx context.Context, raw string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	if raw == "" {
		return domain.TokenPair{}, ErrMissingToken
	}

	claims, err := s.RefreshVerifier.Verify(raw)
	if err != nil {
		if errors.Is(err, jwtx.ErrKind) {
			return domain.TokenPair{}, ErrInvalidTokenType
		}
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	userID := claims.Subject

	stored, err := s.StoredRefresh(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidRefreshToken
		}
		return domain.TokenPair{}, err
	}
	if stored != raw {
		// A different token is on record: this one was rotated away or the
		// user logged in elsewhere.
		l.Info("refresh token mismatch", slog.String("user_id", userID))
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.RevokeRefresh(ctx, userID)
			return domain.TokenPair{}, fmt.Errorf("%w: %w",
				ErrUserUnavailable, &AuthError{Reason: ReasonUserNotFound})
		}
		return domain.TokenPair{}, err
	}
	if !user.IsActive {
		_ = s.RevokeRefresh(ctx, userID)
		return domain.TokenPair{}, fmt.Errorf("%w: %w",
			ErrUserUnavailable, &AuthError{Reason: ReasonUserDeactivated})
	}

	return s.IssuePair(ctx, user)
}

// Logout blacklists the access token and revokes the refresh token. The two
// steps are independent and best-effort; the first error is reported after
// both have run.
func (s *TokenService) Logout(ctx context.Context, accessToken, userID string) error {
	var firstErr error
	if accessToken != "" {
		if err := s.Blacklist(ctx, accessToken); err != nil {
			firstErr = err
		}
	}
	if userID != "" {
		if err := s.RevokeRefresh(ctx, userID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Authenticate validates a raw access token end to end: blacklist, signature
// and expiry, kind, and the account behind it. Failures carry a reason code
// via AuthError.
func (s *TokenService) Authenticate(ctx context.Context, raw string) (domain.User, jwtx.Claims, error) {
	return s.authenticate(ctx, raw, false)
}

// AuthenticateAllowDeactivated accepts an otherwise valid token even when
// the account behind it is deactivated. Account reactivation is the only
// operation open to such tokens.
func (s *TokenService) AuthenticateAllowDeactivated(ctx context.Context, raw string) (domain.User, jwtx.Claims, error) {
	return s.authenticate(ctx, raw, true)
}

func (s *TokenService) authenticate(ctx context.Context, raw string, allowInactive bool) (domain.User, jwtx.Claims, error) {
	if raw == "" {
		return domain.User{}, jwtx.Claims{}, &AuthError{Reason: ReasonTokenMissing}
	}

	revoked, err := s.IsBlacklisted(ctx, raw)
	if err != nil {
		return domain.User{}, jwtx.Claims{}, err
	}
	if revoked {
		return domain.User{}, jwtx.Claims{}, &AuthError{Reason: ReasonTokenRevoked}
	}

	claims, err := s.VerifyAccess(raw)
	if err != nil {
		switch {
		case errors.Is(err, jwtx.ErrExpired):
			return domain.User{}, jwtx.Claims{}, &AuthError{Reason: ReasonTokenExpired}
		case errors.Is(err, jwtx.ErrKind):
			return domain.User{}, jwtx.Claims{}, &AuthError{Reason: ReasonInvalidTokenType}
		default:
			return domain.User{}, jwtx.Claims{}, &AuthError{Reason: ReasonInvalidToken}
		}
	}

	user, err := s.Users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, jwtx.Claims{}, &AuthError{Reason: ReasonUserNotFound}
		}
		return domain.User{}, jwtx.Claims{}, err
	}
	if !user.IsActive && !allowInactive {
		return domain.User{}, jwtx.Claims{}, &AuthError{Reason: ReasonUserDeactivated}
	}

	return user, claims, nil
}
