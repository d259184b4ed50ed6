package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/vtype/vtype/internal/chat/domain"
	"github.com/vtype/vtype/internal/chat/service"
	"github.com/vtype/vtype/pkg/httpx"
	"github.com/vtype/vtype/pkg/jwtx"
)

// Authn verifies the bearer access token end to end (blacklist, signature,
// kind, account state) and stashes the user identity in the request context.
// Failures carry the reason code so clients can tell an expired token from a
// revoked one.
func Authn(tokens *service.TokenService) httpx.Middleware {
	return authn(tokens.Authenticate)
}

// AuthnAllowDeactivated admits valid tokens of deactivated accounts so their
// owners can reactivate them. Everything else is rejected as in Authn.
func AuthnAllowDeactivated(tokens *service.TokenService) httpx.Middleware {
	return authn(tokens.AuthenticateAllowDeactivated)
}

func authn(authenticate func(context.Context, string) (domain.User, jwtx.Claims, error)) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw := ""
			authz := r.Header.Get("Authorization")
			if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
				raw = authz[7:]
			}

			user, _, err := authenticate(ctx, raw)
			if err != nil {
				reason := service.AuthReason(err)
				if reason == "" {
					writeError(w, http.StatusInternalServerError, "Authentication failed", "")
					return
				}
				writeError(w, http.StatusUnauthorized, "Authentication failed", reason)
				return
			}

			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, user.ID)
			ctx = context.WithValue(ctx, httpx.CtxKeyUsername, user.Username)
			ctx = context.WithValue(ctx, httpx.CtxKeyRoles, user.Roles)
			ctx = context.WithValue(ctx, httpx.CtxKeyToken, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose user lacks the role.
func RequireRole(role string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, have := range httpx.RolesFromCtx(r.Context()) {
				if have == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Insufficient permissions", "")
		})
	}
}
