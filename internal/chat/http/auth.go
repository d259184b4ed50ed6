package http

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/vtype/vtype/internal/chat/service"
	"github.com/vtype/vtype/pkg/httpx"
	"github.com/vtype/vtype/pkg/slogx"
)

const (
	minPasswordLength = 6
	maxBodyBytes      = 1 << 20
)

type RegisterHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := httpx.DecodeJSON(r, &req, maxBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 || len(req.Username) > 32 {
		writeError(w, http.StatusBadRequest, "Username must be between 3 and 32 characters", "")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email address", "")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters", "")
		return
	}

	user, err := h.UserService.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "Username already taken", "")
		case errors.Is(err, service.ErrEmailTaken):
			writeError(w, http.StatusConflict, "Email already registered", "")
		default:
			log.Error("registration failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Registration failed", "")
		}
		return
	}

	pair, err := h.TokenService.IssuePair(ctx, user)
	if err != nil {
		log.Error("failed to issue tokens", "user_id", user.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "Registration failed", "")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, newTokenResponse(pair, newMeResponse(user)))
}

type LoginHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := httpx.DecodeJSON(r, &req, maxBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	user, err := h.UserService.Login(ctx, req.identifier(), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials", "")
			return
		}
		log.Error("login failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Login failed", "")
		return
	}

	pair, err := h.TokenService.IssuePair(ctx, user)
	if err != nil {
		log.Error("failed to issue tokens", "user_id", user.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "Login failed", "")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair, newMeResponse(user)))
}

type RefreshHandler struct {
	TokenService *service.TokenService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req, maxBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	pair, err := h.TokenService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingToken):
			writeError(w, http.StatusBadRequest, "Refresh token required", "TOKEN_MISSING")
		case errors.Is(err, service.ErrInvalidTokenType):
			writeError(w, http.StatusUnauthorized, "Invalid token type", "INVALID_TOKEN_TYPE")
		case errors.Is(err, service.ErrInvalidRefreshToken):
			writeError(w, http.StatusUnauthorized, "Invalid refresh token", "INVALID_TOKEN")
		case errors.Is(err, service.ErrUserUnavailable):
			code := service.AuthReason(err)
			if code == "" {
				code = service.ReasonUserDeactivated
			}
			writeError(w, http.StatusUnauthorized, "Account unavailable", code)
		default:
			log.Error("token refresh failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Token refresh failed", "")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair, nil))
}

type LogoutHandler struct {
	TokenService *service.TokenService

	// AllDevices only changes the response message. Refresh tokens are
	// stored one per user, so both logout variants revoke the same record.
	AllDevices bool
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	token := httpx.TokenFromCtx(ctx)

	if err := h.TokenService.Logout(ctx, token, userID); err != nil {
		// Best-effort revocation: the client is logging out either way.
		log.Warn("logout cleanup incomplete", "user_id", userID, "err", err)
	}

	message := "Logged out"
	if h.AllDevices {
		message = "Logged out from all devices"
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": message})
}

type MeHandler struct {
	UserService *service.UserService
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	user, err := h.UserService.GetUserByID(ctx, httpx.UserIDFromCtx(ctx))
	if err != nil {
		log.Warn("failed to load user", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to load profile", "")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newMeResponse(user))
}
