package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vtype/vtype/internal/chat/blob"
	"github.com/vtype/vtype/internal/chat/service"
	"github.com/vtype/vtype/internal/chat/store"
	"github.com/vtype/vtype/pkg/httpx"
	"github.com/vtype/vtype/pkg/slogx"
)

type SearchUsersHandler struct {
	UserService *service.UserService
}

func (h *SearchUsersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, err := h.UserService.Search(ctx, query, httpx.UserIDFromCtx(ctx), limit)
	if err != nil {
		log.Error("user search failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Search failed", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

type PublicProfileHandler struct {
	UserService *service.UserService
}

func (h *PublicProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.UserService.GetUserByID(ctx, r.PathValue("userID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found", "USER_NOT_FOUND")
			return
		}
		slogx.FromContext(ctx).Error("failed to load user", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to load user", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, user.Public())
}

type UpdateProfileHandler struct {
	UserService *service.UserService
}

func (h *UpdateProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req, maxBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	userID := httpx.UserIDFromCtx(ctx)
	current, err := h.UserService.GetUserByID(ctx, userID)
	if err != nil {
		log.Error("failed to load user", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to update profile", "")
		return
	}

	bio := current.Bio
	if req.Bio != nil {
		bio = *req.Bio
	}
	if len(bio) > 500 {
		writeError(w, http.StatusBadRequest, "Bio must be at most 500 characters", "")
		return
	}

	if req.Username != nil && *req.Username != current.Username {
		username := strings.TrimSpace(*req.Username)
		if len(username) < 3 || len(username) > 30 {
			writeError(w, http.StatusBadRequest, "Username must be 3-30 characters", "")
			return
		}
		if err := h.UserService.ChangeUsername(ctx, userID, username); err != nil {
			if errors.Is(err, service.ErrUsernameTaken) {
				writeError(w, http.StatusConflict, "Username already taken", "")
				return
			}
			log.Error("failed to rename user", "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to update profile", "")
			return
		}
	}

	updated, err := h.UserService.UpdateProfile(ctx, userID, bio, current.ProfilePicture)
	if err != nil {
		log.Error("failed to update profile", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to update profile", "")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newMeResponse(updated))
}

type ChangePasswordHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req, maxBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "New password must be at least 6 characters", "")
		return
	}

	userID := httpx.UserIDFromCtx(ctx)
	if err := h.UserService.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Current password is incorrect", "")
			return
		}
		log.Error("failed to change password", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to change password", "")
		return
	}

	// Invalidate the refresh session so other holders of the old
	// credentials have to log in again.
	if err := h.TokenService.RevokeRefresh(ctx, userID); err != nil {
		log.Warn("failed to revoke refresh token after password change",
			"user_id", userID, "err", err)
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

type DeactivateAccountHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

// ServeHTTP turns the account off and revokes its refresh session. The
// current access token keeps working only for the reactivate route until it
// expires.
func (h *DeactivateAccountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if err := h.UserService.Deactivate(ctx, userID); err != nil {
		log.Error("failed to deactivate account", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to deactivate account", "")
		return
	}
	if err := h.TokenService.RevokeRefresh(ctx, userID); err != nil {
		log.Warn("failed to revoke refresh token on deactivation",
			"user_id", userID, "err", err)
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Account deactivated"})
}

type ReactivateAccountHandler struct {
	UserService *service.UserService
}

func (h *ReactivateAccountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if err := h.UserService.Reactivate(ctx, userID); err != nil {
		log.Error("failed to reactivate account", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to reactivate account", "")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Account reactivated"})
}

const maxAvatarBytes = 5 << 20

// ProfilePictureHandler accepts a multipart avatar upload, stores the file in
// blob storage and records the object key on the profile.
type ProfilePictureHandler struct {
	UserService *service.UserService
	Storage     blob.Storage
}

func (h *ProfilePictureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if h.Storage == nil {
		writeError(w, http.StatusServiceUnavailable, "Avatar uploads are not configured", "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	file, header, err := r.FormFile("profilePicture")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing profilePicture file", "")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		writeError(w, http.StatusBadRequest, "Unsupported image type", "")
		return
	}

	userID := httpx.UserIDFromCtx(ctx)
	key := fmt.Sprintf("avatars/%s/%d", userID, time.Now().UnixNano())

	if err := h.Storage.Upload(ctx, key, file, header.Size, contentType); err != nil {
		log.Error("avatar upload failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "Upload failed", "")
		return
	}

	current, err := h.UserService.GetUserByID(ctx, userID)
	if err != nil {
		log.Error("failed to load user", "err", err)
		writeError(w, http.StatusInternalServerError, "Upload failed", "")
		return
	}

	old := current.ProfilePicture
	updated, err := h.UserService.UpdateProfile(ctx, userID, current.Bio, key)
	if err != nil {
		log.Error("failed to record avatar", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "Upload failed", "")
		return
	}

	if old != "" {
		if err := h.Storage.Delete(ctx, old); err != nil {
			log.Warn("failed to delete previous avatar", "key", old, "err", err)
		}
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newMeResponse(updated))
}

// AvatarURLHandler returns a short-lived download URL for a user's avatar.
type AvatarURLHandler struct {
	UserService *service.UserService
	Storage     blob.Storage
}

func (h *AvatarURLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Storage == nil {
		writeError(w, http.StatusServiceUnavailable, "Avatar storage is not configured", "")
		return
	}

	user, err := h.UserService.GetUserByID(ctx, r.PathValue("userID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found", "USER_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load user", "")
		return
	}
	if user.ProfilePicture == "" {
		writeError(w, http.StatusNotFound, "No profile picture set", "")
		return
	}

	url, err := h.Storage.PresignedGetURL(ctx, user.ProfilePicture, 15*time.Minute)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to presign avatar url", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to resolve picture", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}
