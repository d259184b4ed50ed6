package http

import (
	"net/http"
	"time"

	"github.com/vtype/vtype/internal/chat/domain"
	"github.com/vtype/vtype/pkg/httpx"
)

// apiError is the error body every endpoint returns: a human message plus an
// optional machine-readable code.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	httpx.WriteJSON(w, status, apiError{Message: message, Code: code})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) identifier() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Username
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
	User         any    `json:"user,omitempty"`
}

func newTokenResponse(pair domain.TokenPair, user any) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
		User:         user,
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type updateProfileRequest struct {
	Username *string `json:"username"`
	Bio      *string `json:"bio"`
}

type meResponse struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	ProfilePicture string     `json:"profilePicture,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	Roles          []string   `json:"roles"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func newMeResponse(u domain.User) meResponse {
	return meResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		Roles:          u.Roles,
		LastLogin:      u.LastLogin,
		CreatedAt:      u.CreatedAt,
	}
}
