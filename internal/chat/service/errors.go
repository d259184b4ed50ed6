package service

import "errors"

var (
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrUsernameTaken       = errors.New("username_taken")
	ErrEmailTaken          = errors.New("email_taken")
	ErrMissingToken        = errors.New("missing_token")
	ErrInvalidTokenType    = errors.New("invalid_token_type")
	ErrInvalidRefreshToken = errors.New("invalid_refresh_token")
	ErrUserUnavailable     = errors.New("user_unavailable")
	ErrReceiverNotFound    = errors.New("receiver_not_found")
	ErrInvalidMessage      = errors.New("invalid_message")
)

// Authentication failure reason codes, surfaced to clients so they can tell
// a stale token from a revoked one.
const (
	ReasonTokenMissing     = "TOKEN_MISSING"
	ReasonTokenRevoked     = "TOKEN_REVOKED"
	ReasonTokenExpired     = "TOKEN_EXPIRED"
	ReasonInvalidTokenType = "INVALID_TOKEN_TYPE"
	ReasonUserNotFound     = "USER_NOT_FOUND"
	ReasonUserDeactivated  = "USER_DEACTIVATED"
	ReasonInvalidToken     = "INVALID_TOKEN"
)

// AuthError is an authentication failure carrying a machine-readable reason
// code.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Reason }

// AuthReason extracts the reason code from err, or empty string if err is not
// an AuthError.
func AuthReason(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}
