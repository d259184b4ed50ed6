package domain

import "time"

type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string // argon2 encoded
	ProfilePicture string // object key in blob storage, empty when unset
	Bio            string
	Roles          []string
	IsActive       bool
	LastLogin      *time.Time // nil until first login
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PublicUser is the subset of User safe to return to other users.
type PublicUser struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// Public strips the private fields from a User.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		LastLogin:      u.LastLogin,
	}
}
