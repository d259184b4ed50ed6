package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vtype/vtype/internal/chat/domain"
	"github.com/vtype/vtype/internal/chat/store"
	"github.com/vtype/vtype/pkg/cryptox"
	"github.com/vtype/vtype/pkg/idx"
	"github.com/vtype/vtype/pkg/slogx"
)

type UserService struct {
	Store store.Store
}

// Register creates a new active user with an argon2 password hash. Username
// and email must be unused.
func (s *UserService) Register(
	ctx context.Context,
	username, email, password string,
) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.Store.Users().GetUserByUsername(ctx, username); err == nil {
		return domain.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}
	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{"user"},
		IsActive:     true,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login checks the credentials and records the login time. The identifier
// may be a username or an email address. Deactivated accounts fail with the
// same error as bad credentials.
func (s *UserService) Login(ctx context.Context, identifier, password string) (domain.User, error) {
	identifier = strings.TrimSpace(identifier)

	var user domain.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.Store.Users().GetUserByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.Store.Users().GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn time comparing against a throwaway hash so missing users
			// cost the same as wrong passwords.
			_, _ = cryptox.HashPassword(password)
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return domain.User{}, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.Store.Users().TouchLastLogin(ctx, user.ID, now); err != nil {
		return domain.User{}, err
	}
	user.LastLogin = &now

	return user, nil
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// UpdateProfile replaces the user's bio and profile picture reference.
func (s *UserService) UpdateProfile(ctx context.Context, userID, bio, profilePicture string) (domain.User, error) {
	if err := s.Store.Users().UpdateProfile(ctx, userID, bio, profilePicture); err != nil {
		return domain.User{}, err
	}
	return s.Store.Users().GetUserByID(ctx, userID)
}

// ChangePassword verifies the current password before storing a hash of the
// new one. A wrong current password fails like a bad login.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := cryptox.VerifyPassword(currentPassword, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password changed", slog.String("user_id", userID))
	return nil
}

// Deactivate turns the account off. Tokens already issued are rejected by
// Authenticate once the flag flips.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	return s.Store.Users().SetActive(ctx, userID, false)
}

// Reactivate turns a deactivated account back on.
func (s *UserService) Reactivate(ctx context.Context, userID string) error {
	return s.Store.Users().SetActive(ctx, userID, true)
}

// ChangeUsername renames the user, rejecting names already in use.
func (s *UserService) ChangeUsername(ctx context.Context, userID, username string) error {
	username = strings.TrimSpace(username)
	err := s.Store.Users().UpdateUsername(ctx, userID, username)
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrUsernameTaken
	}
	return err
}

// Search finds other active users by username substring.
func (s *UserService) Search(ctx context.Context, query, excludeUserID string, limit int) ([]domain.PublicUser, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	users, err := s.Store.Users().Search(ctx, query, excludeUserID, limit)
	if err != nil {
		return nil, err
	}
	public := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	return public, nil
}
