package store

import (
	"context"
	"errors"
	"time"

	"github.com/vtype/vtype/internal/chat/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	Messages() Messages

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetUserByEmail guards registration against duplicate emails.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile mutates bio and profile_picture and bumps updated_at.
	UpdateProfile(ctx context.Context, userID, bio, profilePicture string) error

	// UpdateUsername renames the user. Returns ErrAlreadyExists when the
	// name is taken.
	UpdateUsername(ctx context.Context, userID, username string) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// TouchLastLogin records a successful login.
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	// SetActive flips the account active flag.
	SetActive(ctx context.Context, userID string, active bool) error

	// Search finds active users whose username matches the query, excluding
	// the searching user. Matching is a case-insensitive substring match.
	Search(ctx context.Context, query, excludeUserID string, limit int) ([]domain.User, error)
}

type Messages interface {
	// CreateMessage inserts a new message.
	CreateMessage(ctx context.Context, m domain.Message) error

	// GetMessageByID returns a message by id.
	GetMessageByID(ctx context.Context, id string) (domain.Message, error)

	// ListBetween returns one page of the messages exchanged between a and
	// b. Offset counts back from the newest message; the page itself is
	// returned oldest first.
	// Pagination is offset-based; limit <= 0 means a default page size.
	ListBetween(ctx context.Context, a, b string, limit, offset int) ([]domain.Message, error)

	// MarkConversationRead marks all unread messages sent by senderID to
	// readerID as read, returning how many rows changed. Re-marking an
	// already read conversation returns zero.
	MarkConversationRead(ctx context.Context, readerID, senderID string, at time.Time) (int64, error)

	// CountUnread returns the number of unread messages addressed to userID.
	CountUnread(ctx context.Context, userID string) (int64, error)

	// ListContacts returns each user userID has a conversation with, along
	// with the most recent message and unread count, ordered by recency.
	ListContacts(ctx context.Context, userID string) ([]domain.Contact, error)
}
