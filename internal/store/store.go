package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique name is already taken.
	ErrConflict = errors.New("already exists")
	// ErrProtected is returned when renaming or removing a non-removable channel.
	ErrProtected = errors.New("channel is protected")
)

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Channel represents a chat channel. Seeded channels are not removable.
type Channel struct {
	ID        int64
	Name      string
	Removable bool
	CreatedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	ChannelID int64
	UserID    int64
	Username  string
	Body      string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password. A taken username yields ErrConflict.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// ChannelStore handles channel persistence.
type ChannelStore interface {
	// CreateChannel creates a removable channel. A taken name yields ErrConflict.
	CreateChannel(ctx context.Context, name string) (*Channel, error)

	// GetChannel retrieves a channel by ID.
	GetChannel(ctx context.Context, id int64) (*Channel, error)

	// ListChannels lists all channels in creation order.
	ListChannels(ctx context.Context) ([]*Channel, error)

	// RenameChannel renames a removable channel.
	RenameChannel(ctx context.Context, id int64, name string) (*Channel, error)

	// DeleteChannel removes a removable channel together with its messages.
	DeleteChannel(ctx context.Context, id int64) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID, author name and timestamp.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit of the newest messages across all channels, oldest first.
	ListMessages(ctx context.Context, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChannelStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
