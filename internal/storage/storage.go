package storage

import (
	"context"
	"errors"

	"github.com/xaenox/wispr-bot/internal/chat"
	"github.com/xaenox/wispr-bot/internal/models"
)

// ErrChatNotFound is returned when appending to a chat that does not exist.
var ErrChatNotFound = errors.New("chat not found")

// Storage is the persistent-store contract for users and conversations.
// GetUser returns (nil, nil) for an unknown user.
type Storage interface {
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
	SetUserAllowed(ctx context.Context, telegramID int64, allowed bool) error
	SetUserAPIKey(ctx context.Context, telegramID int64, apiKey string) error
	SetUserPreferredModel(ctx context.Context, telegramID int64, model string) error
	ListAllowedUsers(ctx context.Context) ([]*models.User, error)

	// Embed the conversation store contract consumed by the chat engine.
	chat.Store

	Close() error
}
