package chat

import (
	"context"

	"github.com/xaenox/wispr-bot/internal/models"
)

// Store is the conversation persistence contract consumed by the session
// registry and turn engine. GetChat returns (nil, nil) for an unknown id.
// AppendMessage must advance the chat's updated_at timestamp, ListChats
// orders by updated_at descending, and DeleteChat cascades to messages.
type Store interface {
	CreateChat(ctx context.Context, userID int64, title, model, systemPrompt string) (*models.Chat, error)
	GetChat(ctx context.Context, chatID int64) (*models.Chat, error)
	ListChats(ctx context.Context, userID int64) ([]models.ChatSummary, error)
	AppendMessage(ctx context.Context, chatID int64, role models.Role, content string) error
	DeleteChat(ctx context.Context, chatID int64) (bool, error)
}
