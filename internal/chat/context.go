package chat

import "github.com/xaenox/wispr-bot/internal/models"

// DefaultHistoryWindow bounds how many stored messages are replayed to the
// model for a single turn.
const DefaultHistoryWindow = 20

// DefaultSystemPrompt is synthesized when filtering leaves no prior messages
// and the chat has no system instruction, so the provider always receives at
// least one context entry.
const DefaultSystemPrompt = "You are a helpful assistant answering the user's questions."

// BuildContext composes the ordered prompt for one turn: the chat's system
// instruction first, then the most recent window messages in chronological
// order, then newUserText as a trailing user entry. Assistant messages
// carrying the error marker are diagnostic artifacts and are dropped.
// Pass an empty newUserText to build context for validation only.
func BuildContext(chat *models.Chat, newUserText string, window int) []models.ChatMessage {
	if window <= 0 {
		window = DefaultHistoryWindow
	}

	var out []models.ChatMessage
	if chat.SystemPrompt != "" {
		out = append(out, models.ChatMessage{Role: models.RoleSystem, Content: chat.SystemPrompt})
	}

	history := chat.Messages
	if len(history) > window {
		history = history[len(history)-window:]
	}

	var kept []models.ChatMessage
	for _, msg := range history {
		if msg.Role == models.RoleAssistant && IsErrorText(msg.Content) {
			continue
		}
		kept = append(kept, models.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	if len(kept) == 0 && len(out) == 0 {
		out = append(out, models.ChatMessage{Role: models.RoleSystem, Content: DefaultSystemPrompt})
	} else {
		out = append(out, kept...)
	}

	if newUserText != "" {
		out = append(out, models.ChatMessage{Role: models.RoleUser, Content: newUserText})
	}

	return out
}
