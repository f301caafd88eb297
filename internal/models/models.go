package models

import "time"

// Role identifies the author of a chat message. The set is closed: the
// context builder relies on exhaustive switching over these three values.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// User represents a Telegram user known to the bot. Users are created on
// first contact and never deleted.
type User struct {
	TelegramID     int64     `json:"telegram_id"`
	Username       string    `json:"username,omitempty"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	IsAllowed      bool      `json:"is_allowed"`
	OpenAIAPIKey   string    `json:"openai_api_key,omitempty"`
	PreferredModel string    `json:"preferred_model,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActive     time.Time `json:"last_active"`
}

// FullName returns the best available display name for the user.
func (u *User) FullName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// HasCustomAPIKey reports whether the user supplied their own OpenAI key.
func (u *User) HasCustomAPIKey() bool {
	return u.OpenAIAPIKey != ""
}

// ChatMessage is a single immutable entry in a conversation.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is a titled conversation thread between one user and one model.
// Messages are append-only and ordered by timestamp.
type Chat struct {
	ID           int64         `json:"id"`
	UserID       int64         `json:"user_id"`
	Title        string        `json:"title"`
	Model        string        `json:"model"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Messages     []ChatMessage `json:"messages"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ChatSummary is a chat row without its messages, for listings.
type ChatSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
