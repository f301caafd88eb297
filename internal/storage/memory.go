package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/wispr-bot/internal/models"
)

// MemoryStorage is an in-process Storage implementation used for tests and
// for running without a database. Everything is lost on restart.
type MemoryStorage struct {
	mu         sync.RWMutex
	users      map[int64]*models.User
	chats      map[int64]*models.Chat
	nextChatID int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:      make(map[int64]*models.User),
		chats:      make(map[int64]*models.Chat),
		nextChatID: 1,
	}
}

// User methods

func (s *MemoryStorage) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[telegramID]
	if !exists {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStorage) UpsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *user
	s.users[user.TelegramID] = &copied
	return nil
}

func (s *MemoryStorage) SetUserAllowed(ctx context.Context, telegramID int64, allowed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, exists := s.users[telegramID]; exists {
		user.IsAllowed = allowed
	}
	return nil
}

func (s *MemoryStorage) SetUserAPIKey(ctx context.Context, telegramID int64, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, exists := s.users[telegramID]; exists {
		user.OpenAIAPIKey = apiKey
	}
	return nil
}

func (s *MemoryStorage) SetUserPreferredModel(ctx context.Context, telegramID int64, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, exists := s.users[telegramID]; exists {
		user.PreferredModel = model
	}
	return nil
}

func (s *MemoryStorage) ListAllowedUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []*models.User
	for _, user := range s.users {
		if user.IsAllowed {
			copied := *user
			users = append(users, &copied)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].TelegramID < users[j].TelegramID
	})
	return users, nil
}

// Chat methods

func (s *MemoryStorage) CreateChat(ctx context.Context, userID int64, title, model, systemPrompt string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	chat := &models.Chat{
		ID:           s.nextChatID,
		UserID:       userID,
		Title:        title,
		Model:        model,
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.nextChatID++
	s.chats[chat.ID] = chat

	copied := *chat
	return &copied, nil
}

func (s *MemoryStorage) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, exists := s.chats[chatID]
	if !exists {
		return nil, nil
	}

	copied := *chat
	copied.Messages = append([]models.ChatMessage(nil), chat.Messages...)
	return &copied, nil
}

func (s *MemoryStorage) ListChats(ctx context.Context, userID int64) ([]models.ChatSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chats []models.ChatSummary
	for _, chat := range s.chats {
		if chat.UserID != userID {
			continue
		}
		chats = append(chats, models.ChatSummary{
			ID:        chat.ID,
			Title:     chat.Title,
			Model:     chat.Model,
			CreatedAt: chat.CreatedAt,
			UpdatedAt: chat.UpdatedAt,
		})
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

func (s *MemoryStorage) AppendMessage(ctx context.Context, chatID int64, role models.Role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, exists := s.chats[chatID]
	if !exists {
		return ErrChatNotFound
	}

	// Keep timestamps strictly increasing even when appends land within
	// the clock's resolution.
	now := time.Now()
	if !now.After(chat.UpdatedAt) {
		now = chat.UpdatedAt.Add(time.Nanosecond)
	}

	chat.Messages = append(chat.Messages, models.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	chat.UpdatedAt = now
	return nil
}

func (s *MemoryStorage) DeleteChat(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chats[chatID]; !exists {
		return false, nil
	}
	delete(s.chats, chatID)
	return true, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
