package chat

import (
	"context"
	"sync"
	"time"

	"github.com/xaenox/wispr-bot/internal/models"
)

// fakeStore is a minimal in-memory Store for registry and engine tests.
type fakeStore struct {
	mu          sync.Mutex
	chats       map[int64]*models.Chat
	nextID      int64
	createCalls int
	appendErr   error
	getErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{chats: make(map[int64]*models.Chat), nextID: 1}
}

func (s *fakeStore) CreateChat(ctx context.Context, userID int64, title, model, systemPrompt string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createCalls++
	now := time.Now()
	c := &models.Chat{
		ID:           s.nextID,
		UserID:       userID,
		Title:        title,
		Model:        model,
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.nextID++
	s.chats[c.ID] = c

	copied := *c
	return &copied, nil
}

func (s *fakeStore) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	c, ok := s.chats[chatID]
	if !ok {
		return nil, nil
	}
	copied := *c
	copied.Messages = append([]models.ChatMessage(nil), c.Messages...)
	return &copied, nil
}

func (s *fakeStore) ListChats(ctx context.Context, userID int64) ([]models.ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ChatSummary
	for _, c := range s.chats {
		if c.UserID == userID {
			out = append(out, models.ChatSummary{ID: c.ID, Title: c.Title, Model: c.Model})
		}
	}
	return out, nil
}

func (s *fakeStore) AppendMessage(ctx context.Context, chatID int64, role models.Role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return s.appendErr
	}
	c, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	now := time.Now()
	if !now.After(c.UpdatedAt) {
		now = c.UpdatedAt.Add(time.Nanosecond)
	}
	c.Messages = append(c.Messages, models.ChatMessage{Role: role, Content: content, Timestamp: now})
	c.UpdatedAt = now
	return nil
}

func (s *fakeStore) DeleteChat(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		return false, nil
	}
	delete(s.chats, chatID)
	return true, nil
}

func (s *fakeStore) messagesOf(chatID int64) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	return append([]models.ChatMessage(nil), c.Messages...)
}

// fakeSink records every renderer interaction.
type fakeSink struct {
	mu             sync.Mutex
	placeholderErr error
	updateErr      error
	finishErr      error
	splitErr       error

	updates  []string
	finished []string
	splits   []string
	fails    []string
	notices  []string
	working  int
}

func (s *fakeSink) CreatePlaceholder(ctx context.Context) (MessageRef, error) {
	if s.placeholderErr != nil {
		return 0, s.placeholderErr
	}
	return 1, nil
}

func (s *fakeSink) UpdateInPlace(ctx context.Context, ref MessageRef, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, text)
	return s.updateErr
}

func (s *fakeSink) Finish(ctx context.Context, ref MessageRef, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishErr != nil {
		return s.finishErr
	}
	s.finished = append(s.finished, text)
	return nil
}

func (s *fakeSink) SplitSend(ctx context.Context, ref MessageRef, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.splitErr != nil {
		return s.splitErr
	}
	s.splits = append(s.splits, text)
	return nil
}

func (s *fakeSink) Fail(ctx context.Context, ref MessageRef, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = append(s.fails, text)
	return nil
}

func (s *fakeSink) SignalWorking(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working++
	return nil
}

func (s *fakeSink) Notify(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, text)
	return nil
}

func (s *fakeSink) workingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working
}

// fakeProvider replays a fixed sequence of cumulative increments.
type fakeProvider struct {
	mu     sync.Mutex
	chunks []string
	calls  int
}

func (p *fakeProvider) StreamCompletion(ctx context.Context, messages []models.ChatMessage, model string) <-chan string {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	out := make(chan string)
	go func() {
		defer close(out)
		for _, chunk := range p.chunks {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
