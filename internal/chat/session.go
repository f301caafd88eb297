package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xaenox/wispr-bot/internal/models"
	"go.uber.org/zap"
)

// ResolveOutcome reports how Resolve arrived at the returned chat.
type ResolveOutcome int

const (
	// ResolvedExisting means the user's recorded chat was found and reused.
	ResolvedExisting ResolveOutcome = iota
	// ResolvedCreated means no chat was recorded and a fresh one was created.
	ResolvedCreated
	// ResolvedRecreated means the recorded chat had been deleted out-of-band
	// and a replacement was created.
	ResolvedRecreated
)

// Registry tracks which conversation each user is currently in. The mapping
// is process-local and ephemeral: a restart drops every active session and
// users fall back to auto-creation on their next message.
type Registry struct {
	store        Store
	defaultModel string
	now          func() time.Time
	logger       *zap.Logger

	mu        sync.Mutex
	active    map[int64]int64       // user id -> chat id
	resolving map[int64]*sync.Mutex // user id -> resolution lock
}

func NewRegistry(store Store, defaultModel string, logger *zap.Logger) *Registry {
	return &Registry{
		store:        store,
		defaultModel: defaultModel,
		now:          time.Now,
		logger:       logger,
		active:       make(map[int64]int64),
		resolving:    make(map[int64]*sync.Mutex),
	}
}

// resolveLock returns the mutex serializing resolutions for one user. Store
// I/O inside Resolve runs under this lock only, never under r.mu, so one
// user's slow store call cannot block another user's registry access.
func (r *Registry) resolveLock(userID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.resolving[userID]
	if !ok {
		lock = new(sync.Mutex)
		r.resolving[userID] = lock
	}
	return lock
}

// Resolve returns the user's active chat, creating a fresh one when none is
// recorded or the recorded one no longer exists in the store. The per-user
// lock is held across the store calls so a single logical resolution creates
// at most one chat.
func (r *Registry) Resolve(ctx context.Context, user *models.User) (*models.Chat, ResolveOutcome, error) {
	lock := r.resolveLock(user.TelegramID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	chatID, ok := r.active[user.TelegramID]
	r.mu.Unlock()

	outcome := ResolvedCreated
	if ok {
		chat, err := r.store.GetChat(ctx, chatID)
		if err != nil {
			return nil, ResolvedExisting, fmt.Errorf("loading active chat %d: %w", chatID, err)
		}
		if chat != nil {
			return chat, ResolvedExisting, nil
		}
		// Deleted out-of-band; clear the stale pointer and fall through.
		r.mu.Lock()
		if current, still := r.active[user.TelegramID]; still && current == chatID {
			delete(r.active, user.TelegramID)
		}
		r.mu.Unlock()
		outcome = ResolvedRecreated
		r.logger.Info("Active chat no longer exists, creating a new one",
			zap.Int64("user_id", user.TelegramID),
			zap.Int64("chat_id", chatID))
	}

	model := user.PreferredModel
	if model == "" {
		model = r.defaultModel
	}
	title := "Chat " + r.now().Format("2006-01-02 15:04")

	chat, err := r.store.CreateChat(ctx, user.TelegramID, title, model, "")
	if err != nil {
		return nil, ResolvedExisting, fmt.Errorf("creating chat: %w", err)
	}
	r.mu.Lock()
	r.active[user.TelegramID] = chat.ID
	r.mu.Unlock()

	r.logger.Info("Auto-created chat",
		zap.Int64("user_id", user.TelegramID),
		zap.Int64("chat_id", chat.ID),
		zap.String("model", model))
	return chat, outcome, nil
}

// Enter records chatID as the user's active chat.
func (r *Registry) Enter(userID, chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[userID] = chatID
}

// Exit detaches the user from their active chat, if any. It does not stop a
// generation already in flight.
func (r *Registry) Exit(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, userID)
}

// Current returns the user's active chat id without touching the store.
func (r *Registry) Current(userID int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chatID, ok := r.active[userID]
	return chatID, ok
}

// OnDeleted clears every active-session pointer at chatID. The deletion path
// must call this so the next message triggers clean auto-creation instead of
// referencing a dangling id.
func (r *Registry) OnDeleted(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, active := range r.active {
		if active == chatID {
			delete(r.active, userID)
		}
	}
}
