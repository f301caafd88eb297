package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/wispr-bot/internal/models"
	"go.uber.org/zap"
)

func newTestRegistry(store Store) *Registry {
	r := NewRegistry(store, "gpt-3.5-turbo", zap.NewNop())
	r.now = func() time.Time {
		return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	}
	return r
}

func TestRegistryResolve(t *testing.T) {
	ctx := context.Background()
	user := &models.User{TelegramID: 42}

	t.Run("absent session auto-creates exactly one chat", func(t *testing.T) {
		store := newFakeStore()
		r := newTestRegistry(store)

		first, outcome, err := r.Resolve(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, ResolvedCreated, outcome)
		assert.Equal(t, "Chat 2024-05-01 10:30", first.Title)
		assert.Equal(t, "gpt-3.5-turbo", first.Model)

		second, outcome, err := r.Resolve(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, ResolvedExisting, outcome)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, store.createCalls)
	})

	t.Run("preferred model wins over the default", func(t *testing.T) {
		store := newFakeStore()
		r := newTestRegistry(store)

		chat, _, err := r.Resolve(ctx, &models.User{TelegramID: 7, PreferredModel: "gpt-4o"})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", chat.Model)
	})

	t.Run("entered chat is returned without creating", func(t *testing.T) {
		store := newFakeStore()
		r := newTestRegistry(store)

		existing, err := store.CreateChat(ctx, user.TelegramID, "My chat", "gpt-4o", "")
		require.NoError(t, err)
		r.Enter(user.TelegramID, existing.ID)

		resolved, outcome, err := r.Resolve(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, ResolvedExisting, outcome)
		assert.Equal(t, existing.ID, resolved.ID)
	})

	t.Run("stale pointer to a deleted chat falls back to auto-creation", func(t *testing.T) {
		store := newFakeStore()
		r := newTestRegistry(store)

		existing, err := store.CreateChat(ctx, user.TelegramID, "Doomed", "gpt-4o", "")
		require.NoError(t, err)
		r.Enter(user.TelegramID, existing.ID)

		_, err = store.DeleteChat(ctx, existing.ID)
		require.NoError(t, err)

		resolved, outcome, err := r.Resolve(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, ResolvedRecreated, outcome)
		assert.NotEqual(t, existing.ID, resolved.ID)
	})

	t.Run("concurrent resolutions for one user create exactly one chat", func(t *testing.T) {
		store := newFakeStore()
		r := newTestRegistry(store)
		target := &models.User{TelegramID: 11}

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := r.Resolve(ctx, target)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, store.createCalls)
	})
}

func TestRegistrySessionLifecycle(t *testing.T) {
	store := newFakeStore()
	r := newTestRegistry(store)

	t.Run("enter and current", func(t *testing.T) {
		r.Enter(1, 100)
		chatID, ok := r.Current(1)
		assert.True(t, ok)
		assert.Equal(t, int64(100), chatID)
	})

	t.Run("exit detaches", func(t *testing.T) {
		r.Enter(2, 200)
		r.Exit(2)
		_, ok := r.Current(2)
		assert.False(t, ok)
	})

	t.Run("deletion clears every pointer at the chat", func(t *testing.T) {
		r.Enter(3, 300)
		r.OnDeleted(300)
		_, ok := r.Current(3)
		assert.False(t, ok)
	})

	t.Run("deletion leaves other sessions alone", func(t *testing.T) {
		r.Enter(4, 400)
		r.Enter(5, 500)
		r.OnDeleted(400)

		_, ok := r.Current(4)
		assert.False(t, ok)
		chatID, ok := r.Current(5)
		assert.True(t, ok)
		assert.Equal(t, int64(500), chatID)
	})
}

func TestRegistryDeletionCascade(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	r := newTestRegistry(store)
	user := &models.User{TelegramID: 9}

	first, outcome, err := r.Resolve(ctx, user)
	require.NoError(t, err)
	require.Equal(t, ResolvedCreated, outcome)

	_, err = store.DeleteChat(ctx, first.ID)
	require.NoError(t, err)
	r.OnDeleted(first.ID)

	_, ok := r.Current(user.TelegramID)
	assert.False(t, ok)

	replacement, outcome, err := r.Resolve(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, ResolvedCreated, outcome)
	assert.NotEqual(t, first.ID, replacement.ID)
}

// stallingStore parks every GetChat call until released, to model a slow
// database round-trip.
type stallingStore struct {
	*fakeStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stallingStore) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.fakeStore.GetChat(ctx, chatID)
}

func TestRegistryResolveDoesNotBlockOtherUsers(t *testing.T) {
	ctx := context.Background()
	store := &stallingStore{
		fakeStore: newFakeStore(),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	r := newTestRegistry(store)
	r.Enter(1, 100)

	stalled := make(chan struct{})
	go func() {
		defer close(stalled)
		_, _, _ = r.Resolve(ctx, &models.User{TelegramID: 1})
	}()
	<-store.entered

	// While user 1 sits inside the store call, user 2's registry access
	// must go through untouched.
	others := make(chan struct{})
	go func() {
		defer close(others)
		r.Enter(2, 200)
		chatID, ok := r.Current(2)
		assert.True(t, ok)
		assert.Equal(t, int64(200), chatID)
		r.Exit(2)
		_, outcome, err := r.Resolve(ctx, &models.User{TelegramID: 2})
		assert.NoError(t, err)
		assert.Equal(t, ResolvedCreated, outcome)
	}()

	select {
	case <-others:
	case <-time.After(time.Second):
		t.Fatal("second user's registry calls blocked behind the first user's store call")
	}

	close(store.release)
	<-stalled
}
