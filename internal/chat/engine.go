package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/xaenox/wispr-bot/internal/models"
	"go.uber.org/zap"
)

const (
	noChatNotice    = "❓ You don't have an active chat.\n\nI'll create a new one for you."
	staleChatNotice = "❓ Your active chat no longer exists.\n\nI created a new one for you."
)

var (
	// ErrBusy means the user already has a generation in flight; the turn
	// was rejected before touching any state.
	ErrBusy = errors.New("previous request is still being processed")

	// ErrEmptyContext means no prompt could be composed for the turn; the
	// provider was never called.
	ErrEmptyContext = errors.New("could not compose message context for the request")
)

// Provider is the model back-end consumed by the engine. StreamCompletion
// returns a channel of cumulative-text increments. Provider failures are
// reported in-band: the terminal increment carries the ErrorMarker prefix,
// after which the channel is closed.
type Provider interface {
	StreamCompletion(ctx context.Context, messages []models.ChatMessage, model string) <-chan string
}

// Engine runs one user turn end to end: guard admission, session resolution,
// context building, provider streaming, rendering, and persistence of both
// sides of the exchange.
type Engine struct {
	store    Store
	sessions *Registry
	guard    *Guard
	renderer *Renderer
	window   int
	logger   *zap.Logger
}

func NewEngine(store Store, sessions *Registry, guard *Guard, renderer *Renderer, window int, logger *zap.Logger) *Engine {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &Engine{
		store:    store,
		sessions: sessions,
		guard:    guard,
		renderer: renderer,
		window:   window,
		logger:   logger,
	}
}

// Sessions exposes the engine's session registry to the command layer.
func (e *Engine) Sessions() *Registry {
	return e.sessions
}

// HandleTurn processes one inbound user message. It returns ErrBusy when the
// user already has a generation in flight and ErrEmptyContext when no prompt
// could be composed; both leave the conversation untouched apart from the
// already-persisted user message in the latter case. The guard marker is
// released on every exit path.
func (e *Engine) HandleTurn(ctx context.Context, user *models.User, text string, provider Provider, sink Sink) error {
	if !e.guard.TryAcquire(user.TelegramID) {
		return ErrBusy
	}
	defer e.guard.Release(user.TelegramID)

	// Cancelling on exit is the producer's only stop signal when rendering
	// ends before the stream is drained (placeholder failure, marker break).
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	turnID := uuid.New().String()
	log := e.logger.With(
		zap.String("turn_id", turnID),
		zap.Int64("user_id", user.TelegramID))

	conv, outcome, err := e.sessions.Resolve(ctx, user)
	if err != nil {
		return fmt.Errorf("resolving session: %w", err)
	}
	switch outcome {
	case ResolvedCreated:
		log.Info("Turn continues in a freshly created chat", zap.Int64("chat_id", conv.ID))
		e.notify(ctx, sink, noChatNotice)
	case ResolvedRecreated:
		log.Info("Turn continues in a replacement for a deleted chat", zap.Int64("chat_id", conv.ID))
		e.notify(ctx, sink, staleChatNotice)
	}
	log = log.With(zap.Int64("chat_id", conv.ID))

	// The user message is persisted before the provider call, so a crash
	// mid-generation leaves a dangling question, never an orphaned answer.
	if err := e.store.AppendMessage(ctx, conv.ID, models.RoleUser, text); err != nil {
		return fmt.Errorf("saving user message: %w", err)
	}

	messages := BuildContext(conv, text, e.window)
	if len(messages) == 0 {
		log.Error("Empty message context for turn")
		return ErrEmptyContext
	}

	stream := provider.StreamCompletion(ctx, messages, conv.Model)
	final, err := e.renderer.Render(ctx, stream, sink)
	if err != nil {
		// The placeholder never went out; persist a diagnostic so the
		// turn still has a terminal assistant message.
		final = fmt.Sprintf("%s generating the response: %v", ErrorMarker, err)
		log.Error("Rendering failed", zap.Error(err))
	}

	if err := e.store.AppendMessage(ctx, conv.ID, models.RoleAssistant, final); err != nil {
		return fmt.Errorf("saving assistant message: %w", err)
	}

	log.Info("Turn completed", zap.Int("response_length", len(final)))
	return nil
}

// notify posts an informational message ahead of the generation, best effort.
func (e *Engine) notify(ctx context.Context, sink Sink, text string) {
	if err := sink.Notify(ctx, text); err != nil {
		e.logger.Warn("Failed to send notice", zap.Error(err))
	}
}
