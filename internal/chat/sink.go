package chat

import "context"

// MessageRef identifies a front-end message the sink can later edit or
// delete (a Telegram message id in the production sink).
type MessageRef int

// Sink is the front-end surface the stream renderer writes to. UpdateInPlace
// failures are expected (the transport may reject an over-length or unchanged
// edit) and must not abort a stream; the renderer logs and moves on.
type Sink interface {
	// CreatePlaceholder posts the transient "generating" message whose
	// ref the renderer edits as increments arrive.
	CreatePlaceholder(ctx context.Context) (MessageRef, error)

	// UpdateInPlace replaces the placeholder text with a partial result.
	UpdateInPlace(ctx context.Context, ref MessageRef, text string) error

	// Finish replaces the placeholder with the final text.
	Finish(ctx context.Context, ref MessageRef, text string) error

	// SplitSend deletes the placeholder and re-emits text as a sequence
	// of size-bounded messages, in order.
	SplitSend(ctx context.Context, ref MessageRef, text string) error

	// Fail delivers a diagnostic for the turn, best effort.
	Fail(ctx context.Context, ref MessageRef, text string) error

	// SignalWorking emits the periodic keep-alive ("typing") signal.
	SignalWorking(ctx context.Context) error

	// Notify posts a free-standing informational message, outside the
	// placeholder/edit lifecycle.
	Notify(ctx context.Context, text string) error
}
