package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultUpdateEvery is how many stream increments pass between
	// in-place edits of the placeholder, to bound the front-end write rate.
	DefaultUpdateEvery = 20

	// DefaultMessageLimit is the transport's single-message size in runes.
	DefaultMessageLimit = 4096

	// DefaultTypingInterval paces the keep-alive signal.
	DefaultTypingInterval = 4 * time.Second

	// streamingSuffix marks an in-place update as still in progress.
	streamingSuffix = " ⏳"
)

// Renderer consumes a cumulative-text stream from the model provider and
// turns it into a bounded sequence of sink operations, ending with exactly
// one terminal message for the turn.
type Renderer struct {
	updateEvery    int
	messageLimit   int
	typingInterval time.Duration
	logger         *zap.Logger
}

func NewRenderer(updateEvery, messageLimit int, typingInterval time.Duration, logger *zap.Logger) *Renderer {
	if updateEvery <= 0 {
		updateEvery = DefaultUpdateEvery
	}
	if messageLimit <= 0 {
		messageLimit = DefaultMessageLimit
	}
	if typingInterval <= 0 {
		typingInterval = DefaultTypingInterval
	}
	return &Renderer{
		updateEvery:    updateEvery,
		messageLimit:   messageLimit,
		typingInterval: typingInterval,
		logger:         logger,
	}
}

// Render drives one generation: it posts the placeholder, runs the keep-alive
// signal until streaming ends, throttles partial edits, and delivers the
// final text. Every increment on stream is the cumulative text so far, not a
// delta; an increment starting with ErrorMarker terminates the stream and
// becomes the final text. The returned string is what must be persisted as
// the assistant's message — on a delivery failure it is the diagnostic that
// was shown to the user instead of the undeliverable answer.
func (r *Renderer) Render(ctx context.Context, stream <-chan string, sink Sink) (string, error) {
	ref, err := sink.CreatePlaceholder(ctx)
	if err != nil {
		return "", fmt.Errorf("creating placeholder: %w", err)
	}

	keepAliveCtx, cancel := context.WithCancel(ctx)
	g, keepAliveCtx := errgroup.WithContext(keepAliveCtx)
	g.Go(func() error {
		return r.keepAlive(keepAliveCtx, sink)
	})

	var final string
	count := 0
	for chunk := range stream {
		final = chunk
		if IsErrorText(chunk) {
			// Provider-reported failure; no further updates.
			break
		}

		count++
		if count%r.updateEvery != 0 {
			continue
		}
		if len([]rune(chunk)) > r.messageLimit {
			continue
		}
		if err := sink.UpdateInPlace(ctx, ref, chunk+streamingSuffix); err != nil {
			r.logger.Warn("Failed to update partial response", zap.Error(err))
		}
	}

	cancel()
	if err := g.Wait(); err != nil {
		r.logger.Warn("Keep-alive task ended with error", zap.Error(err))
	}

	if final == "" {
		final = EmptyResponseText
	}

	return r.deliver(ctx, sink, ref, final), nil
}

// deliver replaces the placeholder with the final text, falling back to a
// chunked send when it exceeds the single-message limit. A delivery failure
// is converted into a diagnostic that is both shown and returned, so the
// conversation still gets a terminal message for the turn.
func (r *Renderer) deliver(ctx context.Context, sink Sink, ref MessageRef, final string) string {
	var err error
	if len([]rune(final)) > r.messageLimit {
		err = sink.SplitSend(ctx, ref, final)
	} else {
		err = sink.Finish(ctx, ref, final)
	}
	if err == nil {
		return final
	}

	r.logger.Error("Failed to deliver final response", zap.Error(err))
	diag := fmt.Sprintf("%s delivering the response: %v", ErrorMarker, err)
	if failErr := sink.Fail(ctx, ref, diag); failErr != nil {
		r.logger.Error("Failed to deliver error notice", zap.Error(failErr))
	}
	return diag
}

func (r *Renderer) keepAlive(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(r.typingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := sink.SignalWorking(ctx); err != nil {
				r.logger.Warn("Failed to send working signal", zap.Error(err))
			}
		}
	}
}
