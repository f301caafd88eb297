package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRenderer() *Renderer {
	return NewRenderer(20, 4096, time.Hour, zap.NewNop())
}

func streamOf(chunks ...string) <-chan string {
	out := make(chan string, len(chunks))
	for _, chunk := range chunks {
		out <- chunk
	}
	close(out)
	return out
}

// cumulative builds n increments of growing text, as the provider sends them.
func cumulative(n int) []string {
	chunks := make([]string, n)
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "token%d ", i)
		chunks[i] = b.String()
	}
	return chunks
}

func TestRendererRender(t *testing.T) {
	ctx := context.Background()

	t.Run("final text is the last increment", func(t *testing.T) {
		sink := &fakeSink{}
		chunks := cumulative(5)

		final, err := newTestRenderer().Render(ctx, streamOf(chunks...), sink)

		require.NoError(t, err)
		assert.Equal(t, chunks[4], final)
		require.Len(t, sink.finished, 1)
		assert.Equal(t, chunks[4], sink.finished[0])
		assert.Empty(t, sink.splits)
		assert.Empty(t, sink.fails)
	})

	t.Run("in-place updates happen every K-th increment with progress suffix", func(t *testing.T) {
		sink := &fakeSink{}
		chunks := cumulative(45)

		_, err := newTestRenderer().Render(ctx, streamOf(chunks...), sink)

		require.NoError(t, err)
		require.Len(t, sink.updates, 2)
		assert.Equal(t, chunks[19]+" ⏳", sink.updates[0])
		assert.Equal(t, chunks[39]+" ⏳", sink.updates[1])
	})

	t.Run("update failures are swallowed", func(t *testing.T) {
		sink := &fakeSink{updateErr: errors.New("message too long")}
		chunks := cumulative(25)

		final, err := newTestRenderer().Render(ctx, streamOf(chunks...), sink)

		require.NoError(t, err)
		assert.Equal(t, chunks[24], final)
		require.Len(t, sink.finished, 1)
	})

	t.Run("error marker terminates the stream without further updates", func(t *testing.T) {
		sink := &fakeSink{}
		diag := ErrorMarker + ": rate limit exceeded"

		final, err := newTestRenderer().Render(ctx, streamOf(diag), sink)

		require.NoError(t, err)
		assert.Equal(t, diag, final)
		assert.Empty(t, sink.updates)
		require.Len(t, sink.finished, 1)
		assert.Equal(t, diag, sink.finished[0])
	})

	t.Run("empty stream yields the empty-response placeholder", func(t *testing.T) {
		sink := &fakeSink{}

		final, err := newTestRenderer().Render(ctx, streamOf(), sink)

		require.NoError(t, err)
		assert.Equal(t, EmptyResponseText, final)
		require.Len(t, sink.finished, 1)
		assert.Equal(t, EmptyResponseText, sink.finished[0])
	})

	t.Run("oversized final text goes through the split path", func(t *testing.T) {
		sink := &fakeSink{}
		long := strings.Repeat("a", 5000)

		final, err := newTestRenderer().Render(ctx, streamOf(long), sink)

		require.NoError(t, err)
		assert.Equal(t, long, final)
		assert.Empty(t, sink.finished)
		require.Len(t, sink.splits, 1)
		assert.Equal(t, long, sink.splits[0])
	})

	t.Run("oversized partials skip the in-place update", func(t *testing.T) {
		sink := &fakeSink{}
		long := strings.Repeat("a", 5000)
		chunks := make([]string, 20)
		for i := range chunks {
			chunks[i] = long
		}

		_, err := newTestRenderer().Render(ctx, streamOf(chunks...), sink)

		require.NoError(t, err)
		assert.Empty(t, sink.updates)
	})

	t.Run("delivery failure becomes a persisted diagnostic", func(t *testing.T) {
		sink := &fakeSink{finishErr: errors.New("edit rejected")}
		chunks := cumulative(3)

		final, err := newTestRenderer().Render(ctx, streamOf(chunks...), sink)

		require.NoError(t, err)
		assert.True(t, IsErrorText(final))
		require.Len(t, sink.fails, 1)
		assert.Equal(t, final, sink.fails[0])
	})

	t.Run("placeholder failure aborts rendering", func(t *testing.T) {
		sink := &fakeSink{placeholderErr: errors.New("telegram down")}

		final, err := newTestRenderer().Render(ctx, streamOf("hi"), sink)

		require.Error(t, err)
		assert.Empty(t, final)
	})
}

func TestRendererKeepAlive(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	r := NewRenderer(20, 4096, 10*time.Millisecond, zap.NewNop())

	stream := make(chan string)
	go func() {
		stream <- "partial"
		time.Sleep(60 * time.Millisecond)
		stream <- "partial answer"
		close(stream)
	}()

	final, err := r.Render(ctx, stream, sink)
	require.NoError(t, err)
	assert.Equal(t, "partial answer", final)
	assert.GreaterOrEqual(t, sink.workingCount(), 1)

	// The keep-alive is cancelled before Render returns; no signal may
	// arrive afterwards.
	settled := sink.workingCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, sink.workingCount())
}
