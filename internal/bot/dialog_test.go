package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialogStates(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		d := newDialogStates()

		_, ok := d.Get(1)
		assert.False(t, ok)

		d.Set(1, pendingAPIKey)
		kind, ok := d.Get(1)
		assert.True(t, ok)
		assert.Equal(t, pendingAPIKey, kind)
	})

	t.Run("states are per user", func(t *testing.T) {
		d := newDialogStates()

		d.Set(1, pendingTitle)
		d.Set(2, pendingModel)

		kind, _ := d.Get(1)
		assert.Equal(t, pendingTitle, kind)
		kind, _ = d.Get(2)
		assert.Equal(t, pendingModel, kind)
	})

	t.Run("clear removes the state", func(t *testing.T) {
		d := newDialogStates()

		d.Set(1, pendingImagePrompt)
		d.Clear(1)

		_, ok := d.Get(1)
		assert.False(t, ok)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		d := newDialogStates()
		d.Clear(1)
		d.Clear(1)
	})
}
