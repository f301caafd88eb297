package bot

import "sync"

// pendingKind is what input the bot expects next from a user. States are
// process-local and dropped on restart, like the active-session mapping.
type pendingKind int

const (
	pendingTitle pendingKind = iota + 1
	pendingAPIKey
	pendingModel
	pendingImagePrompt
)

type dialogStates struct {
	mu      sync.Mutex
	pending map[int64]pendingKind
}

func newDialogStates() *dialogStates {
	return &dialogStates{pending: make(map[int64]pendingKind)}
}

func (d *dialogStates) Set(userID int64, kind pendingKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[userID] = kind
}

func (d *dialogStates) Get(userID int64) (pendingKind, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kind, ok := d.pending[userID]
	return kind, ok
}

func (d *dialogStates) Clear(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, userID)
}
