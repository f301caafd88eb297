package chat

import "sync"

// Guard is the per-user single-flight gate for response generation. A user
// with a marker set is refused a second concurrent generation. Markers live
// only for the process lifetime; a restart clears them all.
type Guard struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[int64]struct{})}
}

// TryAcquire sets the in-flight marker for userID and returns true, or
// returns false immediately if one is already set.
func (g *Guard) TryAcquire(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[userID]; busy {
		return false
	}
	g.inFlight[userID] = struct{}{}
	return true
}

// Release clears the in-flight marker for userID. Releasing an absent
// marker is a no-op.
func (g *Guard) Release(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, userID)
}
