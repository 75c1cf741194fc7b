package auth

import (
	"sync"
	"time"
)

// ReplayGuard remembers recently accepted signature digests until their
// replay window closes.
type ReplayGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewReplayGuard creates an empty guard.
func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{seen: make(map[string]time.Time)}
}

// Remember records digest until expiresAt. It returns false, without changing
// anything, when digest is already recorded and still live at now. The check
// and the insert happen under one lock so two concurrent replays cannot both win.
func (g *ReplayGuard) Remember(digest string, now, expiresAt time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if exp, ok := g.seen[digest]; ok && now.Before(exp) {
		return false
	}
	g.seen[digest] = expiresAt
	return true
}

// Sweep drops digests whose window has closed and returns how many were removed.
func (g *ReplayGuard) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for digest, exp := range g.seen {
		if !now.Before(exp) {
			delete(g.seen, digest)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked digests.
func (g *ReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
