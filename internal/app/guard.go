package app

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cicare/callsdk/internal/core"
)

// Guard is the single-slot active call holder. A second call while one
// is active is rejected, never silently replaced.
type Guard struct {
	mu     sync.Mutex
	active *Session
}

func NewGuard() *Guard {
	return &Guard{}
}

// Start creates a session through create while holding the slot. The
// create function receives the clear callback to wire as the session's
// OnEnded hook. Returns ErrCallInProgress when the slot is occupied.
func (g *Guard) Start(create func(onEnded func(uuid.UUID)) *Session) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != nil {
		return nil, core.ErrCallInProgress
	}
	s := create(g.clear)
	g.active = s
	return s, nil
}

// Active returns the current session, if any.
func (g *Guard) Active() (*Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active, g.active != nil
}

func (g *Guard) clear(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != nil && g.active.ID() == id {
		g.active = nil
	}
}
