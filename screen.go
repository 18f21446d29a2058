package semtok

import (
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ScreenRange is a span of an acme window body in rune offsets.  Q1 is
// exclusive.
type ScreenRange struct {
	Q0, Q1 int
}

// Empty reports whether r covers no runes.
func (r ScreenRange) Empty() bool { return r.Q1 <= r.Q0 }

// Intersect returns the overlap of r and o, which may be empty.
func (r ScreenRange) Intersect(o ScreenRange) ScreenRange {
	return ScreenRange{Q0: max(r.Q0, o.Q0), Q1: min(r.Q1, o.Q1)}
}

// Screen maps between document positions and screen ranges for one version of
// a window's text.  Both directions fail (ok == false) when the positions do
// not exist in that text, for example after further edits.
type Screen interface {
	ScreenRange(line, char, length uint32) (r ScreenRange, ok bool)
	PositionRange(r ScreenRange) (pr protocol.Range, ok bool)
	// Extent is the whole text.
	Extent() ScreenRange
}

// Sessions holds the current Screen of every open window, keyed by window
// id.  Coordinators keep only the id and look the Screen up on each use, so a
// closed window simply stops resolving.
type Sessions struct {
	mu      sync.RWMutex
	screens map[int]Screen
}

// NewSessions returns an empty registry.
func NewSessions() *Sessions {
	return &Sessions{screens: make(map[int]Screen)}
}

// Put records s as the current screen for window id.
func (ss *Sessions) Put(id int, s Screen) {
	ss.mu.Lock()
	ss.screens[id] = s
	ss.mu.Unlock()
}

// Delete forgets window id.
func (ss *Sessions) Delete(id int) {
	ss.mu.Lock()
	delete(ss.screens, id)
	ss.mu.Unlock()
}

// Screen returns the current screen for window id.
func (ss *Sessions) Screen(id int) (Screen, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s, ok := ss.screens[id]
	return s, ok
}
