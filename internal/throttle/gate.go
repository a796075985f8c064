// Package throttle provides a per-elevator time gate for side effects that
// react to a condition the server keeps reporting.
//
// Snapshots arrive far more often than a door stays open, so reacting to
// every snapshot that says "door open" would keep trying to clear a hall
// call that is already gone. The Gate lets one reaction through per window.
package throttle

import "time"

// DefaultWindow is the minimum spacing between two fires for one elevator.
const DefaultWindow = 4000 * time.Millisecond

// Gate tracks, per elevator id, when its side effect last fired.
//
// Each id is independent: firing for one elevator never changes another's
// eligibility. Gate is not safe for concurrent use; it is owned by the
// single goroutine applying snapshots.
type Gate struct {
	window   time.Duration
	lastFire map[int]time.Time // absent = never fired
}

// NewGate returns a gate with the given window. A non-positive window uses
// DefaultWindow.
func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Gate{
		window:   window,
		lastFire: make(map[int]time.Time),
	}
}

// ShouldFire reports whether the side effect for id may run at now.
//
// It returns true and records now iff now - lastFire(id) >= window, with a
// never-fired id always eligible. A false result leaves the gate unchanged.
func (g *Gate) ShouldFire(id int, now time.Time) bool {
	if last, ok := g.lastFire[id]; ok && now.Sub(last) < g.window {
		return false
	}
	g.lastFire[id] = now
	return true
}

// Forget clears the history of one id.
func (g *Gate) Forget(id int) {
	delete(g.lastFire, id)
}

// Reset clears every id, e.g. after the building is re-initialized.
func (g *Gate) Reset() {
	clear(g.lastFire)
}

// Window returns the configured window.
func (g *Gate) Window() time.Duration {
	return g.window
}
