package reconcile

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/liftsync/internal/clock"
	"github.com/roach88/liftsync/internal/fleet"
	"github.com/roach88/liftsync/internal/state"
	"github.com/roach88/liftsync/internal/throttle"
)

// Engine applies snapshots to a state.Store.
//
// Snapshots are applied in the order ApplySnapshot is called; timestamps are
// recorded but never used to reorder or drop frames. Until the store's
// hydration flag is set, ApplySnapshot does nothing, so an early frame
// cannot overwrite intents that are about to be restored from storage.
//
// ApplySnapshot is meant to be called from a single goroutine.
type Engine struct {
	store  *state.Store
	clock  clock.Clock
	logger *slog.Logger

	mu   sync.Mutex // guards gate
	gate *throttle.Gate

	unsubscribe func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for the arrival throttle.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithWindow sets the hall-call clearing window. Default: throttle.DefaultWindow.
func WithWindow(window time.Duration) Option {
	return func(e *Engine) {
		e.gate = throttle.NewGate(window)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine for s. The engine forgets its throttle history
// whenever the building is re-initialized or reset.
func New(s *state.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		clock:  clock.Real(),
		logger: slog.Default(),
		gate:   throttle.NewGate(throttle.DefaultWindow),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.unsubscribe = s.Subscribe(func(c state.Change) {
		if c.Kind == state.ChangeBuilding || c.Kind == state.ChangeReset {
			e.mu.Lock()
			e.gate.Reset()
			e.mu.Unlock()
		}
	})
	return e
}

// Close detaches the engine from its store.
func (e *Engine) Close() {
	e.unsubscribe()
}

// ApplySnapshot merges snap into the store and clears requests served by
// elevators that have opened their doors. It reports whether the store
// changed. Before hydration it is a no-op and returns false.
func (e *Engine) ApplySnapshot(snap fleet.Snapshot) bool {
	if !e.store.Hydrated() {
		e.logger.Debug("snapshot dropped before hydration",
			"elevators", len(snap.Elevators),
			"timestamp", snap.Timestamp.UnixMilli())
		return false
	}

	changed := e.store.Mutate(state.ChangeSnapshot, func(f *fleet.Fleet) bool {
		next, changed := Merge(*f, snap)
		if changed {
			*f = next
		}
		return changed
	})

	now := e.clock.Now()
	for _, status := range snap.Elevators {
		if !status.DoorOpen {
			continue
		}
		if e.clearArrival(status, now) {
			changed = true
		}
	}
	return changed
}

// clearArrival removes the cabin request at the elevator's floor and, at
// most once per throttle window, the hall call it is serving.
func (e *Engine) clearArrival(status fleet.ElevatorStatus, now time.Time) bool {
	changed := false
	if el, ok := e.store.Elevator(status.ID); ok && el.HasStop(status.Position) {
		if err := e.store.RemoveInternalStop(status.ID, status.Position); err == nil {
			changed = true
			e.logger.Debug("cabin request served",
				"elevator", status.ID,
				"floor", status.Position)
		}
	}

	e.mu.Lock()
	fire := e.gate.ShouldFire(status.ID, now)
	e.mu.Unlock()
	if !fire {
		return changed
	}

	for _, dir := range hallCallOrder(status.Direction) {
		if e.store.RemoveExternalStop(status.Position, dir) {
			e.logger.Debug("hall call served",
				"elevator", status.ID,
				"floor", status.Position,
				"direction", string(dir))
			return true
		}
	}
	return changed
}

// hallCallOrder returns the directions to try when clearing a hall call:
// the reported direction first, then the opposite one. An idle car tries
// Up before Down rather than clearing nothing, which is an extension: an
// idle car has no direction to serve.
func hallCallOrder(d fleet.Direction) []fleet.Direction {
	if !d.IsCall() {
		return []fleet.Direction{fleet.Up, fleet.Down}
	}
	return []fleet.Direction{d, d.Opposite()}
}
