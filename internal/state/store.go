// Package state holds the canonical in-memory fleet state.
//
// The Store is the single owner of fleet.Fleet. Optimistic user actions
// call its mutation methods directly; reconciliation and persistence go
// through Mutate. Every state-changing operation notifies subscribers
// synchronously, in registration order, after the store lock is released,
// so listeners may read the store again.
//
// Mutations are guarded by one mutex: read-modify-write operations such as
// add-if-absent are atomic with respect to each other.
package state

import (
	"sync"

	"github.com/roach88/liftsync/internal/fleet"
)

// ChangeKind classifies a state change for subscribers.
type ChangeKind int

const (
	// ChangeBuilding is a hard reset through InitializeBuilding.
	ChangeBuilding ChangeKind = iota + 1
	// ChangeIntent touches stop sets or hall calls.
	ChangeIntent
	// ChangeTransient touches server-owned fields only.
	ChangeTransient
	// ChangeSnapshot is an applied server snapshot. It may also change
	// TotalFloors and, through arrival clearing, intents.
	ChangeSnapshot
	// ChangeReset restores the all-empty initial state.
	ChangeReset
	// ChangeRestore installs state rebuilt from durable storage.
	ChangeRestore
)

// String returns a log-friendly name.
func (k ChangeKind) String() string {
	switch k {
	case ChangeBuilding:
		return "building"
	case ChangeIntent:
		return "intent"
	case ChangeTransient:
		return "transient"
	case ChangeSnapshot:
		return "snapshot"
	case ChangeReset:
		return "reset"
	case ChangeRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Change is delivered to listeners after a state-changing operation.
// Fleet is a copy of the state right after the change.
type Change struct {
	Kind  ChangeKind
	Fleet fleet.Fleet
}

// Listener observes state changes.
type Listener func(Change)

// Store is the canonical fleet state with an observer interface.
type Store struct {
	mu       sync.Mutex
	fleet    fleet.Fleet
	hydrated bool

	// notifyMu serializes commit and notification so listeners see
	// changes in the order they were committed. Listeners must not mutate
	// the store.
	notifyMu sync.Mutex

	listMu    sync.Mutex
	listeners []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Listener
}

// New returns a store in the all-empty initial state.
func New() *Store {
	return &Store{fleet: fleet.Empty()}
}

// Subscribe registers l and returns a function that removes it. The
// unsubscribe function is idempotent.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.listMu.Lock()
	defer s.listMu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listMu.Lock()
			defer s.listMu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Fleet returns a copy of the current state.
func (s *Store) Fleet() fleet.Fleet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fleet.Clone()
}

// Elevator returns a copy of one elevator.
func (s *Store) Elevator(id int) (fleet.Elevator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.fleet.Index(id)
	if i < 0 {
		return fleet.Elevator{}, false
	}
	return s.fleet.Elevators[i].Clone(), true
}

// Hydrated reports whether persisted state has been restored.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// MarkHydrated sets the hydration flag. It returns true only for the call
// that actually set it; the flag is never cleared.
func (s *Store) MarkHydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return false
	}
	s.hydrated = true
	return true
}

// Mutate runs fn on the live state under the store lock. fn returns
// whether it changed anything; subscribers are notified with kind only if
// it did. fn must not call back into the store.
func (s *Store) Mutate(kind ChangeKind, fn func(f *fleet.Fleet) bool) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	changed, snapshot := s.apply(fn)
	if changed {
		s.notifyLocked(Change{Kind: kind, Fleet: snapshot})
	}
	return changed
}

// apply runs fn under mu and returns a copy of the state if it changed.
// mu is released even if fn panics.
func (s *Store) apply(fn func(f *fleet.Fleet) bool) (bool, fleet.Fleet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn(&s.fleet) {
		return false, fleet.Fleet{}
	}
	return true, s.fleet.Clone()
}

// mutate is Mutate for operations that can fail validation. Nothing is
// notified when fn returns an error.
func (s *Store) mutate(kind ChangeKind, fn func(f *fleet.Fleet) (bool, error)) error {
	var err error
	s.Mutate(kind, func(f *fleet.Fleet) bool {
		var changed bool
		changed, err = fn(f)
		return err == nil && changed
	})
	return err
}

// notifyLocked calls listeners in registration order. Caller holds notifyMu,
// not mu.
func (s *Store) notifyLocked(c Change) {
	s.listMu.Lock()
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)
	s.listMu.Unlock()

	for _, sub := range listeners {
		sub.fn(c)
	}
}
