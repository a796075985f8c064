// Package session wires the sync core together for one client process.
//
// A Session owns the order of events: server snapshots are queued and
// applied one at a time by Run, while user intents are applied to the
// store synchronously and then sent to the backend in the background.
//
// Thread-safety model:
//   - HandleSnapshot, PressCabin, CallElevator, InitializeBuilding, Reset:
//     safe from any goroutine
//   - Run: must be called from exactly one goroutine
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/liftsync/internal/backend"
	"github.com/roach88/liftsync/internal/fleet"
	"github.com/roach88/liftsync/internal/persist"
	"github.com/roach88/liftsync/internal/reconcile"
	"github.com/roach88/liftsync/internal/state"
)

// Backend is the subset of the REST API a session uses. Implemented by
// *backend.Client.
type Backend interface {
	Status(ctx context.Context) (fleet.Snapshot, error)
	RequestHallCall(ctx context.Context, floor int, dir fleet.Direction) (backend.Response, error)
	AddStop(ctx context.Context, elevatorID, floor int) (backend.Response, error)
	InitializeBuilding(ctx context.Context, floors, elevators int) (backend.Response, error)
}

// Journal records applied snapshots. Implemented by *store.Store.
type Journal interface {
	AppendSnapshot(ctx context.Context, snap fleet.Snapshot) (int64, error)
}

// Session coordinates a state.Store, its reconcile.Engine, persistence and
// the backend.
type Session struct {
	store     *state.Store
	engine    *reconcile.Engine
	persister *persist.Persister
	backend   Backend
	journal   Journal
	logger    *slog.Logger

	rollbackOnReject bool
	callTimeout      time.Duration

	queue  *eventQueue
	calls  sync.WaitGroup
	ctx    context.Context // parent of background backend calls
	cancel context.CancelFunc

	detachMu sync.Mutex
	detach   func()
}

// Option configures a Session.
type Option func(*Session)

// WithPersister enables hydration from, and saving to, durable storage.
func WithPersister(p *persist.Persister) Option {
	return func(s *Session) {
		s.persister = p
	}
}

// WithBackend sets the REST API. Without one, intents stay local.
func WithBackend(b Backend) Option {
	return func(s *Session) {
		s.backend = b
	}
}

// WithJournal records every applied snapshot.
func WithJournal(j Journal) Option {
	return func(s *Session) {
		s.journal = j
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithRollbackOnReject undoes an optimistic intent when the backend
// explicitly rejects it. Transport failures never roll back.
// Default: false, the local intent is kept.
func WithRollbackOnReject(enabled bool) Option {
	return func(s *Session) {
		s.rollbackOnReject = enabled
	}
}

// WithCallTimeout bounds each background backend call. Default: 10s.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.callTimeout = d
	}
}

// New creates a session over st. eng must have been built for st.
func New(st *state.Store, eng *reconcile.Engine, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		store:       st,
		engine:      eng,
		logger:      slog.Default(),
		callTimeout: backend.DefaultTimeout,
		queue:       newEventQueue(),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the state store.
func (s *Session) Store() *state.Store {
	return s.store
}

// Start hydrates the store and begins persisting changes. With a backend,
// the current server state is then fetched and queued ahead of any pushed
// snapshot that arrives later. A failed status fetch is logged, not
// returned.
func (s *Session) Start(ctx context.Context) error {
	if s.persister != nil {
		if err := s.persister.Hydrate(ctx, s.store); err != nil {
			return err
		}
		s.detachMu.Lock()
		s.detach = s.persister.Attach(s.store)
		s.detachMu.Unlock()
	} else {
		s.store.MarkHydrated()
	}

	if s.backend == nil {
		return nil
	}
	snap, err := s.backend.Status(ctx)
	if err != nil {
		s.logger.Warn("initial status sync failed", "error", err)
		return nil
	}
	s.enqueue(SourceStatus, snap)
	return nil
}

// HandleSnapshot queues a pushed snapshot. It has the conn.Handler
// signature.
func (s *Session) HandleSnapshot(snap fleet.Snapshot) {
	s.enqueue(SourcePush, snap)
}

func (s *Session) enqueue(src Source, snap fleet.Snapshot) {
	if !s.queue.Enqueue(Event{Source: src, Snapshot: snap}) {
		s.logger.Debug("snapshot dropped, session closed", "source", src.String())
	}
}

// Run applies queued snapshots in FIFO order until ctx is cancelled or the
// session is closed. Errors while applying one snapshot are logged and the
// loop continues.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Debug("session loop starting")
	for {
		if e, ok := s.queue.TryDequeue(); ok {
			s.apply(ctx, e)
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Debug("session loop stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-s.queue.Wait():
			if s.queue.Done() {
				s.logger.Debug("session loop stopping", "reason", "closed")
				return nil
			}
		}
	}
}

// Drain applies every queued snapshot on the calling goroutine. It is
// meant for one-shot commands that do not run the loop.
func (s *Session) Drain(ctx context.Context) int {
	n := 0
	for {
		e, ok := s.queue.TryDequeue()
		if !ok {
			return n
		}
		s.apply(ctx, e)
		n++
	}
}

func (s *Session) apply(ctx context.Context, e Event) {
	if s.journal != nil && e.Source == SourcePush {
		if _, err := s.journal.AppendSnapshot(ctx, e.Snapshot); err != nil {
			s.logger.Warn("journal snapshot", "error", err)
		}
	}
	changed := s.engine.ApplySnapshot(e.Snapshot)
	s.logger.Debug("snapshot applied",
		"source", e.Source.String(),
		"elevators", len(e.Snapshot.Elevators),
		"changed", changed)
}

// PressCabin records a cabin request and sends it to the backend. An
// invalid request is rejected before anything is sent.
func (s *Session) PressCabin(elevatorID, floor int) error {
	had := false
	if e, ok := s.store.Elevator(elevatorID); ok {
		had = e.HasStop(floor)
	}
	if err := s.store.AddInternalStop(elevatorID, floor); err != nil {
		return err
	}

	s.send("add stop", func(ctx context.Context) (backend.Response, error) {
		return s.backend.AddStop(ctx, elevatorID, floor)
	}, func() {
		if had {
			return
		}
		if err := s.store.RemoveInternalStop(elevatorID, floor); err != nil {
			s.logger.Warn("rollback cabin request", "error", err)
		}
	}, "elevator", elevatorID, "floor", floor)
	return nil
}

// CallElevator records a hall call and sends it to the backend. An invalid
// call is rejected before anything is sent.
func (s *Session) CallElevator(floor int, dir fleet.Direction) error {
	had := s.store.Fleet().HasExternalStop(floor, dir)
	if err := s.store.AddExternalStop(floor, dir); err != nil {
		return err
	}

	s.send("request", func(ctx context.Context) (backend.Response, error) {
		return s.backend.RequestHallCall(ctx, floor, dir)
	}, func() {
		if !had {
			s.store.RemoveExternalStop(floor, dir)
		}
	}, "floor", floor, "direction", string(dir))
	return nil
}

// InitializeBuilding resets the local building and asks the backend to do
// the same.
func (s *Session) InitializeBuilding(floors, elevators int) error {
	if err := s.store.InitializeBuilding(floors, elevators); err != nil {
		return err
	}
	s.send("initialize building", func(ctx context.Context) (backend.Response, error) {
		return s.backend.InitializeBuilding(ctx, floors, elevators)
	}, nil, "floors", floors, "elevators", elevators)
	return nil
}

// Reset clears all local state. Nothing is sent to the backend.
func (s *Session) Reset() {
	s.store.Reset()
}

// send runs call in the background. rollback, if set, runs when the
// backend rejects the call and rollback is enabled.
func (s *Session) send(op string, call func(context.Context) (backend.Response, error), rollback func(), attrs ...any) {
	if s.backend == nil {
		return
	}
	s.calls.Add(1)
	go func() {
		defer s.calls.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.callTimeout)
		defer cancel()

		_, err := call(ctx)
		if err == nil {
			return
		}
		logArgs := append([]any{"op", op, "error", err}, attrs...)
		if backend.IsRejected(err) && s.rollbackOnReject && rollback != nil {
			s.logger.Warn("backend rejected, rolling back", logArgs...)
			rollback()
			return
		}
		s.logger.Warn("backend call failed", logArgs...)
	}()
}

// Flush waits for background backend calls to finish or ctx to end.
func (s *Session) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.calls.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop, cancels outstanding backend calls and stops
// persisting.
func (s *Session) Close() {
	s.queue.Close()
	s.cancel()
	s.detachMu.Lock()
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	s.detachMu.Unlock()
}
