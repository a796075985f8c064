package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/liftsync/internal/fleet"
	"github.com/roach88/liftsync/internal/state"
)

// ErrAlreadyHydrated is returned by Hydrate when the store already went
// through hydration.
var ErrAlreadyHydrated = errors.New("store already hydrated")

// DefaultSaveTimeout bounds a single write triggered by a state change.
const DefaultSaveTimeout = 5 * time.Second

// Persister connects a Storage to a state.Store.
type Persister struct {
	storage     Storage
	logger      *slog.Logger
	saveTimeout time.Duration

	mu        sync.Mutex
	lastSaved Record
	saved     bool
}

// Option configures a Persister.
type Option func(*Persister)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Persister) {
		p.logger = l
	}
}

// WithSaveTimeout bounds each save. Default: DefaultSaveTimeout.
func WithSaveTimeout(d time.Duration) Option {
	return func(p *Persister) {
		p.saveTimeout = d
	}
}

// NewPersister returns a Persister writing to storage.
func NewPersister(storage Storage, opts ...Option) *Persister {
	p := &Persister{
		storage:     storage,
		logger:      slog.Default(),
		saveTimeout: DefaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Hydrate restores the persisted record into s and sets its hydration flag.
//
// A record that cannot be read or decoded is logged and treated as absent:
// hydration still completes, so snapshots are not blocked forever by bad
// storage. Only the first hydration of a store succeeds.
func (p *Persister) Hydrate(ctx context.Context, s *state.Store) error {
	if s.Hydrated() {
		return ErrAlreadyHydrated
	}

	r, ok, err := p.storage.Load(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger.Warn("persisted record unreadable, starting empty", "error", err)
		ok = false
	}

	if ok {
		s.Mutate(state.ChangeRestore, func(f *fleet.Fleet) bool {
			*f = Merge(r, *f)
			return true
		})
		p.remember(r)
		p.logger.Debug("state restored",
			"elevators", r.TotalElevators,
			"total_floors", r.TotalFloors,
			"hall_calls", len(r.ExternalStops))
	}

	if !s.MarkHydrated() {
		return ErrAlreadyHydrated
	}
	return nil
}

// Attach subscribes p to s so that every change to intents or building size
// is written to storage. It returns the unsubscribe function.
//
// Save failures are logged; the mutation that triggered them has already
// succeeded and is not affected.
func (p *Persister) Attach(s *state.Store) (detach func()) {
	return s.Subscribe(func(c state.Change) {
		r := Serialize(c.Fleet)
		if !p.shouldSave(c.Kind, r) {
			return
		}
		if err := p.save(r); err != nil {
			p.logger.Error("persist state",
				"change", c.Kind.String(),
				"error", err)
		}
	})
}

// Save writes f immediately.
func (p *Persister) Save(ctx context.Context, f fleet.Fleet) error {
	r := Serialize(f)
	if err := p.storage.Save(ctx, r); err != nil {
		return err
	}
	p.remember(r)
	return nil
}

func (p *Persister) shouldSave(kind state.ChangeKind, r Record) bool {
	switch kind {
	case state.ChangeBuilding, state.ChangeIntent, state.ChangeReset, state.ChangeRestore:
		return true
	case state.ChangeSnapshot, state.ChangeTransient:
		// Motion alone is not persisted; a building that grew or changed
		// height is.
		p.mu.Lock()
		defer p.mu.Unlock()
		return !p.saved ||
			p.lastSaved.TotalFloors != r.TotalFloors ||
			p.lastSaved.TotalElevators != r.TotalElevators
	default:
		return false
	}
}

func (p *Persister) save(r Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.saveTimeout)
	defer cancel()
	if err := p.storage.Save(ctx, r); err != nil {
		return err
	}
	p.remember(r)
	return nil
}

func (p *Persister) remember(r Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSaved = r
	p.saved = true
}
