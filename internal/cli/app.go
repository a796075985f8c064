package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/liftsync/internal/backend"
	"github.com/roach88/liftsync/internal/config"
	"github.com/roach88/liftsync/internal/persist"
	"github.com/roach88/liftsync/internal/reconcile"
	"github.com/roach88/liftsync/internal/session"
	"github.com/roach88/liftsync/internal/state"
	"github.com/roach88/liftsync/internal/store"
)

// app is the sync core assembled from configuration for one command.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *store.Store
	state   *state.Store
	engine  *reconcile.Engine
	session *session.Session
}

// loadConfig reads --config, mapping failures to a command error.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, &ExitError{
			Code:    ExitCommandError,
			Kind:    CodeConfig,
			Message: "failed to load config",
			Err:     err,
		}
	}
	return cfg, nil
}

// openDB opens the configured database.
func openDB(cfg config.Config) (*store.Store, error) {
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, &ExitError{
			Code:    ExitCommandError,
			Kind:    CodeStorage,
			Message: "failed to open database",
			Err:     err,
		}
	}
	return db, nil
}

// openApp loads config, opens the database, hydrates the store and, unless
// offline, applies the backend's current status. logs receives the
// component logs.
func openApp(ctx context.Context, opts *RootOptions, logs io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	logger := newLogger(logs, opts.Verbose)
	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		state:  state.New(),
	}
	a.engine = reconcile.New(a.state,
		reconcile.WithWindow(cfg.Throttle.Window.Std()),
		reconcile.WithLogger(logger))

	sessOpts := []session.Option{
		session.WithPersister(persist.NewPersister(db, persist.WithLogger(logger))),
		session.WithLogger(logger),
		session.WithRollbackOnReject(cfg.Backend.RollbackOnReject),
		session.WithCallTimeout(cfg.Backend.Timeout.Std()),
	}
	if cfg.Storage.Journal {
		sessOpts = append(sessOpts, session.WithJournal(db))
	}
	if !opts.Offline {
		client := backend.New(cfg.Server.APIURL,
			backend.WithTimeout(cfg.Backend.Timeout.Std()),
			backend.WithLogger(logger))
		sessOpts = append(sessOpts, session.WithBackend(client))
	}
	a.session = session.New(a.state, a.engine, sessOpts...)

	if err := a.session.Start(ctx); err != nil {
		a.Close()
		return nil, &ExitError{
			Code:    ExitCommandError,
			Kind:    CodeStorage,
			Message: "failed to restore state",
			Err:     err,
		}
	}
	a.session.Drain(ctx)
	return a, nil
}

// flush waits for background backend calls, bounded by the backend
// timeout.
func (a *app) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Backend.Timeout.Std())
	defer cancel()
	if err := a.session.Flush(ctx); err != nil {
		a.logger.Warn("backend calls still pending at exit", "error", err)
	}
}

// Close stops the session and closes the database.
func (a *app) Close() {
	a.session.Close()
	a.engine.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}
