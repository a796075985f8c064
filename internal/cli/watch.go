package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/liftsync/internal/conn"
	"github.com/roach88/liftsync/internal/fleet"
	"github.com/roach88/liftsync/internal/state"
)

// watchEvent is one line of JSON output from the watch command.
type watchEvent struct {
	Change string      `json:"change"`
	Fleet  fleet.Fleet `json:"fleet"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the backend's snapshot stream",
		Long: `Connect to the backend WebSocket and apply every snapshot to the local
state, printing each change. Lost connections are retried with a fixed
delay; the command fails once the retry budget is spent.

With --format json every change is printed as one JSON object per line.

Example:
  liftsync watch --config ./liftsync.yaml -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(rootOpts, cmd)
		},
	}
}

func runWatch(opts *RootOptions, cmd *cobra.Command) error {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	a, err := openApp(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var outMu sync.Mutex
	w := cmd.OutOrStdout()
	unsubscribe := a.state.Subscribe(func(c state.Change) {
		outMu.Lock()
		defer outMu.Unlock()
		if opts.Format == "json" {
			_ = json.NewEncoder(w).Encode(watchEvent{Change: c.Kind.String(), Fleet: c.Fleet})
			return
		}
		fmt.Fprintf(w, "%s: %s\n", c.Kind, fleet.Describe(c.Fleet))
	})
	defer unsubscribe()

	mgr := conn.New(conn.Config{
		URL:              a.cfg.Server.WSURL,
		ReconnectDelay:   a.cfg.Reconnect.Delay.Std(),
		MaxAttempts:      a.cfg.Reconnect.MaxAttempts,
		HandshakeTimeout: a.cfg.Reconnect.HandshakeTimeout.Std(),
	}, a.session.HandleSnapshot, conn.WithLogger(a.logger))
	defer mgr.Close()

	lost := make(chan struct{})
	var lostOnce sync.Once
	mgr.OnConnectionLost(func() {
		lostOnce.Do(func() { close(lost) })
	})
	mgr.OnStatus(func(connected bool) {
		a.logger.Debug("connection status", "connected", connected)
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- a.session.Run(ctx)
	}()

	if err := mgr.Connect(ctx); err != nil {
		// The first failure already scheduled a reconnect.
		a.logger.Warn("initial connect failed, retrying", "error", err)
	}

	select {
	case <-lost:
		cancel()
		<-runErr
		return &ExitError{
			Code:    ExitFailure,
			Kind:    CodeConnection,
			Message: fmt.Sprintf("connection lost after %d attempts", a.cfg.Reconnect.MaxAttempts),
		}
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return WrapExitError(ExitFailure, "session error", err)
		}
	}

	a.flush(context.Background())
	a.logger.Info("watch stopped")
	return nil
}
