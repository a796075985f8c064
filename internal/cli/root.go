package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
	// Offline skips every REST call; local state and the WebSocket are
	// still used.
	Offline bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the liftsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "liftsync",
		Short: "liftsync - elevator fleet sync client",
		Long: `Keep a local view of an elevator fleet in sync with the backend.

Cabin requests and hall calls are applied locally first and sent to the
backend in the background. Server snapshots update positions and doors;
the local requests survive restarts in a SQLite database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return &ExitError{
					Code:    ExitCommandError,
					Kind:    CodeArgs,
					Message: fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats),
				}
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config (defaults apply when omitted)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "do not call the REST API")

	// Add subcommands
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewPressCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Execute runs the command tree with args and returns the process exit
// code. Errors are reported on stderr, or on stdout as a JSON response
// when --format json is set.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	errors.As(err, &exitErr)
	if exitErr == nil || !exitErr.Reported {
		format, _ := cmd.PersistentFlags().GetString("format")
		kind := CodeArgs
		if exitErr != nil && exitErr.Kind != "" {
			kind = exitErr.Kind
		}
		out := &OutputFormatter{Format: format, Writer: stderr}
		if format == "json" {
			out.Writer = stdout
		}
		_ = out.Error(kind, err.Error(), nil)
	}

	if exitErr == nil {
		// cobra's own argument and flag errors
		return ExitCommandError
	}
	return exitErr.Code
}

// newLogger builds the key/value logger used by every component.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
