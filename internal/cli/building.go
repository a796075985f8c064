package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <floors> <elevators>",
		Short: "Re-initialize the building",
		Long: `Replace the local building with fresh elevators and no requests, and ask
the backend to do the same.

Example:
  liftsync init 10 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			floors, err := intArg("floors", args[0])
			if err != nil {
				return err
			}
			elevators, err := intArg("elevators", args[1])
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.InitializeBuilding(floors, elevators); err != nil {
				return rejected(err)
			}
			a.flush(cmd.Context())

			f := a.state.Fleet()
			return rootOpts.formatter(cmd).Result(
				fmt.Sprintf("Building initialized.\n%s", formatFleet(f)), f)
		},
	}
}

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Journal bool
}

// resetResult is the JSON payload of the reset command.
type resetResult struct {
	Reset          bool  `json:"reset"`
	JournalRemoved int64 `json:"journal_removed"`
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear all local state",
		Long: `Clear the local building, requests and hall calls. Nothing is sent to the
backend; the next snapshot rebuilds elevator positions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			a.session.Reset()

			res := resetResult{Reset: true}
			if opts.Journal {
				n, err := a.db.TruncateJournal(cmd.Context(), 0)
				if err != nil {
					return &ExitError{Code: ExitFailure, Kind: CodeStorage, Message: "failed to clear journal", Err: err}
				}
				res.JournalRemoved = n
			}

			text := "State reset.\n"
			if opts.Journal {
				text += fmt.Sprintf("Removed %d journal entries.\n", res.JournalRemoved)
			}
			return opts.formatter(cmd).Result(text, res)
		},
	}

	cmd.Flags().BoolVar(&opts.Journal, "journal", false, "also clear the snapshot journal")

	return cmd
}
