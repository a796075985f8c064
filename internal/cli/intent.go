package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/liftsync/internal/fleet"
)

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call <floor> <U|D>",
		Short: "Place a hall call",
		Long: `Record a hall call at floor in direction U or D and send it to the backend.
The call is kept locally even if the backend is unreachable.

Example:
  liftsync call 4 U`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			floor, err := intArg("floor", args[0])
			if err != nil {
				return err
			}
			dir := fleet.Direction(strings.ToUpper(args[1]))

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.CallElevator(floor, dir); err != nil {
				return rejected(err)
			}
			a.flush(cmd.Context())

			f := a.state.Fleet()
			stop := fleet.ExternalStop{Floor: floor, Direction: dir}
			return rootOpts.formatter(cmd).Result(
				fmt.Sprintf("Hall call %s recorded.\n%s", stop, formatFleet(f)), f)
		},
	}
}

// NewPressCommand creates the press command.
func NewPressCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "press <elevator> <floor>",
		Short: "Press a cabin button",
		Long: `Record a cabin request for floor in elevator and send it to the backend.
Floors above the elevator's last known position join its up stops, the
rest its down stops.

Example:
  liftsync press 0 7`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := intArg("elevator", args[0])
			if err != nil {
				return err
			}
			floor, err := intArg("floor", args[1])
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.PressCabin(id, floor); err != nil {
				return rejected(err)
			}
			a.flush(cmd.Context())

			f := a.state.Fleet()
			return rootOpts.formatter(cmd).Result(
				fmt.Sprintf("Stop %d recorded for elevator %d.\n%s", floor, id, formatFleet(f)), f)
		},
	}
}

func intArg(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ExitError{
			Code:    ExitCommandError,
			Kind:    CodeArgs,
			Message: fmt.Sprintf("%s must be an integer, got %q", name, s),
		}
	}
	return v, nil
}
