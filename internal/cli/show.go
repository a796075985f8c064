package cli

import (
	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the fleet state",
		Long: `Print the restored local state. Unless --offline is set, the backend's
current status is applied first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			f := a.state.Fleet()
			return rootOpts.formatter(cmd).Result(formatFleet(f), f)
		},
	}
}
