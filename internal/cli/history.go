package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/liftsync/internal/fleet"
	"github.com/roach88/liftsync/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit    int
	Truncate int
}

// historyEntry is the JSON form of one journaled snapshot.
type historyEntry struct {
	Seq         int64                `json:"seq"`
	TimestampMs int64                `json:"timestamp_ms"`
	TotalFloors int                  `json:"total_floors"`
	Elevators   []fleet.WireElevator `json:"elevators"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List received snapshots",
		Long: `List the snapshots recorded by the journal, oldest first.

Examples:
  liftsync history --limit 20
  liftsync history --truncate 100   # keep only the newest 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			out := opts.formatter(cmd)
			if cmd.Flags().Changed("truncate") {
				n, err := db.TruncateJournal(cmd.Context(), opts.Truncate)
				if err != nil {
					return &ExitError{Code: ExitFailure, Kind: CodeStorage, Message: "failed to truncate journal", Err: err}
				}
				return out.Result(fmt.Sprintf("Removed %d journal entries.\n", n), map[string]int64{"removed": n})
			}

			entries, err := db.ReadJournal(cmd.Context(), opts.Limit)
			if err != nil {
				return &ExitError{Code: ExitFailure, Kind: CodeStorage, Message: "failed to read journal", Err: err}
			}
			return out.Result(formatHistory(entries), historyEntries(entries))
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "show the newest n entries (0 for all)")
	cmd.Flags().IntVar(&opts.Truncate, "truncate", 0, "delete all but the newest n entries")

	return cmd
}

func historyEntries(entries []store.JournalEntry) []historyEntry {
	out := make([]historyEntry, len(entries))
	for i, e := range entries {
		h := historyEntry{
			Seq:         e.Seq,
			TimestampMs: e.Snapshot.Timestamp.UnixMilli(),
			TotalFloors: e.Snapshot.TotalFloors,
			Elevators:   make([]fleet.WireElevator, len(e.Snapshot.Elevators)),
		}
		for j, s := range e.Snapshot.Elevators {
			h.Elevators[j] = fleet.WireElevator{
				ID:           s.ID,
				CurrentFloor: float64(s.Position),
				Direction:    string(s.Direction),
				IsDoorOpen:   s.DoorOpen,
				UpStops:      s.UpStops,
				DownStops:    s.DownStops,
			}
		}
		out[i] = h
	}
	return out
}

func formatHistory(entries []store.JournalEntry) string {
	if len(entries) == 0 {
		return "No snapshots recorded.\n"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "#%d %s floors=%d", e.Seq, e.Snapshot.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"), e.Snapshot.TotalFloors)
		for _, s := range e.Snapshot.Elevators {
			fmt.Fprintf(&b, " e%d:%d:%s:%s", s.ID, s.Position, s.Direction, fleet.DoorState(s.DoorOpen))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
