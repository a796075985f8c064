// Package reconcile merges authoritative server snapshots into the local
// fleet state.
//
// The server owns motion: Position, Direction and DoorOpen are always taken
// from the snapshot. The client owns intent: stop sets and hall calls are
// never overwritten by a snapshot, even when the frame carries its own
// up_stops/down_stops.
package reconcile

import (
	"sort"

	"github.com/roach88/liftsync/internal/fleet"
	"github.com/roach88/liftsync/internal/state"
)

// Merge applies snap to current and returns the result and whether anything
// changed. current is not modified.
//
// Elevators present locally but missing from the snapshot are left as-is.
// Elevators the snapshot reports but the fleet does not know are appended
// with empty stop sets, keeping the slice sorted by id. A non-positive
// TotalFloors in the snapshot leaves the local value alone.
func Merge(current fleet.Fleet, snap fleet.Snapshot) (fleet.Fleet, bool) {
	next := current.Clone()
	changed := false

	grew := false
	for _, status := range snap.Elevators {
		i := next.Index(status.ID)
		if i < 0 {
			next.Elevators = append(next.Elevators, fleet.NewElevator(status.ID))
			i = len(next.Elevators) - 1
			grew = true
			changed = true
		}
		if state.ApplyTransient(&next.Elevators[i], status) {
			changed = true
		}
	}
	if grew {
		sort.SliceStable(next.Elevators, func(a, b int) bool {
			return next.Elevators[a].ID < next.Elevators[b].ID
		})
	}

	if snap.TotalFloors > 0 && snap.TotalFloors != next.TotalFloors {
		next.TotalFloors = snap.TotalFloors
		changed = true
	}
	if !snap.Timestamp.IsZero() && !snap.Timestamp.Equal(next.LastUpdate) {
		next.LastUpdate = snap.Timestamp
		changed = true
	}
	return next, changed
}
