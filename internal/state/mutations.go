package state

import (
	"github.com/roach88/liftsync/internal/fleet"
)

// InitializeBuilding replaces the whole state with count fresh elevators
// over floors floors and an empty hall-call set. This is a hard reset, not
// a merge.
func (s *Store) InitializeBuilding(floors, count int) error {
	if floors < 1 || count < 1 {
		return fleet.NewBuildingError(floors, count)
	}
	s.Mutate(ChangeBuilding, func(f *fleet.Fleet) bool {
		*f = fleet.NewBuilding(floors, count)
		return true
	})
	return nil
}

// Reset restores the all-empty initial state. The hydration flag is kept.
func (s *Store) Reset() {
	s.Mutate(ChangeReset, func(f *fleet.Fleet) bool {
		*f = fleet.Empty()
		return true
	})
}

// Restore installs next as the whole state, e.g. after merging a persisted
// record.
func (s *Store) Restore(next fleet.Fleet) {
	s.Mutate(ChangeRestore, func(f *fleet.Fleet) bool {
		*f = next.Clone()
		return true
	})
}

// AddInternalStop records a cabin request for elevator id.
//
// The floor goes to the up-set if it is above the elevator's currently
// known position, otherwise to the down-set. The known position may lag
// the server; it is the best local estimate. Adding a floor already in the
// chosen set is a no-op. A floor left in the opposite set by an earlier
// press moves over, so the two sets stay disjoint.
//
// The call always succeeds locally for valid input regardless of network
// state; sending the request to the backend is the caller's job.
func (s *Store) AddInternalStop(id, floor int) error {
	return s.mutate(ChangeIntent, func(f *fleet.Fleet) (bool, error) {
		i, err := validateStop(f, id, floor)
		if err != nil {
			return false, err
		}
		e := &f.Elevators[i]

		var added bool
		if floor > e.Position {
			e.UpStops, added = fleet.InsertAscending(e.UpStops, floor)
			if added {
				e.DownStops, _ = fleet.RemoveFloor(e.DownStops, floor)
			}
		} else {
			e.DownStops, added = fleet.InsertDescending(e.DownStops, floor)
			if added {
				e.UpStops, _ = fleet.RemoveFloor(e.UpStops, floor)
			}
		}
		return added, nil
	})
}

// RemoveInternalStop removes floor from both stop sets of elevator id.
// Removing an absent floor is a no-op.
func (s *Store) RemoveInternalStop(id, floor int) error {
	return s.mutate(ChangeIntent, func(f *fleet.Fleet) (bool, error) {
		i := f.Index(id)
		if i < 0 {
			return false, fleet.NewElevatorError(id)
		}
		return removeCabinStop(&f.Elevators[i], floor), nil
	})
}

// ClearInternalStops empties the stop sets of the given elevators, or of
// every elevator when no id is passed. Unknown ids are rejected before
// anything is cleared.
func (s *Store) ClearInternalStops(ids ...int) error {
	return s.mutate(ChangeIntent, func(f *fleet.Fleet) (bool, error) {
		targets := make([]int, 0, len(f.Elevators))
		if len(ids) == 0 {
			for i := range f.Elevators {
				targets = append(targets, i)
			}
		}
		for _, id := range ids {
			i := f.Index(id)
			if i < 0 {
				return false, fleet.NewElevatorError(id)
			}
			targets = append(targets, i)
		}

		changed := false
		for _, i := range targets {
			e := &f.Elevators[i]
			if len(e.UpStops) > 0 || len(e.DownStops) > 0 {
				e.UpStops = []int{}
				e.DownStops = []int{}
				changed = true
			}
		}
		return changed, nil
	})
}

// AddExternalStop records a hall call. Duplicates are absorbed.
func (s *Store) AddExternalStop(floor int, dir fleet.Direction) error {
	return s.mutate(ChangeIntent, func(f *fleet.Fleet) (bool, error) {
		if !dir.IsCall() {
			return false, fleet.NewDirectionError(dir)
		}
		if floor < 0 || floor >= f.TotalFloors {
			return false, fleet.NewFloorError(floor, f.TotalFloors)
		}
		return f.AddExternalStop(floor, dir), nil
	})
}

// RemoveExternalStop deletes the hall call (floor, dir). It returns false,
// leaving state unchanged, when the call was not pending.
//
// Callers rely on the result for a primary/fallback policy: clear the
// elevator's reported direction first and, if nothing was there, try the
// opposite one.
func (s *Store) RemoveExternalStop(floor int, dir fleet.Direction) bool {
	return s.Mutate(ChangeIntent, func(f *fleet.Fleet) bool {
		return f.RemoveExternalStop(floor, dir)
	})
}

// UpdateSingleElevator merges the transient fields of status into elevator
// id. Stop sets are left alone. It is meant for reconciliation, not for
// user actions.
func (s *Store) UpdateSingleElevator(id int, status fleet.ElevatorStatus) error {
	return s.mutate(ChangeTransient, func(f *fleet.Fleet) (bool, error) {
		i := f.Index(id)
		if i < 0 {
			return false, fleet.NewElevatorError(id)
		}
		return ApplyTransient(&f.Elevators[i], status), nil
	})
}

// ApplyTransient copies the server-owned fields of status into e and
// reports whether any changed.
func ApplyTransient(e *fleet.Elevator, status fleet.ElevatorStatus) bool {
	dir := status.Direction
	if dir == "" {
		dir = fleet.Idle
	}
	changed := e.Position != status.Position || e.Direction != dir || e.DoorOpen != status.DoorOpen
	e.Position = status.Position
	e.Direction = dir
	e.DoorOpen = status.DoorOpen
	return changed
}

func validateStop(f *fleet.Fleet, id, floor int) (int, error) {
	i := f.Index(id)
	if i < 0 {
		return -1, fleet.NewElevatorError(id)
	}
	if floor < 0 || floor >= f.TotalFloors {
		return -1, fleet.NewFloorError(floor, f.TotalFloors)
	}
	return i, nil
}

func removeCabinStop(e *fleet.Elevator, floor int) bool {
	var upChanged, downChanged bool
	e.UpStops, upChanged = fleet.RemoveFloor(e.UpStops, floor)
	e.DownStops, downChanged = fleet.RemoveFloor(e.DownStops, floor)
	return upChanged || downChanged
}
