package fleet

import (
	"fmt"
	"slices"
)

// InsertAscending adds floor to an ascending set. Returns the new set and
// whether it changed.
func InsertAscending(set []int, floor int) ([]int, bool) {
	if containsInt(set, floor) {
		return set, false
	}
	out := append(cloneInts(set), floor)
	slices.Sort(out)
	return out, true
}

// InsertDescending adds floor to a descending set. Returns the new set and
// whether it changed.
func InsertDescending(set []int, floor int) ([]int, bool) {
	if containsInt(set, floor) {
		return set, false
	}
	out := append(cloneInts(set), floor)
	slices.Sort(out)
	slices.Reverse(out)
	return out, true
}

// RemoveFloor deletes every occurrence of floor. Returns the new set and
// whether it changed.
func RemoveFloor(set []int, floor int) ([]int, bool) {
	if !containsInt(set, floor) {
		return set, false
	}
	out := make([]int, 0, len(set)-1)
	for _, f := range set {
		if f != floor {
			out = append(out, f)
		}
	}
	return out, true
}

// CheckStopPartition returns an error if a floor appears in both stop sets
// of e, or if either set is out of order.
func CheckStopPartition(e Elevator) error {
	for _, f := range e.UpStops {
		if containsInt(e.DownStops, f) {
			return fmt.Errorf("elevator %d: floor %d in both up and down stops", e.ID, f)
		}
	}
	if !slices.IsSorted(e.UpStops) {
		return fmt.Errorf("elevator %d: up stops not ascending: %v", e.ID, e.UpStops)
	}
	for i := 1; i < len(e.DownStops); i++ {
		if e.DownStops[i] > e.DownStops[i-1] {
			return fmt.Errorf("elevator %d: down stops not descending: %v", e.ID, e.DownStops)
		}
	}
	return nil
}

func containsInt(set []int, v int) bool {
	return slices.Contains(set, v)
}

func cloneInts(in []int) []int {
	if in == nil {
		return []int{}
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}

// AddExternalStop appends the hall call unless it is already pending.
func (f *Fleet) AddExternalStop(floor int, dir Direction) bool {
	if f.HasExternalStop(floor, dir) {
		return false
	}
	f.ExternalStops = append(f.ExternalStops, ExternalStop{Floor: floor, Direction: dir})
	return true
}

// RemoveExternalStop deletes the hall call and reports whether it existed.
func (f *Fleet) RemoveExternalStop(floor int, dir Direction) bool {
	i := f.externalIndex(floor, dir)
	if i < 0 {
		return false
	}
	f.ExternalStops = slices.Delete(f.ExternalStops, i, i+1)
	return true
}
