package persist

import (
	"github.com/roach88/liftsync/internal/fleet"
)

// Merge combines a persisted record with the current in-memory state.
//
// Cold start, when current has no elevators: elevator shells are rebuilt
// from the record with transient fields at their defaults and stop sets
// restored verbatim. The fleet is filled up to total_elevators so ids stay
// contiguous even if the record omitted an elevator with no stops. Building
// size and hall calls come from the record.
//
// Warm merge, when current already has elevators: each live elevator with a
// persisted match gets its stop sets overwritten. Persisted ids with no live
// elevator are dropped and live elevators with no persisted match keep
// their stop sets. Hall calls come from the record. The live building size
// wins unless it is unset.
//
// Stop sets are restored as stored; a record that breaks the up/down
// partition is not repaired here.
func Merge(r Record, current fleet.Fleet) fleet.Fleet {
	if len(current.Elevators) == 0 {
		return coldStart(r, current)
	}

	next := current.Clone()
	byID := make(map[int]ElevatorRecord, len(r.Elevators))
	for _, er := range r.Elevators {
		byID[er.ID] = er
	}
	for i := range next.Elevators {
		er, ok := byID[next.Elevators[i].ID]
		if !ok {
			continue
		}
		next.Elevators[i].UpStops = restoreStops(er.UpStops)
		next.Elevators[i].DownStops = restoreStops(er.DownStops)
	}
	next.ExternalStops = restoreCalls(r.ExternalStops)
	if next.TotalFloors <= 0 {
		next.TotalFloors = r.TotalFloors
	}
	return next
}

// coldStart clamps counts and skips ids outside [0, MaxElevators) so a
// record that bypassed Decode cannot make it allocate without bound.
func coldStart(r Record, current fleet.Fleet) fleet.Fleet {
	count := min(max(r.TotalElevators, 0), MaxElevators)
	for _, er := range r.Elevators {
		if validID(er.ID) && er.ID >= count {
			count = er.ID + 1
		}
	}

	next := fleet.NewBuilding(max(r.TotalFloors, 0), count)
	next.LastUpdate = current.LastUpdate
	for _, er := range r.Elevators {
		if !validID(er.ID) {
			continue
		}
		e := &next.Elevators[er.ID]
		e.UpStops = restoreStops(er.UpStops)
		e.DownStops = restoreStops(er.DownStops)
	}
	next.ExternalStops = restoreCalls(r.ExternalStops)
	return next
}

func validID(id int) bool {
	return id >= 0 && id < MaxElevators
}

func restoreStops(in []int) []int {
	out := make([]int, len(in))
	copy(out, in)
	return out
}

func restoreCalls(in []fleet.ExternalStop) []fleet.ExternalStop {
	out := make([]fleet.ExternalStop, 0, len(in))
	seen := make(map[fleet.ExternalStop]struct{}, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
