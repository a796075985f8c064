package harness

import (
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/liftsync/internal/fleet"
	"github.com/roach88/liftsync/internal/state"
)

// checkExpect compares the store with e and returns one message per
// mismatch.
func checkExpect(s *state.Store, e *ExpectStep) []string {
	var problems []string
	f := s.Fleet()

	if e.Hydrated != nil && s.Hydrated() != *e.Hydrated {
		problems = append(problems, fmt.Sprintf("hydrated: expected %t, got %t", *e.Hydrated, s.Hydrated()))
	}

	if e.TotalFloors != nil && f.TotalFloors != *e.TotalFloors {
		problems = append(problems, fmt.Sprintf("total_floors: expected %d, got %d", *e.TotalFloors, f.TotalFloors))
	}

	if e.HallCalls != nil {
		want := make([]string, 0, len(e.HallCalls))
		for _, hc := range e.HallCalls {
			stop, _ := parseHallCall(hc)
			want = append(want, stop.String())
		}
		got := make([]string, 0, len(f.ExternalStops))
		for _, stop := range f.ExternalStops {
			got = append(got, stop.String())
		}
		sort.Strings(want)
		sort.Strings(got)
		if !slices.Equal(want, got) {
			problems = append(problems, fmt.Sprintf("hall_calls: expected %v, got %v", want, got))
		}
	}

	ids := make([]int, 0, len(e.Elevators))
	for id := range e.Elevators {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		problems = append(problems, checkElevator(f, id, e.Elevators[id])...)
	}

	return problems
}

func checkElevator(f fleet.Fleet, id int, want ExpectedElevator) []string {
	i := f.Index(id)
	if i < 0 {
		return []string{fmt.Sprintf("elevator %d: not found", id)}
	}
	got := f.Elevators[i]

	var problems []string
	mismatch := func(field string, want, got any) {
		problems = append(problems, fmt.Sprintf("elevator %d %s: expected %v, got %v", id, field, want, got))
	}
	if want.Floor != nil && got.Position != *want.Floor {
		mismatch("floor", *want.Floor, got.Position)
	}
	if want.Direction != "" && got.Direction != fleet.Direction(want.Direction) {
		mismatch("direction", want.Direction, got.Direction)
	}
	if want.DoorOpen != nil && got.DoorOpen != *want.DoorOpen {
		mismatch("door_open", *want.DoorOpen, got.DoorOpen)
	}
	if want.Up != nil && !slices.Equal(want.Up, got.UpStops) {
		mismatch("up", want.Up, got.UpStops)
	}
	if want.Down != nil && !slices.Equal(want.Down, got.DownStops) {
		mismatch("down", want.Down, got.DownStops)
	}
	return problems
}
