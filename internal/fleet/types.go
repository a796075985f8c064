package fleet

import (
	"fmt"
	"time"
)

// Direction is the travel direction of an elevator or a hall call.
// The string values are the wire encoding used by the backend.
type Direction string

const (
	Up   Direction = "U"
	Down Direction = "D"
	Idle Direction = "IDLE"
)

// ParseDirection converts a wire string into a Direction.
// Only "U", "D" and "IDLE" are accepted.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down, Idle:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Opposite returns the reverse travel direction. Idle has no opposite and
// is returned unchanged.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	default:
		return d
	}
}

// IsCall reports whether d is a valid hall call direction.
func (d Direction) IsCall() bool {
	return d == Up || d == Down
}

// Elevator is the local view of one car.
type Elevator struct {
	ID        int       `json:"id"`
	Position  int       `json:"position"`
	Direction Direction `json:"direction"`
	DoorOpen  bool      `json:"door_open"`

	// UpStops is ascending, DownStops descending.
	UpStops   []int `json:"up_stops"`
	DownStops []int `json:"down_stops"`
}

// NewElevator returns an elevator at floor 0, idle, door closed, with no
// stops.
func NewElevator(id int) Elevator {
	return Elevator{
		ID:        id,
		Direction: Idle,
		UpStops:   []int{},
		DownStops: []int{},
	}
}

// Clone returns a deep copy of the elevator.
func (e Elevator) Clone() Elevator {
	e.UpStops = cloneInts(e.UpStops)
	e.DownStops = cloneInts(e.DownStops)
	return e
}

// HasStop reports whether floor is in either stop set.
func (e Elevator) HasStop(floor int) bool {
	return containsInt(e.UpStops, floor) || containsInt(e.DownStops, floor)
}

// ExternalStop is a hall call, shared across the whole fleet.
type ExternalStop struct {
	Floor     int       `json:"floor"`
	Direction Direction `json:"direction"`
}

// Fleet is the canonical client-side state of the building.
type Fleet struct {
	Elevators     []Elevator     `json:"elevators"`
	TotalFloors   int            `json:"total_floors"`
	LastUpdate    time.Time      `json:"last_update"`
	ExternalStops []ExternalStop `json:"external_stops"`
}

// Empty returns the all-empty initial state.
func Empty() Fleet {
	return Fleet{
		Elevators:     []Elevator{},
		ExternalStops: []ExternalStop{},
	}
}

// NewBuilding returns a fleet of count fresh elevators over floors floors.
func NewBuilding(floors, count int) Fleet {
	f := Fleet{
		Elevators:     make([]Elevator, count),
		TotalFloors:   floors,
		ExternalStops: []ExternalStop{},
	}
	for i := range f.Elevators {
		f.Elevators[i] = NewElevator(i)
	}
	return f
}

// Clone returns a deep copy of the fleet.
func (f Fleet) Clone() Fleet {
	out := f
	out.Elevators = make([]Elevator, len(f.Elevators))
	for i, e := range f.Elevators {
		out.Elevators[i] = e.Clone()
	}
	out.ExternalStops = make([]ExternalStop, len(f.ExternalStops))
	copy(out.ExternalStops, f.ExternalStops)
	return out
}

// Index returns the slice index of the elevator with the given id, or -1.
func (f Fleet) Index(id int) int {
	// Ids are contiguous in the common case; fall back to a scan when the
	// fleet grew out of order.
	if id >= 0 && id < len(f.Elevators) && f.Elevators[id].ID == id {
		return id
	}
	for i, e := range f.Elevators {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// HasExternalStop reports whether the hall call (floor, dir) is pending.
func (f Fleet) HasExternalStop(floor int, dir Direction) bool {
	return f.externalIndex(floor, dir) >= 0
}

func (f Fleet) externalIndex(floor int, dir Direction) int {
	for i, s := range f.ExternalStops {
		if s.Floor == floor && s.Direction == dir {
			return i
		}
	}
	return -1
}

// ElevatorStatus is the server-owned projection of one elevator carried by
// a snapshot. UpStops and DownStops mirror the wire frame and are ignored
// when reconciling.
type ElevatorStatus struct {
	ID        int
	Position  int
	Direction Direction
	DoorOpen  bool
	UpStops   []int
	DownStops []int
}

// Snapshot is an authoritative state push for the whole fleet.
type Snapshot struct {
	TotalFloors int
	Elevators   []ElevatorStatus
	Timestamp   time.Time
}
