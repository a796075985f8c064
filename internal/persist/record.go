// Package persist keeps the durable subset of fleet state.
//
// Only intent survives a restart: per-elevator stop sets, the hall-call set
// and the building size. Position, direction and door state are always
// taken from the server again.
//
// Serialize and Merge are pure; Persister wires them to a Storage and a
// state.Store at defined lifecycle points.
package persist

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/liftsync/internal/fleet"
)

// RecordKey is the storage key holding the record.
const RecordKey = "elevator-storage"

// MaxElevators bounds the elevator ids and count a record may carry.
const MaxElevators = 1024

// Record is the persisted projection of a fleet.
type Record struct {
	Elevators      []ElevatorRecord     `json:"elevators"`
	ExternalStops  []fleet.ExternalStop `json:"externalStops"`
	TotalFloors    int                  `json:"total_floors"`
	TotalElevators int                  `json:"total_elevators"`
}

// ElevatorRecord holds the intent fields of one elevator.
type ElevatorRecord struct {
	ID        int   `json:"elevator_id"`
	UpStops   []int `json:"up_stops"`
	DownStops []int `json:"down_stops"`
}

// Serialize projects f onto a Record.
func Serialize(f fleet.Fleet) Record {
	r := Record{
		Elevators:      make([]ElevatorRecord, len(f.Elevators)),
		ExternalStops:  make([]fleet.ExternalStop, len(f.ExternalStops)),
		TotalFloors:    f.TotalFloors,
		TotalElevators: len(f.Elevators),
	}
	for i, e := range f.Elevators {
		c := e.Clone()
		r.Elevators[i] = ElevatorRecord{ID: c.ID, UpStops: c.UpStops, DownStops: c.DownStops}
	}
	copy(r.ExternalStops, f.ExternalStops)
	return r
}

// Encode returns the JSON form of r.
func Encode(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// Decode parses a JSON record and checks its shape: counts must not be
// negative, elevator ids and total_elevators must lie within MaxElevators,
// and hall calls must be U or D.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, &fleet.ParseError{Reason: "decode record", Err: err}
	}
	if r.TotalFloors < 0 {
		return Record{}, &fleet.ParseError{Reason: fmt.Sprintf("record total_floors %d is negative", r.TotalFloors)}
	}
	if r.TotalElevators < 0 || r.TotalElevators > MaxElevators {
		return Record{}, &fleet.ParseError{
			Reason: fmt.Sprintf("record total_elevators %d outside [0, %d]", r.TotalElevators, MaxElevators),
		}
	}
	for _, e := range r.Elevators {
		if e.ID < 0 || e.ID >= MaxElevators {
			return Record{}, &fleet.ParseError{
				Reason: fmt.Sprintf("record elevator_id %d outside [0, %d)", e.ID, MaxElevators),
			}
		}
	}
	for _, s := range r.ExternalStops {
		if !s.Direction.IsCall() {
			return Record{}, &fleet.ParseError{
				Reason: fmt.Sprintf("record hall call at floor %d has direction %q", s.Floor, s.Direction),
			}
		}
	}
	return r, nil
}
