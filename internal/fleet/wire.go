package fleet

import (
	"fmt"
	"math"
)

// WireElevator is one elevator as the backend encodes it, in WebSocket
// frames and in GET /status responses.
type WireElevator struct {
	ID int `json:"elevator_id"`
	// The backend reports fractional floors while a car is between
	// floors.
	CurrentFloor float64 `json:"current_floor"`
	Direction    string  `json:"direction"`
	IsDoorOpen   bool    `json:"is_door_open"`
	UpStops      []int   `json:"up_stops"`
	DownStops    []int   `json:"down_stops"`
}

// Status converts w into an ElevatorStatus. The floor is rounded down and a
// missing direction is read as Idle. Floors must lie in [0, MaxInt32].
func (w WireElevator) Status() (ElevatorStatus, error) {
	dir := Idle
	if w.Direction != "" {
		d, err := ParseDirection(w.Direction)
		if err != nil {
			return ElevatorStatus{}, &ParseError{Reason: fmt.Sprintf("elevator %d", w.ID), Err: err}
		}
		dir = d
	}
	if math.IsNaN(w.CurrentFloor) || w.CurrentFloor < 0 || w.CurrentFloor > math.MaxInt32 {
		return ElevatorStatus{}, &ParseError{
			Reason: fmt.Sprintf("elevator %d: current_floor %v", w.ID, w.CurrentFloor),
		}
	}
	return ElevatorStatus{
		ID:        w.ID,
		Position:  int(math.Floor(w.CurrentFloor)),
		Direction: dir,
		DoorOpen:  w.IsDoorOpen,
		UpStops:   w.UpStops,
		DownStops: w.DownStops,
	}, nil
}

// StatusesFromWire converts every element of ws, stopping at the first
// invalid one.
func StatusesFromWire(ws []WireElevator) ([]ElevatorStatus, error) {
	out := make([]ElevatorStatus, 0, len(ws))
	for _, w := range ws {
		s, err := w.Status()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
