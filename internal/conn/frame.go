package conn

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/liftsync/internal/fleet"
)

// TypeStateUpdate is the only frame type the manager forwards.
const TypeStateUpdate = "state_update"

// ErrUnknownMessageType is returned by ParseFrame for well-formed frames of
// a type other than TypeStateUpdate.
var ErrUnknownMessageType = errors.New("unknown message type")

type wireFrame struct {
	Type        string               `json:"type"`
	TotalFloors int                  `json:"total_floors"`
	Timestamp   float64              `json:"timestamp"`
	Elevators   []fleet.WireElevator `json:"elevators"`
}

// ParseFrame decodes one inbound WebSocket message.
//
// Malformed JSON and invalid field values yield a *fleet.ParseError. A
// frame whose type is not state_update yields an error wrapping
// ErrUnknownMessageType.
func ParseFrame(data []byte) (fleet.Snapshot, error) {
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return fleet.Snapshot{}, &fleet.ParseError{Reason: "decode frame", Err: err}
	}
	if f.Type != TypeStateUpdate {
		return fleet.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, f.Type)
	}

	elevators, err := fleet.StatusesFromWire(f.Elevators)
	if err != nil {
		return fleet.Snapshot{}, err
	}
	snap := fleet.Snapshot{
		TotalFloors: f.TotalFloors,
		Elevators:   elevators,
	}
	if f.Timestamp > 0 {
		snap.Timestamp = time.UnixMilli(int64(f.Timestamp))
	}
	return snap, nil
}
