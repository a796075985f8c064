// Package fleet defines the client-side data model of an elevator fleet.
//
// The model splits every elevator into two kinds of fields:
//
//   - Transient fields (Position, Direction, DoorOpen) are owned by the
//     server and only ever written from authoritative snapshots.
//   - Intent fields (UpStops, DownStops) and the fleet-wide hall calls
//     (ExternalStops) are owned by the client: they are written by
//     optimistic user actions and restored from durable storage.
//
// # Invariants
//
//   - Elevator ids are unique and contiguous from 0, and Fleet.Elevators is
//     ordered by id.
//   - 0 <= floor < TotalFloors for every valid floor reference.
//   - UpStops is ascending, DownStops is descending, and a floor never
//     appears in both for the same elevator. The set helpers in this
//     package keep the ordering; CheckStopPartition reports violations
//     that arrive from outside (storage, upstream bugs) without repairing
//     them.
//   - ExternalStops holds at most one entry per (floor, direction) pair.
//
// Values returned by stores are deep copies (see Fleet.Clone); mutating
// them never affects shared state.
package fleet
