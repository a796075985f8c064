// Package harness replays fleet scenarios against the sync core.
//
// A scenario is a YAML list of steps driving one session the way a client
// would: building setup, hydration, server snapshots, cabin presses, hall
// calls and the passage of time. Every store change is recorded, so a run
// produces a deterministic trace that can be compared with a golden file.
//
// # Scenario Format
//
//	name: door_open_clears_hall_call
//	description: "What this scenario validates"
//	window: 4s            # throttle window, optional
//	persisted: '{...}'    # record in storage before the first step, optional
//	steps:
//	  - initialize: {floors: 5, elevators: 2}
//	  - hydrate: true
//	  - snapshot:
//	      total_floors: 5
//	      elevators:
//	        - {id: 0, floor: 3, direction: U, door_open: false}
//	  - press: {elevator: 0, floor: 4}
//	  - call: {floor: 4, direction: U}
//	  - advance: 1s
//	  - reset: true
//	  - expect:
//	      hall_calls: [4U]
//	      elevators:
//	        0: {floor: 3, up: [4], down: []}
//
// initialize, press and call may carry expect_error with a validation code
// such as FLOOR_OUT_OF_RANGE; the step must then fail with that code.
//
// Each run uses a fresh in-memory SQLite store for the persisted record
// and the snapshot journal, and a fake clock starting at the Unix epoch.
// After every step the up/down partition of every elevator is checked.
package harness
