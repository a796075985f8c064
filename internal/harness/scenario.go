package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/liftsync/internal/fleet"
)

// Scenario is a scripted session run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Window overrides the hall-call throttle window, as a Go duration.
	Window string `yaml:"window,omitempty"`

	// Persisted is a raw record placed in storage before the first step.
	// It need not be valid; corrupt records are part of what is tested.
	Persisted string `yaml:"persisted,omitempty"`

	Steps []Step `yaml:"steps"`
}

// Step is one action. Exactly one action field is set.
type Step struct {
	Initialize *InitializeStep `yaml:"initialize,omitempty"`
	Hydrate    bool            `yaml:"hydrate,omitempty"`
	Snapshot   *SnapshotStep   `yaml:"snapshot,omitempty"`
	Press      *PressStep      `yaml:"press,omitempty"`
	Call       *CallStep       `yaml:"call,omitempty"`
	Advance    string          `yaml:"advance,omitempty"`
	Reset      bool            `yaml:"reset,omitempty"`
	Expect     *ExpectStep     `yaml:"expect,omitempty"`

	// ExpectError is the validation code an initialize, press or call
	// step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// InitializeStep re-initializes the building.
type InitializeStep struct {
	Floors    int `yaml:"floors"`
	Elevators int `yaml:"elevators"`
}

// SnapshotStep delivers a server push.
type SnapshotStep struct {
	TotalFloors int `yaml:"total_floors"`
	// TimestampMs defaults to the fake clock.
	TimestampMs *int64             `yaml:"timestamp_ms,omitempty"`
	Elevators   []SnapshotElevator `yaml:"elevators"`
}

// SnapshotElevator is one elevator in a pushed snapshot.
type SnapshotElevator struct {
	ID        int    `yaml:"id"`
	Floor     int    `yaml:"floor"`
	Direction string `yaml:"direction"`
	DoorOpen  bool   `yaml:"door_open"`
}

// PressStep is a cabin button press.
type PressStep struct {
	Elevator int `yaml:"elevator"`
	Floor    int `yaml:"floor"`
}

// CallStep is a hall button press.
type CallStep struct {
	Floor     int    `yaml:"floor"`
	Direction string `yaml:"direction"`
}

// ExpectStep checks the store. Unset fields are not checked.
type ExpectStep struct {
	TotalFloors *int  `yaml:"total_floors,omitempty"`
	Hydrated    *bool `yaml:"hydrated,omitempty"`
	// HallCalls are written floor then direction, e.g. "4U". Order does
	// not matter.
	HallCalls []string                 `yaml:"hall_calls,omitempty"`
	Elevators map[int]ExpectedElevator `yaml:"elevators,omitempty"`
}

// ExpectedElevator is the expected state of one elevator.
type ExpectedElevator struct {
	Floor     *int   `yaml:"floor,omitempty"`
	Direction string `yaml:"direction,omitempty"`
	DoorOpen  *bool  `yaml:"door_open,omitempty"`
	Up        []int  `yaml:"up,omitempty"`
	Down      []int  `yaml:"down,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "stpes:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml file in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Window != "" {
		if _, err := parsePositiveDuration(s.Window); err != nil {
			return fmt.Errorf("window: %w", err)
		}
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its action.
func validateStep(index int, st *Step) error {
	action := st.action()
	switch action {
	case "":
		return fmt.Errorf("steps[%d]: no action", index)
	case "ambiguous":
		return fmt.Errorf("steps[%d]: more than one action", index)
	}

	if st.ExpectError != "" {
		switch action {
		case "initialize", "press", "call":
		default:
			return fmt.Errorf("steps[%d]: expect_error is not allowed on %s", index, action)
		}
	}

	switch {
	case st.Snapshot != nil:
		for j, e := range st.Snapshot.Elevators {
			if _, err := parseStatusDirection(e.Direction); err != nil {
				return fmt.Errorf("steps[%d].snapshot.elevators[%d]: %w", index, j, err)
			}
		}
	case st.Advance != "":
		if _, err := parsePositiveDuration(st.Advance); err != nil {
			return fmt.Errorf("steps[%d].advance: %w", index, err)
		}
	case st.Expect != nil:
		for _, hc := range st.Expect.HallCalls {
			if _, err := parseHallCall(hc); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", index, err)
			}
		}
		for id, e := range st.Expect.Elevators {
			if e.Direction != "" {
				if _, err := fleet.ParseDirection(e.Direction); err != nil {
					return fmt.Errorf("steps[%d].expect.elevators[%d]: %w", index, id, err)
				}
			}
		}
	}

	return nil
}

// action names the step's action, "" if none is set, or "ambiguous".
func (st *Step) action() string {
	var set []string
	if st.Initialize != nil {
		set = append(set, "initialize")
	}
	if st.Hydrate {
		set = append(set, "hydrate")
	}
	if st.Snapshot != nil {
		set = append(set, "snapshot")
	}
	if st.Press != nil {
		set = append(set, "press")
	}
	if st.Call != nil {
		set = append(set, "call")
	}
	if st.Advance != "" {
		set = append(set, "advance")
	}
	if st.Reset {
		set = append(set, "reset")
	}
	if st.Expect != nil {
		set = append(set, "expect")
	}
	switch len(set) {
	case 0:
		return ""
	case 1:
		return set[0]
	default:
		return "ambiguous"
	}
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}

// parseStatusDirection accepts U, D, IDLE or empty (idle).
func parseStatusDirection(s string) (fleet.Direction, error) {
	if s == "" {
		return fleet.Idle, nil
	}
	return fleet.ParseDirection(s)
}

// parseHallCall parses "4U" or "0D".
func parseHallCall(s string) (fleet.ExternalStop, error) {
	if len(s) < 2 {
		return fleet.ExternalStop{}, fmt.Errorf("hall call %q: want floor and U or D, e.g. 4U", s)
	}
	dir := fleet.Direction(s[len(s)-1:])
	if !dir.IsCall() {
		return fleet.ExternalStop{}, fmt.Errorf("hall call %q: direction must be U or D", s)
	}
	floor, err := strconv.Atoi(strings.TrimSpace(s[:len(s)-1]))
	if err != nil {
		return fleet.ExternalStop{}, fmt.Errorf("hall call %q: %w", s, err)
	}
	return fleet.ExternalStop{Floor: floor, Direction: dir}, nil
}
