package harness

import (
	"github.com/roach88/liftsync/internal/fleet"
)

// Trace event kinds besides state.ChangeKind names.
const (
	EventError  = "error"
	EventExpect = "expect"
)

// TraceEvent is one observation made while running a step.
type TraceEvent struct {
	Step   int    `json:"step"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// StepTrace is the header of one executed step and what it caused.
type StepTrace struct {
	Index  int          `json:"index"`
	Action string       `json:"action"`
	Events []TraceEvent `json:"events"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation held and no step failed
	// unexpectedly.
	Pass bool `json:"pass"`

	Steps  []StepTrace `json:"steps"`
	Errors []string    `json:"errors,omitempty"`

	// Final is the store state after the last step.
	Final fleet.Fleet `json:"final"`

	// Persisted is the stored record, or "" if nothing was saved.
	Persisted string `json:"persisted,omitempty"`

	// Journaled counts snapshots written to the journal.
	Journaled int `json:"journaled"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) beginStep(index int, action string) {
	r.Steps = append(r.Steps, StepTrace{Index: index, Action: action, Events: []TraceEvent{}})
}

func (r *Result) record(kind, detail string) {
	if len(r.Steps) == 0 {
		return
	}
	cur := &r.Steps[len(r.Steps)-1]
	cur.Events = append(cur.Events, TraceEvent{Step: cur.Index, Kind: kind, Detail: detail})
}
