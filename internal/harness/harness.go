package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/liftsync/internal/clock"
	"github.com/roach88/liftsync/internal/fleet"
	"github.com/roach88/liftsync/internal/persist"
	"github.com/roach88/liftsync/internal/reconcile"
	"github.com/roach88/liftsync/internal/session"
	"github.com/roach88/liftsync/internal/state"
	"github.com/roach88/liftsync/internal/store"
	"github.com/roach88/liftsync/internal/throttle"
)

// Epoch is the fake clock's starting time.
var Epoch = time.UnixMilli(0)

// Harness runs the steps of one scenario against a fresh session.
type Harness struct {
	db      *store.Store
	clock   *clock.FakeClock
	state   *state.Store
	engine  *reconcile.Engine
	session *session.Session
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database. The returned
// error reports harness failures only; failed expectations are recorded in
// the Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	db, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer db.Close()

	if scenario.Persisted != "" {
		if err := db.Put(ctx, persist.RecordKey, scenario.Persisted); err != nil {
			return nil, fmt.Errorf("failed to seed persisted record: %w", err)
		}
	}

	window := throttle.DefaultWindow
	if scenario.Window != "" {
		if window, err = parsePositiveDuration(scenario.Window); err != nil {
			return nil, fmt.Errorf("window: %w", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		db:     db,
		clock:  clock.Fake(Epoch),
		state:  state.New(),
		logger: logger,
	}
	h.engine = reconcile.New(h.state,
		reconcile.WithClock(h.clock),
		reconcile.WithWindow(window),
		reconcile.WithLogger(logger))
	defer h.engine.Close()

	h.session = session.New(h.state, h.engine,
		session.WithPersister(persist.NewPersister(db, persist.WithLogger(logger))),
		session.WithJournal(db),
		session.WithLogger(logger))
	defer h.session.Close()

	result := NewResult()
	unsubscribe := h.state.Subscribe(func(c state.Change) {
		result.record(c.Kind.String(), fleet.Describe(c.Fleet))
	})
	defer unsubscribe()

	for i := range scenario.Steps {
		h.runStep(ctx, i+1, &scenario.Steps[i], result)
	}

	result.Final = h.state.Fleet()
	if raw, ok, err := db.Get(ctx, persist.RecordKey); err != nil {
		return nil, fmt.Errorf("failed to read persisted record: %w", err)
	} else if ok {
		result.Persisted = raw
	}
	entries, err := db.ReadJournal(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	result.Journaled = len(entries)

	return result, nil
}

func (h *Harness) runStep(ctx context.Context, index int, st *Step, result *Result) {
	result.beginStep(index, h.describeStep(st))

	var err error
	switch {
	case st.Initialize != nil:
		err = h.session.InitializeBuilding(st.Initialize.Floors, st.Initialize.Elevators)
	case st.Hydrate:
		err = h.session.Start(ctx)
	case st.Snapshot != nil:
		h.session.HandleSnapshot(h.snapshot(st.Snapshot))
		h.session.Drain(ctx)
	case st.Press != nil:
		err = h.session.PressCabin(st.Press.Elevator, st.Press.Floor)
	case st.Call != nil:
		err = h.session.CallElevator(st.Call.Floor, fleet.Direction(st.Call.Direction))
	case st.Advance != "":
		d, _ := parsePositiveDuration(st.Advance)
		h.clock.Advance(d)
	case st.Reset:
		h.session.Reset()
	case st.Expect != nil:
		problems := checkExpect(h.state, st.Expect)
		if len(problems) == 0 {
			result.record(EventExpect, "ok")
		}
		for _, p := range problems {
			result.record(EventExpect, "FAILED "+p)
			result.AddError(fmt.Sprintf("step %d: %s", index, p))
		}
	}

	h.checkError(index, st, err, result)

	for _, e := range h.state.Fleet().Elevators {
		if perr := fleet.CheckStopPartition(e); perr != nil {
			result.AddError(fmt.Sprintf("step %d: %v", index, perr))
		}
	}
}

func (h *Harness) checkError(index int, st *Step, err error, result *Result) {
	if err == nil {
		if st.ExpectError != "" {
			result.AddError(fmt.Sprintf("step %d: expected error %s, got none", index, st.ExpectError))
		}
		return
	}

	code := string(fleet.ValidationCode(err))
	if code == "" {
		code = err.Error()
	}
	result.record(EventError, code)
	if code != st.ExpectError {
		result.AddError(fmt.Sprintf("step %d: unexpected error: %v", index, err))
	}
}

func (h *Harness) snapshot(s *SnapshotStep) fleet.Snapshot {
	ts := h.clock.Now()
	if s.TimestampMs != nil {
		ts = time.UnixMilli(*s.TimestampMs)
	}
	snap := fleet.Snapshot{
		TotalFloors: s.TotalFloors,
		Timestamp:   ts,
		Elevators:   make([]fleet.ElevatorStatus, len(s.Elevators)),
	}
	for i, e := range s.Elevators {
		dir, _ := parseStatusDirection(e.Direction)
		snap.Elevators[i] = fleet.ElevatorStatus{
			ID:        e.ID,
			Position:  e.Floor,
			Direction: dir,
			DoorOpen:  e.DoorOpen,
		}
	}
	return snap
}

func (h *Harness) describeStep(st *Step) string {
	switch {
	case st.Initialize != nil:
		return fmt.Sprintf("initialize floors=%d elevators=%d", st.Initialize.Floors, st.Initialize.Elevators)
	case st.Hydrate:
		return "hydrate"
	case st.Snapshot != nil:
		snap := h.snapshot(st.Snapshot)
		var b strings.Builder
		fmt.Fprintf(&b, "snapshot floors=%d t=%d", snap.TotalFloors, snap.Timestamp.UnixMilli())
		for _, e := range snap.Elevators {
			fmt.Fprintf(&b, " e%d:%d:%s:%s", e.ID, e.Position, e.Direction, fleet.DoorState(e.DoorOpen))
		}
		return b.String()
	case st.Press != nil:
		return fmt.Sprintf("press elevator=%d floor=%d", st.Press.Elevator, st.Press.Floor)
	case st.Call != nil:
		return fmt.Sprintf("call floor=%d direction=%s", st.Call.Floor, st.Call.Direction)
	case st.Advance != "":
		d, _ := parsePositiveDuration(st.Advance)
		return fmt.Sprintf("advance %s now=%d", d, h.clock.Now().Add(d).UnixMilli())
	case st.Reset:
		return "reset"
	case st.Expect != nil:
		return "expect"
	default:
		return "unknown"
	}
}
