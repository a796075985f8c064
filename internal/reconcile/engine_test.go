package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/clock"
	"github.com/roach88/liftsync/internal/fleet"
	"github.com/roach88/liftsync/internal/state"
)

func setup(t *testing.T, floors, count int) (*state.Store, *Engine, *clock.FakeClock) {
	t.Helper()
	s := state.New()
	require.NoError(t, s.InitializeBuilding(floors, count))
	clk := clock.Fake(time.UnixMilli(0))
	e := New(s, WithClock(clk), WithWindow(4000*time.Millisecond))
	t.Cleanup(e.Close)
	return s, e, clk
}

func status(id, floor int, dir fleet.Direction, door bool) fleet.ElevatorStatus {
	return fleet.ElevatorStatus{ID: id, Position: floor, Direction: dir, DoorOpen: door}
}

func snapshot(floors int, ts int64, elevators ...fleet.ElevatorStatus) fleet.Snapshot {
	return fleet.Snapshot{TotalFloors: floors, Timestamp: time.UnixMilli(ts), Elevators: elevators}
}

func TestApplySnapshot_BeforeHydrationIsNoop(t *testing.T) {
	s, e, _ := setup(t, 10, 2)
	require.NoError(t, s.AddInternalStop(1, 5))
	require.NoError(t, s.AddExternalStop(3, fleet.Up))
	before := s.Fleet()

	notified := 0
	s.Subscribe(func(state.Change) { notified++ })

	changed := e.ApplySnapshot(snapshot(12, 100,
		status(0, 3, fleet.Up, true),
		status(1, 5, fleet.Down, true),
		status(2, 7, fleet.Idle, false),
	))

	assert.False(t, changed)
	assert.Equal(t, before, s.Fleet())
	assert.Equal(t, 0, notified)
}

func TestApplySnapshot_Scenarios(t *testing.T) {
	s, e, clk := setup(t, 5, 2)
	s.MarkHydrated()

	// Scenario 1: fresh building.
	f := s.Fleet()
	require.Len(t, f.Elevators, 2)
	for _, el := range f.Elevators {
		assert.Equal(t, fleet.NewElevator(el.ID), el)
	}
	assert.Empty(t, f.ExternalStops)

	// Scenario 2: snapshot moves elevator 0, stops unchanged.
	require.True(t, e.ApplySnapshot(snapshot(5, 10, status(0, 3, fleet.Up, false))))
	el, _ := s.Elevator(0)
	assert.Equal(t, 3, el.Position)
	assert.Equal(t, fleet.Up, el.Direction)
	assert.Empty(t, el.UpStops)
	assert.Empty(t, el.DownStops)

	// Scenario 3: cabin requests partition around position 3.
	require.NoError(t, s.AddInternalStop(0, 4))
	require.NoError(t, s.AddInternalStop(0, 1))
	el, _ = s.Elevator(0)
	assert.Equal(t, []int{4}, el.UpStops)
	assert.Equal(t, []int{1}, el.DownStops)

	// Scenario 4: door opens at floor 4, t=1000; the hall call clears.
	require.NoError(t, s.AddExternalStop(4, fleet.Up))
	clk.Advance(1000 * time.Millisecond)
	require.True(t, e.ApplySnapshot(snapshot(5, 1000, status(0, 4, fleet.Up, true))))
	f = s.Fleet()
	assert.Empty(t, f.ExternalStops)
	assert.Empty(t, f.Elevators[0].UpStops, "cabin request at the door floor is served")
	assert.Equal(t, []int{1}, f.Elevators[0].DownStops)

	// Scenario 5: door still open at t=2000; gate holds, nothing removed.
	require.NoError(t, s.AddExternalStop(4, fleet.Up))
	clk.Advance(1000 * time.Millisecond)
	e.ApplySnapshot(snapshot(5, 2000, status(0, 4, fleet.Up, true)))
	assert.Equal(t, []fleet.ExternalStop{{Floor: 4, Direction: fleet.Up}}, s.Fleet().ExternalStops)

	// Window elapsed: clears again.
	clk.Advance(3000 * time.Millisecond)
	e.ApplySnapshot(snapshot(5, 5000, status(0, 4, fleet.Up, true)))
	assert.Empty(t, s.Fleet().ExternalStops)

	for _, el := range s.Fleet().Elevators {
		assert.NoError(t, fleet.CheckStopPartition(el))
	}
}

func TestApplySnapshot_FallbackDirection(t *testing.T) {
	s, e, _ := setup(t, 10, 1)
	s.MarkHydrated()
	require.NoError(t, s.AddExternalStop(6, fleet.Down))

	e.ApplySnapshot(snapshot(10, 1, status(0, 6, fleet.Up, true)))

	assert.Empty(t, s.Fleet().ExternalStops)
}

func TestApplySnapshot_PrimaryDirectionFirst(t *testing.T) {
	s, e, _ := setup(t, 10, 1)
	s.MarkHydrated()
	require.NoError(t, s.AddExternalStop(6, fleet.Up))
	require.NoError(t, s.AddExternalStop(6, fleet.Down))

	e.ApplySnapshot(snapshot(10, 1, status(0, 6, fleet.Down, true)))

	assert.Equal(t, []fleet.ExternalStop{{Floor: 6, Direction: fleet.Up}}, s.Fleet().ExternalStops)
}

func TestApplySnapshot_CabinClearIsUnthrottled(t *testing.T) {
	s, e, clk := setup(t, 10, 1)
	s.MarkHydrated()

	require.NoError(t, s.AddInternalStop(0, 5))
	e.ApplySnapshot(snapshot(10, 1, status(0, 5, fleet.Up, true)))

	clk.Advance(100 * time.Millisecond)
	require.NoError(t, s.AddInternalStop(0, 5))
	e.ApplySnapshot(snapshot(10, 2, status(0, 5, fleet.Up, true)))

	el, _ := s.Elevator(0)
	assert.False(t, el.HasStop(5))
}

func TestApplySnapshot_GatesAreIndependent(t *testing.T) {
	s, e, _ := setup(t, 10, 2)
	s.MarkHydrated()
	require.NoError(t, s.AddExternalStop(2, fleet.Up))
	require.NoError(t, s.AddExternalStop(7, fleet.Up))

	e.ApplySnapshot(snapshot(10, 1, status(0, 2, fleet.Up, true)))
	e.ApplySnapshot(snapshot(10, 2, status(1, 7, fleet.Up, true)))

	assert.Empty(t, s.Fleet().ExternalStops)
}

func TestApplySnapshot_OlderTimestampStillApplied(t *testing.T) {
	s, e, _ := setup(t, 10, 1)
	s.MarkHydrated()

	e.ApplySnapshot(snapshot(10, 5000, status(0, 6, fleet.Up, false)))
	e.ApplySnapshot(snapshot(10, 1000, status(0, 2, fleet.Down, false)))

	el, _ := s.Elevator(0)
	assert.Equal(t, 2, el.Position)
	assert.Equal(t, time.UnixMilli(1000), s.Fleet().LastUpdate)
}

func TestApplySnapshot_GrowsFleet(t *testing.T) {
	s, e, _ := setup(t, 10, 1)
	s.MarkHydrated()

	e.ApplySnapshot(snapshot(10, 1, status(0, 0, fleet.Idle, false), status(1, 3, fleet.Up, false)))

	f := s.Fleet()
	require.Len(t, f.Elevators, 2)
	assert.Equal(t, 3, f.Elevators[1].Position)
	require.NoError(t, s.AddInternalStop(1, 8))
}

func TestEngine_BuildingResetForgetsGate(t *testing.T) {
	s, e, _ := setup(t, 10, 1)
	s.MarkHydrated()
	require.NoError(t, s.AddExternalStop(3, fleet.Up))
	e.ApplySnapshot(snapshot(10, 1, status(0, 3, fleet.Up, true)))
	require.Empty(t, s.Fleet().ExternalStops)

	require.NoError(t, s.InitializeBuilding(10, 1))
	require.NoError(t, s.AddExternalStop(3, fleet.Up))
	e.ApplySnapshot(snapshot(10, 2, status(0, 3, fleet.Up, true)))

	assert.Empty(t, s.Fleet().ExternalStops, "clock did not move but the gate was reset")
}
