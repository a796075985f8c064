package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/fleet"
)

// newBuilding returns a store initialized with the given building.
func newBuilding(t *testing.T, floors, count int) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.InitializeBuilding(floors, count))
	return s
}

// placeAt moves elevator id to floor as if a snapshot said so.
func placeAt(t *testing.T, s *Store, id, floor int) {
	t.Helper()
	require.NoError(t, s.UpdateSingleElevator(id, fleet.ElevatorStatus{
		ID: id, Position: floor, Direction: fleet.Idle,
	}))
}

func assertPartition(t *testing.T, f fleet.Fleet) {
	t.Helper()
	for _, e := range f.Elevators {
		assert.NoError(t, fleet.CheckStopPartition(e))
	}
}

func TestInitializeBuilding(t *testing.T) {
	s := newBuilding(t, 5, 2)
	f := s.Fleet()

	assert.Equal(t, 5, f.TotalFloors)
	require.Len(t, f.Elevators, 2)
	for _, e := range f.Elevators {
		assert.Equal(t, 0, e.Position)
		assert.Equal(t, fleet.Idle, e.Direction)
		assert.False(t, e.DoorOpen)
		assert.Empty(t, e.UpStops)
		assert.Empty(t, e.DownStops)
	}
	assert.Empty(t, f.ExternalStops)
}

func TestInitializeBuilding_IsHardReset(t *testing.T) {
	s := newBuilding(t, 5, 2)
	require.NoError(t, s.AddExternalStop(2, fleet.Up))
	require.NoError(t, s.AddInternalStop(1, 3))

	require.NoError(t, s.InitializeBuilding(8, 3))

	f := s.Fleet()
	assert.Equal(t, 8, f.TotalFloors)
	assert.Len(t, f.Elevators, 3)
	assert.Empty(t, f.ExternalStops)
	assert.Empty(t, f.Elevators[1].UpStops)
}

func TestInitializeBuilding_Invalid(t *testing.T) {
	s := New()

	err := s.InitializeBuilding(0, 2)
	assert.Equal(t, fleet.ErrCodeInvalidBuilding, fleet.ValidationCode(err))

	err = s.InitializeBuilding(5, 0)
	assert.Equal(t, fleet.ErrCodeInvalidBuilding, fleet.ValidationCode(err))

	assert.Empty(t, s.Fleet().Elevators)
}

func TestReset(t *testing.T) {
	s := newBuilding(t, 5, 2)
	require.NoError(t, s.AddExternalStop(2, fleet.Down))
	s.MarkHydrated()

	s.Reset()

	f := s.Fleet()
	assert.Empty(t, f.Elevators)
	assert.Empty(t, f.ExternalStops)
	assert.Equal(t, 0, f.TotalFloors)
	assert.True(t, s.Hydrated(), "reset keeps the hydration flag")
}

func TestAddInternalStop_PartitionsByPosition(t *testing.T) {
	s := newBuilding(t, 10, 1)
	placeAt(t, s, 0, 5)

	for _, floor := range []int{7, 2, 9, 0, 6, 3} {
		require.NoError(t, s.AddInternalStop(0, floor))
	}

	e, ok := s.Elevator(0)
	require.True(t, ok)
	assert.Equal(t, []int{6, 7, 9}, e.UpStops)
	assert.Equal(t, []int{3, 2, 0}, e.DownStops)
	assertPartition(t, s.Fleet())
}

func TestAddInternalStop_CurrentFloorGoesDown(t *testing.T) {
	s := newBuilding(t, 5, 1)
	placeAt(t, s, 0, 2)

	require.NoError(t, s.AddInternalStop(0, 2))

	e, _ := s.Elevator(0)
	assert.Empty(t, e.UpStops)
	assert.Equal(t, []int{2}, e.DownStops)
}

func TestAddInternalStop_DuplicateIsNoop(t *testing.T) {
	s := newBuilding(t, 5, 1)
	notified := 0
	s.Subscribe(func(Change) { notified++ })

	require.NoError(t, s.AddInternalStop(0, 3))
	require.NoError(t, s.AddInternalStop(0, 3))

	e, _ := s.Elevator(0)
	assert.Equal(t, []int{3}, e.UpStops)
	assert.Equal(t, 1, notified, "no-op must not notify")
}

func TestAddInternalStop_MovesAcrossSetsWhenPositionChanged(t *testing.T) {
	s := newBuilding(t, 10, 1)
	require.NoError(t, s.AddInternalStop(0, 4)) // at 0: up

	placeAt(t, s, 0, 6)
	require.NoError(t, s.AddInternalStop(0, 4)) // at 6: down

	e, _ := s.Elevator(0)
	assert.Empty(t, e.UpStops)
	assert.Equal(t, []int{4}, e.DownStops)
	assertPartition(t, s.Fleet())
}

func TestAddInternalStop_Validation(t *testing.T) {
	s := newBuilding(t, 5, 2)

	tests := []struct {
		name     string
		id       int
		floor    int
		wantCode fleet.ValidationErrorCode
	}{
		{"negative floor", 0, -1, fleet.ErrCodeFloorOutOfRange},
		{"floor at total", 0, 5, fleet.ErrCodeFloorOutOfRange},
		{"unknown elevator", 2, 1, fleet.ErrCodeUnknownElevator},
		{"negative elevator", -1, 1, fleet.ErrCodeUnknownElevator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddInternalStop(tt.id, tt.floor)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, fleet.ValidationCode(err))
		})
	}

	for _, e := range s.Fleet().Elevators {
		assert.Empty(t, e.UpStops)
		assert.Empty(t, e.DownStops)
	}
}

func TestRemoveInternalStop(t *testing.T) {
	s := newBuilding(t, 10, 1)
	placeAt(t, s, 0, 5)
	require.NoError(t, s.AddInternalStop(0, 8))
	require.NoError(t, s.AddInternalStop(0, 2))

	require.NoError(t, s.RemoveInternalStop(0, 8))
	require.NoError(t, s.RemoveInternalStop(0, 2))
	require.NoError(t, s.RemoveInternalStop(0, 2), "removal is idempotent")

	e, _ := s.Elevator(0)
	assert.Empty(t, e.UpStops)
	assert.Empty(t, e.DownStops)

	err := s.RemoveInternalStop(3, 1)
	assert.Equal(t, fleet.ErrCodeUnknownElevator, fleet.ValidationCode(err))
}

func TestRemoveInternalStop_ClearsBothSets(t *testing.T) {
	s := newBuilding(t, 10, 1)
	// Violating state can only come from outside (storage); removal still
	// cleans both sets.
	s.Mutate(ChangeRestore, func(f *fleet.Fleet) bool {
		f.Elevators[0].UpStops = []int{4}
		f.Elevators[0].DownStops = []int{4}
		return true
	})

	require.NoError(t, s.RemoveInternalStop(0, 4))

	e, _ := s.Elevator(0)
	assert.Empty(t, e.UpStops)
	assert.Empty(t, e.DownStops)
}

func TestClearInternalStops(t *testing.T) {
	s := newBuilding(t, 10, 3)
	for id := 0; id < 3; id++ {
		require.NoError(t, s.AddInternalStop(id, id+1))
	}

	require.NoError(t, s.ClearInternalStops(1))
	f := s.Fleet()
	assert.Equal(t, []int{1}, f.Elevators[0].UpStops)
	assert.Empty(t, f.Elevators[1].UpStops)
	assert.Equal(t, []int{3}, f.Elevators[2].UpStops)

	require.NoError(t, s.ClearInternalStops())
	for _, e := range s.Fleet().Elevators {
		assert.Empty(t, e.UpStops)
		assert.Empty(t, e.DownStops)
	}

	err := s.ClearInternalStops(0, 9)
	assert.Equal(t, fleet.ErrCodeUnknownElevator, fleet.ValidationCode(err))
}

func TestAddExternalStop_Idempotent(t *testing.T) {
	s := newBuilding(t, 5, 1)

	require.NoError(t, s.AddExternalStop(3, fleet.Up))
	require.NoError(t, s.AddExternalStop(3, fleet.Up))

	assert.Equal(t, []fleet.ExternalStop{{Floor: 3, Direction: fleet.Up}}, s.Fleet().ExternalStops)
}

func TestAddExternalStop_Validation(t *testing.T) {
	s := newBuilding(t, 5, 1)

	err := s.AddExternalStop(5, fleet.Up)
	assert.Equal(t, fleet.ErrCodeFloorOutOfRange, fleet.ValidationCode(err))

	err = s.AddExternalStop(2, fleet.Idle)
	assert.Equal(t, fleet.ErrCodeInvalidDirection, fleet.ValidationCode(err))

	assert.Empty(t, s.Fleet().ExternalStops)
}

func TestRemoveExternalStop_Contract(t *testing.T) {
	s := newBuilding(t, 5, 1)
	require.NoError(t, s.AddExternalStop(4, fleet.Up))
	require.NoError(t, s.AddExternalStop(2, fleet.Down))

	assert.False(t, s.RemoveExternalStop(4, fleet.Down))
	assert.Len(t, s.Fleet().ExternalStops, 2, "absent pair leaves the set unchanged")

	assert.True(t, s.RemoveExternalStop(4, fleet.Up))
	assert.Equal(t, []fleet.ExternalStop{{Floor: 2, Direction: fleet.Down}}, s.Fleet().ExternalStops)
}

func TestUpdateSingleElevator_KeepsStops(t *testing.T) {
	s := newBuilding(t, 10, 1)
	require.NoError(t, s.AddInternalStop(0, 6))

	err := s.UpdateSingleElevator(0, fleet.ElevatorStatus{
		ID: 0, Position: 3, Direction: fleet.Up, DoorOpen: true,
		UpStops: []int{9}, DownStops: []int{1},
	})
	require.NoError(t, err)

	e, _ := s.Elevator(0)
	assert.Equal(t, 3, e.Position)
	assert.Equal(t, fleet.Up, e.Direction)
	assert.True(t, e.DoorOpen)
	assert.Equal(t, []int{6}, e.UpStops)
	assert.Empty(t, e.DownStops)

	err = s.UpdateSingleElevator(4, fleet.ElevatorStatus{ID: 4})
	assert.Equal(t, fleet.ErrCodeUnknownElevator, fleet.ValidationCode(err))
}

func TestSubscribe_OrderAndUnsubscribe(t *testing.T) {
	s := New()
	var calls []string

	unsubA := s.Subscribe(func(c Change) { calls = append(calls, "a:"+c.Kind.String()) })
	s.Subscribe(func(c Change) { calls = append(calls, "b:"+c.Kind.String()) })

	require.NoError(t, s.InitializeBuilding(5, 1))
	unsubA()
	unsubA()
	require.NoError(t, s.AddExternalStop(1, fleet.Up))

	assert.Equal(t, []string{"a:building", "b:building", "b:intent"}, calls)
}

func TestSubscribe_ListenerSeesCommittedState(t *testing.T) {
	s := newBuilding(t, 5, 1)
	var fromChange, fromRead fleet.Fleet

	s.Subscribe(func(c Change) {
		fromChange = c.Fleet
		fromRead = s.Fleet()
	})
	require.NoError(t, s.AddInternalStop(0, 2))

	assert.Equal(t, []int{2}, fromChange.Elevators[0].UpStops)
	assert.Equal(t, fromChange, fromRead)
}

func TestValidationFailure_DoesNotNotify(t *testing.T) {
	s := newBuilding(t, 5, 1)
	notified := 0
	s.Subscribe(func(Change) { notified++ })

	assert.Error(t, s.AddInternalStop(0, 99))
	assert.Error(t, s.AddExternalStop(99, fleet.Up))
	assert.False(t, s.RemoveExternalStop(1, fleet.Up))

	assert.Equal(t, 0, notified)
}

func TestFleet_ReturnsCopy(t *testing.T) {
	s := newBuilding(t, 5, 1)
	require.NoError(t, s.AddInternalStop(0, 3))

	f := s.Fleet()
	f.Elevators[0].UpStops[0] = 1

	e, _ := s.Elevator(0)
	assert.Equal(t, []int{3}, e.UpStops)
}

func TestMarkHydrated_Once(t *testing.T) {
	s := New()
	assert.False(t, s.Hydrated())
	assert.True(t, s.MarkHydrated())
	assert.False(t, s.MarkHydrated())
	assert.True(t, s.Hydrated())
}

func TestMutate_PanicReleasesLock(t *testing.T) {
	s := newBuilding(t, 5, 1)

	require.Panics(t, func() {
		s.Mutate(ChangeIntent, func(*fleet.Fleet) bool { panic("boom") })
	})

	// Both locks were released: reads and further mutations still work.
	assert.Equal(t, 5, s.Fleet().TotalFloors)
	require.NoError(t, s.AddInternalStop(0, 3))
	e, ok := s.Elevator(0)
	require.True(t, ok)
	assert.Equal(t, []int{3}, e.UpStops)
}
