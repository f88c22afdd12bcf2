package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imprenta-ai/flexoplan/flexoplan"
	"github.com/imprenta-ai/flexoplan/flexoplan/genetic"
	"github.com/imprenta-ai/flexoplan/flexoplan/storage"
)

var testStart = time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC) // a Monday, inside the shift

func newTestService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	svc := NewService(store, Options{
		GA:  genetic.Params{Population: 40, Generations: 25, CrossoverProb: 0.7, MutationProb: 0.2, Seed: 7},
		Now: func() time.Time { return testStart },
	})
	return svc, store
}

func putMachine(t *testing.T, store *storage.MemoryStore, m flexoplan.Machine) {
	t.Helper()
	require.NoError(t, store.PutMachine(context.Background(), m))
}

func putOrder(t *testing.T, store *storage.MemoryStore, o flexoplan.Order) {
	t.Helper()
	require.NoError(t, store.PutOrder(context.Background(), o))
}

func activePress(id int) flexoplan.Machine {
	return flexoplan.Machine{
		ID: id, Name: "Press", Pseudonym: "flexo", Inks: 8, FunctionalInks: 6,
		AvgVelocity: 150, TimeChangeUnits: 15, Status: flexoplan.StatusActive,
	}
}

func order(id int, machineID int) flexoplan.Order {
	return flexoplan.Order{
		ID: id, Status: 2, MachineID: machineID,
		TotalMeters: 1000, NumLabels: 2,
		Colors: `["cyan", "black"]`, Materials: `["pp-white"]`,
	}
}

func TestGenerateScheduleMachineNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	resp, err := svc.GenerateOptimalSchedule(context.Background(), "no such press")
	assert.ErrorIs(t, err, ErrMachineNotFound)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "no such press")
	assert.Equal(t, "generate_schedule", resp.Action)
}

func TestFailuresCarryResponseEnvelope(t *testing.T) {
	// Every use-case converts taxonomy errors to the uniform envelope at
	// its boundary, success=false with a descriptive message.
	svc, store := newTestService(t)
	down := activePress(1)
	down.Status = flexoplan.StatusMaintenance
	putMachine(t, store, down)

	resp, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "maintenance")
	assert.Equal(t, "generate_schedule", resp.Action)

	resp, err = svc.GenerateOptimalScheduleAllMachines(context.Background(), false)
	assert.ErrorIs(t, err, ErrPartialModeUnsupported)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "generate_schedule_all", resp.Action)
	assert.Equal(t, ErrPartialModeUnsupported.Error(), resp.Message)

	resp, err = svc.PrioritizeOrder(context.Background(), 999, false)
	assert.ErrorIs(t, err, ErrOrderNotInQueue)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "prioritize", resp.Action)

	resp, err = svc.RecalculateDeliveryDates(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrMachineNotFound)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "recalculate_dates", resp.Action)
}

func TestGenerateScheduleMachineNotActive(t *testing.T) {
	svc, store := newTestService(t)
	m := activePress(1)
	m.Status = flexoplan.StatusMaintenance
	putMachine(t, store, m)

	_, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	assert.ErrorIs(t, err, ErrMachineNotActive)
}

func TestGenerateScheduleResolvesNameAndPseudonym(t *testing.T) {
	svc, store := newTestService(t)
	m := activePress(1)
	m.Name = "Bobst M5"
	m.Pseudonym = "flexo-1"
	putMachine(t, store, m)
	putOrder(t, store, order(101, 1))

	for _, ref := range []string{"1", " Bobst M5 ", "FLEXO-1"} {
		resp, err := svc.GenerateOptimalSchedule(context.Background(), ref)
		require.NoError(t, err, "ref %q", ref)
		assert.True(t, resp.Success)
	}
}

func TestGenerateScheduleEmptyMachine(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))

	resp, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, resp.Success)

	queue, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestGenerateScheduleForcedOrdersLead(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))

	later := testStart.Add(96 * time.Hour)
	sooner := testStart.Add(48 * time.Hour)
	forcedLate := order(101, 1)
	forcedLate.ForcedDeliveryDate = &later
	forcedSoon := order(102, 1)
	forcedSoon.ForcedDeliveryDate = &sooner
	putOrder(t, store, forcedLate)
	putOrder(t, store, forcedSoon)
	for i := 0; i < 4; i++ {
		putOrder(t, store, order(110+i, 1))
	}

	resp, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, resp.Success)

	queue, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, queue, 6)

	// Forced orders first, earliest forced date leading.
	assert.Equal(t, 102, queue[0].OrderID)
	assert.Equal(t, "forced delivery date priority", queue[0].Reason)
	assert.Equal(t, 101, queue[1].OrderID)
	for _, row := range queue[2:] {
		assert.Equal(t, "position computed by genetic optimizer", row.Reason)
	}

	// Ranks dense and 1-based, delivery dates monotonic.
	for i, row := range queue {
		assert.Equal(t, i+1, row.ProductionOrder)
		assert.False(t, row.ProbableDeliveryDate.IsZero())
		if i > 0 {
			assert.False(t, row.ProbableDeliveryDate.Before(queue[i-1].ProbableDeliveryDate))
		}
	}
}

func TestGenerateScheduleSkipsCompletedOrders(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))
	putOrder(t, store, order(101, 1))
	done := order(102, 1)
	done.Status = 7
	putOrder(t, store, done)

	_, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)

	queue, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, 101, queue[0].OrderID)
}

func TestGenerateScheduleReplacesPreviousQueue(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))
	putOrder(t, store, order(101, 1))
	putOrder(t, store, order(102, 1))

	_, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)

	// Order 102 finishes; rescheduling must not leave its row behind.
	finished := order(102, 1)
	finished.Status = 7
	putOrder(t, store, finished)

	_, err = svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)

	queue, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, 101, queue[0].OrderID)
}

func TestGenerateAllRefusesPartialMode(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GenerateOptimalScheduleAllMachines(context.Background(), false)
	assert.ErrorIs(t, err, ErrPartialModeUnsupported)
}

func TestGenerateAllReassignsOverCapacityOrders(t *testing.T) {
	svc, store := newTestService(t)

	small := activePress(1)
	small.FunctionalInks = 4
	small.ShareRolls = `["2"]`
	big := activePress(2)
	big.FunctionalInks = 8
	putMachine(t, store, small)
	putMachine(t, store, big)

	sixColor := order(101, 1)
	sixColor.Colors = `["c1","c2","c3","c4","c5","c6"]`
	putOrder(t, store, sixColor)
	putOrder(t, store, order(102, 1))
	putOrder(t, store, order(201, 2))

	resp, err := svc.GenerateOptimalScheduleAllMachines(context.Background(), true)
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data["reassigned"])

	// The six-color order lands on the eight-ink press.
	row, err := store.GetQueueItemByOrderID(context.Background(), 101)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 2, row.MachineID)

	queueOne, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, queueOne, 1)
	assert.Equal(t, 102, queueOne[0].OrderID)
}

func TestGenerateAllIgnoresInactiveMachines(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))
	down := activePress(2)
	down.Status = flexoplan.StatusError
	putMachine(t, store, down)
	putOrder(t, store, order(101, 1))
	putOrder(t, store, order(201, 2))

	_, err := svc.GenerateOptimalScheduleAllMachines(context.Background(), true)
	require.NoError(t, err)

	// The down machine's queue is untouched; only machine 1 is planned.
	queueDown, err := store.GetProductionQueueForMachine(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, queueDown)

	queueUp, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, queueUp, 1)
}

func TestPrioritizeOrderNotInQueue(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.PrioritizeOrder(context.Background(), 999, false)
	assert.ErrorIs(t, err, ErrOrderNotInQueue)
}

func TestPrioritizeAlreadyFirstIsNoOp(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))
	putOrder(t, store, order(101, 1))
	putOrder(t, store, order(102, 1))
	_, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)

	queue, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	first := queue[0].OrderID

	resp, err := svc.PrioritizeOrder(context.Background(), first, false)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	after, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, queue, after, "queue unchanged")
}

func TestPrioritizeMovesOrderToFront(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))
	for i := 0; i < 5; i++ {
		putOrder(t, store, order(101+i, 1))
	}
	_, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)

	before, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	last := before[len(before)-1].OrderID

	resp, err := svc.PrioritizeOrder(context.Background(), last, false)
	require.NoError(t, err)
	require.True(t, resp.Success)

	after, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	assert.Equal(t, last, after[0].OrderID)

	// Without reoptimization the relative order of the rest survives.
	var rest []int
	for _, row := range before {
		if row.OrderID != last {
			rest = append(rest, row.OrderID)
		}
	}
	for i, row := range after[1:] {
		assert.Equal(t, rest[i], row.OrderID)
	}
	for i, row := range after {
		assert.Equal(t, i+1, row.ProductionOrder)
	}
}

func TestPrioritizeAndReoptimizeKeepsTargetFirst(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))
	for i := 0; i < 6; i++ {
		putOrder(t, store, order(101+i, 1))
	}
	_, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)

	before, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	target := before[3].OrderID

	resp, err := svc.PrioritizeOrder(context.Background(), target, true)
	require.NoError(t, err)
	require.True(t, resp.Success)

	after, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	assert.Equal(t, target, after[0].OrderID)

	// Same population of orders, every rank dense.
	seen := make(map[int]bool)
	for i, row := range after {
		assert.Equal(t, i+1, row.ProductionOrder)
		seen[row.OrderID] = true
	}
	assert.Len(t, seen, len(before))
}

func TestPrioritizeRejectsMigratedOrder(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))
	putMachine(t, store, activePress(2))
	putOrder(t, store, order(101, 1))
	putOrder(t, store, order(102, 1))
	_, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)

	queue, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	second := queue[1].OrderID

	// The fleet planner moves the order to machine 2 after the queue was
	// written; its stale row on machine 1 must not be reordered.
	migrated := order(second, 2)
	putOrder(t, store, migrated)

	resp, err := svc.PrioritizeOrder(context.Background(), second, false)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "moved to machine 2")

	after, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, queue, after, "stale queue left untouched")
}

func TestPrioritizeOnInactiveMachine(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))
	putOrder(t, store, order(101, 1))
	putOrder(t, store, order(102, 1))
	_, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)

	queue, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	second := queue[1].OrderID

	maint := flexoplan.StatusMaintenance
	require.NoError(t, store.UpdateMachineStatus(context.Background(), 1, &maint, nil))

	_, err = svc.PrioritizeOrder(context.Background(), second, false)
	assert.ErrorIs(t, err, ErrMachineNotActive)
}

func TestRecalculateDeliveryDates(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))
	for i := 0; i < 3; i++ {
		putOrder(t, store, order(101+i, 1))
	}
	_, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)

	before, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)

	resp, err := svc.RecalculateDeliveryDates(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, resp.Success)

	after, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, after, len(before))

	// Same clock, same sequence: a recalculation reproduces the times
	// the scheduler stamped.
	for i := range after {
		assert.Equal(t, before[i].OrderID, after[i].OrderID)
		assert.Equal(t, before[i].ProductionOrder, after[i].ProductionOrder)
		assert.True(t, before[i].ProbableDeliveryDate.Equal(after[i].ProbableDeliveryDate))
		assert.InDelta(t, before[i].TotalMin, after[i].TotalMin, 1e-9)
	}
}

func TestRecalculateAfterPrioritizeShiftsDates(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))
	light := order(101, 1)
	light.TotalMeters = 500
	heavy := order(102, 1)
	heavy.TotalMeters = 9000
	putOrder(t, store, light)
	putOrder(t, store, heavy)
	_, err := svc.GenerateOptimalSchedule(context.Background(), "1")
	require.NoError(t, err)

	queue, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	second := queue[1].OrderID

	_, err = svc.PrioritizeOrder(context.Background(), second, false)
	require.NoError(t, err)
	_, err = svc.RecalculateDeliveryDates(context.Background(), "1")
	require.NoError(t, err)

	after, err := store.GetProductionQueueForMachine(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, second, after[0].OrderID)
	assert.True(t, after[0].ProbableDeliveryDate.Before(after[1].ProbableDeliveryDate))
}

func TestRecalculateEmptyQueue(t *testing.T) {
	svc, store := newTestService(t)
	putMachine(t, store, activePress(1))

	resp, err := svc.RecalculateDeliveryDates(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, resp.Success)
}
