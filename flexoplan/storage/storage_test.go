package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imprenta-ai/flexoplan/flexoplan"
)

// openStores returns both implementations so every test exercises the
// badger and memory backends with the same assertions.
func openStores(t *testing.T) map[string]interface {
	Store
	Writer
} {
	t.Helper()
	badgerStore, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })

	return map[string]interface {
		Store
		Writer
	}{
		"badger": badgerStore,
		"memory": NewMemoryStore(),
	}
}

func TestMachineRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			m := flexoplan.Machine{
				ID: 4, Name: "Bobst M5", Pseudonym: "flexo-4",
				Inks: 8, FunctionalInks: 6, AvgVelocity: 150,
				TimeChangeUnits: 15, Status: flexoplan.StatusActive,
			}
			require.NoError(t, store.PutMachine(ctx, m))

			got, err := store.GetMachineByID(ctx, 4)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, m, *got)

			missing, err := store.GetMachineByID(ctx, 99)
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestMachineLookupByNameOrPseudonym(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.PutMachine(ctx, flexoplan.Machine{
				ID: 1, Name: "Nilpeter FA-4", Pseudonym: "flexo-2",
			}))

			byName, err := store.GetMachineByNameOrPseudonym(ctx, "  nilpeter fa-4 ")
			require.NoError(t, err)
			require.NotNil(t, byName)
			assert.Equal(t, 1, byName.ID)

			byAlias, err := store.GetMachineByNameOrPseudonym(ctx, "FLEXO-2")
			require.NoError(t, err)
			require.NotNil(t, byAlias)
			assert.Equal(t, 1, byAlias.ID)

			missing, err := store.GetMachineByNameOrPseudonym(ctx, "no such press")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestUpdateMachineStatusPartialPatch(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.PutMachine(ctx, flexoplan.Machine{
				ID: 1, Status: flexoplan.StatusActive, Inks: 8, FunctionalInks: 8,
			}))

			inks := 5
			require.NoError(t, store.UpdateMachineStatus(ctx, 1, nil, &inks))
			m, err := store.GetMachineByID(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, flexoplan.StatusActive, m.Status, "status untouched")
			assert.Equal(t, 5, m.FunctionalInks)

			maint := flexoplan.StatusMaintenance
			require.NoError(t, store.UpdateMachineStatus(ctx, 1, &maint, nil))
			m, err = store.GetMachineByID(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, flexoplan.StatusMaintenance, m.Status)
			assert.Equal(t, 5, m.FunctionalInks, "inks untouched")

			assert.Error(t, store.UpdateMachineStatus(ctx, 42, &maint, nil))
		})
	}
}

func TestSchedulableOrderFilters(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			orders := []flexoplan.Order{
				{ID: 3, Status: 2, MachineID: 1},
				{ID: 1, Status: 2, MachineID: 1},
				{ID: 2, Status: 7, MachineID: 1}, // done, not schedulable
				{ID: 4, Status: 2, MachineID: 2},
				{ID: 5, Status: 2, MachineID: 0}, // unassigned
			}
			for _, o := range orders {
				require.NoError(t, store.PutOrder(ctx, o))
			}

			forOne, err := store.GetSchedulableOrdersForMachine(ctx, 1)
			require.NoError(t, err)
			require.Len(t, forOne, 2)
			assert.Equal(t, 1, forOne[0].ID, "ordered by id")
			assert.Equal(t, 3, forOne[1].ID)

			all, err := store.GetSchedulableOrdersForAllMachines(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []int{1, 3, 4}, []int{all[0].ID, all[1].ID, all[2].ID})
		})
	}
}

func TestOverwriteMachineScheduleReplacesAndRanks(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			first := []flexoplan.QueueRow{
				{OrderID: 101}, {OrderID: 102}, {OrderID: 103},
			}
			require.NoError(t, store.OverwriteMachineSchedule(ctx, 1, first))

			queue, err := store.GetProductionQueueForMachine(ctx, 1)
			require.NoError(t, err)
			require.Len(t, queue, 3)
			for i, row := range queue {
				assert.Equal(t, i+1, row.ProductionOrder, "ranks are dense and 1-based")
				assert.Equal(t, 1, row.MachineID)
				assert.False(t, row.CreatedAt.IsZero())
			}

			// A rewrite fully replaces the old queue, old rows included.
			second := []flexoplan.QueueRow{{OrderID: 103}, {OrderID: 104}}
			require.NoError(t, store.OverwriteMachineSchedule(ctx, 1, second))

			queue, err = store.GetProductionQueueForMachine(ctx, 1)
			require.NoError(t, err)
			require.Len(t, queue, 2)
			assert.Equal(t, 103, queue[0].OrderID)
			assert.Equal(t, 104, queue[1].OrderID)

			gone, err := store.GetQueueItemByOrderID(ctx, 101)
			require.NoError(t, err)
			assert.Nil(t, gone, "replaced rows lose their order index")

			kept, err := store.GetQueueItemByOrderID(ctx, 104)
			require.NoError(t, err)
			require.NotNil(t, kept)
			assert.Equal(t, 2, kept.ProductionOrder)
		})
	}
}

func TestOverwriteIsolatedPerMachine(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.OverwriteMachineSchedule(ctx, 1, []flexoplan.QueueRow{{OrderID: 101}}))
			require.NoError(t, store.OverwriteMachineSchedule(ctx, 2, []flexoplan.QueueRow{{OrderID: 201}}))

			require.NoError(t, store.OverwriteMachineSchedule(ctx, 1, []flexoplan.QueueRow{{OrderID: 102}}))

			other, err := store.GetProductionQueueForMachine(ctx, 2)
			require.NoError(t, err)
			require.Len(t, other, 1)
			assert.Equal(t, 201, other[0].OrderID)
		})
	}
}

func TestUpdateProductionQueueByRowID(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			rows := []flexoplan.QueueRow{{OrderID: 101}, {OrderID: 102}}
			require.NoError(t, store.OverwriteMachineSchedule(ctx, 1, rows))

			queue, err := store.GetProductionQueueForMachine(ctx, 1)
			require.NoError(t, err)
			require.Len(t, queue, 2)

			updates := []RankUpdate{
				{QueueRowID: queue[0].ID, ProductionOrder: 2},
				{QueueRowID: queue[1].ID, ProductionOrder: 1},
			}
			require.NoError(t, store.UpdateProductionQueue(ctx, updates))

			queue, err = store.GetProductionQueueForMachine(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, 102, queue[0].OrderID, "swap reflected in rank order")
			assert.Equal(t, 101, queue[1].OrderID)

			assert.Error(t, store.UpdateProductionQueue(ctx, []RankUpdate{{QueueRowID: 9999, ProductionOrder: 1}}))
		})
	}
}

func TestUpdateQueueDatesAndTimes(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.OverwriteMachineSchedule(ctx, 1, []flexoplan.QueueRow{{OrderID: 101}}))
			queue, err := store.GetProductionQueueForMachine(ctx, 1)
			require.NoError(t, err)
			require.Len(t, queue, 1)

			when := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, store.UpdateQueueDatesAndTimes(ctx, []TimesUpdate{{
				QueueRowID:           queue[0].ID,
				ProbableDeliveryDate: when,
				SetupMin:             30,
				InterLabelMin:        15,
				PrintMin:             400,
				BufferMin:            4.45,
				TotalMin:             449.45,
			}}))

			queue, err = store.GetProductionQueueForMachine(ctx, 1)
			require.NoError(t, err)
			row := queue[0]
			assert.True(t, when.Equal(row.ProbableDeliveryDate))
			assert.Equal(t, 1, row.ProductionOrder, "rank untouched")
			assert.InDelta(t, 449.45, row.TotalMin, 1e-9)
		})
	}
}

func TestEnrichedQueueSkipsMissingOrders(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.PutOrder(ctx, flexoplan.Order{ID: 101, Status: 2, MachineID: 1, ProductName: "labels"}))
			rows := []flexoplan.QueueRow{{OrderID: 101}, {OrderID: 999}}
			require.NoError(t, store.OverwriteMachineSchedule(ctx, 1, rows))

			enriched, err := store.GetEnrichedQueueForMachine(ctx, 1)
			require.NoError(t, err)
			require.Len(t, enriched, 1)
			assert.Equal(t, 101, enriched[0].Order.ID)
			assert.Equal(t, 1, enriched[0].ProductionOrder)
			assert.NotZero(t, enriched[0].QueueRowID)
		})
	}
}

func TestSeedDemoLoadsFleet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, SeedDemo(ctx, store))

	machines, err := store.GetAllMachineStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, machines, 3)

	pending, err := store.GetSchedulableOrdersForMachine(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, pending)
	for _, o := range pending {
		assert.True(t, o.Schedulable())
	}
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.PutMachine(ctx, flexoplan.Machine{ID: 1, Name: "Bobst M5"}))
	require.NoError(t, store.OverwriteMachineSchedule(ctx, 1, []flexoplan.QueueRow{{OrderID: 101}}))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	m, err := reopened.GetMachineByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Bobst M5", m.Name)

	queue, err := reopened.GetProductionQueueForMachine(ctx, 1)
	require.NoError(t, err)
	require.Len(t, queue, 1)

	// Row ids keep counting after reopen.
	require.NoError(t, reopened.OverwriteMachineSchedule(ctx, 2, []flexoplan.QueueRow{{OrderID: 201}}))
	other, err := reopened.GetProductionQueueForMachine(ctx, 2)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Greater(t, other[0].ID, queue[0].ID)
}
