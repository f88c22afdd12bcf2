// Package storage persists machines, orders and production queues. The
// primary implementation is backed by BadgerDB; an in-memory
// implementation serves tests and demos.
package storage

import (
	"context"
	"time"

	"github.com/imprenta-ai/flexoplan/flexoplan"
)

// RankUpdate reorders one queue row.
type RankUpdate struct {
	QueueRowID      int64
	ProductionOrder int
}

// TimesUpdate rewrites the computed times of one queue row without
// touching its position.
type TimesUpdate struct {
	QueueRowID           int64
	ProbableDeliveryDate time.Time
	SetupMin             float64
	InterLabelMin        float64
	PrintMin             float64
	BufferMin            float64
	TotalMin             float64
}

// Store is the persistence port of the scheduling core. Lookup methods
// return (nil, nil) when the entity does not exist.
type Store interface {
	GetMachineByID(ctx context.Context, id int) (*flexoplan.Machine, error)
	GetMachineByNameOrPseudonym(ctx context.Context, name string) (*flexoplan.Machine, error)
	GetAllMachineStatus(ctx context.Context) ([]flexoplan.Machine, error)
	UpdateMachineStatus(ctx context.Context, id int, status *flexoplan.MachineStatus, functionalInks *int) error

	GetOrderByID(ctx context.Context, id int) (*flexoplan.Order, error)
	GetSchedulableOrdersForMachine(ctx context.Context, machineID int) ([]flexoplan.Order, error)
	GetSchedulableOrdersForAllMachines(ctx context.Context) ([]flexoplan.Order, error)

	GetQueueItemByOrderID(ctx context.Context, orderID int) (*flexoplan.QueueRow, error)
	GetProductionQueueForMachine(ctx context.Context, machineID int) ([]flexoplan.QueueRow, error)
	GetEnrichedQueueForMachine(ctx context.Context, machineID int) ([]flexoplan.QueueOrder, error)

	// OverwriteMachineSchedule atomically replaces a machine's queue:
	// the prior rows are deleted and the new rows inserted with dense
	// 1-based production order within one transactional boundary.
	OverwriteMachineSchedule(ctx context.Context, machineID int, rows []flexoplan.QueueRow) error
	UpdateProductionQueue(ctx context.Context, updates []RankUpdate) error
	UpdateQueueDatesAndTimes(ctx context.Context, updates []TimesUpdate) error
}

// Writer ingests machines and orders; the scheduling core itself only
// reads them.
type Writer interface {
	PutMachine(ctx context.Context, m flexoplan.Machine) error
	PutOrder(ctx context.Context, o flexoplan.Order) error
}
