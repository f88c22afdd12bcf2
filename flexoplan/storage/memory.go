package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/imprenta-ai/flexoplan/flexoplan"
)

// MemoryStore is a map-backed Store for tests and demos. Every method
// copies on the way in and out, so callers never share slices with the
// store.
type MemoryStore struct {
	mu        sync.RWMutex
	machines  map[int]flexoplan.Machine
	orders    map[int]flexoplan.Order
	queue     map[int64]flexoplan.QueueRow
	nextRowID int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		machines: make(map[int]flexoplan.Machine),
		orders:   make(map[int]flexoplan.Order),
		queue:    make(map[int64]flexoplan.QueueRow),
	}
}

func (s *MemoryStore) PutMachine(ctx context.Context, m flexoplan.Machine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machines[m.ID] = m
	return nil
}

func (s *MemoryStore) PutOrder(ctx context.Context, o flexoplan.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *MemoryStore) GetMachineByID(ctx context.Context, id int) (*flexoplan.Machine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.machines[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MemoryStore) GetMachineByNameOrPseudonym(ctx context.Context, name string) (*flexoplan.Machine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range sortedIntKeys(s.machines) {
		m := s.machines[id]
		if strings.EqualFold(m.Name, name) || strings.EqualFold(m.Pseudonym, name) {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetAllMachineStatus(ctx context.Context) ([]flexoplan.Machine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	machines := make([]flexoplan.Machine, 0, len(s.machines))
	for _, id := range sortedIntKeys(s.machines) {
		machines = append(machines, s.machines[id])
	}
	return machines, nil
}

func (s *MemoryStore) UpdateMachineStatus(ctx context.Context, id int, status *flexoplan.MachineStatus, functionalInks *int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[id]
	if !ok {
		return fmt.Errorf("machine %d not found", id)
	}
	if status != nil {
		m.Status = *status
	}
	if functionalInks != nil {
		m.FunctionalInks = *functionalInks
	}
	s.machines[id] = m
	return nil
}

func (s *MemoryStore) GetOrderByID(ctx context.Context, id int) (*flexoplan.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *MemoryStore) GetSchedulableOrdersForMachine(ctx context.Context, machineID int) ([]flexoplan.Order, error) {
	return s.schedulable(ctx, func(o flexoplan.Order) bool { return o.MachineID == machineID })
}

func (s *MemoryStore) GetSchedulableOrdersForAllMachines(ctx context.Context) ([]flexoplan.Order, error) {
	return s.schedulable(ctx, func(o flexoplan.Order) bool { return o.MachineID != 0 })
}

func (s *MemoryStore) schedulable(ctx context.Context, keep func(flexoplan.Order) bool) ([]flexoplan.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orders []flexoplan.Order
	for _, id := range sortedIntKeys(s.orders) {
		o := s.orders[id]
		if o.Schedulable() && keep(o) {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func (s *MemoryStore) GetQueueItemByOrderID(ctx context.Context, orderID int) (*flexoplan.QueueRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.queue {
		if row.OrderID == orderID {
			r := row
			return &r, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetProductionQueueForMachine(ctx context.Context, machineID int) ([]flexoplan.QueueRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queueForMachine(machineID), nil
}

func (s *MemoryStore) queueForMachine(machineID int) []flexoplan.QueueRow {
	var rows []flexoplan.QueueRow
	for _, row := range s.queue {
		if row.MachineID == machineID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProductionOrder < rows[j].ProductionOrder })
	return rows
}

func (s *MemoryStore) GetEnrichedQueueForMachine(ctx context.Context, machineID int) ([]flexoplan.QueueOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.queueForMachine(machineID)
	enriched := make([]flexoplan.QueueOrder, 0, len(rows))
	for _, row := range rows {
		order, ok := s.orders[row.OrderID]
		if !ok {
			continue
		}
		enriched = append(enriched, flexoplan.QueueOrder{
			Order:           order,
			QueueRowID:      row.ID,
			ProductionOrder: row.ProductionOrder,
		})
	}
	return enriched, nil
}

func (s *MemoryStore) OverwriteMachineSchedule(ctx context.Context, machineID int, rows []flexoplan.QueueRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.queue {
		if row.MachineID == machineID {
			delete(s.queue, id)
		}
	}
	for i, row := range rows {
		s.nextRowID++
		row.ID = s.nextRowID
		row.MachineID = machineID
		row.ProductionOrder = i + 1
		row.CreatedAt = now
		row.UpdatedAt = now
		s.queue[row.ID] = row
	}
	return nil
}

func (s *MemoryStore) UpdateProductionQueue(ctx context.Context, updates []RankUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		row, ok := s.queue[u.QueueRowID]
		if !ok {
			return fmt.Errorf("queue row %d not found", u.QueueRowID)
		}
		row.ProductionOrder = u.ProductionOrder
		row.UpdatedAt = now
		s.queue[u.QueueRowID] = row
	}
	return nil
}

func (s *MemoryStore) UpdateQueueDatesAndTimes(ctx context.Context, updates []TimesUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		row, ok := s.queue[u.QueueRowID]
		if !ok {
			return fmt.Errorf("queue row %d not found", u.QueueRowID)
		}
		row.ProbableDeliveryDate = u.ProbableDeliveryDate
		row.SetupMin = u.SetupMin
		row.InterLabelMin = u.InterLabelMin
		row.PrintMin = u.PrintMin
		row.BufferMin = u.BufferMin
		row.TotalMin = u.TotalMin
		row.UpdatedAt = now
		s.queue[u.QueueRowID] = row
	}
	return nil
}

func sortedIntKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
