package planner

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/imprenta-ai/flexoplan/flexoplan"
	"github.com/imprenta-ai/flexoplan/flexoplan/annotations"
	"github.com/imprenta-ai/flexoplan/flexoplan/genetic"
)

// LockKind marks why a sequence position must not move again within the
// current planning session. Locks are never persisted.
type LockKind int

const (
	LockForced LockKind = iota + 1 // pinned to the front without reoptimization
	LockHigh                       // prioritized, tail reoptimized around it
)

// PriorityManager mutates an existing sequence to honor urgent manual
// prioritizations, optionally re-optimizing the non-locked tail.
type PriorityManager struct {
	sequence  []int
	orders    map[int]flexoplan.Order
	machine   flexoplan.Machine
	locks     map[int]LockKind
	weights   genetic.Weights
	gaParams  genetic.Params
	collector *annotations.Collector
}

// NewPriorityManager validates the initial sequence against the current
// order dictionary; ids that no longer belong to the machine are
// dropped with a warning (they may have migrated elsewhere).
func NewPriorityManager(sequence []int, orders map[int]flexoplan.Order, machine flexoplan.Machine, collector *annotations.Collector) *PriorityManager {
	pm := &PriorityManager{
		orders:    orders,
		machine:   machine,
		locks:     make(map[int]LockKind),
		weights:   genetic.DefaultWeights(),
		gaParams:  genetic.Params{Population: 100, Generations: 200, CrossoverProb: 0.7, MutationProb: 0.2},
		collector: collector,
	}

	invalid := lo.Filter(sequence, func(id int, _ int) bool {
		_, ok := orders[id]
		return !ok
	})
	if len(invalid) > 0 {
		collector.Emit(annotations.WarnOrderDropped, map[string]any{
			"count":  len(invalid),
			"orders": invalid,
		})
	}
	pm.sequence = lo.Filter(sequence, func(id int, _ int) bool {
		_, ok := orders[id]
		return ok
	})
	return pm
}

// SetOptimizer overrides the GA parameters used by reoptimization.
func (pm *PriorityManager) SetOptimizer(weights genetic.Weights, params genetic.Params) {
	pm.weights = weights
	pm.gaParams = params
}

// Sequence returns the current sequence of order ids.
func (pm *PriorityManager) Sequence() []int {
	return pm.sequence
}

// Locks returns the lock map accumulated in this session.
func (pm *PriorityManager) Locks() map[int]LockKind {
	return pm.locks
}

// Prioritize moves an order to the front of the sequence without
// touching the relative order of everything else, and pins it there.
func (pm *PriorityManager) Prioritize(orderID int) error {
	if !lo.Contains(pm.sequence, orderID) {
		return fmt.Errorf("order %d is not in the current sequence", orderID)
	}
	if _, ok := pm.orders[orderID]; !ok {
		// In the sequence but no longer schedulable here; it likely
		// moved to another machine.
		pm.sequence = remove(pm.sequence, orderID)
		return fmt.Errorf("order %d is no longer schedulable on machine %d", orderID, pm.machine.ID)
	}

	pm.sequence = append([]int{orderID}, remove(pm.sequence, orderID)...)
	pm.locks[orderID] = LockForced
	pm.collector.Emit(annotations.PriorityApplied, map[string]any{
		"order": orderID, "reoptimized": false,
	})
	return nil
}

// PrioritizeAndReoptimize moves an order to the front and re-runs the
// genetic sequencer over the remaining unlocked orders. Previously
// locked orders keep their relative order ahead of the target.
func (pm *PriorityManager) PrioritizeAndReoptimize(orderID int) error {
	if !lo.Contains(pm.sequence, orderID) {
		return fmt.Errorf("order %d is not in the current sequence", orderID)
	}
	if _, ok := pm.orders[orderID]; !ok {
		pm.sequence = remove(pm.sequence, orderID)
		return fmt.Errorf("order %d is no longer schedulable on machine %d", orderID, pm.machine.ID)
	}

	remainder := remove(pm.sequence, orderID)

	locked := lo.Filter(remainder, func(id int, _ int) bool {
		_, ok := pm.locks[id]
		return ok
	})
	free := lo.Filter(remainder, func(id int, _ int) bool {
		_, ok := pm.locks[id]
		return !ok
	})

	// Orders that migrated to another machine since the queue was
	// built drop out of the reoptimization.
	valid, dropped := lo.FilterReject(free, func(id int, _ int) bool {
		_, ok := pm.orders[id]
		return ok
	})
	if len(dropped) > 0 {
		pm.collector.Emit(annotations.WarnOrderDropped, map[string]any{
			"count":  len(dropped),
			"orders": dropped,
		})
	}

	var optimized []int
	if len(valid) > 0 {
		orders := lo.Map(valid, func(id int, _ int) flexoplan.Order { return pm.orders[id] })
		sequencer := genetic.NewSequencer(orders, pm.machine, pm.weights)
		optimized = sequencer.Optimize(pm.gaParams)
	}

	pm.sequence = append(append(locked, orderID), optimized...)
	pm.locks[orderID] = LockHigh
	pm.collector.Emit(annotations.PriorityApplied, map[string]any{
		"order": orderID, "reoptimized": true,
		"locked": len(locked), "optimized": len(optimized),
	})
	return nil
}

func remove(sequence []int, id int) []int {
	return lo.Filter(sequence, func(v int, _ int) bool { return v != id })
}
