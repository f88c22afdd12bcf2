package planner

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/imprenta-ai/flexoplan/flexoplan"
	"github.com/imprenta-ai/flexoplan/flexoplan/annotations"
)

// Load thresholds of the two re-assignment phases.
const (
	maxTargetLoad     = 50 // capacity relief never overloads a neighbor past this
	balanceThreshold  = 20 // only machines above this load shed work
	balanceFloor      = 15 // never balance a machine below this load
	balanceMoveRatio  = 0.3
	balanceMinimumGap = 5 // moving must keep at least this load difference
)

// Move is one suggested cross-machine re-assignment.
type Move struct {
	OrderID int
	From    int
	To      int
	Reason  string
}

// Reassign analyzes the current distribution of orders and suggests
// moves between compatible machines. Phase 1 relieves ink-capacity
// violations (mandatory); phase 2 balances load (best-effort). No order
// is ever moved twice, and load counters update as moves are decided so
// later decisions see earlier ones.
func Reassign(ordersByMachine map[int][]flexoplan.Order, machines []flexoplan.Machine, graph CompatibilityGraph, collector *annotations.Collector) []Move {
	machinesByID := lo.KeyBy(machines, func(m flexoplan.Machine) int { return m.ID })
	loads := make(map[int]int, len(ordersByMachine))
	for id, orders := range ordersByMachine {
		loads[id] = len(orders)
	}

	var moves []Move
	moved := make(map[int]struct{})
	unresolved := 0

	// Phase 1: capacity relief. An order demanding more colors than its
	// machine has functional inks goes to the compatible neighbor with
	// the largest functional count that can host it.
	for _, machineID := range sortedKeys(ordersByMachine) {
		machine, ok := machinesByID[machineID]
		if !ok {
			continue
		}
		currentInks := machine.EffectiveInks()

		for _, order := range ordersByMachine[machineID] {
			if _, done := moved[order.ID]; done {
				continue
			}
			colors := countColors(order)
			if colors <= currentInks {
				continue
			}

			bestTarget := 0
			bestCapacity := currentInks
			for _, neighborID := range sortedNeighbors(graph, machineID) {
				neighbor, known := machinesByID[neighborID]
				if !known {
					continue
				}
				capacity := neighbor.EffectiveInks()
				if colors <= capacity && capacity > bestCapacity && loads[neighborID] < maxTargetLoad {
					bestCapacity = capacity
					bestTarget = neighborID
				}
			}

			if bestTarget == 0 {
				unresolved++
				continue
			}

			move := Move{
				OrderID: order.ID,
				From:    machineID,
				To:      bestTarget,
				Reason:  fmt.Sprintf("requires %d inks (current %d, target %d)", colors, currentInks, bestCapacity),
			}
			moves = append(moves, move)
			moved[order.ID] = struct{}{}
			loads[machineID]--
			loads[bestTarget]++
			collector.Emit(annotations.ReassignMove, map[string]any{
				"order": order.ID, "from": machineID, "to": bestTarget, "reason": move.Reason,
			})
		}
	}

	capacityMoves := len(moves)

	// Phase 2: load balancing, heaviest machines first.
	byLoadDesc := sortedKeys(ordersByMachine)
	sort.SliceStable(byLoadDesc, func(i, j int) bool {
		return loads[byLoadDesc[i]] > loads[byLoadDesc[j]]
	})

	for _, machineID := range byLoadDesc {
		load := loads[machineID]
		if load <= balanceThreshold {
			continue
		}
		if _, ok := machinesByID[machineID]; !ok {
			continue
		}

		maxMoves := int(float64(load) * balanceMoveRatio)
		if limit := load - balanceFloor; limit < maxMoves {
			maxMoves = limit
		}
		movedHere := 0

		for _, order := range ordersByMachine[machineID] {
			if _, done := moved[order.ID]; done {
				continue
			}
			if movedHere >= maxMoves {
				break
			}
			colors := countColors(order)

			bestTarget := 0
			minLoad := load
			for _, neighborID := range sortedNeighbors(graph, machineID) {
				neighbor, known := machinesByID[neighborID]
				if !known {
					continue
				}
				neighborLoad := loads[neighborID]
				if colors <= neighbor.EffectiveInks() && neighborLoad < minLoad && load-neighborLoad >= balanceMinimumGap {
					minLoad = neighborLoad
					bestTarget = neighborID
				}
			}

			if bestTarget == 0 {
				continue
			}

			move := Move{
				OrderID: order.ID,
				From:    machineID,
				To:      bestTarget,
				Reason:  fmt.Sprintf("load balancing (%d -> %d orders)", load, minLoad),
			}
			moves = append(moves, move)
			moved[order.ID] = struct{}{}
			movedHere++
			loads[machineID]--
			loads[bestTarget]++
			load--
			collector.Emit(annotations.ReassignMove, map[string]any{
				"order": order.ID, "from": machineID, "to": bestTarget, "reason": move.Reason,
			})
		}
	}

	collector.Emit(annotations.ReassignReport, map[string]any{
		"capacity":   capacityMoves,
		"balance":    len(moves) - capacityMoves,
		"unresolved": unresolved,
	})
	return moves
}

// Apply executes a set of moves against the per-machine grouping,
// updating each moved order's machine assignment.
func Apply(moves []Move, ordersByMachine map[int][]flexoplan.Order) {
	for _, move := range moves {
		source := ordersByMachine[move.From]
		idx := lo.IndexOf(lo.Map(source, func(o flexoplan.Order, _ int) int { return o.ID }), move.OrderID)
		if idx < 0 {
			continue
		}
		order := source[idx]
		order.MachineID = move.To
		ordersByMachine[move.From] = append(source[:idx:idx], source[idx+1:]...)
		ordersByMachine[move.To] = append(ordersByMachine[move.To], order)
	}
}

// countColors parses an order's color list; unparseable payloads count
// as zero colors.
func countColors(order flexoplan.Order) int {
	return flexoplan.Enrich(&order).NumColors()
}

func sortedKeys[V any](m map[int]V) []int {
	keys := lo.Keys(m)
	sort.Ints(keys)
	return keys
}

func sortedNeighbors(graph CompatibilityGraph, id int) []int {
	neighbors := lo.Keys(graph.Neighbors(id))
	sort.Ints(neighbors)
	return neighbors
}
