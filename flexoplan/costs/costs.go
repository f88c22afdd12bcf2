// Package costs models the minutes lost between two adjacent orders on
// a machine, plus the raw print-time estimate used during sequencing.
package costs

import (
	"github.com/imprenta-ai/flexoplan/flexoplan"
)

// fallbackChangeMinutes applies when a machine never reported its
// per-unit changeover time.
const fallbackChangeMinutes = 15.0

// Params are the tunable constants of the transition cost model.
type Params struct {
	MaterialCompleteFactor float64 // base multiplier on a full material swap
	MaterialPartialFactor  float64 // base multiplier when material sets match
	InkCleanCost           float64 // minutes per ink removed
	InkAddCost             float64 // minutes per ink mounted
	ColorReuseBonus        float64 // minutes credited per ink kept on press
	SameCustomerFactor     float64 // multiplier (<1) when customers match
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		MaterialCompleteFactor: 1.0,
		MaterialPartialFactor:  0.5,
		InkCleanCost:           5.0,
		InkAddCost:             25.0,
		ColorReuseBonus:        15.0,
		SameCustomerFactor:     0.7,
	}
}

// Model evaluates transition costs on one machine.
type Model struct {
	machine flexoplan.Machine
	params  Params
}

// NewModel builds a cost model for a machine.
func NewModel(machine flexoplan.Machine, params Params) Model {
	return Model{machine: machine, params: params}
}

// BaseMinutes is the machine's per-unit changeover time, falling back
// to a conservative constant when unset.
func (m Model) BaseMinutes() float64 {
	if m.machine.TimeChangeUnits > 0 {
		return m.machine.TimeChangeUnits
	}
	return fallbackChangeMinutes
}

// TransitionCost estimates the changeover minutes between a predecessor
// and its successor: a material term, ink churn (mount, clean, reuse),
// and a same-customer discount. The result never goes negative.
func (m Model) TransitionCost(prev, cur *flexoplan.EnrichedOrder) float64 {
	base := m.BaseMinutes()
	if prev == nil || cur == nil {
		return base
	}

	var cost float64
	if prev.SameMaterials(cur) {
		cost = base * m.params.MaterialPartialFactor
	} else {
		cost = base * m.params.MaterialCompleteFactor
	}

	var toAdd, toRemove, reused int
	for c := range cur.Colors {
		if _, ok := prev.Colors[c]; ok {
			reused++
		} else {
			toAdd++
		}
	}
	for c := range prev.Colors {
		if _, ok := cur.Colors[c]; !ok {
			toRemove++
		}
	}

	cost += float64(toAdd) * m.params.InkAddCost
	cost += float64(toRemove) * m.params.InkCleanCost
	cost -= float64(reused) * m.params.ColorReuseBonus

	if prev.CustomerID != nil && prev.CustomerID == cur.CustomerID {
		cost *= m.params.SameCustomerFactor
	}

	if cost < 0 {
		return 0
	}
	return cost
}

// PrintMinutes estimates raw print time for an order in wall-clock
// minutes, ignoring efficiency and the working calendar. Missing meters
// or velocity yield zero.
func (m Model) PrintMinutes(o *flexoplan.Order) float64 {
	if o == nil || o.TotalMeters <= 0 || m.machine.AvgVelocity <= 0 {
		return 0
	}
	metersPerMinute := m.machine.AvgVelocity / 60.0
	return o.TotalMeters / metersPerMinute
}
