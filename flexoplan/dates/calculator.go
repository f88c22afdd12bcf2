// Package dates walks an ordered production sequence and stamps each
// order with a probable completion timestamp plus the decomposition of
// its duration into setup, inter-label changeover, print and buffer
// minutes.
package dates

import (
	"time"

	"github.com/imprenta-ai/flexoplan/flexoplan"
	"github.com/imprenta-ai/flexoplan/flexoplan/calendar"
	"github.com/imprenta-ai/flexoplan/flexoplan/costs"
)

// Config couples the shift calendar with the plant-level factors that
// turn theoretical print time into planned minutes.
type Config struct {
	Calendar     calendar.Config
	Efficiency   float64 // real print rate / theoretical, in (0,1]
	SafetyBuffer float64 // fraction of the subtotal added once per order
	Costs        costs.Params
}

// DefaultConfig mirrors the production plant settings.
func DefaultConfig() Config {
	return Config{
		Calendar:     calendar.DefaultConfig(),
		Efficiency:   0.95,
		SafetyBuffer: 0.01,
		Costs:        costs.DefaultParams(),
	}
}

// ScheduledOrder is one sequence position with its computed times.
type ScheduledOrder struct {
	Order flexoplan.Order

	ProbableDelivery time.Time
	SetupMin         float64
	InterLabelMin    float64
	PrintMin         float64
	BufferMin        float64
	TotalMin         float64
}

// Calculator maps sequences onto the working calendar.
type Calculator struct {
	cfg Config
	cal *calendar.Calendar
}

// NewCalculator builds a calculator for a config.
func NewCalculator(cfg Config) *Calculator {
	if cfg.Efficiency <= 0 || cfg.Efficiency > 1 {
		cfg.Efficiency = 0.95
	}
	return &Calculator{cfg: cfg, cal: calendar.New(cfg.Calendar)}
}

// Walk computes completion timestamps for a sequence on one machine,
// starting the first order at start. Results align index-for-index with
// the input sequence.
func (c *Calculator) Walk(seq []*flexoplan.EnrichedOrder, start time.Time, machine flexoplan.Machine) []ScheduledOrder {
	model := costs.NewModel(machine, c.cfg.Costs)
	results := make([]ScheduledOrder, 0, len(seq))
	cursor := start

	for i, order := range seq {
		var setup float64
		if i > 0 {
			setup = model.TransitionCost(seq[i-1], order)
		}

		labels := order.Original.NumLabels
		if labels < 1 {
			labels = 1
		}
		interLabel := float64(labels-1) * model.BaseMinutes()

		theoretical := model.PrintMinutes(order.Original)
		realPrint := theoretical / c.cfg.Efficiency

		subtotal := setup + interLabel + realPrint
		buffer := subtotal * c.cfg.SafetyBuffer
		total := subtotal + buffer

		cursor = c.cal.Advance(cursor, total)

		results = append(results, ScheduledOrder{
			Order:            *order.Original,
			ProbableDelivery: cursor,
			SetupMin:         setup,
			InterLabelMin:    interLabel,
			PrintMin:         realPrint,
			BufferMin:        buffer,
			TotalMin:         total,
		})
	}
	return results
}
