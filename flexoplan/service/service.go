// Package service wires storage, the genetic sequencer, the
// multi-machine planner and the date calculator into the four
// scheduling operations the plant actually runs.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/imprenta-ai/flexoplan/flexoplan"
	"github.com/imprenta-ai/flexoplan/flexoplan/annotations"
	"github.com/imprenta-ai/flexoplan/flexoplan/dates"
	"github.com/imprenta-ai/flexoplan/flexoplan/genetic"
	"github.com/imprenta-ai/flexoplan/flexoplan/planner"
	"github.com/imprenta-ai/flexoplan/flexoplan/storage"
)

var (
	ErrMachineNotFound  = errors.New("machine not found")
	ErrMachineNotActive = errors.New("machine is not active")
	ErrOrderNotInQueue  = errors.New("order is not in any production queue")

	// ErrPartialModeUnsupported rejects fleet-wide planning without
	// reoptimization: reassignment invalidates the machines' existing
	// sequences, so skipping the optimizer would persist stale queues.
	ErrPartialModeUnsupported = errors.New("fleet-wide scheduling requires reoptimize=true")
)

// Queue row reasons, stored verbatim for plant operators.
const (
	reasonForced    = "forced delivery date priority"
	reasonOptimized = "position computed by genetic optimizer"
	reasonGlobal    = "position computed by genetic optimizer (global)"
)

// Action names reported in the response envelope.
const (
	actionGenerate    = "generate_schedule"
	actionGenerateAll = "generate_schedule_all"
	actionPrioritize  = "prioritize"
	actionRecalc      = "recalculate_dates"
)

// Response is the uniform result envelope of every scheduling operation.
type Response struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Action  string         `json:"action,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Options tunes a Service. Zero values fall back to production defaults.
type Options struct {
	Dates   dates.Config
	Weights genetic.Weights
	GA      genetic.Params
	Now     func() time.Time
	Handler annotations.Handler
}

// Service executes scheduling operations against a Store.
type Service struct {
	store     storage.Store
	dates     dates.Config
	weights   genetic.Weights
	ga        genetic.Params
	now       func() time.Time
	collector *annotations.Collector
}

// NewService builds a service; zero-valued options get defaults.
func NewService(store storage.Store, opts Options) *Service {
	if opts.Dates.Efficiency == 0 {
		opts.Dates = dates.DefaultConfig()
	}
	if opts.Weights.SetupCost == 0 {
		opts.Weights = genetic.DefaultWeights()
	}
	if opts.GA.Population == 0 {
		opts.GA = genetic.Params{Population: 100, Generations: 200, CrossoverProb: 0.7, MutationProb: 0.2}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:     store,
		dates:     opts.Dates,
		weights:   opts.Weights,
		ga:        opts.GA,
		now:       opts.Now,
		collector: annotations.NewCollector(opts.Handler),
	}
}

// Collector exposes the event stream of the last operations.
func (s *Service) Collector() *annotations.Collector {
	return s.collector
}

// fail converts a use-case error into the uniform failure envelope.
// The error is returned alongside so callers can still branch on the
// sentinel taxonomy.
func fail(action string, err error) (*Response, error) {
	return &Response{Success: false, Message: err.Error(), Action: action}, err
}

// resolveMachine accepts a numeric id, a display name or a pseudonym.
func (s *Service) resolveMachine(ctx context.Context, ref string) (*flexoplan.Machine, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		m, err := s.store.GetMachineByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return m, nil
		}
		// Fall through: a name can be all digits.
	}
	m, err := s.store.GetMachineByNameOrPseudonym(ctx, ref)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrMachineNotFound, ref)
	}
	return m, nil
}

// GenerateOptimalSchedule recomputes a single machine's production
// queue: forced-date orders lead in forced-date order, everything else
// is sequenced by the genetic optimizer, and the whole queue is stamped
// with probable delivery dates before replacing the stored schedule.
func (s *Service) GenerateOptimalSchedule(ctx context.Context, machineRef string) (*Response, error) {
	start := time.Now()
	machine, err := s.resolveMachine(ctx, machineRef)
	if err != nil {
		return fail(actionGenerate, err)
	}
	if machine.Status != flexoplan.StatusActive {
		return fail(actionGenerate, fmt.Errorf("%w: machine %d is %s", ErrMachineNotActive, machine.ID, machine.Status))
	}
	s.collector.Emit(annotations.ScheduleRequested, map[string]any{
		"machine": machine.ID,
	})

	orders, err := s.store.GetSchedulableOrdersForMachine(ctx, machine.ID)
	if err != nil {
		s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
		return fail(actionGenerate, err)
	}
	if len(orders) == 0 {
		return &Response{
			Success: true,
			Message: fmt.Sprintf("machine %d has no schedulable orders", machine.ID),
			Action:  actionGenerate,
		}, nil
	}

	rows := s.computeSchedule(orders, *machine, reasonOptimized)

	if err := s.store.OverwriteMachineSchedule(ctx, machine.ID, rows); err != nil {
		s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
		return fail(actionGenerate, err)
	}
	s.collector.AddTiming(annotations.SchedulePersisted, start, map[string]any{
		"machine": machine.ID, "orders": len(rows),
	})

	return &Response{
		Success: true,
		Message: fmt.Sprintf("scheduled %d orders on machine %d", len(rows), machine.ID),
		Action:  actionGenerate,
		Data: map[string]any{
			"machine_id": machine.ID,
			"orders":     len(rows),
			"queue":      rows,
		},
	}, nil
}

// computeSchedule sequences one machine's orders and stamps delivery
// dates. Forced-date orders stay in front sorted by their forced date;
// the remainder goes through the optimizer when there is anything to
// optimize.
func (s *Service) computeSchedule(orders []flexoplan.Order, machine flexoplan.Machine, reason string) []flexoplan.QueueRow {
	forced := lo.Filter(orders, func(o flexoplan.Order, _ int) bool {
		return o.ForcedDeliveryDate != nil
	})
	free := lo.Filter(orders, func(o flexoplan.Order, _ int) bool {
		return o.ForcedDeliveryDate == nil
	})
	sort.SliceStable(forced, func(i, j int) bool {
		return forced[i].ForcedDeliveryDate.Before(*forced[j].ForcedDeliveryDate)
	})

	var optimizedIDs []int
	if len(free) > 1 {
		begin := time.Now()
		sequencer := genetic.NewSequencer(free, machine, s.weights)
		optimizedIDs = sequencer.Optimize(s.ga)
		s.collector.AddTiming(annotations.OptimizeComplete, begin, map[string]any{
			"machine": machine.ID, "orders": len(free),
			"population": s.ga.Population, "generations": s.ga.Generations,
		})
	} else {
		optimizedIDs = lo.Map(free, func(o flexoplan.Order, _ int) int { return o.ID })
		s.collector.Emit(annotations.OptimizeSkipped, map[string]any{
			"machine": machine.ID, "orders": len(free),
		})
	}

	byID := lo.KeyBy(orders, func(o flexoplan.Order) int { return o.ID })
	sequence := make([]flexoplan.Order, 0, len(orders))
	reasons := make([]string, 0, len(orders))
	for _, o := range forced {
		sequence = append(sequence, o)
		reasons = append(reasons, reasonForced)
	}
	for _, id := range optimizedIDs {
		sequence = append(sequence, byID[id])
		reasons = append(reasons, reason)
	}

	calc := dates.NewCalculator(s.dates)
	scheduled := calc.Walk(flexoplan.EnrichAll(sequence), s.now(), machine)
	s.collector.Emit(annotations.ScheduleComputed, map[string]any{
		"machine": machine.ID, "forced": len(forced), "optimized": len(optimizedIDs),
	})

	rows := make([]flexoplan.QueueRow, 0, len(scheduled))
	for i, so := range scheduled {
		rows = append(rows, flexoplan.QueueRow{
			OrderID:              so.Order.ID,
			MachineID:            machine.ID,
			Reason:               reasons[i],
			ProbableDeliveryDate: so.ProbableDelivery,
			SetupMin:             so.SetupMin,
			InterLabelMin:        so.InterLabelMin,
			PrintMin:             so.PrintMin,
			BufferMin:            so.BufferMin,
			TotalMin:             so.TotalMin,
		})
	}
	return rows
}

// GenerateOptimalScheduleAllMachines plans the whole fleet: orders are
// first rebalanced across compatible machines, then every active
// machine's queue is rebuilt. Partial mode (reoptimize=false) is
// rejected because reassignment invalidates the existing sequences.
func (s *Service) GenerateOptimalScheduleAllMachines(ctx context.Context, reoptimize bool) (*Response, error) {
	if !reoptimize {
		return fail(actionGenerateAll, ErrPartialModeUnsupported)
	}
	start := time.Now()

	machines, err := s.store.GetAllMachineStatus(ctx)
	if err != nil {
		s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
		return fail(actionGenerateAll, err)
	}
	active := lo.Filter(machines, func(m flexoplan.Machine, _ int) bool {
		return m.Status == flexoplan.StatusActive
	})
	if len(active) == 0 {
		return fail(actionGenerateAll, fmt.Errorf("%w: no active machines", ErrMachineNotActive))
	}
	activeIDs := lo.SliceToMap(active, func(m flexoplan.Machine) (int, struct{}) {
		return m.ID, struct{}{}
	})

	orders, err := s.store.GetSchedulableOrdersForAllMachines(ctx)
	if err != nil {
		s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
		return fail(actionGenerateAll, err)
	}

	ordersByMachine := make(map[int][]flexoplan.Order, len(active))
	for _, m := range active {
		ordersByMachine[m.ID] = nil
	}
	for _, o := range orders {
		if _, ok := activeIDs[o.MachineID]; ok {
			ordersByMachine[o.MachineID] = append(ordersByMachine[o.MachineID], o)
		}
	}

	graph := planner.BuildCompatibilityGraph(active, s.collector)
	moves := planner.Reassign(ordersByMachine, active, graph, s.collector)
	planner.Apply(moves, ordersByMachine)

	movedTo := make(map[int]int, len(moves))
	for _, m := range moves {
		movedTo[m.OrderID] = m.To
	}

	perMachine := make(map[string]any, len(active))
	total := 0
	for _, machine := range active {
		assigned := ordersByMachine[machine.ID]
		if len(assigned) == 0 {
			if err := s.store.OverwriteMachineSchedule(ctx, machine.ID, nil); err != nil {
				s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
				return fail(actionGenerateAll, err)
			}
			perMachine[strconv.Itoa(machine.ID)] = 0
			continue
		}
		rows := s.computeSchedule(assigned, machine, reasonGlobal)
		if err := s.store.OverwriteMachineSchedule(ctx, machine.ID, rows); err != nil {
			s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
			return fail(actionGenerateAll, err)
		}
		perMachine[strconv.Itoa(machine.ID)] = len(rows)
		total += len(rows)
	}

	s.collector.AddTiming(annotations.SchedulePersisted, start, map[string]any{
		"machines": len(active), "orders": total, "moves": len(moves),
	})

	return &Response{
		Success: true,
		Message: fmt.Sprintf("scheduled %d orders across %d machines (%d reassigned)", total, len(active), len(moves)),
		Action:  actionGenerateAll,
		Data: map[string]any{
			"machines":   perMachine,
			"reassigned": len(moves),
			"moves":      moves,
		},
	}, nil
}

// PrioritizeOrder pulls an order to the front of its machine's queue.
// With reoptimize the rest of the queue is re-sequenced around it;
// without, only the ranks shift. Dates are not recomputed here, callers
// follow up with RecalculateDeliveryDates.
func (s *Service) PrioritizeOrder(ctx context.Context, orderID int, reoptimize bool) (*Response, error) {
	row, err := s.store.GetQueueItemByOrderID(ctx, orderID)
	if err != nil {
		s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
		return fail(actionPrioritize, err)
	}
	if row == nil {
		return fail(actionPrioritize, fmt.Errorf("%w: order %d", ErrOrderNotInQueue, orderID))
	}
	if row.ProductionOrder == 1 {
		return &Response{
			Success: true,
			Message: fmt.Sprintf("order %d is already first on machine %d", orderID, row.MachineID),
			Action:  actionPrioritize,
		}, nil
	}

	machine, err := s.store.GetMachineByID(ctx, row.MachineID)
	if err != nil {
		return fail(actionPrioritize, err)
	}
	if machine == nil {
		return fail(actionPrioritize, fmt.Errorf("%w: id %d", ErrMachineNotFound, row.MachineID))
	}
	if machine.Status != flexoplan.StatusActive {
		return fail(actionPrioritize, fmt.Errorf("%w: machine %d is %s", ErrMachineNotActive, machine.ID, machine.Status))
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return fail(actionPrioritize, err)
	}
	if order == nil || !order.Schedulable() {
		return fail(actionPrioritize, fmt.Errorf("order %d is no longer schedulable", orderID))
	}
	if order.MachineID != row.MachineID {
		// The fleet planner moved the order after this queue was written;
		// reordering the stale queue would schedule it twice.
		s.collector.Emit(annotations.WarnOrderDropped, map[string]any{
			"order": orderID, "queue_machine": row.MachineID, "order_machine": order.MachineID,
		})
		return fail(actionPrioritize, fmt.Errorf("order %d moved to machine %d; regenerate machine %d's schedule first",
			orderID, order.MachineID, row.MachineID))
	}

	queue, err := s.store.GetEnrichedQueueForMachine(ctx, machine.ID)
	if err != nil {
		s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
		return fail(actionPrioritize, err)
	}

	sequence := lo.Map(queue, func(q flexoplan.QueueOrder, _ int) int { return q.Order.ID })
	byID := lo.SliceToMap(queue, func(q flexoplan.QueueOrder) (int, flexoplan.Order) {
		return q.Order.ID, q.Order
	})
	rowByOrder := lo.SliceToMap(queue, func(q flexoplan.QueueOrder) (int, int64) {
		return q.Order.ID, q.QueueRowID
	})

	pm := planner.NewPriorityManager(sequence, byID, *machine, s.collector)
	pm.SetOptimizer(s.weights, s.ga)
	if reoptimize {
		err = pm.PrioritizeAndReoptimize(orderID)
	} else {
		err = pm.Prioritize(orderID)
	}
	if err != nil {
		return fail(actionPrioritize, err)
	}

	updates := make([]storage.RankUpdate, 0, len(pm.Sequence()))
	for i, id := range pm.Sequence() {
		rowID, ok := rowByOrder[id]
		if !ok {
			s.collector.Emit(annotations.WarnRowWithoutQueue, map[string]any{
				"order": id, "machine": machine.ID,
			})
			continue
		}
		updates = append(updates, storage.RankUpdate{QueueRowID: rowID, ProductionOrder: i + 1})
	}
	if err := s.store.UpdateProductionQueue(ctx, updates); err != nil {
		s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
		return fail(actionPrioritize, err)
	}

	return &Response{
		Success: true,
		Message: fmt.Sprintf("order %d moved to position 1 on machine %d", orderID, machine.ID),
		Action:  actionPrioritize,
		Data: map[string]any{
			"machine_id":  machine.ID,
			"order_id":    orderID,
			"reoptimized": reoptimize,
			"queue_size":  len(updates),
		},
	}, nil
}

// RecalculateDeliveryDates re-stamps an existing queue with fresh
// probable delivery dates without changing its order.
func (s *Service) RecalculateDeliveryDates(ctx context.Context, machineRef string) (*Response, error) {
	machine, err := s.resolveMachine(ctx, machineRef)
	if err != nil {
		return fail(actionRecalc, err)
	}

	queue, err := s.store.GetEnrichedQueueForMachine(ctx, machine.ID)
	if err != nil {
		s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
		return fail(actionRecalc, err)
	}
	if len(queue) == 0 {
		return &Response{
			Success: true,
			Message: fmt.Sprintf("machine %d has an empty queue", machine.ID),
			Action:  actionRecalc,
		}, nil
	}

	orders := lo.Map(queue, func(q flexoplan.QueueOrder, _ int) flexoplan.Order { return q.Order })
	calc := dates.NewCalculator(s.dates)
	scheduled := calc.Walk(flexoplan.EnrichAll(orders), s.now(), *machine)

	updates := make([]storage.TimesUpdate, 0, len(scheduled))
	for i, so := range scheduled {
		updates = append(updates, storage.TimesUpdate{
			QueueRowID:           queue[i].QueueRowID,
			ProbableDeliveryDate: so.ProbableDelivery,
			SetupMin:             so.SetupMin,
			InterLabelMin:        so.InterLabelMin,
			PrintMin:             so.PrintMin,
			BufferMin:            so.BufferMin,
			TotalMin:             so.TotalMin,
		})
	}
	if err := s.store.UpdateQueueDatesAndTimes(ctx, updates); err != nil {
		s.collector.Emit(annotations.ErrorStore, map[string]any{"error": err.Error()})
		return fail(actionRecalc, err)
	}
	s.collector.Emit(annotations.DatesComputed, map[string]any{
		"machine": machine.ID, "orders": len(updates),
	})

	return &Response{
		Success: true,
		Message: fmt.Sprintf("recalculated delivery dates for %d orders on machine %d", len(updates), machine.ID),
		Action:  actionRecalc,
		Data: map[string]any{
			"machine_id": machine.ID,
			"orders":     len(updates),
		},
	}, nil
}
