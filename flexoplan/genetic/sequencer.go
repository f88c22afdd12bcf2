// Package genetic searches the permutation space of a machine's pending
// orders for a production sequence that minimizes setup time, ink
// over-capacity and lateness, with a structural bias toward running
// ink-heavy jobs first.
package genetic

import (
	"math/rand"
	"time"

	"github.com/imprenta-ai/flexoplan/flexoplan"
	"github.com/imprenta-ai/flexoplan/flexoplan/costs"
)

// Weights are the fitness coefficients of the sequencer.
type Weights struct {
	SetupCost       float64 // multiplier on each transition cost
	DelayPenalty    float64 // per-minute lateness weight for normal orders
	InkOvercapacity float64 // per missing functional ink unit
	HighInkPriority float64 // shaping weight for ink-heavy-first bias
	Costs           costs.Params
}

// DefaultWeights returns the production fitness coefficients. The
// same-customer discount is slightly weaker here than in the date
// calculator so the optimizer does not over-cluster one customer.
func DefaultWeights() Weights {
	p := costs.DefaultParams()
	p.SameCustomerFactor = 0.8
	return Weights{
		SetupCost:       100,
		DelayPenalty:    10,
		InkOvercapacity: 1000,
		HighInkPriority: 50000,
		Costs:           p,
	}
}

// Params controls one optimization run.
type Params struct {
	Population    int     // default 100
	Generations   int     // default 100
	CrossoverProb float64 // default 0.7
	MutationProb  float64 // default 0.2
	Seed          int64   // 0 means time-seeded
}

// DefaultParams returns the single-machine run parameters.
func DefaultParams() Params {
	return Params{
		Population:    100,
		Generations:   100,
		CrossoverProb: 0.7,
		MutationProb:  0.2,
	}
}

// mutationIndpb is the per-position swap probability inside the shuffle
// mutation.
const mutationIndpb = 0.05

// tournamentSize is the selection pressure of the reproduction step.
const tournamentSize = 3

// latePenaltyCap bounds the lateness contribution of a single order so
// one catastrophically late job cannot dominate the score.
const latePenaltyCap = 500000.0

// Sequencer optimizes the print sequence of one machine's orders.
// Individuals are permutations of indices 0..N-1; the index to order-id
// table is fixed at construction so the operators never hash ids.
type Sequencer struct {
	enriched []*flexoplan.EnrichedOrder
	idxToID  []int
	idToIdx  map[int]int
	machine  flexoplan.Machine
	weights  Weights
	model    costs.Model
}

// NewSequencer enriches the orders once and builds the index table.
func NewSequencer(orders []flexoplan.Order, machine flexoplan.Machine, weights Weights) *Sequencer {
	enriched := flexoplan.EnrichAll(orders)
	idxToID := make([]int, len(enriched))
	idToIdx := make(map[int]int, len(enriched))
	for i, e := range enriched {
		idxToID[i] = e.ID()
		idToIdx[e.ID()] = i
	}
	return &Sequencer{
		enriched: enriched,
		idxToID:  idxToID,
		idToIdx:  idToIdx,
		machine:  machine,
		weights:  weights,
		model:    costs.NewModel(machine, weights.Costs),
	}
}

// Optimize runs the generational loop and returns the best sequence of
// order ids ever observed. Empty input returns an empty sequence
// without touching the operators.
func (s *Sequencer) Optimize(p Params) []int {
	n := len(s.idxToID)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []int{s.idxToID[0]}
	}

	if p.Population <= 0 {
		p.Population = 100
	}
	if p.Generations <= 0 {
		p.Generations = 100
	}
	if p.CrossoverProb <= 0 {
		p.CrossoverProb = 0.7
	}
	if p.MutationProb <= 0 {
		p.MutationProb = 0.2
	}
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	pop := make([][]int, p.Population)
	fitness := make([]float64, p.Population)
	for i := range pop {
		pop[i] = randomPermutation(n, rng)
		fitness[i] = s.evaluate(pop[i])
	}

	best, bestFit := s.hallOfFame(pop, fitness, nil, 0)

	for gen := 0; gen < p.Generations; gen++ {
		offspring := make([][]int, len(pop))
		for i := range offspring {
			winner := tournament(fitness, tournamentSize, rng)
			offspring[i] = append([]int(nil), pop[winner]...)
		}

		for i := 0; i+1 < len(offspring); i += 2 {
			if rng.Float64() < p.CrossoverProb {
				orderedCrossover(offspring[i], offspring[i+1], rng)
			}
		}
		for i := range offspring {
			if rng.Float64() < p.MutationProb {
				shuffleIndexes(offspring[i], mutationIndpb, rng)
			}
		}

		pop = offspring
		for i := range pop {
			fitness[i] = s.evaluate(pop[i])
		}

		// Elitism of size 1: the best individual ever seen survives
		// every generation by replacing the current worst.
		worst := 0
		for i := 1; i < len(fitness); i++ {
			if fitness[i] > fitness[worst] {
				worst = i
			}
		}
		pop[worst] = append([]int(nil), best...)
		fitness[worst] = bestFit

		best, bestFit = s.hallOfFame(pop, fitness, best, bestFit)
	}

	ids := make([]int, n)
	for i, idx := range best {
		ids[i] = s.idxToID[idx]
	}
	return ids
}

// hallOfFame keeps the best individual ever observed.
func (s *Sequencer) hallOfFame(pop [][]int, fitness []float64, best []int, bestFit float64) ([]int, float64) {
	for i := range pop {
		if best == nil || fitness[i] < bestFit {
			best = append([]int(nil), pop[i]...)
			bestFit = fitness[i]
		}
	}
	return best, bestFit
}

// Fitness scores a sequence of order ids with the same function the
// optimizer minimizes. Unknown ids are ignored.
func (s *Sequencer) Fitness(ids []int) float64 {
	indices := make([]int, 0, len(ids))
	for _, id := range ids {
		if idx, ok := s.idToIdx[id]; ok {
			indices = append(indices, idx)
		}
	}
	return s.evaluate(indices)
}
