package genetic

import (
	"github.com/imprenta-ai/flexoplan/flexoplan"
)

// evaluate scores a candidate permutation of indices; lower is better.
//
// The walk accumulates four terms per position: a complexity-by-position
// shaping term (ink-heavy jobs early earn a bonus, trivial jobs early
// pay a penalty), the weighted transition cost from the predecessor, an
// over-capacity penalty when an order demands more colors than the
// machine has functional ink units, and a capped lateness penalty
// against the order's delivery window in raw wall-time minutes.
func (s *Sequencer) evaluate(indices []int) float64 {
	n := len(indices)
	if n == 0 {
		return 0
	}

	score := 0.0
	runningMinutes := 0.0
	effectiveInks := s.machine.EffectiveInks()

	for i, idx := range indices {
		cur := s.enriched[idx]
		numColors := cur.NumColors()
		posNorm := float64(i) / float64(n)

		switch {
		case numColors >= 5:
			score -= (1 - posNorm) * (1 - posNorm) * float64(numColors) * s.weights.HighInkPriority
		case numColors >= 3:
			score -= (1 - posNorm) * float64(numColors) * 0.2 * s.weights.HighInkPriority
		default:
			score += (1 - posNorm) * float64(3-numColors) * 0.5 * s.weights.HighInkPriority
		}

		if i > 0 {
			transition := s.model.TransitionCost(s.enriched[indices[i-1]], cur)
			score += transition * s.weights.SetupCost
			runningMinutes += transition
		}

		runningMinutes += s.model.PrintMinutes(cur.Original)

		if numColors > effectiveInks {
			score += float64(numColors-effectiveInks) * s.weights.InkOvercapacity
		}

		if days := cur.Original.DaysRemaining; days != nil {
			deadlineMinutes := float64(*days) * 1440
			if runningMinutes > deadlineMinutes {
				overshoot := runningMinutes - deadlineMinutes
				penalty := overshoot * s.delayWeight(days)
				if penalty > latePenaltyCap {
					penalty = latePenaltyCap
				}
				score += penalty
			}
		}
	}
	return score
}

// delayWeight scales lateness by how overdue the order already is.
func (s *Sequencer) delayWeight(days *int) float64 {
	switch flexoplan.ClassifyUrgency(days) {
	case flexoplan.UrgencyCriticalOverdue, flexoplan.UrgencyOverdue:
		return 50
	case flexoplan.UrgencyUrgent:
		return 20
	default:
		return s.weights.DelayPenalty
	}
}
