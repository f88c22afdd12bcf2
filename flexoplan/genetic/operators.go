package genetic

import (
	"math/rand"
)

// orderedCrossover recombines two permutations in place. A random
// segment of each parent is preserved and the remaining positions are
// filled with the other parent's genes in the order they appear there,
// so both children stay valid permutations.
func orderedCrossover(ind1, ind2 []int, rng *rand.Rand) {
	size := len(ind1)
	if size < 2 {
		return
	}

	a, b := rng.Intn(size), rng.Intn(size)
	if a > b {
		a, b = b, a
	}

	holes1 := make([]bool, size)
	holes2 := make([]bool, size)
	for i := 0; i < size; i++ {
		holes1[i] = true
		holes2[i] = true
	}
	for i := 0; i < size; i++ {
		if i < a || i > b {
			holes1[ind2[i]] = false
			holes2[ind1[i]] = false
		}
	}

	temp1 := append([]int(nil), ind1...)
	temp2 := append([]int(nil), ind2...)
	k1, k2 := b+1, b+1
	for i := 0; i < size; i++ {
		if !holes1[temp1[(i+b+1)%size]] {
			ind1[k1%size] = temp1[(i+b+1)%size]
			k1++
		}
		if !holes2[temp2[(i+b+1)%size]] {
			ind2[k2%size] = temp2[(i+b+1)%size]
			k2++
		}
	}

	for i := a; i <= b; i++ {
		ind1[i], ind2[i] = ind2[i], ind1[i]
	}
}

// shuffleIndexes mutates a permutation in place: each position is,
// independently with probability indpb, swapped with another random
// position.
func shuffleIndexes(ind []int, indpb float64, rng *rand.Rand) {
	size := len(ind)
	if size < 2 {
		return
	}
	for i := 0; i < size; i++ {
		if rng.Float64() < indpb {
			j := rng.Intn(size - 1)
			if j >= i {
				j++
			}
			ind[i], ind[j] = ind[j], ind[i]
		}
	}
}

// tournament returns the index of the fittest of k randomly drawn
// individuals (lower fitness wins).
func tournament(fitness []float64, k int, rng *rand.Rand) int {
	best := rng.Intn(len(fitness))
	for i := 1; i < k; i++ {
		challenger := rng.Intn(len(fitness))
		if fitness[challenger] < fitness[best] {
			best = challenger
		}
	}
	return best
}

// randomPermutation draws a uniform permutation of 0..n-1.
func randomPermutation(n int, rng *rand.Rand) []int {
	return rng.Perm(n)
}
