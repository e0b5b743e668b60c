package state

import "math/rand"

// aliasTable is a Vose-alias sampler giving O(1) draws from a discrete
// distribution.
type aliasTable struct {
	elements []Index
	prob     []float64
	alias    []int
}

// newAliasTable builds an alias table for the given elements and their
// (not necessarily normalized to sum to exactly 1 due to float error, but
// assumed to sum to ~1) weights. Callers are responsible for including a
// noTransition entry to represent residual probability.
func newAliasTable(elements []Index, weights []float64) *aliasTable {
	n := len(weights)
	scaled := make([]float64, n)
	prob := make([]float64, n)
	aliasIdx := make([]int, n)

	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, w := range weights {
		scaled[i] = w * float64(n)
		if scaled[i] < 1.0 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		l := small[len(small)-1]
		small = small[:len(small)-1]
		g := large[len(large)-1]
		large = large[:len(large)-1]

		prob[l] = scaled[l]
		aliasIdx[l] = g

		scaled[g] = scaled[g] + scaled[l] - 1.0
		if scaled[g] < 1.0 {
			small = append(small, g)
		} else {
			large = append(large, g)
		}
	}
	for len(large) > 0 {
		l := large[len(large)-1]
		large = large[:len(large)-1]
		prob[l] = 1.0
	}
	for len(small) > 0 {
		l := small[len(small)-1]
		small = small[:len(small)-1]
		prob[l] = 1.0
	}

	return &aliasTable{elements: elements, prob: prob, alias: aliasIdx}
}

// sample draws one element in O(1).
func (t *aliasTable) sample(rng *rand.Rand) Index {
	n := len(t.elements)
	if n == 0 {
		return noTransition
	}
	i := rng.Intn(n)
	if rng.Float64() < t.prob[i] {
		return t.elements[i]
	}
	return t.elements[t.alias[i]]
}
