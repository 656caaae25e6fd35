// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alias implements Vose's alias method for O(1) sampling from a
// fixed discrete distribution built in O(k) time.
package alias

import (
	"math/rand"

	"github.com/kortschak/seqsim/simerr"
)

// Table is a prebuilt alias table over a fixed categorical distribution.
// Once built, Draw is O(1) and independent of the number of categories.
type Table struct {
	prob  []float64
	alias []int
}

// New builds an alias table from probabilities p, which need not already sum
// to 1 (they are read as relative weights and renormalized). New returns a
// *simerr.Error of kind Config if p is empty or contains a negative value.
func New(p []float64) (*Table, error) {
	n := len(p)
	if n == 0 {
		return nil, simerr.New(simerr.Config, "probabilities", "must not be empty")
	}

	var sum float64
	for _, v := range p {
		if v < 0 {
			return nil, simerr.New(simerr.Config, "probabilities", "must not be negative")
		}
		sum += v
	}
	if sum <= 0 {
		return nil, simerr.New(simerr.Config, "probabilities", "must sum to a positive value")
	}

	scaled := make([]float64, n)
	for i, v := range p {
		scaled[i] = float64(n) * v / sum
	}

	t := &Table{
		prob:  make([]float64, n),
		alias: make([]int, n),
	}

	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, v := range scaled {
		if v < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		t.prob[s] = scaled[s]
		t.alias[s] = l

		scaled[l] = (scaled[l] + scaled[s]) - 1
		if scaled[l] < 1 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	for _, l := range large {
		t.prob[l] = 1
	}
	for _, s := range small {
		t.prob[s] = 1
	}

	return t, nil
}

// Draw returns a category index in [0, k) with probability proportional to
// the weight it was built with. It performs a single fair-coin-flip,
// biased-coin-flip pair against rng, regardless of k.
func (t *Table) Draw(rng *rand.Rand) int {
	i := rng.Intn(len(t.prob))
	if rng.Float64() < t.prob[i] {
		return i
	}
	return t.alias[i]
}

// Len reports the number of categories in the table.
func (t *Table) Len() int { return len(t.prob) }
