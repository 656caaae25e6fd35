// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package category implements the rate-category path sampler: draws from a
// stationary distribution π and an autocorrelated transition chain T,
// including bridge sampling of intermediate categories conditioned on one
// or both flanking categories. This is what lets inserted sequence
// positions receive rate categories from the correct conditional
// distribution instead of an unconditional draw.
package category

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/kortschak/seqsim/alias"
	"github.com/kortschak/seqsim/simerr"
)

// Unset marks "no previous category" for Next, e.g. the first site of a
// fresh sequence.
const Unset = -1

// Chain is a rate-category Markov chain: a stationary distribution π and a
// row-stochastic transition matrix T, with precomputed powers of T up to
// maxPathLength to support two-sided bridge sampling.
type Chain struct {
	stationary []float64
	transition *mat.Dense // k x k, rows sum to 1

	stationaryTable *alias.Table
	rowTables       []*alias.Table

	// powers[m] holds T^m for m in [1, maxPathLength]; powers[0] is unused.
	powers []*mat.Dense
}

// New builds a Chain from a stationary distribution and transition matrix.
// maxPathLength bounds the longest insertion whose categories can be
// bridge-sampled; it should be set to the protocol's max insertion length
// (§6 of the specification).
func New(stationary []float64, transition [][]float64, maxPathLength int) (*Chain, error) {
	k := len(stationary)
	if k == 0 {
		return nil, simerr.New(simerr.Config, "stationary", "must not be empty")
	}
	if len(transition) != k {
		return nil, simerr.New(simerr.Config, "transition", "row count must match stationary length")
	}
	for i, row := range transition {
		if len(row) != k {
			return nil, simerr.New(simerr.Config, "transition", "every row must have k columns")
		}
		var sum float64
		for _, v := range row {
			if v < 0 {
				return nil, simerr.New(simerr.Config, "transition", "entries must be non-negative")
			}
			sum += v
		}
		if sum < 1-1e-6 || sum > 1+1e-6 {
			return nil, simerr.New(simerr.Config, "transition", "rows must sum to 1")
		}
		_ = i
	}

	flat := make([]float64, 0, k*k)
	for _, row := range transition {
		flat = append(flat, row...)
	}
	T := mat.NewDense(k, k, flat)

	stationaryTable, err := alias.New(stationary)
	if err != nil {
		return nil, err
	}
	rowTables := make([]*alias.Table, k)
	for i, row := range transition {
		rt, err := alias.New(row)
		if err != nil {
			return nil, err
		}
		rowTables[i] = rt
	}

	if maxPathLength < 1 {
		maxPathLength = 1
	}
	powers := make([]*mat.Dense, maxPathLength+1)
	powers[1] = T
	for m := 2; m <= maxPathLength; m++ {
		next := mat.NewDense(k, k, nil)
		next.Mul(powers[m-1], T)
		powers[m] = next
	}

	return &Chain{
		stationary:      append([]float64(nil), stationary...),
		transition:      T,
		stationaryTable: stationaryTable,
		rowTables:       rowTables,
		powers:          powers,
	}, nil
}

// NumCategories returns the number of rate categories k.
func (c *Chain) NumCategories() int { return len(c.stationary) }

// Next draws the category following prev. If prev is Unset it draws from
// the stationary distribution instead.
func (c *Chain) Next(rng *rand.Rand, prev int) int {
	if prev == Unset {
		return c.stationaryTable.Draw(rng)
	}
	return c.rowTables[prev].Draw(rng)
}

// LeftBridge draws n categories extending right from a known left flank:
// cat_k ~ T[cat_{k-1}, ·], with cat_0 == left.
func (c *Chain) LeftBridge(rng *rand.Rand, left, n int) []int {
	path := make([]int, n)
	prev := left
	for i := 0; i < n; i++ {
		prev = c.rowTables[prev].Draw(rng)
		path[i] = prev
	}
	return path
}

// RightBridge draws n categories extending left from a known right flank,
// using the time-reversed chain. Under reversibility w.r.t. π this is
// forward sampling from the reversed transition matrix, walking backward
// from right and reversing the result.
func (c *Chain) RightBridge(rng *rand.Rand, right, n int) []int {
	rev := c.reversed()
	path := make([]int, n)
	cur := right
	for i := n - 1; i >= 0; i-- {
		cur = sampleRow(rng, rev, cur)
		path[i] = cur
	}
	return path
}

// Bridge draws n intermediate categories conditioned on both flanking
// categories (left and right), using precomputed transition powers:
// at position k (1-indexed), c_k is sampled proportional to
// T[c_{k-1}, c_k] * T^(n-k+1)[c_k, right].
func (c *Chain) Bridge(rng *rand.Rand, left, right, n int) []int {
	if n == 0 {
		return nil
	}
	if n > len(c.powers)-1 {
		// Extend lazily if an insertion exceeds the precomputed bound;
		// keeps correctness for adversarial inputs without forcing every
		// caller to size maxPathLength to the worst case up front.
		c.extendPowers(n)
	}

	k := c.NumCategories()
	path := make([]int, n)
	prev := left
	for step := 1; step <= n; step++ {
		remaining := n - step + 1
		weights := make([]float64, k)
		var sum float64
		for cat := 0; cat < k; cat++ {
			w := c.transition.At(prev, cat) * c.powers[remaining].At(cat, right)
			weights[cat] = w
			sum += w
		}
		var chosen int
		if sum <= 0 {
			// Numerically degenerate (e.g. structurally unreachable
			// flank pair): fall back to an unconditional forward draw
			// rather than dividing by zero.
			chosen = c.rowTables[prev].Draw(rng)
		} else {
			table, err := alias.New(weights)
			if err != nil {
				chosen = c.rowTables[prev].Draw(rng)
			} else {
				chosen = table.Draw(rng)
			}
		}
		path[step-1] = chosen
		prev = chosen
	}
	return path
}

func (c *Chain) extendPowers(n int) {
	k := c.NumCategories()
	for m := len(c.powers); m <= n; m++ {
		next := mat.NewDense(k, k, nil)
		next.Mul(c.powers[m-1], c.powers[1])
		c.powers = append(c.powers, next)
	}
}

// reversed builds the time-reversed transition matrix R[i][j] =
// T[j][i]*π[j]/π[i], valid when T is reversible w.r.t. π.
func (c *Chain) reversed() [][]float64 {
	k := c.NumCategories()
	rev := make([][]float64, k)
	for i := 0; i < k; i++ {
		rev[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			if c.stationary[i] == 0 {
				continue
			}
			rev[i][j] = c.transition.At(j, i) * c.stationary[j] / c.stationary[i]
		}
	}
	return rev
}

func sampleRow(rng *rand.Rand, rows [][]float64, from int) int {
	table, err := alias.New(rows[from])
	if err != nil {
		// A degenerate (all-zero) reversed row can occur only when π
		// assigns zero mass to `from`; fall back to uniform since no
		// conditional information survives.
		return rng.Intn(len(rows[from]))
	}
	return table.Draw(rng)
}
