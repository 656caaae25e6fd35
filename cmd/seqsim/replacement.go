// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"math"
	"math/rand"

	"github.com/kortschak/seqsim/alias"
	"github.com/kortschak/seqsim/model"
	"github.com/kortschak/seqsim/simerr"
)

// jc69 is a Jukes-Cantor nucleotide substitution model: equal stationary
// frequencies and a symmetric off-diagonal rate so that P(i,j,t,·) has the
// textbook closed form, scaled by one relative rate per rate category.
type jc69 struct {
	mu    float64 // overall substitution rate
	rates []float64
}

func newJC69(mu float64, categoryRates []float64) *jc69 {
	if len(categoryRates) == 0 {
		categoryRates = []float64{1}
	}
	return &jc69{mu: mu, rates: categoryRates}
}

func (m *jc69) AlphabetSize() int { return 4 }

func (m *jc69) Q(i, j int) float64 {
	if i == j {
		return -m.mu
	}
	return m.mu / 3
}

func (m *jc69) Pi(i int) float64 { return 0.25 }

func (m *jc69) CategoriesCount() int { return len(m.rates) }

func (m *jc69) Rate(cat int) float64 { return m.rates[cat] }

// P implements the closed-form JC69 transition probability at time t,
// scaled by the category's relative rate.
func (m *jc69) P(i, j int, t float64, cat int) float64 {
	rt := m.mu * m.rates[cat] * t
	same := 0.25 + 0.75*math.Exp(-4.0/3.0*rt)
	if i == j {
		return same
	}
	return (1 - same) / 3
}

// lengthTable draws indel lengths from an explicit discrete distribution
// over [1, maxLen] built with package alias, the same way
// original_source/src/DiscreteDistribution.h backs SimulationProtocol's
// per-branch length distributions — a table of weights, not a closed-form
// parametric sampler.
type lengthTable struct {
	tbl *alias.Table
}

// newGeometricLengthTable builds a lengthTable whose weights decay
// geometrically with parameter p (the per-length "stop" probability):
// weight(k) = p*(1-p)^(k-1) for k in [1, maxLen].
func newGeometricLengthTable(p float64, maxLen int) (*lengthTable, error) {
	if maxLen < 1 {
		return nil, simerr.New(simerr.Config, "maxLen", "must be at least 1")
	}
	weights := make([]float64, maxLen)
	for k := 0; k < maxLen; k++ {
		weights[k] = p * math.Pow(1-p, float64(k))
	}
	tbl, err := alias.New(weights)
	if err != nil {
		return nil, err
	}
	return &lengthTable{tbl: tbl}, nil
}

func (d *lengthTable) Draw(rng *rand.Rand) int { return d.tbl.Draw(rng) + 1 }

var _ model.LengthDistribution = (*lengthTable)(nil)
var _ model.ReplacementModel = (*jc69)(nil)
