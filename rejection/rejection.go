// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rejection implements a dynamic weighted sampler over a mutable
// weight vector spanning many orders of magnitude, using level-bucketed
// rejection sampling: O(1) expected time to sample, build, and update.
//
// Weights are partitioned into levels by floor(log2(w)) + 1. Every weight
// in level ℓ lies in [2^(ℓ-1), 2^ℓ), so uniform-picking an index within a
// level and accepting
// it with probability w/2^ℓ gives an expected acceptance rate of at least
// one half — at most two draws per sample in expectation.
package rejection

import (
	"math"
	"math/rand"
	"sort"

	"github.com/kortschak/seqsim/simerr"
)

// zeroLevel is the sentinel bucket for weights that have dropped to zero.
// Such weights remain present in the sampler (so later updates are cheap)
// but contribute nothing to the total and are never selected.
const zeroLevel = math.MinInt32

func levelOf(w float64) int {
	if w <= 0 {
		return zeroLevel
	}
	return int(math.Floor(math.Log2(w))) + 1
}

// Sampler draws indices from a dynamic, positive weight vector with O(1)
// expected cost per Sample and per Update.
type Sampler struct {
	weights []float64
	levelOf []int
	binOf   []int

	buckets  map[int][]int
	levelSum map[int]float64
	order    []int // ascending, the levels currently present in buckets

	total float64
}

// New builds a Sampler over the given weights. Weights must be
// non-negative; a weight of exactly zero is accepted and stored as
// "present at zero contribution" per the dynamic-sampler contract.
func New(weights []float64) (*Sampler, error) {
	s := &Sampler{
		weights:  append([]float64(nil), weights...),
		levelOf:  make([]int, len(weights)),
		binOf:    make([]int, len(weights)),
		buckets:  make(map[int][]int),
		levelSum: make(map[int]float64),
	}
	for i, w := range weights {
		if w < 0 {
			return nil, simerr.New(simerr.Config, "weights", "must be non-negative")
		}
		lvl := levelOf(w)
		s.levelOf[i] = lvl
		s.addToLevel(lvl, i, w)
	}
	return s, nil
}

func (s *Sampler) insertOrder(lvl int) {
	i := sort.SearchInts(s.order, lvl)
	s.order = append(s.order, 0)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = lvl
}

func (s *Sampler) removeOrder(lvl int) {
	i := sort.SearchInts(s.order, lvl)
	if i < len(s.order) && s.order[i] == lvl {
		s.order = append(s.order[:i], s.order[i+1:]...)
	}
}

func (s *Sampler) addToLevel(lvl, i int, w float64) {
	bucket, ok := s.buckets[lvl]
	if !ok {
		s.insertOrder(lvl)
	}
	s.binOf[i] = len(bucket)
	s.buckets[lvl] = append(bucket, i)
	if w > 0 {
		s.levelSum[lvl] += w
		s.total += w
	}
}

func (s *Sampler) removeFromLevel(lvl, i int) {
	bucket := s.buckets[lvl]
	bin := s.binOf[i]
	last := len(bucket) - 1
	movedIdx := bucket[last]
	bucket[bin] = movedIdx
	s.binOf[movedIdx] = bin
	bucket = bucket[:last]
	if len(bucket) == 0 {
		delete(s.buckets, lvl)
		delete(s.levelSum, lvl)
		s.removeOrder(lvl)
		return
	}
	s.buckets[lvl] = bucket
}

// Update sets the weight at index i to newWeight, moving it between level
// buckets as needed. It is safe to call repeatedly on the same index.
func (s *Sampler) Update(i int, newWeight float64) error {
	if newWeight < 0 {
		return simerr.New(simerr.Config, "weight", "must be non-negative")
	}
	old := s.weights[i]
	oldLevel := s.levelOf[i]
	newLevel := levelOf(newWeight)

	if oldLevel == newLevel {
		if old > 0 {
			s.levelSum[oldLevel] -= old
			s.total -= old
		}
		if newWeight > 0 {
			s.levelSum[oldLevel] += newWeight
			s.total += newWeight
		}
		s.weights[i] = newWeight
		return nil
	}

	if old > 0 {
		s.levelSum[oldLevel] -= old
		s.total -= old
	}
	s.removeFromLevel(oldLevel, i)

	s.weights[i] = newWeight
	s.levelOf[i] = newLevel
	s.addToLevel(newLevel, i, newWeight)
	return nil
}

// UpdateBulk replaces every weight in a single pass, equivalent to calling
// Update for each index but without repeated level-order bookkeeping when
// the caller has a fresh weight vector (e.g. resampling a Gillespie branch
// with a new site count).
func (s *Sampler) UpdateBulk(weights []float64) error {
	if len(weights) != len(s.weights) {
		return simerr.New(simerr.Config, "weights", "length must match sampler size")
	}
	fresh, err := New(weights)
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}

// Sample draws an index with probability proportional to its current
// weight. It returns a Config error if the total weight is zero (no index
// can be sampled).
func (s *Sampler) Sample(rng *rand.Rand) (int, error) {
	if s.total <= 0 {
		return 0, simerr.New(simerr.Config, "weights", "total weight is zero")
	}

	u := rng.Float64() * s.total
	var cum float64
	selected := zeroLevel
	for _, lvl := range s.order {
		sum := s.levelSum[lvl]
		if sum <= 0 {
			continue
		}
		cum += sum
		selected = lvl
		if u < cum {
			break
		}
	}

	bucket := s.buckets[selected]
	levelConversion := 1.0 / math.Pow(2, float64(selected))
	for {
		idx := bucket[rng.Intn(len(bucket))]
		w := s.weights[idx]
		if rng.Float64() < w*levelConversion {
			return idx, nil
		}
	}
}

// Weight returns the current weight at index i.
func (s *Sampler) Weight(i int) float64 { return s.weights[i] }

// Total returns the current sum of all weights.
func (s *Sampler) Total() float64 { return s.total }

// Len reports the number of indices tracked by the sampler.
func (s *Sampler) Len() int { return len(s.weights) }
