// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package indel implements the per-branch indel event simulator (C5): a
// Gillespie-style waiting-time loop over competing insertion and deletion
// processes that produces an ordered event stream for one branch, to be
// interpreted against the parent's block list by package blocktree.
package indel

import (
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kortschak/seqsim/event"
	"github.com/kortschak/seqsim/model"
	"github.com/kortschak/seqsim/simerr"
)

// Simulate draws the event stream for one branch of length branchLength,
// whose parent sequence has length parentLength. minSequenceSize is the
// floor below which deletions are suppressed on this branch (the
// protocol's MinSequenceSize).
func Simulate(rng *rand.Rand, bp model.BranchParams, branchLength float64, parentLength, minSequenceSize int) (event.Sequence, error) {
	if bp.InsertionDist == nil || bp.DeletionDist == nil {
		return nil, simerr.New(simerr.Config, "branch", "insertion and deletion length distributions are required")
	}
	if bp.InsertionRate < 0 || bp.DeletionRate < 0 {
		return nil, simerr.New(simerr.Config, "branch", "rates must be non-negative")
	}

	L := parentLength
	remaining := branchLength
	var seq event.Sequence

	for {
		d := bp.DeletionDist.Draw(rng)

		lambdaI := bp.InsertionRate * float64(L+1)
		lambdaD := bp.DeletionRate * float64(L+d-1)
		if L <= minSequenceSize {
			lambdaD = 0
		}
		total := lambdaI + lambdaD
		if total <= 0 {
			break
		}

		t := distuv.Exponential{Rate: total, Src: rng}.Rand()
		if t > remaining {
			break
		}
		remaining -= t

		if rng.Float64() < lambdaI/total {
			pos := rng.Intn(L + 1)
			length := bp.InsertionDist.Draw(rng)
			seq = append(seq, event.Event{Kind: event.Insertion, Position: pos, Length: length})
			L += length
			continue
		}

		width := L + d - 1
		if width <= 0 {
			continue
		}
		low := 1 - (d - 1)
		raw := low + rng.Intn(width)
		var pos, length int
		if raw < 1 {
			length = d - (1 - raw)
			pos = 1
		} else {
			pos = raw
			length = d
		}
		if pos+length-1 > L {
			length = L - pos + 1
		}
		if length <= 0 {
			continue
		}
		seq = append(seq, event.Event{Kind: event.Deletion, Position: pos, Length: length})
		L -= length
	}

	return seq, nil
}
