// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package indel

import (
	"math/rand"
	"testing"

	"github.com/kortschak/seqsim/blocktree"
	"github.com/kortschak/seqsim/event"
	"github.com/kortschak/seqsim/model"
)

type constDist int

func (c constDist) Draw(rng *rand.Rand) int { return int(c) }

func TestSimulateRejectsNilDistributions(t *testing.T) {
	bp := model.BranchParams{InsertionRate: 1, DeletionRate: 1}
	if _, err := Simulate(rand.New(rand.NewSource(1)), bp, 1, 10, 1); err == nil {
		t.Fatal("expected error for missing length distributions")
	}
}

func TestSimulateProducesApplicableEvents(t *testing.T) {
	bp := model.BranchParams{
		InsertionRate: 0.05,
		DeletionRate:  0.05,
		InsertionDist: constDist(2),
		DeletionDist:  constDist(2),
	}
	rng := rand.New(rand.NewSource(42))
	seq, err := Simulate(rng, bp, 5.0, 100, 5)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	tr := blocktree.New(0)
	if err := tr.InitTree(100, nil); err != nil {
		t.Fatalf("InitTree: %v", err)
	}
	length := 100
	for i, ev := range seq {
		if ev.Kind == event.Deletion && length <= 5 {
			t.Fatalf("event %d: deletion below the configured floor (length=%d)", i, length)
		}
		if err := tr.HandleEvent(ev, nil, rng); err != nil {
			t.Fatalf("event %d (%v): HandleEvent: %v", i, ev, err)
		}
		if ev.Kind == event.Insertion {
			length += ev.Length
		} else {
			length -= ev.Length
		}
		if got := tr.RealLength(); got != length {
			t.Fatalf("event %d: tree real length = %d, want %d", i, got, length)
		}
	}
}

func TestSimulateZeroRatesProducesNoEvents(t *testing.T) {
	bp := model.BranchParams{
		InsertionRate: 0,
		DeletionRate:  0,
		InsertionDist: constDist(1),
		DeletionDist:  constDist(1),
	}
	rng := rand.New(rand.NewSource(3))
	seq, err := Simulate(rng, bp, 10.0, 50, 1)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(seq) != 0 {
		t.Fatalf("len(seq) = %d, want 0 for all-zero rates", len(seq))
	}
}
