// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocktree

import (
	"math/rand"
	"testing"

	"github.com/kortschak/seqsim/category"
	"github.com/kortschak/seqsim/event"
)

func chainForTest(t *testing.T) *category.Chain {
	t.Helper()
	c, err := category.New([]float64{0.5, 0.5}, [][]float64{{0.9, 0.1}, {0.1, 0.9}}, 8)
	if err != nil {
		t.Fatalf("category.New: %v", err)
	}
	return c
}

func records(t *testing.T, tr *Tree) []Record {
	t.Helper()
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return tr.BlockList()
}

func wantKeyLenIns(t *testing.T, got []Record, want [][3]int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("block count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Key != w[0] || got[i].Length != w[1] || got[i].Insertion != w[2] {
			t.Errorf("block %d = (%d,%d,%d), want (%d,%d,%d)", i, got[i].Key, got[i].Length, got[i].Insertion, w[0], w[1], w[2])
		}
	}
}

// TestDeletionMidAnchor is §8 scenario 1: init tree with root length 10,
// delete 1 position at position 5.
func TestDeletionMidAnchor(t *testing.T) {
	tr := New(0)
	if err := tr.InitTree(10, nil); err != nil {
		t.Fatalf("InitTree: %v", err)
	}
	if err := tr.HandleEvent(event.Event{Kind: event.Deletion, Position: 5, Length: 1}, nil, nil); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	got := records(t, tr)
	wantKeyLenIns(t, got, [][3]int{{0, 5, 0}, {6, 5, 0}})
	if got := tr.TotalLength(); got != 10 {
		t.Errorf("TotalLength() = %d, want 10", got)
	}
}

// TestInsertThenDelete is §8 scenario 2: insert 2 at position 3, then
// delete 3 at position 4.
func TestInsertThenDelete(t *testing.T) {
	tr := New(0)
	if err := tr.InitTree(10, nil); err != nil {
		t.Fatalf("InitTree: %v", err)
	}
	if err := tr.HandleEvent(event.Event{Kind: event.Insertion, Position: 3, Length: 2}, nil, nil); err != nil {
		t.Fatalf("HandleEvent(insert): %v", err)
	}
	if err := tr.HandleEvent(event.Event{Kind: event.Deletion, Position: 4, Length: 3}, nil, nil); err != nil {
		t.Fatalf("HandleEvent(delete): %v", err)
	}
	if got, want := tr.RealLength(), 9; got != want {
		t.Errorf("RealLength() = %d, want %d", got, want)
	}
	records(t, tr) // validates invariants
}

// TestFullPrefixDeletionPreservesAnchor is §8 scenario 4: a deletion that
// consumes the entire current sequence collapses to a one-position anchor
// stub rather than vanishing.
func TestFullPrefixDeletionPreservesAnchor(t *testing.T) {
	tr := New(0)
	if err := tr.InitTree(10, nil); err != nil {
		t.Fatalf("InitTree: %v", err)
	}
	if err := tr.HandleEvent(event.Event{Kind: event.Deletion, Position: 1, Length: 10}, nil, nil); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	got := records(t, tr)
	wantKeyLenIns(t, got, [][3]int{{0, 1, 0}})
	if got := tr.TotalLength(); got != 1 {
		t.Errorf("TotalLength() = %d, want 1", got)
	}
}

func TestInsertAtZeroPrependsAfterAnchor(t *testing.T) {
	tr := New(0)
	if err := tr.InitTree(3, nil); err != nil {
		t.Fatalf("InitTree: %v", err)
	}
	if err := tr.HandleEvent(event.Event{Kind: event.Insertion, Position: 0, Length: 2}, nil, nil); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if got, want := tr.RealLength(), 5; got != want {
		t.Errorf("RealLength() = %d, want %d", got, want)
	}
	records(t, tr)
}

func TestInsertAtTailAppends(t *testing.T) {
	tr := New(0)
	if err := tr.InitTree(4, nil); err != nil {
		t.Fatalf("InitTree: %v", err)
	}
	if err := tr.HandleEvent(event.Event{Kind: event.Insertion, Position: 4, Length: 3}, nil, nil); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if got, want := tr.RealLength(), 7; got != want {
		t.Errorf("RealLength() = %d, want %d", got, want)
	}
	records(t, tr)
}

func TestDeletionOutOfRangeErrors(t *testing.T) {
	tr := New(0)
	if err := tr.InitTree(5, nil); err != nil {
		t.Fatalf("InitTree: %v", err)
	}
	if err := tr.HandleEvent(event.Event{Kind: event.Deletion, Position: 5, Length: 10}, nil, nil); err == nil {
		t.Fatal("expected range error for an oversized deletion")
	}
}

// TestManyRandomEventsStaysBalanced applies a long random sequence of
// indels and checks the AVL and subtree-length invariants hold throughout,
// and that the real length tracks the net effect of every event applied.
func TestManyRandomEventsStaysBalanced(t *testing.T) {
	tr := New(0)
	if err := tr.InitTree(50, nil); err != nil {
		t.Fatalf("InitTree: %v", err)
	}
	rng := rand.New(rand.NewSource(99))
	length := 50
	for i := 0; i < 2000; i++ {
		if length == 0 || rng.Float64() < 0.5 {
			pos := rng.Intn(length + 1)
			size := 1 + rng.Intn(5)
			if err := tr.HandleEvent(event.Event{Kind: event.Insertion, Position: pos, Length: size}, nil, rng); err != nil {
				t.Fatalf("iteration %d insertion: %v", i, err)
			}
			length += size
		} else {
			pos := 1 + rng.Intn(length)
			maxSize := length - pos + 1
			size := 1 + rng.Intn(maxSize)
			if err := tr.HandleEvent(event.Event{Kind: event.Deletion, Position: pos, Length: size}, nil, rng); err != nil {
				t.Fatalf("iteration %d deletion: %v", i, err)
			}
			length -= size
		}
		if err := tr.Validate(); err != nil {
			t.Fatalf("iteration %d: Validate: %v", i, err)
		}
		if got := tr.RealLength(); got != length {
			t.Fatalf("iteration %d: RealLength() = %d, want %d", i, got, length)
		}
	}
}

func TestCategoryVectorTracksInheritedAndInsertedPositions(t *testing.T) {
	chain := chainForTest(t)
	parentCats := []int{0, 1, 0, 1}
	tr := New(0)
	if err := tr.InitTree(4, parentCats); err != nil {
		t.Fatalf("InitTree: %v", err)
	}
	rng := rand.New(rand.NewSource(5))
	if err := tr.HandleEvent(event.Event{Kind: event.Insertion, Position: 2, Length: 2}, chain, rng); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	vec := tr.CategoryVector()
	if got, want := len(vec), 6; got != want {
		t.Fatalf("len(CategoryVector()) = %d, want %d", got, want)
	}
	// Position 1 is inherited (parent position 1), positions 2-3 are the
	// new insertion, positions 4-6 are inherited (parent positions 2-4).
	if vec[0] != 0 {
		t.Errorf("vec[0] = %d, want 0 (inherited parent position 1)", vec[0])
	}
	if vec[3] != 1 || vec[4] != 0 || vec[5] != 1 {
		t.Errorf("inherited suffix = %v, want [1 0 1]", vec[3:])
	}
}
