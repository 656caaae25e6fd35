// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package substitution

import (
	"math"
	"math/rand"
	"testing"

	"github.com/kortschak/seqsim/category"
	"github.com/kortschak/seqsim/model"
	"github.com/kortschak/seqsim/msa"
)

// twoStateRM is a symmetric two-state continuous-time Markov model with a
// single rate category, used as a minimal stand-in for a real substitution
// model (e.g. Jukes-Cantor over a two-letter alphabet).
type twoStateRM struct{}

func (twoStateRM) AlphabetSize() int { return 2 }
func (twoStateRM) Q(i, j int) float64 {
	if i == j {
		return -1
	}
	return 1
}
func (twoStateRM) Pi(i int) float64     { return 0.5 }
func (twoStateRM) CategoriesCount() int { return 1 }
func (twoStateRM) Rate(cat int) float64 { return 1 }
func (twoStateRM) P(i, j int, t float64, cat int) float64 {
	same := 0.5 + 0.5*math.Exp(-2*t)
	if i == j {
		return same
	}
	return 1 - same
}

func singleCategoryChain(t *testing.T) *category.Chain {
	t.Helper()
	c, err := category.New([]float64{1}, [][]float64{{1}}, 4)
	if err != nil {
		t.Fatalf("category.New: %v", err)
	}
	return c
}

type fakeNode struct {
	id       int
	parent   *fakeNode
	children []*fakeNode
	length   float64
}

func (n *fakeNode) ID() int   { return n.id }
func (n *fakeNode) Name() string { return "" }
func (n *fakeNode) Parent() model.Tree {
	if n.parent == nil {
		return nil
	}
	return n.parent
}
func (n *fakeNode) Children() []model.Tree {
	out := make([]model.Tree, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}
func (n *fakeNode) Length() float64 { return n.length }
func (n *fakeNode) IsLeaf() bool    { return len(n.children) == 0 }
func (n *fakeNode) NumNodes() int {
	count := 1
	for _, c := range n.children {
		count += c.NumNodes()
	}
	return count
}

func twoLeafTree(branchA, branchB float64) *fakeNode {
	root := &fakeNode{id: 0}
	a := &fakeNode{id: 1, parent: root, length: branchA}
	b := &fakeNode{id: 2, parent: root, length: branchB}
	root.children = []*fakeNode{a, b}
	return root
}

func noIndelProtocol(size int) *model.Protocol {
	bp := model.BranchParams{
		InsertionRate: 0,
		DeletionRate:  0,
		InsertionDist: constDist(1),
		DeletionDist:  constDist(1),
	}
	return &model.Protocol{
		SequenceSize:    size,
		MinSequenceSize: 1,
		Branch:          map[int]model.BranchParams{1: bp, 2: bp},
		NodesToSave:     map[int]bool{0: true, 1: true, 2: true},
	}
}

type constDist int

func (c constDist) Draw(rng *rand.Rand) int { return int(c) }

func TestEvolveRootRowWithinAlphabet(t *testing.T) {
	root := twoLeafTree(0, 0)
	protocol := noIndelProtocol(10)
	chain := singleCategoryChain(t)
	rng := rand.New(rand.NewSource(1))

	asm, err := msa.Assemble(rng, root, protocol, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	eng, err := Evolve(rng, root, protocol, asm, twoStateRM{}, chain)
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	row, ok := eng.rows[0]
	if !ok {
		t.Fatal("no row captured for root")
	}
	if len(row) != 10 {
		t.Fatalf("len(row) = %d, want 10", len(row))
	}
	for i, c := range row {
		if c != 0 && c != 1 {
			t.Fatalf("row[%d] = %d, want 0 or 1", i, c)
		}
	}
}

func TestEvolveZeroLengthBranchesLeaveSequenceUnchanged(t *testing.T) {
	root := twoLeafTree(0, 0)
	protocol := noIndelProtocol(8)
	chain := singleCategoryChain(t)
	rng := rand.New(rand.NewSource(2))

	asm, err := msa.Assemble(rng, root, protocol, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	eng, err := Evolve(rng, root, protocol, asm, twoStateRM{}, chain)
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	rootRow := eng.rows[0]
	for _, id := range []int{1, 2} {
		row, ok := eng.rows[id]
		if !ok {
			t.Fatalf("no row captured for node %d", id)
		}
		if len(row) != len(rootRow) {
			t.Fatalf("node %d: len(row) = %d, want %d", id, len(row), len(rootRow))
		}
		for i := range row {
			if row[i] != rootRow[i] {
				t.Errorf("node %d position %d = %d, want %d (zero-length branch must not mutate)", id, i, row[i], rootRow[i])
			}
		}
	}
}

func TestEvolveLongBranchUsesFullSweepWithoutError(t *testing.T) {
	root := twoLeafTree(50, 50)
	protocol := noIndelProtocol(20)
	chain := singleCategoryChain(t)
	rng := rand.New(rand.NewSource(3))

	asm, err := msa.Assemble(rng, root, protocol, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	eng, err := Evolve(rng, root, protocol, asm, twoStateRM{}, chain)
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	for _, id := range []int{1, 2} {
		row, ok := eng.rows[id]
		if !ok || len(row) != 20 {
			t.Fatalf("node %d: row = %v, want length-20 row", id, row)
		}
	}
}

func TestEvolveShortBranchUsesGillespieWithoutError(t *testing.T) {
	root := twoLeafTree(0.001, 0.001)
	protocol := noIndelProtocol(20)
	chain := singleCategoryChain(t)
	rng := rand.New(rand.NewSource(4))

	asm, err := msa.Assemble(rng, root, protocol, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	eng, err := Evolve(rng, root, protocol, asm, twoStateRM{}, chain)
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	for _, id := range []int{1, 2} {
		row, ok := eng.rows[id]
		if !ok || len(row) != 20 {
			t.Fatalf("node %d: row = %v, want length-20 row", id, row)
		}
	}
}

func TestExpectedSubstitutionsPerSiteScalesWithBranchLength(t *testing.T) {
	e := &Engine{rm: twoStateRM{}}
	short := e.expectedSubstitutionsPerSite(0.01)
	long := e.expectedSubstitutionsPerSite(10)
	if !(short < 1 && long > 1) {
		t.Fatalf("expectedSubstitutionsPerSite(0.01)=%v, (10)=%v; want one below 1 and one above", short, long)
	}
}
