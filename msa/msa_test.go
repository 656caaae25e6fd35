// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msa

import (
	"math/rand"
	"testing"

	"github.com/kortschak/seqsim/model"
)

type fakeNode struct {
	id       int
	name     string
	parent   *fakeNode
	children []*fakeNode
	length   float64
}

func (n *fakeNode) ID() int   { return n.id }
func (n *fakeNode) Name() string { return n.name }
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

type unitLenDist struct{}

func (unitLenDist) Draw(rng *rand.Rand) int { return 1 }

func smallTree() *fakeNode {
	root := &fakeNode{id: 0, name: "root"}
	a := &fakeNode{id: 1, name: "A", parent: root, length: 0.1}
	b := &fakeNode{id: 2, name: "B", parent: root, length: 0.1}
	root.children = []*fakeNode{a, b}
	return root
}

func protocolFor(root *fakeNode, insRate, delRate float64) *model.Protocol {
	bp := model.BranchParams{
		InsertionRate: insRate,
		DeletionRate:  delRate,
		InsertionDist: unitLenDist{},
		DeletionDist:  unitLenDist{},
	}
	p := &model.Protocol{
		SequenceSize:    20,
		MinSequenceSize: 5,
		Branch:          map[int]model.BranchParams{1: bp, 2: bp},
		NodesToSave:     map[int]bool{1: true, 2: true},
	}
	return p
}

func TestAssembleNoIndelsProducesGaplessAlignment(t *testing.T) {
	root := smallTree()
	protocol := protocolFor(root, 0, 0)
	rng := rand.New(rand.NewSource(1))

	a, err := Assemble(rng, root, protocol, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if got, want := a.MSALength(), 20; got != want {
		t.Errorf("MSALength() = %d, want %d", got, want)
	}
	if got, want := a.NumSequences(), 2; got != want {
		t.Errorf("NumSequences() = %d, want %d", got, want)
	}
	for _, id := range a.NodeIDs() {
		runs, err := a.Encode(id)
		if err != nil {
			t.Fatalf("Encode(%d): %v", id, err)
		}
		if len(runs) != 1 || runs[0] != 20 {
			t.Errorf("Encode(%d) = %v, want a single run of 20", id, runs)
		}
	}
}

func TestAssembleWithIndelsEncodingIsConsistent(t *testing.T) {
	root := smallTree()
	protocol := protocolFor(root, 0.3, 0.3)
	rng := rand.New(rand.NewSource(2))

	a, err := Assemble(rng, root, protocol, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	total := a.MSALength()
	for _, id := range a.NodeIDs() {
		runs, err := a.Encode(id)
		if err != nil {
			t.Fatalf("Encode(%d): %v", id, err)
		}
		var sum int
		prevSign := 0
		for _, r := range runs {
			if r == 0 {
				t.Fatalf("Encode(%d): zero-length run in %v", id, runs)
			}
			sign := 1
			if r < 0 {
				sign = -1
				sum += -r
			} else {
				sum += r
			}
			if sign == prevSign {
				t.Fatalf("Encode(%d): two consecutive runs of the same sign in %v", id, runs)
			}
			prevSign = sign
		}
		if sum != total {
			t.Errorf("Encode(%d): runs sum to %d, want MSALength %d", id, sum, total)
		}
	}
}

type stringSource struct {
	s   string
	pos int
}

func (s *stringSource) Next() byte {
	c := s.s[s.pos]
	s.pos++
	return c
}

func TestRowAsStringInterleavesGapsAndCharacters(t *testing.T) {
	root := smallTree()
	protocol := protocolFor(root, 0.3, 0.3)
	rng := rand.New(rand.NewSource(3))

	a, err := Assemble(rng, root, protocol, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	id := a.NodeIDs()[0]
	runs, err := a.Encode(id)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var nonGap int
	for _, r := range runs {
		if r > 0 {
			nonGap += r
		}
	}
	chars := make([]byte, nonGap)
	for i := range chars {
		chars[i] = 'A' + byte(i%4)
	}
	src := &stringSource{s: string(chars)}
	row, err := a.RowAsString(id, src)
	if err != nil {
		t.Fatalf("RowAsString: %v", err)
	}
	if len(row) != a.MSALength() {
		t.Fatalf("len(row) = %d, want %d", len(row), a.MSALength())
	}
}
