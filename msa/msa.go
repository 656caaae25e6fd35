// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package msa implements the MSA assembler (C8): a depth-first traversal
// of the phylogeny that, branch by branch, simulates indel events (C5),
// replays them through a reused block tree (C4) to get each node's block
// list, and builds that node's sequence view (C7) from its parent's.
// After the traversal every saved node's view is encoded as a run-length
// gap/non-gap vector against the super-sequence's final column layout.
package msa

import (
	"math/rand"

	"github.com/kortschak/seqsim/blocktree"
	"github.com/kortschak/seqsim/category"
	"github.com/kortschak/seqsim/indel"
	"github.com/kortschak/seqsim/model"
	"github.com/kortschak/seqsim/seqview"
	"github.com/kortschak/seqsim/simerr"
	"github.com/kortschak/seqsim/superseq"
)

// CharacterSource supplies the next character of one node's actual
// (gap-free) sequence, in position order. RowAsString calls Next exactly
// once per non-gap position.
type CharacterSource interface {
	Next() byte
}

// Assembler holds the super-sequence and every node's view once a
// simulation has finished. Views are kept for every node, saved or not,
// because the substitution engine evolves characters along every branch
// of the tree regardless of which nodes are ultimately written out.
type Assembler struct {
	arena    *superseq.Arena
	views    map[int]*seqview.View
	nodeCats map[int][]int // per-node rate-category vector, IndelAware only
	saved    map[int]bool
	order    []int // save order, i.e. DFS encounter order
}

// Assemble runs the full C5→C4→C7→C8 pipeline over tree under protocol,
// using chain for rate-category draws when protocol.SiteRateModel is
// IndelAware (chain may be nil otherwise).
func Assemble(rng *rand.Rand, tree model.Tree, protocol *model.Protocol, chain *category.Chain) (*Assembler, error) {
	if protocol.SequenceSize <= 0 {
		return nil, simerr.New(simerr.Config, "SequenceSize", "must be positive")
	}

	arena := superseq.New(0)
	first, err := arena.Initialize(protocol.SequenceSize)
	if err != nil {
		return nil, err
	}

	var rootCats []int
	if protocol.SiteRateModel == model.IndelAware {
		if chain == nil {
			return nil, simerr.New(simerr.Config, "chain", "required when SiteRateModel is IndelAware")
		}
		rootCats = make([]int, protocol.SequenceSize)
		prev := category.Unset
		for i := range rootCats {
			prev = chain.Next(rng, prev)
			rootCats[i] = prev
		}
	}

	a := &Assembler{
		arena:    arena,
		views:    make(map[int]*seqview.View),
		nodeCats: make(map[int][]int),
		saved:    make(map[int]bool),
	}
	rootSave := protocol.Save(tree.ID())
	rootView := seqview.Root(arena, first, protocol.SequenceSize, rootSave)
	a.views[tree.ID()] = rootView
	if rootCats != nil {
		a.nodeCats[tree.ID()] = rootCats
	}
	if rootSave {
		a.saved[tree.ID()] = true
		a.order = append(a.order, tree.ID())
	}

	bt := blocktree.New(0)
	if err := a.walk(rng, tree, protocol, chain, bt, rootView, protocol.SequenceSize, rootCats); err != nil {
		return nil, err
	}

	arena.AssignAbsolutePositions()
	return a, nil
}

func (a *Assembler) walk(rng *rand.Rand, node model.Tree, protocol *model.Protocol, chain *category.Chain, bt *blocktree.Tree, parentView *seqview.View, parentLen int, parentCats []int) error {
	for _, child := range node.Children() {
		bp, ok := protocol.BranchFor(child.ID())
		if !ok {
			return simerr.New(simerr.Config, "branch", "no branch parameters configured for node")
		}
		seq, err := indel.Simulate(rng, bp, child.Length(), parentLen, protocol.MinSequenceSize)
		if err != nil {
			return err
		}

		if err := bt.InitTree(parentLen, parentCats); err != nil {
			return err
		}
		for _, ev := range seq {
			if err := bt.HandleEvent(ev, chain, rng); err != nil {
				return err
			}
		}

		records := bt.BlockList()
		save := protocol.Save(child.ID())
		view, err := seqview.Build(a.arena, parentView, records, save)
		if err != nil {
			return err
		}
		a.views[child.ID()] = view
		if save {
			a.saved[child.ID()] = true
			a.order = append(a.order, child.ID())
		}

		var childCats []int
		if protocol.SiteRateModel == model.IndelAware {
			childCats = bt.CategoryVector()
			a.nodeCats[child.ID()] = childCats
		}
		childLen := bt.RealLength()

		if err := a.walk(rng, child, protocol, chain, bt, view, childLen, childCats); err != nil {
			return err
		}
	}
	return nil
}

// MSALength returns the total number of columns in the alignment.
func (a *Assembler) MSALength() int { return a.arena.ObservedColumnCount() }

// NumSequences returns the number of saved nodes.
func (a *Assembler) NumSequences() int { return len(a.order) }

// NodeIDs returns the saved node ids in DFS encounter order.
func (a *Assembler) NodeIDs() []int { return a.order }

// View returns the view built for any traversed node (saved or not), for
// callers (e.g. the substitution engine) that need its column handles
// directly.
func (a *Assembler) View(nodeID int) (*seqview.View, bool) {
	v, ok := a.views[nodeID]
	return v, ok
}

// ColumnIndexOf returns h's absolute column index in the finished
// alignment (valid only after Assemble has returned).
func (a *Assembler) ColumnIndexOf(h superseq.Handle) int {
	return a.arena.ColumnIndex(h)
}

// Categories returns the per-position rate-category vector recorded for
// nodeID when the protocol's SiteRateModel is IndelAware, aligned
// position-for-position with View(nodeID).Handles.
func (a *Assembler) Categories(nodeID int) ([]int, bool) {
	c, ok := a.nodeCats[nodeID]
	return c, ok
}

// ColumnCategories returns one rate category per alignment column, in
// column-index order (length MSALength()). For the IndelAware model it
// is built from the per-node category vectors recorded during Assemble,
// which already trace every column back to the branch that created it.
// For the Simple model every column draws its own category, in left to
// right column order, from chain (chain.Next is called once per column,
// threading autocorrelation along the alignment axis rather than along
// any one sequence).
func (a *Assembler) ColumnCategories(rng *rand.Rand, chain *category.Chain, siteRateModel model.SiteRateModel) []int {
	total := a.MSALength()
	cats := make([]int, total)
	if siteRateModel != model.IndelAware {
		prev := category.Unset
		for i := range cats {
			prev = chain.Next(rng, prev)
			cats[i] = prev
		}
		return cats
	}
	for id, cv := range a.nodeCats {
		view := a.views[id]
		for i, h := range view.Handles {
			if !a.arena.Observed(h) {
				continue
			}
			cats[a.arena.ColumnIndex(h)] = cv[i]
		}
	}
	return cats
}

// Encode returns nodeID's run-length gap/non-gap vector: a sequence of
// signed run lengths, positive for a run of consecutive occupied columns
// and negative for a run of gap columns, summing in absolute value to
// MSALength().
func (a *Assembler) Encode(nodeID int) ([]int, error) {
	view, ok := a.views[nodeID]
	if !ok {
		return nil, simerr.New(simerr.Config, "nodeID", "not a traversed node")
	}
	cols := make([]int, len(view.Handles))
	for i, h := range view.Handles {
		cols[i] = a.arena.ColumnIndex(h)
	}
	total := a.MSALength()

	var runs []int
	pos, i := 0, 0
	for pos < total {
		if i < len(cols) && cols[i] == pos {
			start := i
			for i < len(cols) && cols[i] == pos {
				pos++
				i++
			}
			runs = append(runs, i-start)
		} else {
			gapStart := pos
			for pos < total && !(i < len(cols) && cols[i] == pos) {
				pos++
			}
			runs = append(runs, -(pos - gapStart))
		}
	}
	return runs, nil
}

// RowAsString assembles nodeID's full alignment row, pulling characters
// from src only for non-gap positions, one at a time, in order.
func (a *Assembler) RowAsString(nodeID int, src CharacterSource) (string, error) {
	runs, err := a.Encode(nodeID)
	if err != nil {
		return "", err
	}
	total := 0
	for _, r := range runs {
		if r > 0 {
			total += r
		} else {
			total += -r
		}
	}
	buf := make([]byte, 0, total)
	for _, r := range runs {
		if r > 0 {
			for i := 0; i < r; i++ {
				buf = append(buf, src.Next())
			}
		} else {
			for i := 0; i < -r; i++ {
				buf = append(buf, '-')
			}
		}
	}
	return string(buf), nil
}
