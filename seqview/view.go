// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seqview builds per-node sequence views (C7): an ordered list of
// super-sequence column handles, one per position of that node's
// sequence, built by replaying a block list against the parent's view.
package seqview

import (
	"github.com/kortschak/seqsim/blocktree"
	"github.com/kortschak/seqsim/simerr"
	"github.com/kortschak/seqsim/superseq"
)

// View is one node's sequence, expressed as column handles into a shared
// super-sequence arena.
type View struct {
	Handles []superseq.Handle
}

// Len returns the number of positions in the view.
func (v *View) Len() int { return len(v.Handles) }

// Root builds the root's view directly from the arena's freshly
// initialized columns.
func Root(arena *superseq.Arena, first superseq.Handle, n int, save bool) *View {
	v := &View{Handles: arena.Walk(first, n)}
	if save {
		markAll(arena, v)
	}
	return v
}

// Build replays records (a child block tree's in-order block list, keyed
// in the parent's coordinate system) against parent to produce the
// child's view: for each block, the inherited run's handles are copied by
// reference from parent, and each block's insertion run is spliced into
// the arena as fresh columns after the last copied (or inserted) handle.
func Build(arena *superseq.Arena, parent *View, records []blocktree.Record, save bool) (*View, error) {
	v := &View{Handles: make([]superseq.Handle, 0, len(parent.Handles))}
	last := superseq.Invalid

	for _, r := range records {
		copyStart, copyCount := inheritedRange(r)
		if copyStart+copyCount > len(parent.Handles) {
			return nil, simerr.New(simerr.Invariant, "seqview", "block references positions beyond the parent view")
		}
		for i := 0; i < copyCount; i++ {
			h := parent.Handles[copyStart+i]
			v.Handles = append(v.Handles, h)
			last = h
		}
		for i := 0; i < r.Insertion; i++ {
			if last == superseq.Invalid {
				return nil, simerr.New(simerr.Invariant, "seqview", "insertion with no preceding column to splice after")
			}
			h, err := arena.InsertAfter(last, false)
			if err != nil {
				return nil, err
			}
			v.Handles = append(v.Handles, h)
			last = h
		}
	}

	if save {
		markAll(arena, v)
	}
	return v, nil
}

// inheritedRange returns the 0-based [start, start+count) slice of the
// parent view a block's inherited run copies from. Key 0, the anchor,
// carries one permanent virtual position that is never real content, so
// its inherited run (if any) begins at parent position 1 (view index 0)
// and is one shorter than its stored Length.
func inheritedRange(r blocktree.Record) (start, count int) {
	if r.Key == 0 {
		return 0, r.Length - 1
	}
	return r.Key - 1, r.Length
}

func markAll(arena *superseq.Arena, v *View) {
	for _, h := range v.Handles {
		arena.MarkObserved(h)
	}
}
