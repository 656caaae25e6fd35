// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package superseq implements the super-sequence: an append-only column
// arena shared by every sequence view in one MSA simulation (C6). Every
// column inserted anywhere, by any node's block list replay, lives here
// exactly once; sequence views (package seqview) hold ordered lists of
// handles into it.
package superseq

import "github.com/kortschak/seqsim/simerr"

// Handle identifies one column. It never changes once issued: neither
// insertion nor marking invalidates a handle obtained earlier.
type Handle int32

// Invalid is the zero-value-safe sentinel handle.
const Invalid Handle = -1

// Arena is the column store. Columns are appended to a backing store and
// form a single singly linked list: root columns first, then each
// insertion event's new columns spliced in at the point they occurred.
// That linked order, not creation order, is the left-to-right order final
// positions are assigned in.
type Arena struct {
	next     []Handle
	observed []bool
	colIndex []int32
	head     Handle
	tail     Handle
	maxSize  int32
}

// New returns an empty Arena. maxSize, if positive, bounds the number of
// columns ever created; Initialize/InsertAfter return a Capacity error
// once it would be exceeded.
func New(maxSize int) *Arena {
	return &Arena{head: Invalid, tail: Invalid, maxSize: int32(maxSize)}
}

// Initialize allocates n fresh columns as the root sequence, none of them
// observed, and returns the handle of the first.
func (a *Arena) Initialize(n int) (Handle, error) {
	a.next = a.next[:0]
	a.observed = a.observed[:0]
	a.colIndex = a.colIndex[:0]
	a.head, a.tail = Invalid, Invalid
	if n <= 0 {
		return Invalid, simerr.New(simerr.Config, "n", "must be positive")
	}
	var first Handle
	for i := 0; i < n; i++ {
		h, err := a.allocate()
		if err != nil {
			return Invalid, err
		}
		if i == 0 {
			first = h
		}
	}
	return first, nil
}

func (a *Arena) allocate() (Handle, error) {
	if a.maxSize > 0 && int32(len(a.next)) >= a.maxSize {
		return Invalid, simerr.New(simerr.Capacity, "superseq", "column arena is full")
	}
	h := Handle(len(a.next))
	a.next = append(a.next, Invalid)
	a.observed = append(a.observed, false)
	a.colIndex = append(a.colIndex, -1)
	if a.head == Invalid {
		a.head = h
	} else {
		a.next[a.tail] = h
	}
	a.tail = h
	return h, nil
}

// InsertAfter splices a new column into the arena immediately after h
// (which must be a live handle previously returned by this Arena), and
// returns the new column's handle.
func (a *Arena) InsertAfter(h Handle, observed bool) (Handle, error) {
	if h < 0 || int(h) >= len(a.next) {
		return Invalid, simerr.New(simerr.Range, "h", "handle out of bounds")
	}
	if a.maxSize > 0 && int32(len(a.next)) >= a.maxSize {
		return Invalid, simerr.New(simerr.Capacity, "superseq", "column arena is full")
	}
	nh := Handle(len(a.next))
	a.next = append(a.next, a.next[h])
	a.observed = append(a.observed, observed)
	a.colIndex = append(a.colIndex, -1)
	a.next[h] = nh
	if a.tail == h {
		a.tail = nh
	}
	return nh, nil
}

// MarkObserved marks h as contributing to the final alignment.
func (a *Arena) MarkObserved(h Handle) error {
	if h < 0 || int(h) >= len(a.next) {
		return simerr.New(simerr.Range, "h", "handle out of bounds")
	}
	a.observed[h] = true
	return nil
}

// Observed reports whether h has been marked observed.
func (a *Arena) Observed(h Handle) bool { return a.observed[h] }

// AssignAbsolutePositions walks the arena left to right once, assigning
// each observed column an increasing 0-based column index. It must be
// called exactly once, after every view has finished being built and
// before any ColumnIndex lookups.
func (a *Arena) AssignAbsolutePositions() {
	var idx int32
	for h := a.head; h != Invalid; h = a.next[h] {
		if a.observed[h] {
			a.colIndex[h] = idx
			idx++
		}
	}
}

// ColumnIndex returns h's absolute column index (valid only after
// AssignAbsolutePositions), or -1 if h was never marked observed.
func (a *Arena) ColumnIndex(h Handle) int { return int(a.colIndex[h]) }

// ObservedColumnCount returns the number of columns marked observed.
func (a *Arena) ObservedColumnCount() int {
	var n int
	for _, ok := range a.observed {
		if ok {
			n++
		}
	}
	return n
}

// Len returns the total number of columns ever created.
func (a *Arena) Len() int { return len(a.next) }

// Walk returns the n handles starting at and including first, following
// the arena's linked order. It is used to materialize the root's initial
// view from the handle Initialize returned.
func (a *Arena) Walk(first Handle, n int) []Handle {
	out := make([]Handle, 0, n)
	h := first
	for i := 0; i < n; i++ {
		out = append(out, h)
		h = a.next[h]
	}
	return out
}
