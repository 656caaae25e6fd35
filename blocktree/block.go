// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blocktree implements the block tree: an AVL-balanced search tree
// over blocks, keyed by position in the parent's coordinate system, with a
// subtree-length aggregate at every node enabling O(log n) positional
// lookup and event application without ever materializing the descendant
// sequence itself.
//
// Block keys are 1-based positions in the parent sequence, except for the
// permanent key 0, the anchor block, which always exists and is never
// deleted (its own first position is a virtual slot that never corresponds
// to real sequence content — this is what guarantees the first real
// position of any sequence is never itself removed by a deletion).
package blocktree

// Block is one run of the descendant sequence: Length positions inherited
// unchanged from the parent (starting at this block's key, in parent
// coordinates) followed by Insertion positions that are new content not
// present in the parent at all.
//
// Rates, when non-nil, holds one rate category per inserted position (in
// left-to-right order); it has length exactly Insertion. The category of an
// inherited position is never stored here — it is looked up from the
// parent's flat per-position category vector that the tree was
// initialized with.
type Block struct {
	Length    int
	Insertion int
	Rates     []int
}

func (b Block) size() int { return b.Length + b.Insertion }

func ratesTail(rates []int, n int) []int {
	if rates == nil {
		return nil
	}
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	copy(out, rates[len(rates)-n:])
	return out
}

func ratesHead(rates []int, n int) []int {
	if rates == nil {
		return nil
	}
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	copy(out, rates[:n])
	return out
}

// removeRange returns rates with the half-open range [start, start+n)
// removed.
func removeRange(rates []int, start, n int) []int {
	if rates == nil {
		return nil
	}
	out := make([]int, 0, len(rates)-n)
	out = append(out, rates[:start]...)
	out = append(out, rates[start+n:]...)
	return out
}

// insertAt returns rates with vals spliced in starting at position pos.
func insertAt(rates []int, pos int, vals []int) []int {
	if rates == nil && vals == nil {
		return nil
	}
	out := make([]int, 0, len(rates)+len(vals))
	out = append(out, rates[:pos]...)
	out = append(out, vals...)
	out = append(out, rates[pos:]...)
	return out
}

func concatRates(a, b []int) []int {
	if a == nil && b == nil {
		return nil
	}
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
