// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocktree

import (
	"math/rand"

	"github.com/kortschak/seqsim/category"
	"github.com/kortschak/seqsim/event"
	"github.com/kortschak/seqsim/simerr"
)

const invalid = int32(-1)

// Tree is an arena-indexed AVL tree of blocks. The arena is a set of
// parallel slices rather than a fixed-capacity array (the idiomatic Go
// analogue of the original's preallocated arena); a free list lets erased
// slots be reused without the index-invalidating compaction a fixed array
// would require. Erasing a node with two children moves its in-order
// successor's key and block into the erased node's slot and frees the
// successor's slot, so the successor's index changes; every other live
// index remains stable across calls.
type Tree struct {
	key     []int
	blk     []Block
	sub     []int  // subtree length: size(blk) + size(left) + size(right)
	height  []int8 // for balance-factor computation
	left    []int32
	right   []int32
	parent  []int32
	free    []int32
	root    int32
	count   int32
	maxSize int32 // 0 = unbounded

	// parentCategories[i-1] is the rate category of parent position i, for
	// i in [1, len(parentCategories)]. Nil when rate tracking is disabled.
	parentCategories []int
}

// Record is one in-order block, suitable for serialization or inspection.
type Record struct {
	Key       int
	Length    int
	Insertion int
	Rates     []int
}

// New returns an empty Tree. Call InitTree before using it. maxSize, if
// positive, bounds the number of live nodes; HandleEvent returns a Capacity
// error once it would be exceeded.
func New(maxSize int) *Tree {
	return &Tree{maxSize: int32(maxSize)}
}

// InitTree resets the tree to a single anchor block representing a fresh
// sequence of rootLength positions. parentCategories, if non-nil, must have
// length rootLength and gives the rate category of each root position (for
// IndelAware site-rate models); it is nil for Simple site-rate models.
func (t *Tree) InitTree(rootLength int, parentCategories []int) error {
	if rootLength < 0 {
		return simerr.New(simerr.Config, "rootLength", "must be non-negative")
	}
	if parentCategories != nil && len(parentCategories) != rootLength {
		return simerr.New(simerr.Config, "parentCategories", "length must equal rootLength")
	}
	t.key = t.key[:0]
	t.blk = t.blk[:0]
	t.sub = t.sub[:0]
	t.height = t.height[:0]
	t.left = t.left[:0]
	t.right = t.right[:0]
	t.parent = t.parent[:0]
	t.free = t.free[:0]
	t.count = 0
	t.parentCategories = parentCategories

	idx := t.allocate(0, Block{Length: rootLength + 1, Insertion: 0})
	t.root = idx
	t.parent[idx] = invalid
	return nil
}

// TotalLength returns the raw aggregate Σ(length+insertion) over every
// block, including the anchor's permanent one-position offset.
func (t *Tree) TotalLength() int {
	if t.root == invalid {
		return 0
	}
	return t.sub[t.root]
}

// RealLength returns the length of the sequence this tree describes, i.e.
// TotalLength with the anchor's virtual position discounted.
func (t *Tree) RealLength() int {
	n := t.TotalLength()
	if n == 0 {
		return 0
	}
	return n - 1
}

// Len returns the number of live blocks.
func (t *Tree) Len() int { return int(t.count) }

func (t *Tree) allocate(key int, blk Block) int32 {
	var idx int32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
		t.key[idx] = key
		t.blk[idx] = blk
		t.sub[idx] = blk.size()
		t.height[idx] = 1
		t.left[idx] = invalid
		t.right[idx] = invalid
		t.parent[idx] = invalid
	} else {
		idx = int32(len(t.key))
		t.key = append(t.key, key)
		t.blk = append(t.blk, blk)
		t.sub = append(t.sub, blk.size())
		t.height = append(t.height, 1)
		t.left = append(t.left, invalid)
		t.right = append(t.right, invalid)
		t.parent = append(t.parent, invalid)
	}
	t.count++
	return idx
}

func (t *Tree) release(idx int32) {
	t.free = append(t.free, idx)
	t.count--
}

func (t *Tree) heightOf(idx int32) int8 {
	if idx == invalid {
		return 0
	}
	return t.height[idx]
}

func (t *Tree) subOf(idx int32) int {
	if idx == invalid {
		return 0
	}
	return t.sub[idx]
}

func (t *Tree) refresh(n int32) {
	lh, rh := t.heightOf(t.left[n]), t.heightOf(t.right[n])
	if lh > rh {
		t.height[n] = lh + 1
	} else {
		t.height[n] = rh + 1
	}
	t.sub[n] = t.subOf(t.left[n]) + t.subOf(t.right[n]) + t.blk[n].size()
}

func (t *Tree) balanceFactor(n int32) int {
	return int(t.heightOf(t.right[n])) - int(t.heightOf(t.left[n]))
}

func (t *Tree) rotateLeft(n int32) int32 {
	r := t.right[n]
	t.right[n] = t.left[r]
	if t.left[r] != invalid {
		t.parent[t.left[r]] = n
	}
	t.left[r] = n
	t.parent[r] = t.parent[n]
	t.parent[n] = r
	t.refresh(n)
	t.refresh(r)
	return r
}

func (t *Tree) rotateRight(n int32) int32 {
	l := t.left[n]
	t.left[n] = t.right[l]
	if t.right[l] != invalid {
		t.parent[t.right[l]] = n
	}
	t.right[l] = n
	t.parent[l] = t.parent[n]
	t.parent[n] = l
	t.refresh(n)
	t.refresh(l)
	return l
}

func (t *Tree) rebalance(n int32) int32 {
	t.refresh(n)
	bf := t.balanceFactor(n)
	if bf > 1 {
		if t.balanceFactor(t.right[n]) < 0 {
			t.right[n] = t.rotateRight(t.right[n])
			t.parent[t.right[n]] = n
		}
		return t.rotateLeft(n)
	}
	if bf < -1 {
		if t.balanceFactor(t.left[n]) > 0 {
			t.left[n] = t.rotateLeft(t.left[n])
			t.parent[t.left[n]] = n
		}
		return t.rotateRight(n)
	}
	return n
}

// insertNode inserts or overwrites the block at key under subtree n,
// returning the subtree's (possibly new) root.
func (t *Tree) insertNode(n int32, key int, blk Block) int32 {
	if n == invalid {
		return t.allocate(key, blk)
	}
	switch {
	case key == t.key[n]:
		t.blk[n] = blk
		t.refresh(n)
		return n
	case key < t.key[n]:
		c := t.insertNode(t.left[n], key, blk)
		t.left[n] = c
		t.parent[c] = n
	default:
		c := t.insertNode(t.right[n], key, blk)
		t.right[n] = c
		t.parent[c] = n
	}
	return t.rebalance(n)
}

func (t *Tree) minNode(n int32) int32 {
	for t.left[n] != invalid {
		n = t.left[n]
	}
	return n
}

func (t *Tree) maxNode(n int32) int32 {
	for t.right[n] != invalid {
		n = t.right[n]
	}
	return n
}

// eraseNode removes key from subtree n, returning the subtree's (possibly
// new) root.
func (t *Tree) eraseNode(n int32, key int) int32 {
	if n == invalid {
		return invalid
	}
	switch {
	case key < t.key[n]:
		c := t.eraseNode(t.left[n], key)
		t.left[n] = c
		if c != invalid {
			t.parent[c] = n
		}
	case key > t.key[n]:
		c := t.eraseNode(t.right[n], key)
		t.right[n] = c
		if c != invalid {
			t.parent[c] = n
		}
	default:
		if t.left[n] == invalid || t.right[n] == invalid {
			child := t.left[n]
			if child == invalid {
				child = t.right[n]
			}
			if child != invalid {
				t.parent[child] = t.parent[n]
			}
			t.release(n)
			return child
		}
		succ := t.minNode(t.right[n])
		t.key[n] = t.key[succ]
		t.blk[n] = t.blk[succ]
		c := t.eraseNode(t.right[n], t.key[succ])
		t.right[n] = c
		if c != invalid {
			t.parent[c] = n
		}
	}
	return t.rebalance(n)
}

// nextNode returns the in-order successor of n, or invalid if n is the
// rightmost node.
func (t *Tree) nextNode(n int32) int32 {
	if t.right[n] != invalid {
		return t.minNode(t.right[n])
	}
	cur, par := n, t.parent[n]
	for par != invalid && t.right[par] == cur {
		cur, par = par, t.parent[par]
	}
	return par
}

// prevNode returns the in-order predecessor of n, or invalid if n is the
// leftmost node.
func (t *Tree) prevNode(n int32) int32 {
	if t.left[n] != invalid {
		return t.maxNode(t.left[n])
	}
	cur, par := n, t.parent[n]
	for par != invalid && t.left[par] == cur {
		cur, par = par, t.parent[par]
	}
	return par
}

// locate finds the block containing virtual tree-coordinate position pos
// (1-based, in [1, TotalLength()]), returning its index and the 0-based
// local offset of pos within the block's (length+insertion) run.
func (t *Tree) locate(pos int) (int32, int, error) {
	if t.root == invalid || pos < 1 || pos > t.sub[t.root] {
		return invalid, 0, simerr.New(simerr.Range, "pos", "out of bounds")
	}
	n := t.root
	remaining := pos
	for {
		leftLen := t.subOf(t.left[n])
		if remaining <= leftLen {
			n = t.left[n]
			continue
		}
		remaining -= leftLen
		sz := t.blk[n].size()
		if remaining <= sz {
			return n, remaining - 1, nil
		}
		remaining -= sz
		n = t.right[n]
	}
}

// categoryAt returns the rate category of parent position pos (1-based),
// or category.Unset if rate tracking is disabled or pos is out of range
// (used for the flank immediately before the very first position).
func (t *Tree) categoryAt(pos int) int {
	if t.parentCategories == nil || pos < 1 || pos > len(t.parentCategories) {
		return category.Unset
	}
	return t.parentCategories[pos-1]
}

// BlockList returns every block in key order.
func (t *Tree) BlockList() []Record {
	out := make([]Record, 0, t.count)
	var walk func(n int32)
	walk = func(n int32) {
		if n == invalid {
			return
		}
		walk(t.left[n])
		out = append(out, Record{Key: t.key[n], Length: t.blk[n].Length, Insertion: t.blk[n].Insertion, Rates: t.blk[n].Rates})
		walk(t.right[n])
	}
	walk(t.root)
	return out
}

// CategoryVector reconstructs the full per-position rate category vector
// for the sequence this tree describes (length RealLength), combining
// positions inherited from the parent with each block's own inserted
// categories. It is used to seed a child block tree's parentCategories
// when the simulation descends one edge further down the phylogeny.
func (t *Tree) CategoryVector() []int {
	n := t.RealLength()
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	records := t.BlockList()
	for _, r := range records {
		start := r.Key
		if start == 0 {
			// The anchor's own first position is virtual; its inherited
			// run (if any) begins at parent position 1.
			for p := 1; p < r.Length; p++ {
				out = append(out, t.categoryAt(p))
			}
		} else {
			for p := start; p < start+r.Length; p++ {
				out = append(out, t.categoryAt(p))
			}
		}
		for _, c := range r.Rates {
			out = append(out, c)
		}
	}
	return out
}

// Validate recomputes every aggregate bottom-up and checks the AVL balance
// invariant, returning an error describing the first violation found.
func (t *Tree) Validate() error {
	if t.root == invalid {
		return simerr.New(simerr.Invariant, "root", "tree has no anchor block")
	}
	var walk func(n int32) (height int8, sub int, err error)
	walk = func(n int32) (int8, int, error) {
		if n == invalid {
			return 0, 0, nil
		}
		lh, lsub, err := walk(t.left[n])
		if err != nil {
			return 0, 0, err
		}
		rh, rsub, err := walk(t.right[n])
		if err != nil {
			return 0, 0, err
		}
		bf := int(rh) - int(lh)
		if bf > 1 || bf < -1 {
			return 0, 0, simerr.New(simerr.Invariant, "balance", "node violates AVL balance factor")
		}
		sub := lsub + rsub + t.blk[n].size()
		if sub != t.sub[n] {
			return 0, 0, simerr.New(simerr.Invariant, "subtree_length", "aggregate does not match recomputed value")
		}
		h := lh
		if rh > h {
			h = rh
		}
		return h + 1, sub, nil
	}
	if t.key[t.minNode(t.root)] != 0 {
		return simerr.New(simerr.Invariant, "anchor", "anchor block must have key 0")
	}
	_, _, err := walk(t.root)
	return err
}

// HandleEvent applies a single indel event to the tree, sampling any newly
// needed rate categories from sampler (which may be nil when rate tracking
// is disabled).
func (t *Tree) HandleEvent(ev event.Event, sampler *category.Chain, rng *rand.Rand) error {
	if t.maxSize > 0 && t.count >= t.maxSize {
		return simerr.New(simerr.Capacity, "blocktree", "node arena is full")
	}
	switch ev.Kind {
	case event.Insertion:
		return t.handleInsertion(ev.Position, ev.Length, sampler, rng)
	default:
		return t.handleDeletion(ev.Position, ev.Length)
	}
}

func (t *Tree) handleInsertion(realPos, size int, sampler *category.Chain, rng *rand.Rand) error {
	currentReal := t.RealLength()
	if realPos < 0 || realPos > currentReal {
		return simerr.New(simerr.Range, "position", "out of bounds for insertion")
	}

	var idx int32
	var offset int
	switch {
	case realPos == currentReal:
		idx = t.maxNode(t.root)
		offset = t.blk[idx].size()
	case realPos == 0:
		var err error
		idx, offset, err = t.locate(2)
		if err != nil {
			return err
		}
	default:
		var err error
		idx, offset, err = t.locate(realPos + 1)
		if err != nil {
			return err
		}
	}
	return t.splitBlock(idx, offset, size, sampler, rng)
}

func (t *Tree) handleDeletion(realPos, size int) error {
	currentReal := t.RealLength()
	if realPos < 1 || realPos > currentReal {
		return simerr.New(simerr.Range, "position", "out of bounds for deletion")
	}
	idx, offset, err := t.locate(realPos + 1)
	if err != nil {
		return err
	}
	return t.removeBlock(idx, offset, size)
}

// splitBlock implements C4's insertion event: an insertion of size new
// positions at local offset pos within block idx, either extending an
// existing insertion run in place (pos >= L) or splitting the inherited
// run in two around the new content (pos < L).
func (t *Tree) splitBlock(idx int32, pos, size int, sampler *category.Chain, rng *rand.Rand) error {
	key := t.key[idx]
	b := t.blk[idx]
	L := b.Length

	if pos == 0 && L > 0 && key != 0 {
		// The new run falls between the previous block's last position and
		// this block's first inherited one: extend the previous block's
		// insertion run at its end.
		prev := t.prevNode(idx)
		return t.splitBlock(prev, t.blk[prev].size(), size, sampler, rng)
	}

	if pos >= L {
		localOffset := pos - L
		left := t.flankBefore(key, L, b.Rates, localOffset)
		cats := t.samplePath(sampler, rng, left, category.Unset, size)
		nb := Block{Length: L, Insertion: b.Insertion + size, Rates: insertAt(b.Rates, localOffset, cats)}
		t.root = t.insertNode(t.root, key, nb)
		t.parent[t.root] = invalid
		return nil
	}

	left := t.categoryAt(key + pos - 1)
	right := t.categoryAt(key + pos)
	cats := t.samplePath(sampler, rng, left, right, size)

	first := Block{Length: pos, Insertion: size, Rates: cats}
	second := Block{Length: L - pos, Insertion: b.Insertion, Rates: b.Rates}
	t.root = t.insertNode(t.root, key, first)
	t.parent[t.root] = invalid
	t.root = t.insertNode(t.root, key+pos, second)
	t.parent[t.root] = invalid
	return nil
}

// flankBefore returns the category flanking an in-place insertion point
// localOffset positions into a block's own insertion run.
func (t *Tree) flankBefore(key, length int, rates []int, localOffset int) int {
	if localOffset > 0 {
		if localOffset > len(rates) {
			return category.Unset
		}
		return rates[localOffset-1]
	}
	if length > 0 {
		return t.categoryAt(key + length - 1)
	}
	return t.categoryAt(key - 1)
}

// samplePath draws size rate categories conditioned on the available
// flanks, degrading gracefully when rate tracking is off (sampler == nil)
// or a flank is unknown.
func (t *Tree) samplePath(sampler *category.Chain, rng *rand.Rand, left, right, size int) []int {
	if sampler == nil || size == 0 {
		return nil
	}
	switch {
	case left != category.Unset && right != category.Unset:
		return sampler.Bridge(rng, left, right, size)
	case left != category.Unset:
		return sampler.LeftBridge(rng, left, size)
	case right != category.Unset:
		return sampler.RightBridge(rng, right, size)
	default:
		path := make([]int, size)
		prev := category.Unset
		for i := range path {
			prev = sampler.Next(rng, prev)
			path[i] = prev
		}
		return path
	}
}

// removeBlock implements C4's deletion event, recursing across block
// boundaries when the deletion spans more than one block.
func (t *Tree) removeBlock(idx int32, pos, size int) error {
	b := t.blk[idx]
	total := b.size()
	if pos+size <= total {
		return t.removeWithinBlock(idx, pos, size)
	}
	next := t.nextNode(idx)
	var nextKey int
	if next != invalid {
		nextKey = t.key[next]
	}
	consumed := total - pos
	if err := t.removeWithinBlock(idx, pos, consumed); err != nil {
		return err
	}
	remaining := size - consumed
	if remaining <= 0 {
		return nil
	}
	if next == invalid {
		return simerr.New(simerr.Invariant, "deletion", "spans past the last block")
	}
	// Erasing idx may have moved the successor into another slot; find it
	// again by key.
	next = t.root
	for t.key[next] != nextKey {
		if nextKey < t.key[next] {
			next = t.left[next]
		} else {
			next = t.right[next]
		}
	}
	return t.removeBlock(next, 0, remaining)
}

func (t *Tree) removeWithinBlock(idx int32, pos, size int) error {
	key := t.key[idx]
	b := t.blk[idx]
	L, I := b.Length, b.Insertion
	end := pos + size

	if pos >= L {
		localOffset := pos - L
		nb := Block{Length: L, Insertion: I - size, Rates: removeRange(b.Rates, localOffset, size)}
		return t.replaceOrErase(idx, key, nb)
	}

	if pos == 0 {
		switch {
		case end == L+I:
			return t.eraseBlock(idx, key)
		case end < L:
			nb := Block{Length: L - size, Insertion: I, Rates: b.Rates}
			t.eraseBlock(idx, key)
			t.root = t.insertNode(t.root, key+size, nb)
			t.parent[t.root] = invalid
			return nil
		default:
			leftover := L + I - end
			leftoverRates := ratesTail(b.Rates, leftover)
			if key == 0 {
				return t.replaceOrErase(idx, key, Block{Length: 1, Insertion: leftover, Rates: leftoverRates})
			}
			prev := t.prevNode(idx)
			if prev == invalid {
				return t.replaceOrErase(idx, key, Block{Length: 0, Insertion: leftover, Rates: leftoverRates})
			}
			pkey := t.key[prev]
			pb := t.blk[prev]
			merged := Block{Length: pb.Length, Insertion: pb.Insertion + leftover, Rates: concatRates(pb.Rates, leftoverRates)}
			t.eraseBlock(idx, key)
			t.root = t.insertNode(t.root, pkey, merged)
			t.parent[t.root] = invalid
			return nil
		}
	}

	switch {
	case end < L:
		first := Block{Length: pos, Insertion: 0, Rates: nil}
		second := Block{Length: L - end, Insertion: I, Rates: b.Rates}
		t.root = t.insertNode(t.root, key, first)
		t.parent[t.root] = invalid
		t.root = t.insertNode(t.root, key+end, second)
		t.parent[t.root] = invalid
		return nil
	case end == L:
		nb := Block{Length: pos, Insertion: I, Rates: b.Rates}
		return t.replaceOrErase(idx, key, nb)
	default:
		consumed := end - L
		nb := Block{Length: pos, Insertion: I - consumed, Rates: removeRange(b.Rates, 0, consumed)}
		return t.replaceOrErase(idx, key, nb)
	}
}

func (t *Tree) replaceOrErase(idx int32, key int, nb Block) error {
	if nb.size() == 0 && key != 0 {
		t.eraseBlock(idx, key)
		return nil
	}
	t.root = t.insertNode(t.root, key, nb)
	t.parent[t.root] = invalid
	return nil
}

func (t *Tree) eraseBlock(idx int32, key int) error {
	if key == 0 {
		// The anchor may never be erased; collapse it to the minimal stub.
		t.root = t.insertNode(t.root, 0, Block{Length: 1, Insertion: 0})
		t.parent[t.root] = invalid
		return nil
	}
	t.root = t.eraseNode(t.root, key)
	if t.root != invalid {
		t.parent[t.root] = invalid
	}
	return nil
}
