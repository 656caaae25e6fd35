// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model defines the external interfaces the simulation core is
// built against (§6 of the specification): the phylogeny, the
// replacement model, length distributions, and the simulation protocol
// that configures a run.
package model

import "math/rand"

// Tree is the external rooted tree the simulation walks. Implementations
// are expected to wrap whatever phylogeny type the caller already has
// (e.g. a Newick parse tree); this package makes no assumption about node
// storage.
type Tree interface {
	// ID returns the node's integer identifier, stable across a run.
	ID() int
	// Name returns the node's label ("" for unlabelled internal nodes).
	Name() string
	// Parent returns the node's parent, or nil at the root.
	Parent() Tree
	// Children returns the node's children in traversal order.
	Children() []Tree
	// Length returns the branch length above this node (distance to
	// Parent); undefined at the root.
	Length() float64
	// IsLeaf reports whether the node has no children.
	IsLeaf() bool
	// NumNodes returns the total number of nodes in the tree rooted here.
	NumNodes() int
}

// ReplacementModel is the external substitution-process model (§6):
// instantaneous rate matrix Q, stationary frequencies π, per-category
// rate scalars, and a P(t) evaluator.
type ReplacementModel interface {
	// AlphabetSize returns A (4 for nucleotide, 20 for amino acid, or a
	// custom size for a matrix-file-backed model).
	AlphabetSize() int
	// Q returns the instantaneous rate of substitution from i to j,
	// i != j. Off-diagonal entries must be non-negative.
	Q(i, j int) float64
	// Pi returns the stationary frequency of character i.
	Pi(i int) float64
	// CategoriesCount returns the number of rate categories.
	CategoriesCount() int
	// Rate returns the rate scalar for category cat.
	Rate(cat int) float64
	// P returns the transition probability from i to j over branch
	// length t at rate category cat.
	P(i, j int, t float64, cat int) float64
}

// LengthDistribution is an opaque length sampler (§6): insertion- and
// deletion-length distributions are both instances of this interface, and
// the reference implementations are Zipf-like truncated distributions
// built from a probability vector using the alias method (C1).
type LengthDistribution interface {
	// Draw returns a strictly positive length.
	Draw(rng *rand.Rand) int
}

// SiteRateModel selects whether per-column rate categories are tracked
// through indel events.
type SiteRateModel int

const (
	// Simple draws the MSA columns' rate categories from the category
	// chain in left-to-right column order, ignoring indel history.
	Simple SiteRateModel = iota
	// IndelAware threads rate categories through the block tree, so an
	// inserted run's categories are bridge-sampled from its flanks and an
	// inherited position's category always traces back to the position
	// it was copied from.
	IndelAware
)

// BranchParams holds the per-branch configuration referenced by C5's
// indel event simulator.
type BranchParams struct {
	InsertionRate float64
	DeletionRate  float64
	InsertionDist LengthDistribution
	DeletionDist  LengthDistribution
}

// Protocol is the simulation configuration (§6's "Simulation protocol"
// table).
type Protocol struct {
	SequenceSize      int
	MinSequenceSize   int
	Branch            map[int]BranchParams // keyed by child node id
	MaxInsertionLength int
	SiteRateModel     SiteRateModel
	NodesToSave       map[int]bool
}

// Save reports whether node id is marked to appear in the output MSA.
func (p *Protocol) Save(id int) bool {
	if p.NodesToSave == nil {
		return false
	}
	return p.NodesToSave[id]
}

// BranchFor returns the indel parameters configured for the branch above
// node id, and whether any were configured.
func (p *Protocol) BranchFor(id int) (BranchParams, bool) {
	if p.Branch == nil {
		return BranchParams{}, false
	}
	bp, ok := p.Branch[id]
	return bp, ok
}
