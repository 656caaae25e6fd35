// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package substitution implements the character substitution engine (C9):
// a second depth-first pass over the phylogeny, run after the indel/MSA
// pass (package msa) has fixed the alignment's column layout, that evolves
// one mutable "current sequence" indexed by alignment column. Each branch
// is evolved by whichever of two strategies its expected substitution load
// favours — a full sweep that samples every site directly from the
// model's finite-time transition row, or a Gillespie loop that samples
// waiting times between individual substitution events — and every branch
// logs its changes so they can be undone on the way back up the tree,
// leaving "current" exactly as the parent left it before the next sibling
// is evolved.
package substitution

import (
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/seq/linear"

	"github.com/kortschak/seqsim/alias"
	"github.com/kortschak/seqsim/category"
	"github.com/kortschak/seqsim/model"
	"github.com/kortschak/seqsim/msa"
	"github.com/kortschak/seqsim/rejection"
	"github.com/kortschak/seqsim/simerr"
)

// delta is one logged substitution: the column it occurred at and the
// character code occupying it immediately beforehand.
type delta struct {
	col, prior int
}

// Engine holds the evolving character state for one simulation and the
// final, gap-free character codes captured for every saved node.
type Engine struct {
	rm      model.ReplacementModel
	current []int // alphabet index per alignment column
	colCat  []int // rate category per alignment column

	offDiag map[[2]int]*alias.Table // cache of (character, category) -> destination table

	rows map[int][]int // saved node id -> gap-free character codes, view order
}

// Evolve runs the substitution pass over tree under protocol, using the
// already-completed MSA assembly asm to learn the alignment's column
// layout, per-node views and (for the IndelAware site-rate model)
// per-node rate-category vectors. chain supplies per-column categories
// for the Simple site-rate model; it is ignored (may be nil) when
// protocol.SiteRateModel is IndelAware.
func Evolve(rng *rand.Rand, tree model.Tree, protocol *model.Protocol, asm *msa.Assembler, rm model.ReplacementModel, chain *category.Chain) (*Engine, error) {
	if rm.AlphabetSize() <= 0 {
		return nil, simerr.New(simerr.Config, "rm", "alphabet size must be positive")
	}

	total := asm.MSALength()
	e := &Engine{
		rm:      rm,
		current: make([]int, total),
		colCat:  asm.ColumnCategories(rng, chain, protocol.SiteRateModel),
		offDiag: make(map[[2]int]*alias.Table),
		rows:    make(map[int][]int),
	}

	pi := make([]float64, rm.AlphabetSize())
	for i := range pi {
		pi[i] = rm.Pi(i)
	}
	piTable, err := alias.New(pi)
	if err != nil {
		return nil, simerr.Wrap(simerr.Model, "stationary distribution", err)
	}
	for col := range e.current {
		e.current[col] = piTable.Draw(rng)
	}

	if protocol.Save(tree.ID()) {
		e.captureRow(tree.ID(), asm)
	}
	if err := e.walk(rng, tree, protocol, asm); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) walk(rng *rand.Rand, node model.Tree, protocol *model.Protocol, asm *msa.Assembler) error {
	for _, child := range node.Children() {
		view, ok := asm.View(child.ID())
		if !ok {
			return simerr.New(simerr.Invariant, "substitution", "no view recorded for node")
		}
		cols := make([]int, 0, len(view.Handles))
		for _, h := range view.Handles {
			// Columns no saved node holds have no alignment index (-1).
			if c := asm.ColumnIndexOf(h); c >= 0 {
				cols = append(cols, c)
			}
		}

		log := e.evolveBranch(rng, cols, child.Length())

		if protocol.Save(child.ID()) {
			e.captureRow(child.ID(), asm)
		}

		if err := e.walk(rng, child, protocol, asm); err != nil {
			return err
		}

		for i := len(log) - 1; i >= 0; i-- {
			e.current[log[i].col] = log[i].prior
		}
	}
	return nil
}

func (e *Engine) captureRow(nodeID int, asm *msa.Assembler) {
	view, ok := asm.View(nodeID)
	if !ok {
		return
	}
	row := make([]int, len(view.Handles))
	for i, h := range view.Handles {
		row[i] = e.current[asm.ColumnIndexOf(h)]
	}
	e.rows[nodeID] = row
}

// evolveBranch evolves the columns in cols (the alignment columns of the
// child's view, in order) across a branch of length t, choosing the
// full-sweep strategy when a site with the fastest possible exit rate is
// expected to substitute more than once, and the Gillespie waiting-time
// strategy otherwise. It returns the delta log for the caller to revert later.
func (e *Engine) evolveBranch(rng *rand.Rand, cols []int, t float64) []delta {
	if len(cols) == 0 || t <= 0 {
		return nil
	}
	if e.expectedSubstitutionsPerSite(t) > 1 {
		return e.fullSweep(rng, cols, t)
	}
	return e.gillespie(rng, cols, t)
}

// expectedSubstitutionsPerSite estimates, for a branch of length t, the
// expected number of substitutions at the site with the fastest possible
// exit rate. Past one expected event per site, resampling every site
// directly from its finite-time transition row (full sweep) does less
// work than simulating individual Gillespie jumps.
func (e *Engine) expectedSubstitutionsPerSite(t float64) float64 {
	var maxExit float64
	for cat := 0; cat < e.rm.CategoriesCount(); cat++ {
		rate := e.rm.Rate(cat)
		for i := 0; i < e.rm.AlphabetSize(); i++ {
			if ex := -e.rm.Q(i, i) * rate; ex > maxExit {
				maxExit = ex
			}
		}
	}
	return t * maxExit
}

func (e *Engine) fullSweep(rng *rand.Rand, cols []int, t float64) []delta {
	k := e.rm.AlphabetSize()
	row := make([]float64, k)
	var log []delta
	for _, col := range cols {
		i := e.current[col]
		cat := e.colCat[col]
		for j := 0; j < k; j++ {
			row[j] = e.rm.P(i, j, t, cat)
		}
		tbl, err := alias.New(row)
		if err != nil {
			continue
		}
		j := tbl.Draw(rng)
		log = append(log, delta{col: col, prior: i})
		e.current[col] = j
	}
	return log
}

func (e *Engine) gillespie(rng *rand.Rand, cols []int, t float64) []delta {
	weights := make([]float64, len(cols))
	for i, col := range cols {
		weights[i] = e.exitRate(e.current[col], e.colCat[col])
	}
	sampler, err := rejection.New(weights)
	if err != nil {
		return nil
	}

	var log []delta
	var elapsed float64
	for {
		total := sampler.Total()
		if total <= 0 {
			break
		}
		dt := distuv.Exponential{Rate: total, Src: rng}.Rand()
		elapsed += dt
		if elapsed > t {
			break
		}
		site, err := sampler.Sample(rng)
		if err != nil {
			break
		}
		col := cols[site]
		i := e.current[col]
		cat := e.colCat[col]
		tbl, err := e.offDiagonalTable(i, cat)
		if err != nil {
			continue
		}
		j := tbl.Draw(rng)
		log = append(log, delta{col: col, prior: i})
		e.current[col] = j
		if err := sampler.Update(site, e.exitRate(j, cat)); err != nil {
			break
		}
	}
	return log
}

func (e *Engine) exitRate(i, cat int) float64 {
	return -e.rm.Q(i, i) * e.rm.Rate(cat)
}

func (e *Engine) offDiagonalTable(i, cat int) (*alias.Table, error) {
	key := [2]int{i, cat}
	if tbl, ok := e.offDiag[key]; ok {
		return tbl, nil
	}
	weights := make([]float64, e.rm.AlphabetSize())
	for j := range weights {
		if j == i {
			continue
		}
		weights[j] = e.rm.Q(i, j)
	}
	tbl, err := alias.New(weights)
	if err != nil {
		return nil, err
	}
	e.offDiag[key] = tbl
	return tbl, nil
}

// characterSource pulls gap-free character codes from a captured row, in
// order, rendering each through alpha. It implements msa.CharacterSource.
type characterSource struct {
	codes []int
	alpha alphabet.Alphabet
	pos   int
}

func (s *characterSource) Next() byte {
	l := s.alpha.Letter(s.codes[s.pos])
	s.pos++
	return byte(l)
}

// CharacterSource returns a msa.CharacterSource over nodeID's saved,
// gap-free characters, rendered through alpha, for use with
// msa.Assembler.RowAsString.
func (e *Engine) CharacterSource(nodeID int, alpha alphabet.Alphabet) (msa.CharacterSource, error) {
	codes, ok := e.rows[nodeID]
	if !ok {
		return nil, simerr.New(simerr.Config, "nodeID", "no substitution row captured for node")
	}
	return &characterSource{codes: codes, alpha: alpha}, nil
}

// Sequence renders nodeID's saved, gap-free characters as a biogo linear
// sequence over alpha.
func (e *Engine) Sequence(nodeID int, name string, alpha alphabet.Alphabet) (*linear.Seq, error) {
	codes, ok := e.rows[nodeID]
	if !ok {
		return nil, simerr.New(simerr.Config, "nodeID", "no substitution row captured for node")
	}
	letters := make([]alphabet.Letter, len(codes))
	for i, c := range codes {
		letters[i] = alpha.Letter(c)
	}
	return linear.NewSeq(name, letters, alpha), nil
}
