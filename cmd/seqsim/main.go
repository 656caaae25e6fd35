// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// seqsim simulates indel and substitution evolution of a nucleotide
// sequence along a phylogenetic tree, producing a multiple sequence
// alignment of the tree's leaves (or, with -save-internal, every node).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/seq/linear"

	"github.com/kortschak/seqsim/category"
	"github.com/kortschak/seqsim/model"
	"github.com/kortschak/seqsim/msa"
	"github.com/kortschak/seqsim/substitution"
)

var (
	treePath  = flag.String("tree", "", "Newick tree file (required)")
	out       = flag.String("out", "-", `output FASTA path ("-" for stdout)`)
	seed      = flag.Int64("seed", 1, "random seed")
	rootSize  = flag.Int("root-size", 500, "root sequence length")
	minSize   = flag.Int("min-size", 10, "sequence length floor below which deletions stop")
	insRate   = flag.Float64("ins-rate", 0.01, "per-site insertion rate")
	delRate   = flag.Float64("del-rate", 0.01, "per-site deletion rate")
	insMean   = flag.Float64("ins-mean", 1.7, "mean insertion length")
	delMean   = flag.Float64("del-mean", 1.7, "mean deletion length")
	maxIndel  = flag.Int("max-indel", 50, "maximum indel length")
	mu        = flag.Float64("mu", 1.0, "overall substitution rate")
	numCats   = flag.Int("categories", 1, "number of rate categories")
	rho       = flag.Float64("rho", 0.9, "rate-category autocorrelation (P(stay in category))")
	siteRate  = flag.String("site-rate", "simple", `site rate model: "simple" or "indel-aware"`)
	saveIntl  = flag.Bool("save-internal", false, "also emit internal node sequences, not just leaves")
	gapless   = flag.Bool("gapless", false, "emit gap-free per-sequence FASTA instead of the aligned MSA")
	width     = flag.Int("width", 60, "FASTA line width")
)

func main() {
	flag.Parse()
	if *treePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*treePath)
	if err != nil {
		log.Fatalf("failed to read tree file: %v", err)
	}
	root, err := parseNewick(string(data))
	if err != nil {
		log.Fatalf("failed to parse Newick tree: %v", err)
	}

	srm := model.Simple
	switch *siteRate {
	case "simple":
		srm = model.Simple
	case "indel-aware":
		srm = model.IndelAware
	default:
		log.Fatalf("unknown -site-rate %q", *siteRate)
	}

	insDist, err := newGeometricLengthTable(1.0 / (*insMean), *maxIndel)
	if err != nil {
		log.Fatalf("failed to build insertion length distribution: %v", err)
	}
	delDist, err := newGeometricLengthTable(1.0 / (*delMean), *maxIndel)
	if err != nil {
		log.Fatalf("failed to build deletion length distribution: %v", err)
	}
	bp := model.BranchParams{
		InsertionRate: *insRate,
		DeletionRate:  *delRate,
		InsertionDist: insDist,
		DeletionDist:  delDist,
	}

	protocol := &model.Protocol{
		SequenceSize:       *rootSize,
		MinSequenceSize:    *minSize,
		Branch:             make(map[int]model.BranchParams),
		MaxInsertionLength: *maxIndel,
		SiteRateModel:      srm,
		NodesToSave:        make(map[int]bool),
	}
	walk(root, func(n *node) {
		if n.parent != nil {
			protocol.Branch[n.id] = bp
		}
		if n.IsLeaf() || *saveIntl {
			protocol.NodesToSave[n.id] = true
		}
	})

	catRates := make([]float64, *numCats)
	for i := range catRates {
		catRates[i] = 2 * float64(i+1) / float64(*numCats+1)
	}
	catPi := make([]float64, *numCats)
	catT := make([][]float64, *numCats)
	for i := range catT {
		catPi[i] = 1 / float64(*numCats)
		row := make([]float64, *numCats)
		for j := range row {
			if *numCats == 1 {
				row[j] = 1
			} else if i == j {
				row[j] = *rho
			} else {
				row[j] = (1 - *rho) / float64(*numCats-1)
			}
		}
		catT[i] = row
	}
	chain, err := category.New(catPi, catT, *maxIndel)
	if err != nil {
		log.Fatalf("failed to build rate-category chain: %v", err)
	}

	rm := newJC69(*mu, catRates)
	rng := rand.New(rand.NewSource(*seed))

	asm, err := msa.Assemble(rng, root, protocol, chain)
	if err != nil {
		log.Fatalf("MSA assembly failed: %v", err)
	}
	eng, err := substitution.Evolve(rng, root, protocol, asm, rm, chain)
	if err != nil {
		log.Fatalf("substitution simulation failed: %v", err)
	}

	w, closeOut, err := openOutput(*out)
	if err != nil {
		log.Fatalf("failed to open output: %v", err)
	}
	defer closeOut()
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	names := make(map[int]string)
	walk(root, func(n *node) {
		if n.Name() != "" {
			names[n.id] = n.Name()
		} else {
			names[n.id] = fmt.Sprintf("node%d", n.id)
		}
	})

	for _, id := range asm.NodeIDs() {
		name := names[id]
		if *gapless {
			s, err := eng.Sequence(id, name, alphabet.DNA)
			if err != nil {
				log.Fatalf("node %d: %v", id, err)
			}
			fmt.Fprintf(bw, "%*a\n", *width, s)
			continue
		}
		src, err := eng.CharacterSource(id, alphabet.DNA)
		if err != nil {
			log.Fatalf("node %d: %v", id, err)
		}
		row, err := asm.RowAsString(id, src)
		if err != nil {
			log.Fatalf("node %d: %v", id, err)
		}
		s := linear.NewSeq(name, alphabet.BytesToLetters([]byte(row)), alphabet.DNAgapped)
		fmt.Fprintf(bw, "%*a\n", *width, s)
	}
}

func walk(n *node, f func(*node)) {
	f(n)
	for _, c := range n.children {
		walk(c, f)
	}
}

func openOutput(path string) (w *os.File, closeFn func(), err error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
