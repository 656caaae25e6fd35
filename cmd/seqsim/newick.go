// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	gotree "github.com/evolbioinfo/gotree/tree"
	"github.com/evolbioinfo/gotree/io/newick"

	"github.com/kortschak/seqsim/model"
)

// node adapts a gotree node, rooted and given a tree-wide traversal order by
// parseNewick, to model.Tree.
type node struct {
	id       int
	gt       *gotree.Node
	length   float64
	parent   *node
	children []*node
}

func (n *node) ID() int      { return n.id }
func (n *node) Name() string { return n.gt.Name() }
func (n *node) Parent() model.Tree {
	if n.parent == nil {
		return nil
	}
	return n.parent
}
func (n *node) Children() []model.Tree {
	out := make([]model.Tree, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}
func (n *node) Length() float64 { return n.length }
func (n *node) IsLeaf() bool    { return n.gt.Tip() }
func (n *node) NumNodes() int {
	count := 1
	for _, c := range n.children {
		count += c.NumNodes()
	}
	return count
}

// parseNewick parses a single Newick-formatted tree using gotree's reader,
// then walks the result from its root to build the parent/child/length
// adapter that the rest of the simulator consumes as a model.Tree. Node ids
// are assigned sequentially in that walk's encounter order.
func parseNewick(s string) (*node, error) {
	gt, err := newick.NewParser(strings.NewReader(s)).Parse()
	if err != nil {
		return nil, fmt.Errorf("newick: %w", err)
	}
	nextID := 0
	var build func(gn *gotree.Node, parent *node, came *gotree.Edge) (*node, error)
	build = func(gn *gotree.Node, parent *node, came *gotree.Edge) (*node, error) {
		n := &node{id: nextID, gt: gn, parent: parent}
		nextID++
		if came != nil {
			n.length = came.Length()
		}
		for _, e := range gn.Edges() {
			child := e.Right()
			if child == gn {
				child = e.Left()
			}
			if parent != nil && child == parent.gt {
				continue
			}
			cn, err := build(child, n, e)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, cn)
		}
		return n, nil
	}
	return build(gt.Root(), nil, nil)
}
