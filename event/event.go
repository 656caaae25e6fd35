// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package event defines the indel event and event-stream types shared by
// the indel simulator (which produces them) and the block tree (which
// consumes them).
package event

// Kind distinguishes an insertion from a deletion.
type Kind int

const (
	Insertion Kind = iota
	Deletion
)

func (k Kind) String() string {
	if k == Insertion {
		return "insertion"
	}
	return "deletion"
}

// Event is a single indel event on one branch. Position is a 1-based
// coordinate in the current descendant sequence (i.e. the sequence as it
// stands immediately before this event is applied); Position 0 is valid
// only for insertions, and means "insert immediately after the anchor
// position" (prepend, without disturbing the anchor itself). Length is the
// number of positions inserted or deleted; it is always at least 1.
type Event struct {
	Kind     Kind
	Position int
	Length   int
}

// Sequence is the ordered list of events that occurred on one branch.
type Sequence []Event
