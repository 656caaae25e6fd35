// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package simerr defines the error taxonomy shared by the indel and
// substitution simulation packages.
//
// Every error constructed by this package carries a Kind so that callers can
// distinguish configuration mistakes (caught at construction) from runtime
// failures (capacity exhaustion, out-of-range positions, invariant breaks)
// without string matching.
package simerr

import "fmt"

// Kind classifies a simulation error.
type Kind int

// Error kinds, in the order they are introduced by the specification.
const (
	// Config indicates invalid rates, malformed distributions, an empty
	// stationary vector, or a correlation outside [0,1]. Raised at
	// construction time, never from a hot path.
	Config Kind = iota
	// Capacity indicates a fixed-size arena (block tree, super-sequence)
	// has no room left for the requested insertion.
	Capacity
	// Range indicates an event position fell outside the current
	// sequence.
	Range
	// Invariant indicates a structural check (subtree-length aggregate,
	// AVL balance) failed. Used by validate() in tests; in production
	// code these are assertions that should never trigger.
	Invariant
	// Model indicates a replacement-model contract was violated: a
	// positive diagonal, a negative off-diagonal rate, or a negative
	// rate category.
	Model
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config error"
	case Capacity:
		return "capacity error"
	case Range:
		return "range error"
	case Invariant:
		return "invariant violation"
	case Model:
		return "model error"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type returned by this module. It names the
// offending parameter so a caller can report a single, actionable message.
type Error struct {
	Kind      Kind
	Param     string
	Reason    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Param, e.Reason)
}

func (e *Error) Unwrap() error { return e.Underlying }

// New constructs an Error of the given kind.
func New(kind Kind, param, reason string) *Error {
	return &Error{Kind: kind, Param: param, Reason: reason}
}

// Wrap constructs an Error of the given kind around an underlying error.
func Wrap(kind Kind, param string, err error) *Error {
	return &Error{Kind: kind, Param: param, Reason: err.Error(), Underlying: err}
}
