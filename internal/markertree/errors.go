// Package markertree tracks every position-dependent object of one buffer
// (cursors, selections, overlays, line boundaries) as intervals in a single
// balanced tree. Edits apply a pending delta to whole subtrees instead of
// rewriting each marker; the delta is folded in only when a marker is read
// or the tree is restructured.
package markertree

import "errors"

var (
	// ErrInvalidInterval indicates a marker whose end precedes its start.
	ErrInvalidInterval = errors.New("marker end before start")

	// ErrUnknownMarker indicates a marker ID that is not in the tree.
	ErrUnknownMarker = errors.New("unknown marker")

	// ErrLineNotCached indicates that no LineMarker covers the requested
	// line. Callers fall through to the line anchor index.
	ErrLineNotCached = errors.New("line not cached")

	// ErrInvariantViolation indicates an internal consistency failure,
	// e.g. overlapping line markers. Fatal in strict mode, logged and
	// skipped otherwise.
	ErrInvariantViolation = errors.New("marker invariant violation")
)
