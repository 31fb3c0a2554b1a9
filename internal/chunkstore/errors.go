// Package chunkstore stores the byte content of one buffer as an ordered
// sequence of immutable chunks assembled into a balanced tree. Edits build a
// new root that shares untouched subtrees with the previous version, so a
// snapshot is a single pointer and stays valid while the buffer keeps
// changing.
package chunkstore

import "errors"

var (
	// ErrOutOfBounds indicates that an offset or range lies beyond the
	// buffer length. Edit offsets are never clamped silently.
	ErrOutOfBounds = errors.New("offset out of bounds")

	// ErrInvalidBoundary indicates that an offset falls inside a
	// multi-byte UTF-8 sequence.
	ErrInvalidBoundary = errors.New("offset splits a UTF-8 sequence")
)
