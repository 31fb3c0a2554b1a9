package buffer

import "errors"

var (
	// ErrNothingToUndo indicates an empty undo log.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo indicates an empty redo log.
	ErrNothingToRedo = errors.New("nothing to redo")
)
