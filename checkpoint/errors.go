package checkpoint

import "errors"

var (
	// ErrCorrupt marks resume data that failed validation or integrity
	// checks. A corrupt record is fatal for the resume attempt; solving
	// from it could silently produce a wrong key.
	ErrCorrupt = errors.New("corrupt checkpoint record")

	// ErrNotFound is returned by a sink's Load when no record exists yet.
	ErrNotFound = errors.New("no checkpoint record")
)
