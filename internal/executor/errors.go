package executor

import "errors"

// ErrAborted marks a run the user ended without committing.
var ErrAborted = errors.New("commit aborted")

// ErrNoChanges is returned when there is nothing to commit.
var ErrNoChanges = errors.New("no changes detected")

// IsAborted reports whether the provided error originated from a user abort.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
