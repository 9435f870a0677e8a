package reconcile

import "grimm.is/aliasync/internal/errors"

var (
	// ErrPrecondition marks failures that abort a run before any mutation:
	// the backup could not be fetched or written.
	ErrPrecondition = errors.New("precondition failed")

	// ErrCancelled marks a run the approver declined. It is a user decision,
	// not a failure.
	ErrCancelled = errors.New("run cancelled")
)

// IsCancelled reports whether err ended a run at the approval gate.
func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

// IsPrecondition reports whether err aborted a run before mutation.
func IsPrecondition(err error) bool { return errors.Is(err, ErrPrecondition) }
