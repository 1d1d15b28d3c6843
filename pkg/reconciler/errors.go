package reconciler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSaveInProgress is returned when the editor is busy with a save
var ErrSaveInProgress = errors.New("reconciler: save in progress")

// Op is the kind of assignment call
type Op string

const (
	OpAssign   Op = "assign"
	OpUnassign Op = "unassign"
)

// Failure is one id whose call failed
type Failure struct {
	ID  string
	Op  Op
	Err error
}

// BatchError reports the failed ids of a save. Ids not listed committed.
type BatchError struct {
	Attempted int
	Failures  []Failure
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s %s: %v", f.Op, f.ID, f.Err))
	}
	return fmt.Sprintf("%d of %d assignment changes failed: %s", len(e.Failures), e.Attempted, strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// FailedIDs returns the ids that did not commit
func (e *BatchError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.ID)
	}
	return ids
}
