package reconciler

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/idctl/pkg/async"
	"github.com/platinummonkey/idctl/pkg/observability"
)

// State is the editor lifecycle state
type State int

const (
	// Viewing shows server truth; pending equals current
	Viewing State = iota
	// Editing has local changes not yet saved
	Editing
	// Saving has assignment calls in flight
	Saving
	// ViewingWithError shows server truth after a failed save or load
	ViewingWithError
)

func (s State) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	case ViewingWithError:
		return "viewing-with-error"
	default:
		return "unknown"
	}
}

// Options configures an Editor
type Options struct {
	// Name labels the relation in logs and metrics, e.g. "role_permissions"
	Name string
	// Concurrency bounds in-flight calls per save; <= 0 means unbounded
	Concurrency int
	Logger      *logrus.Logger
	Metrics     *observability.ClientMetrics
}

// Editor keeps a pending selection against the last known server state of
// a Relation and reconciles the two
type Editor struct {
	rel  Relation
	opts Options
	log  *logrus.Entry

	mu       sync.Mutex
	current  Set
	pending  Set
	state    State
	err      error
	saving   bool
	inflight map[string]bool
	// failures of overlapping ToggleNow calls, reported by the last to finish
	overlapErrs []error
}

// NewEditor creates an editor with empty sets. Call Refresh to load.
func NewEditor(rel Relation, opts Options) *Editor {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	return &Editor{
		rel:      rel,
		opts:     opts,
		log:      log.WithField("relation", opts.Name),
		current:  Set{},
		pending:  Set{},
		inflight: make(map[string]bool),
	}
}

// State returns the lifecycle state
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the error shown in ViewingWithError, or nil
func (e *Editor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Current returns the last known server ids, sorted
func (e *Editor) Current() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Sorted()
}

// Pending returns the selected ids, sorted
func (e *Editor) Pending() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.Sorted()
}

// Assigned reports whether id is assigned according to the server
func (e *Editor) Assigned(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Has(id)
}

// Selected reports whether id is in the pending selection
func (e *Editor) Selected(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.Has(id)
}

// Changes returns what Save would do now
func (e *Editor) Changes() (toAssign, toUnassign []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Diff(e.current, e.pending)
}

// Refresh loads server state into both sets, discarding unsaved edits. A
// load failure leaves the sets untouched and moves to ViewingWithError.
func (e *Editor) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.saving || len(e.inflight) > 0 {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	e.mu.Unlock()

	ids, err := e.rel.Load(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = ViewingWithError
		e.err = err
		return err
	}
	e.applyLoaded(ids)
	e.err = nil
	e.state = Viewing
	return nil
}

// Prime sets both sets to ids as if they had just been loaded, for callers
// that already hold server state
func (e *Editor) Prime(ids []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving || len(e.inflight) > 0 {
		return ErrSaveInProgress
	}
	e.applyLoaded(ids)
	e.err = nil
	e.state = Viewing
	return nil
}

// Toggle flips id in the pending selection
func (e *Editor) Toggle(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving {
		return ErrSaveInProgress
	}
	if e.pending.Has(id) {
		e.pending.Remove(id)
	} else {
		e.pending.Add(id)
	}
	e.settleEditState()
	return nil
}

// Select sets whether id is in the pending selection
func (e *Editor) Select(id string, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving {
		return ErrSaveInProgress
	}
	if on {
		e.pending.Add(id)
	} else {
		e.pending.Remove(id)
	}
	e.settleEditState()
	return nil
}

// SetPending replaces the pending selection
func (e *Editor) SetPending(ids []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving {
		return ErrSaveInProgress
	}
	e.pending = NewSet(ids...)
	e.settleEditState()
	return nil
}

// Reset drops unsaved edits without contacting the server
func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving {
		return
	}
	e.pending = e.current.Clone()
	e.settleEditState()
}

type change struct {
	id string
	op Op
}

// Save issues one call per id in the diff between pending and current,
// concurrently. Each success commits into current; each failure reverts
// that id in pending to its current value. Unrelated ids are never rolled
// back. Server state is re-fetched once every call has settled.
//
// An empty diff issues no calls at all. The returned error is a
// *BatchError when any call failed, joined with the refetch error if the
// refetch failed too.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.saving || len(e.inflight) > 0 {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	toAssign, toUnassign := Diff(e.current, e.pending)
	if len(toAssign)+len(toUnassign) == 0 {
		e.mu.Unlock()
		return nil
	}
	e.saving = true
	e.state = Saving
	e.err = nil
	e.mu.Unlock()

	changes := make([]change, 0, len(toAssign)+len(toUnassign))
	for _, id := range toAssign {
		changes = append(changes, change{id: id, op: OpAssign})
	}
	for _, id := range toUnassign {
		changes = append(changes, change{id: id, op: OpUnassign})
	}

	errs := async.Batch(ctx, changes, e.opts.Concurrency, func(ctx context.Context, c change) (err error) {
		defer func() {
			if perr := observability.PanicError(recover()); perr != nil {
				err = perr
			}
			e.settle(c, err)
		}()
		return e.call(ctx, c)
	})

	e.log.WithFields(logrus.Fields{
		"attempted": len(changes),
		"failed":    async.Count(errs),
	}).Debug("assignment batch settled")

	var failures []Failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, Failure{ID: changes[i].id, Op: changes[i].op, Err: err})
		}
	}

	var batchErr error
	if len(failures) > 0 {
		batchErr = &BatchError{Attempted: len(changes), Failures: failures}
	}

	refreshErr := e.refetch(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	final := joinErrors(batchErr, refreshErr)
	e.finish(final)
	return final
}

// ToggleNow applies a single change immediately: pending is updated
// optimistically, one call is made, and the id commits or reverts before
// the server state is re-fetched. Changes to different ids may overlap; a
// second change to an id still in flight returns ErrSaveInProgress.
func (e *Editor) ToggleNow(ctx context.Context, id string, on bool) error {
	e.mu.Lock()
	if _, busy := e.inflight[id]; e.saving || busy {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	if e.current.Has(id) == on {
		if on {
			e.pending.Add(id)
		} else {
			e.pending.Remove(id)
		}
		e.settleEditState()
		e.mu.Unlock()
		return nil
	}

	c := change{id: id, op: OpUnassign}
	if on {
		c.op = OpAssign
		e.pending.Add(id)
	} else {
		e.pending.Remove(id)
	}
	if len(e.inflight) == 0 {
		e.err = nil
	}
	e.inflight[id] = on
	e.state = Saving
	e.mu.Unlock()

	err := e.call(ctx, c)
	e.settle(c, err)

	var callErr error
	if err != nil {
		callErr = &BatchError{Attempted: 1, Failures: []Failure{{ID: id, Op: c.op, Err: err}}}
	}

	e.mu.Lock()
	delete(e.inflight, id)
	e.mu.Unlock()

	refreshErr := e.refetch(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	final := joinErrors(callErr, refreshErr)
	if final != nil {
		e.overlapErrs = append(e.overlapErrs, final)
	}
	if len(e.inflight) > 0 {
		return final
	}
	overlapped := e.overlapErrs
	e.overlapErrs = nil
	if len(overlapped) == 1 {
		e.finish(overlapped[0])
	} else {
		e.finish(errors.Join(overlapped...))
	}
	return final
}

func (e *Editor) call(ctx context.Context, c change) error {
	var err error
	switch c.op {
	case OpAssign:
		err = e.rel.Assign(ctx, c.id)
	case OpUnassign:
		err = e.rel.Unassign(ctx, c.id)
	}
	e.opts.Metrics.RecordAssignment(e.opts.Name, string(c.op), err)
	if err != nil {
		e.log.WithFields(logrus.Fields{"id": c.id, "op": c.op}).WithError(err).Debug("assignment call failed")
	}
	return err
}

// settle commits or reverts one id
func (e *Editor) settle(c change, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case err == nil && c.op == OpAssign:
		e.current.Add(c.id)
	case err == nil && c.op == OpUnassign:
		e.current.Remove(c.id)
	case c.op == OpAssign:
		e.pending.Remove(c.id)
	default:
		e.pending.Add(c.id)
	}
}

// refetch reloads server state after calls have settled. On failure the
// committed local state stays.
func (e *Editor) refetch(ctx context.Context) error {
	ids, err := e.rel.Load(ctx)
	if err != nil {
		e.log.WithError(err).Debug("refetch after save failed")
		return err
	}
	e.mu.Lock()
	e.applyLoaded(ids)
	e.mu.Unlock()
	return nil
}

// applyLoaded replaces both sets with server ids, keeping the optimistic
// value of ids still in flight. Caller holds mu.
func (e *Editor) applyLoaded(ids []string) {
	e.current = NewSet(ids...)
	e.pending = e.current.Clone()
	for id, on := range e.inflight {
		if on {
			e.pending.Add(id)
		} else {
			e.pending.Remove(id)
		}
	}
}

// finish sets the post-save state. Caller holds mu.
func (e *Editor) finish(err error) {
	e.err = err
	if err != nil {
		e.state = ViewingWithError
		return
	}
	e.settleEditState()
}

// settleEditState derives the state from the sets. Caller holds mu.
func (e *Editor) settleEditState() {
	switch {
	case e.saving || len(e.inflight) > 0:
		e.state = Saving
	case !e.pending.Equal(e.current):
		e.state = Editing
	case e.err != nil:
		e.state = ViewingWithError
	default:
		e.state = Viewing
	}
}

func joinErrors(callErr, refreshErr error) error {
	switch {
	case refreshErr == nil:
		return callErr
	case callErr == nil:
		return refreshErr
	default:
		return errors.Join(callErr, refreshErr)
	}
}
