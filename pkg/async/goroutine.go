package async

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/idctl/pkg/observability"
)

// SafeGo executes fn in a goroutine with its own timeout and panic recovery.
// Errors are logged at debug level and otherwise dropped; use it only for
// best-effort work whose failure the caller has decided to tolerate.
//
// The returned channel is closed once fn has returned (or panicked).
//
// Example:
//
//	SafeGo(ctx, log, 5*time.Second, "profile hydration", func(ctx context.Context) error {
//	    return hydrate(ctx)
//	})
func SafeGo(parentCtx context.Context, log logrus.FieldLogger, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	if log == nil {
		log = logrus.New()
	}
	done := make(chan struct{})

	go func() {
		defer close(done)

		// Detach from the caller's cancellation but keep its values.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()

		defer observability.RecoverPanic(log, taskName)

		if err := fn(ctx); err != nil {
			log.WithField("task", taskName).WithError(err).Debug("background task failed")
		}
	}()

	return done
}

// Batch runs fn for every item with at most limit calls in flight and waits
// for all of them. The returned slice is aligned with items: errs[i] is the
// result of fn(items[i]). One failure never cancels the others.
//
// A limit <= 0 means no bound.
func Batch[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if perr := observability.PanicError(recover()); perr != nil {
					err = perr
				}
				errs[i] = err
			}()
			return fn(ctx, item)
		})
	}

	// Each task records its own error; Wait's aggregate is redundant.
	_ = g.Wait()
	return errs
}

// Count returns the number of non-nil errors in errs.
func Count(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
