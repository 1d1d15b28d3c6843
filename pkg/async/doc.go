// Package async provides safe concurrent execution primitives for background
// and fan-out work.
//
// # Key Functions
//
// SafeGo: fire-and-forget goroutine with timeout and panic recovery
//
//	done := async.SafeGo(ctx, log, 5*time.Second, "profile hydration", func(ctx context.Context) error {
//		return hydrate(ctx)
//	})
//
// Batch: bounded concurrent processing with per-item results
//
//	errs := async.Batch(ctx, ids, 4, func(ctx context.Context, id string) error {
//		return assign(ctx, id)
//	})
//	// errs[i] belongs to ids[i]
//
// # Related Packages
//
//   - pkg/session: hydrates the profile with SafeGo
//   - pkg/reconciler: issues assignment batches with Batch
package async
