// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// Handlers sometimes need to finish small pieces of work after the response
// is written, such as recording when an API key was last used. Those tasks
// must not inherit the request's cancellation, must not crash the process
// on panic, and must be bounded in time.
//
// # Key Functions
//
// SafeGo: fire-and-forget with panic recovery and a timeout
//
//	async.SafeGo(r.Context(), 5*time.Second, "api key touch", func(ctx context.Context) error {
//		return store.TouchAPIKey(ctx, id, time.Now())
//	})
//
// Tracker: the same, but shutdown (and tests) can wait for in-flight tasks
//
//	tracker := async.NewTracker()
//	tracker.Go(ctx, 5*time.Second, "api key touch", fn)
//	_ = tracker.Close(shutdownCtx)
package async
