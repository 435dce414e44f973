// Package async runs background tasks with panic recovery and a timeout.
//
//	done := async.SafeGo(ctx, logger, time.Minute, "credential cache sweep", func(ctx context.Context) error {
//		return sweep(ctx)
//	})
//	<-done // optional, closed once the task returned
//
// Errors and panics are logged through the supplied logrus logger and never
// propagate to the caller.
package async
