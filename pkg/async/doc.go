// Package async runs a function in the background and hands back a typed
// Future for its result.
//
// The emergency path uses it for fire-and-forget broadcast and audit work
// that callers and tests may still want to await:
//
//	fut := async.Async(context.WithoutCancel(ctx), ev, announce)
//	if _, err := fut.AwaitWithTimeout(time.Second); err != nil {
//		// ...
//	}
//
// Panics inside the function are recovered and surface as ErrPanic.
package async
