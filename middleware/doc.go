// Package middleware provides composable middleware around tick callbacks.
//
// A [Middleware] wraps one invocation of a periodic job's tick. Middleware
// are composed with [Chain] and run on every cycle of a tick loop. They
// are applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → tick
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs each tick at debug level and failures at error level
//   - [Recover] turns a panicking tick into an error
//   - [Tracing] wraps the tick in an OpenTelemetry span
//   - [Metrics] records tick duration and outcome counters
//   - [Timeout] bounds each tick with a deadline
//
// A middleware that returns without calling next skips the tick body;
// the loop treats the returned error like any other tick failure.
package middleware
