// Package runloop provides a single-threaded cooperative execution context.
//
// All mutable widget state is confined to one loop goroutine. External
// callers hand closures to the loop via Dispatch (asynchronous) or Call
// (synchronous); timers and tickers created through the loop fire their
// callbacks on the loop as well. Because only the loop goroutine touches
// component state, components need no locking.
package runloop
