// Package workers implements the worker pool for asynchronous validation.
//
// The pool subscribes once to the validation queue topic and feeds job ids
// to a fixed number of goroutines, each of which hands the job to a
// JobProcessor. The health monitor reports worker status and queue depth
// to the metrics collector.
package workers
