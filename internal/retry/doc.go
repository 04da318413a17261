// Package retry executes fallible operations with bounded retries,
// exponential backoff and per-endpoint circuit breakers.
//
// An Executor applies one Policy to every operation it runs. Each call to Do
// produces an Outcome describing every attempt that was made, so callers can
// report partial progress instead of a bare error. Circuit breakers are keyed
// by caller-chosen strings and shield a failing endpoint from further load
// until it shows signs of recovery.
package retry
