// Package scheduler implements the in-memory delay structure that holds
// tasks until their execution time. A single timer goroutine watches a
// min-heap ordered by (execution time, insertion order) and hands due
// task IDs to consumers over an unbuffered channel. Insertions and
// cancellations may happen concurrently with the wait; an earlier
// insertion re-targets the wait without losing the previous earliest
// entry, and the structure never busy-polls.
package scheduler
