// Package cache is the Redis coordination layer shared by every worker.
//
// Two kinds of state live here, both advisory:
//
//   - a one-time initialization lock (SET NX EX) electing the worker that
//     seeds the schedule grid
//   - per-task checkpoint hashes under task:stats:<name> so a restarted
//     worker resumes its schedule instead of resetting it
//
// Redis being down never fails a task run. Callers treat every error from
// this package as a warning and fall back to local state.
package cache
