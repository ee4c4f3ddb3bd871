// Package validator checks proxies for reachability, latency and
// anonymity against a control URL.
//
// One batch uses one semaphore-bounded fan-out; each proxy gets its own
// HTTP client so no connection state is shared between checks. A proxy is
// working iff the control URL answers 2xx through it within the timeout.
// Every failure mode (connect error, timeout, TLS failure, non-2xx) maps
// to the same failed verdict.
//
// The validator is pure with respect to the store: it returns verdicts,
// the caller persists them.
package validator
