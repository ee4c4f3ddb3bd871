/*
Package types defines the core data structures shared across Skulk components.

The central entity is the Proxy record: an (ip, port, protocol) tuple with a
three-state lifecycle (pending, success, failed), check counters, latency, and
anonymity classification. Candidates are unvalidated tuples produced by crawl
adapters; Verdicts are validation outcomes applied back to the store.

Quality scoring is a read-time projection derived from success rate, measured
speed, and recency of the last success. It is reported through the API but is
never stored or used as a database sort key.
*/
package types
