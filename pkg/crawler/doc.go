// Package crawler discovers proxy candidates from external list sources.
//
// Sources self-register into a global registry; the coordinator runs the
// enabled ones under a concurrency cap and returns one result per source.
// Adapters only download and parse. Validation of individual candidates
// and deduplication belong to the proxy service and the store.
package crawler
