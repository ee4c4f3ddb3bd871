// Package store persists the proxy pool in PostgreSQL.
//
// A single proxies table holds every candidate the crawlers discover,
// keyed by (ip, port, protocol). Validation verdicts move rows through
// a three-state lifecycle without ever reading them back first:
//
//	            verdict: success
//	  PENDING ──────────────────────▶ SUCCESS
//	     │                            ▲    │
//	     │ verdict: failure           │    │ verdict: failure
//	     ▼                            │    ▼
//	  FAILED ─────────────────────────┘  FAILED ──▶ deleted once
//	            verdict: success                    fail_count caps out
//
// All mutations are single statements so that any number of workers can
// share one database. RecordVerdict folds the counter arithmetic into a
// CASE expression, InsertBatch relies on ON CONFLICT DO NOTHING, and
// BatchSetCountry updates many rows through unnest arrays.
package store
