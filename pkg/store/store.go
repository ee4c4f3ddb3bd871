package store

import (
	"context"

	"github.com/openskulk/skulk/pkg/types"
)

// IPRecord pairs a proxy id with its address, used by the country-update
// task.
type IPRecord struct {
	ID int64  `db:"id"`
	IP string `db:"ip"`
}

// CountryUpdate assigns a country code to a proxy by id.
type CountryUpdate struct {
	ID      int64
	Country string
}

// ActiveFilter narrows the ranked selection query. Zero values mean no
// filtering on that attribute.
type ActiveFilter struct {
	Protocol  types.Protocol
	Country   string
	Anonymity types.Anonymity
	Limit     int
}

// Store is the durable proxy table. Implementations must be safe for
// concurrent use by independent workers; the (ip, port, protocol)
// uniqueness constraint is the only serialization point.
type Store interface {
	// InsertCandidate inserts a single PENDING row, returning the new id.
	// A conflict on (ip, port, protocol) is a silent no-op returning 0.
	InsertCandidate(ctx context.Context, c types.Candidate) (int64, error)

	// InsertBatch inserts many candidates in one round-trip, skipping
	// conflicts.
	InsertBatch(ctx context.Context, candidates []types.Candidate) error

	// RecordVerdict applies a validation outcome as a single atomic UPDATE.
	RecordVerdict(ctx context.Context, v types.Verdict) error

	// PendingForValidation returns up to limit rows with
	// fail_count < maxFail and status in {PENDING, FAILED}, least recently
	// checked first (never-checked rows first).
	PendingForValidation(ctx context.Context, limit, maxFail int) ([]types.Proxy, error)

	// SuccessfulForValidation returns up to limit SUCCESS rows, least
	// recently checked first.
	SuccessfulForValidation(ctx context.Context, limit int) ([]types.Proxy, error)

	// ActiveProxies returns SUCCESS rows matching the filter, ranked by
	// last_success desc then success_count desc.
	ActiveProxies(ctx context.Context, f ActiveFilter) ([]types.Proxy, error)

	// CleanupFailed deletes FAILED rows at or above the failure threshold,
	// returning the number of rows removed.
	CleanupFailed(ctx context.Context, maxFail int) (int64, error)

	// CleanupStale deletes rows whose last success (or creation, for rows
	// that never succeeded) is older than the given number of days.
	CleanupStale(ctx context.Context, days int) (int64, error)

	// ProxiesWithoutCountry returns SUCCESS rows missing a country code.
	ProxiesWithoutCountry(ctx context.Context, limit int) ([]IPRecord, error)

	// BatchSetCountry updates many rows by id in a single statement.
	BatchSetCountry(ctx context.Context, updates []CountryUpdate) (int64, error)

	// Stats returns aggregate pool counts in one query.
	Stats(ctx context.Context) (*types.PoolStats, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	Close() error
}
