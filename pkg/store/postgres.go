package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/openskulk/skulk/pkg/log"
	"github.com/openskulk/skulk/pkg/types"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// maxActiveLimit caps the ranked selection query regardless of what the
// caller asks for.
const maxActiveLimit = 20

// Postgres implements Store on a pooled PostgreSQL connection. Each
// operation acquires a connection, executes one statement, and releases it;
// no long-held transactions.
type Postgres struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// Options configures the connection pool.
type Options struct {
	URL         string
	MinPoolSize int
	MaxPoolSize int
}

// NewPostgres connects to PostgreSQL, configures the pool, and bootstraps
// the schema. A failed connection is fatal for the worker.
func NewPostgres(ctx context.Context, opts Options) (*Postgres, error) {
	db, err := sql.Open("pgx", opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxPoolSize)
	db.SetMaxIdleConns(opts.MinPoolSize)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{
		db:     sqlx.NewDb(db, "pgx"),
		logger: log.WithComponent("store"),
	}

	if err := p.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	p.logger.Info().
		Int("min_pool", opts.MinPoolSize).
		Int("max_pool", opts.MaxPoolSize).
		Msg("database connected")
	return p, nil
}

// NewPostgresFromDB wraps an existing connection, used by tests.
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{
		db:     sqlx.NewDb(db, "pgx"),
		logger: log.WithComponent("store"),
	}
}

func (p *Postgres) initSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// InsertCandidate inserts one PENDING row. Conflicts on (ip, port, protocol)
// return id 0 and no error.
func (p *Postgres) InsertCandidate(ctx context.Context, c types.Candidate) (int64, error) {
	const query = `
		INSERT INTO proxies (ip, port, protocol, country, source, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, 0)
		ON CONFLICT (ip, port, protocol) DO NOTHING
		RETURNING id`

	var id int64
	err := p.db.QueryRowContext(ctx, query, c.IP, c.Port, c.Protocol, c.Country, c.Source).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert candidate %s:%d: %w", c.IP, c.Port, err)
	}
	return id, nil
}

// insertChunkSize bounds one multi-row INSERT. The wire protocol caps a
// single statement at 65535 bind parameters and each row binds five.
const insertChunkSize = 1000

// InsertBatch inserts many candidates in multi-row statements, chunked so
// a large crawl cannot exceed the statement parameter limit. Duplicate
// tuples are silently skipped.
func (p *Postgres) InsertBatch(ctx context.Context, candidates []types.Candidate) error {
	for start := 0; start < len(candidates); start += insertChunkSize {
		end := min(start+insertChunkSize, len(candidates))
		if err := p.insertChunk(ctx, candidates[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) insertChunk(ctx context.Context, candidates []types.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO proxies (ip, port, protocol, country, source, status) VALUES ")
	args := make([]any, 0, len(candidates)*5)
	for i, c := range candidates {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, NULLIF($%d, ''), $%d, 0)", base+1, base+2, base+3, base+4, base+5)
		args = append(args, c.IP, c.Port, string(c.Protocol), c.Country, c.Source)
	}
	sb.WriteString(" ON CONFLICT (ip, port, protocol) DO NOTHING")

	if _, err := p.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert batch of %d candidates: %w", len(candidates), err)
	}
	return nil
}

// RecordVerdict applies the lifecycle transition in one statement.
//
// Success: success_count++, fail_count clamped down, status=SUCCESS,
// last_success and last_checked set, speed and anonymity overwritten.
// Failure: fail_count++, success_count reset, status=FAILED, only
// last_checked touched.
func (p *Postgres) RecordVerdict(ctx context.Context, v types.Verdict) error {
	const query = `
		UPDATE proxies
		SET success_count = CASE WHEN $2 THEN success_count + 1 ELSE 0 END,
		    fail_count    = CASE WHEN $2 THEN GREATEST(fail_count - 1, 0) ELSE fail_count + 1 END,
		    last_checked  = NOW(),
		    last_success  = CASE WHEN $2 THEN NOW() ELSE last_success END,
		    speed         = CASE WHEN $2 THEN $3 ELSE speed END,
		    anonymity     = CASE WHEN $2 THEN $4 ELSE anonymity END,
		    status        = $5,
		    updated_at    = NOW()
		WHERE id = $1`

	status := types.StatusFailed
	if v.Success {
		status = types.StatusSuccess
	}

	var speed any
	if v.Speed != nil {
		speed = *v.Speed
	}
	var anonymity any
	if v.Anonymity != nil {
		anonymity = string(*v.Anonymity)
	}

	if _, err := p.db.ExecContext(ctx, query, v.ProxyID, v.Success, speed, anonymity, int(status)); err != nil {
		return fmt.Errorf("failed to record verdict for proxy %d: %w", v.ProxyID, err)
	}
	return nil
}

// PendingForValidation returns pending/failed rows, never-checked first.
func (p *Postgres) PendingForValidation(ctx context.Context, limit, maxFail int) ([]types.Proxy, error) {
	const query = `
		SELECT * FROM proxies
		WHERE fail_count < $1 AND status IN ($2, $3)
		ORDER BY last_checked ASC NULLS FIRST
		LIMIT $4`

	var proxies []types.Proxy
	err := p.db.SelectContext(ctx, &proxies, query,
		maxFail, int(types.StatusPending), int(types.StatusFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending proxies: %w", err)
	}
	return proxies, nil
}

// SuccessfulForValidation returns SUCCESS rows for re-validation.
func (p *Postgres) SuccessfulForValidation(ctx context.Context, limit int) ([]types.Proxy, error) {
	const query = `
		SELECT * FROM proxies
		WHERE status = $1
		ORDER BY last_checked ASC NULLS FIRST
		LIMIT $2`

	var proxies []types.Proxy
	if err := p.db.SelectContext(ctx, &proxies, query, int(types.StatusSuccess), limit); err != nil {
		return nil, fmt.Errorf("failed to select successful proxies: %w", err)
	}
	return proxies, nil
}

// ActiveProxies returns the ranked selection used by the read API.
func (p *Postgres) ActiveProxies(ctx context.Context, f ActiveFilter) ([]types.Proxy, error) {
	conditions := []string{"status = $1"}
	args := []any{int(types.StatusSuccess)}

	if f.Protocol != "" {
		args = append(args, string(f.Protocol))
		conditions = append(conditions, fmt.Sprintf("protocol = $%d", len(args)))
	}
	if f.Country != "" {
		args = append(args, strings.ToUpper(f.Country))
		conditions = append(conditions, fmt.Sprintf("country = $%d", len(args)))
	}
	if f.Anonymity != "" {
		args = append(args, string(f.Anonymity))
		conditions = append(conditions, fmt.Sprintf("anonymity = $%d", len(args)))
	}

	limit := f.Limit
	if limit <= 0 || limit > maxActiveLimit {
		limit = maxActiveLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT * FROM proxies
		WHERE %s
		ORDER BY last_success DESC, success_count DESC
		LIMIT $%d`, strings.Join(conditions, " AND "), len(args))

	var proxies []types.Proxy
	if err := p.db.SelectContext(ctx, &proxies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select active proxies: %w", err)
	}
	return proxies, nil
}

// CleanupFailed removes FAILED rows at or above the failure threshold.
func (p *Postgres) CleanupFailed(ctx context.Context, maxFail int) (int64, error) {
	const query = `DELETE FROM proxies WHERE status = $1 AND fail_count >= $2`

	res, err := p.db.ExecContext(ctx, query, int(types.StatusFailed), maxFail)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up failed proxies: %w", err)
	}
	return res.RowsAffected()
}

// CleanupStale removes rows whose last success, or creation when they never
// succeeded, is older than the cutoff.
func (p *Postgres) CleanupStale(ctx context.Context, days int) (int64, error) {
	const query = `
		DELETE FROM proxies
		WHERE last_success < $1 OR (last_success IS NULL AND created_at < $1)`

	cutoff := time.Now().AddDate(0, 0, -days)
	res, err := p.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up stale proxies: %w", err)
	}
	return res.RowsAffected()
}

// ProxiesWithoutCountry returns SUCCESS rows missing geolocation. Only
// working proxies are worth the lookup; failing rows may be evicted soon.
func (p *Postgres) ProxiesWithoutCountry(ctx context.Context, limit int) ([]IPRecord, error) {
	const query = `
		SELECT id, ip FROM proxies
		WHERE (country IS NULL OR country = '') AND status = $1
		LIMIT $2`

	var records []IPRecord
	if err := p.db.SelectContext(ctx, &records, query, int(types.StatusSuccess), limit); err != nil {
		return nil, fmt.Errorf("failed to select proxies without country: %w", err)
	}
	return records, nil
}

// BatchSetCountry updates many rows from parallel id/country arrays in a
// single unnest statement.
func (p *Postgres) BatchSetCountry(ctx context.Context, updates []CountryUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(updates))
	countries := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
		countries[i] = u.Country
	}

	const query = `
		UPDATE proxies SET
			country = data.country,
			updated_at = NOW()
		FROM (
			SELECT unnest($1::bigint[]) AS id,
			       unnest($2::text[]) AS country
		) AS data
		WHERE proxies.id = data.id`

	res, err := p.db.ExecContext(ctx, query, ids, countries)
	if err != nil {
		return 0, fmt.Errorf("failed to batch update countries: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates pool counts using filtered aggregates in one query.
func (p *Postgres) Stats(ctx context.Context) (*types.PoolStats, error) {
	const query = `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 1) AS active,
			COUNT(*) FILTER (WHERE status = 2) AS inactive,
			COUNT(*) FILTER (WHERE status = 0) AS pending,
			COUNT(DISTINCT protocol) AS protocols,
			COUNT(DISTINCT country) AS countries,
			AVG(speed) FILTER (WHERE speed IS NOT NULL) AS avg_speed,
			COUNT(*) FILTER (WHERE anonymity = 'transparent') AS transparent,
			COUNT(*) FILTER (WHERE anonymity = 'anonymous') AS anonymous,
			COUNT(*) FILTER (WHERE anonymity = 'elite') AS elite
		FROM proxies`

	var stats types.PoolStats
	if err := p.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return &stats, nil
}

// Ping verifies the backend is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
