package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openskulk/skulk/pkg/log"
)

const (
	// InitLockKey guards one-time scheduler initialization across workers.
	InitLockKey = "scheduler:task_initialization"

	taskStatsKeyFmt = "task:stats:%s"
	statsTTL        = 24 * time.Hour
)

// TaskStats is the per-task checkpoint shared between workers. A restarted
// worker reads it back to resume the schedule grid instead of starting over.
type TaskStats struct {
	ExecutionCount int64
	FailureCount   int64
	LastRun        time.Time
	NextRun        time.Time
	// ExecutionTime is the duration of the last run, in seconds.
	ExecutionTime float64
}

// Client wraps the shared Redis connection. Every method degrades
// gracefully: callers are expected to log and continue when Redis is
// unreachable, since coordination state is advisory rather than load
// bearing.
type Client struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

// New connects using a redis:// URL.
func New(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Client{
		rdb:    redis.NewClient(opts),
		logger: log.WithComponent("cache"),
	}, nil
}

// NewFromClient wraps an existing connection, used by tests.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, logger: log.WithComponent("cache")}
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetIfAbsent performs an atomic SET NX EX. It returns true when the key
// was created, false when another holder already owns it.
func (c *Client) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

// GetTaskStats loads the checkpoint for a task. A missing key returns
// (nil, nil).
func (c *Client) GetTaskStats(ctx context.Context, task string) (*TaskStats, error) {
	key := fmt.Sprintf(taskStatsKeyFmt, task)
	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	stats := &TaskStats{}
	stats.ExecutionCount = parseInt(fields["execution_count"])
	stats.FailureCount = parseInt(fields["failure_count"])
	stats.LastRun = parseTime(fields["last_run"])
	stats.NextRun = parseTime(fields["next_run"])
	stats.ExecutionTime = parseFloat(fields["execution_time"])
	return stats, nil
}

// SaveTaskStats writes the checkpoint and refreshes its TTL in one
// pipelined round-trip.
func (c *Client) SaveTaskStats(ctx context.Context, task string, stats TaskStats) error {
	key := fmt.Sprintf(taskStatsKeyFmt, task)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key,
		"execution_count", stats.ExecutionCount,
		"failure_count", stats.FailureCount,
		"last_run", formatTime(stats.LastRun),
		"next_run", formatTime(stats.NextRun),
		"execution_time", stats.ExecutionTime,
	)
	pipe.Expire(ctx, key, statsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving stats for %s: %w", task, err)
	}
	return nil
}

func parseInt(s string) int64 {
	var n int64
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

func parseFloat(s string) float64 {
	var f float64
	_, _ = fmt.Sscanf(s, "%g", &f)
	return f
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
