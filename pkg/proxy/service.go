package proxy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openskulk/skulk/pkg/log"
	"github.com/openskulk/skulk/pkg/store"
	"github.com/openskulk/skulk/pkg/types"
)

// Service owns the pool lifecycle on top of the store. It is the only
// writer the tasks and the API talk to.
type Service struct {
	store   store.Store
	maxFail int
	logger  zerolog.Logger
}

// NewService wires the pool service. maxFail is the failure threshold at
// which proxies stop being retried and become eligible for cleanup.
func NewService(s store.Store, maxFail int) *Service {
	return &Service{
		store:   s,
		maxFail: maxFail,
		logger:  log.WithComponent("proxy"),
	}
}

// AddBatch validates crawled candidates and inserts the survivors in one
// statement. Malformed entries are dropped with a warning; a source that
// emits garbage must not abort its siblings' rows.
func (s *Service) AddBatch(ctx context.Context, candidates []types.Candidate) (int, error) {
	valid := make([]types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			s.logger.Warn().
				Str("source", c.Source).
				Str("ip", c.IP).
				Int("port", c.Port).
				Err(err).
				Msg("Dropping malformed candidate")
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return 0, nil
	}
	if err := s.store.InsertBatch(ctx, valid); err != nil {
		return 0, fmt.Errorf("inserting candidates: %w", err)
	}
	return len(valid), nil
}

// RecordValidationResult applies a single verdict.
func (s *Service) RecordValidationResult(ctx context.Context, v types.Verdict) error {
	return s.store.RecordVerdict(ctx, v)
}

// ApplyVerdicts records a whole validation batch. A failed write is logged
// and skipped so one bad row cannot discard the rest of the batch.
func (s *Service) ApplyVerdicts(ctx context.Context, verdicts []types.Verdict) int {
	applied := 0
	for _, v := range verdicts {
		if err := s.store.RecordVerdict(ctx, v); err != nil {
			s.logger.Error().Int64("proxy_id", v.ProxyID).Err(err).Msg("Failed to record verdict")
			continue
		}
		applied++
	}
	return applied
}

// PendingForValidation returns candidates due for a first or retry check.
func (s *Service) PendingForValidation(ctx context.Context, limit int) ([]types.Proxy, error) {
	return s.store.PendingForValidation(ctx, limit, s.maxFail)
}

// SuccessfulForValidation returns active proxies due for revalidation.
func (s *Service) SuccessfulForValidation(ctx context.Context, limit int) ([]types.Proxy, error) {
	return s.store.SuccessfulForValidation(ctx, limit)
}

// GetActiveProxies returns the ranked working set for API consumers.
func (s *Service) GetActiveProxies(ctx context.Context, f store.ActiveFilter) ([]types.Proxy, error) {
	return s.store.ActiveProxies(ctx, f)
}

// CleanupFailed evicts proxies that exhausted their retry budget.
func (s *Service) CleanupFailed(ctx context.Context) (int64, error) {
	return s.store.CleanupFailed(ctx, s.maxFail)
}

// CleanupStale evicts proxies that have not succeeded within the window.
func (s *Service) CleanupStale(ctx context.Context, days int) (int64, error) {
	return s.store.CleanupStale(ctx, days)
}

// ProxiesWithoutCountry lists active proxies missing geo data.
func (s *Service) ProxiesWithoutCountry(ctx context.Context, limit int) ([]store.IPRecord, error) {
	return s.store.ProxiesWithoutCountry(ctx, limit)
}

// BatchUpdateCountries assigns resolved country codes.
func (s *Service) BatchUpdateCountries(ctx context.Context, updates []store.CountryUpdate) (int64, error) {
	return s.store.BatchSetCountry(ctx, updates)
}

// Stats returns aggregate pool counts.
func (s *Service) Stats(ctx context.Context) (*types.PoolStats, error) {
	return s.store.Stats(ctx)
}
