package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openskulk/skulk/pkg/config"
	"github.com/openskulk/skulk/pkg/crawler"
	"github.com/openskulk/skulk/pkg/geo"
	"github.com/openskulk/skulk/pkg/log"
	"github.com/openskulk/skulk/pkg/metrics"
	"github.com/openskulk/skulk/pkg/proxy"
	"github.com/openskulk/skulk/pkg/store"
	"github.com/openskulk/skulk/pkg/types"
	"github.com/openskulk/skulk/pkg/validator"
)

// Task names are the Redis checkpoint keys; keep them stable.
const (
	NameCrawl           = "crawl"
	NameValidatePending = "validate_pending"
	NameValidateSuccess = "validate_success"
	NameCleanup         = "cleanup"
	NameUpdateCountry   = "update_country"
)

const countryLookupLimit = 200

// GeoResolver maps IP addresses to country codes. Satisfied by
// *geo.Client.
type GeoResolver interface {
	LookupCountries(ctx context.Context, ips []string) (map[string]string, error)
}

var _ GeoResolver = (*geo.Client)(nil)

// Deps bundles the services the task functions close over.
type Deps struct {
	Proxies   *proxy.Service
	Validator *validator.Validator
	Crawler   *crawler.Coordinator
	Geo       GeoResolver
	Config    *config.Config
}

func taskLogger(name string) zerolog.Logger {
	return log.WithTask(name)
}

// Crawl fans out to every source and merges the candidates. Source
// failures are logged per source and never fail the run; only a store
// write error does.
func Crawl(d Deps) func(ctx context.Context) error {
	logger := taskLogger(NameCrawl)
	return func(ctx context.Context) error {
		results := d.Crawler.RunAll(ctx)

		var accepted, failedSources int
		var firstErr error
		for _, r := range results {
			if r.Err != nil {
				failedSources++
				continue
			}
			n, err := d.Proxies.AddBatch(ctx, r.Candidates)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("merging %s: %w", r.Source, err)
				}
				continue
			}
			accepted += n
		}

		logger.Info().
			Int("sources", len(results)).
			Int("failed_sources", failedSources).
			Int("accepted", accepted).
			Msg("Crawl finished")
		return firstErr
	}
}

// ValidatePending checks candidates that never succeeded or recently
// failed, per-worker.
func ValidatePending(d Deps) func(ctx context.Context) error {
	logger := taskLogger(NameValidatePending)
	return func(ctx context.Context) error {
		proxies, err := d.Proxies.PendingForValidation(ctx, d.Config.ValidateBatchLimit)
		if err != nil {
			return fmt.Errorf("loading pending batch: %w", err)
		}
		return validateBatch(ctx, d, logger, proxies)
	}
}

// ValidateSuccess revalidates active proxies on the shorter shared cycle.
func ValidateSuccess(d Deps) func(ctx context.Context) error {
	logger := taskLogger(NameValidateSuccess)
	return func(ctx context.Context) error {
		proxies, err := d.Proxies.SuccessfulForValidation(ctx, d.Config.ValidateBatchLimit)
		if err != nil {
			return fmt.Errorf("loading revalidation batch: %w", err)
		}
		return validateBatch(ctx, d, logger, proxies)
	}
}

func validateBatch(ctx context.Context, d Deps, logger zerolog.Logger, proxies []types.Proxy) error {
	if len(proxies) == 0 {
		logger.Debug().Msg("Nothing to validate")
		return nil
	}

	start := time.Now()
	result := d.Validator.ValidateBatch(ctx, proxies)
	metrics.ObserveValidationBatch(time.Since(start).Seconds())

	applied := d.Proxies.ApplyVerdicts(ctx, result.Verdicts)

	if stats, err := d.Proxies.Stats(ctx); err == nil {
		metrics.SetPoolStats(stats)
	}

	logger.Info().
		Int("total", result.Total).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Int("applied", applied).
		Float64("execution_time", time.Since(start).Seconds()).
		Msg("Validation batch finished")
	return ctx.Err()
}

// Cleanup evicts exhausted FAILED rows and stale SUCCESS rows.
func Cleanup(d Deps) func(ctx context.Context) error {
	logger := taskLogger(NameCleanup)
	return func(ctx context.Context) error {
		failed, err := d.Proxies.CleanupFailed(ctx)
		if err != nil {
			return fmt.Errorf("cleaning failed proxies: %w", err)
		}
		stale, err := d.Proxies.CleanupStale(ctx, d.Config.StaleDays)
		if err != nil {
			return fmt.Errorf("cleaning stale proxies: %w", err)
		}
		logger.Info().Int64("failed_removed", failed).Int64("stale_removed", stale).Msg("Cleanup finished")
		return nil
	}
}

// UpdateCountry resolves country codes for active proxies missing one.
func UpdateCountry(d Deps) func(ctx context.Context) error {
	logger := taskLogger(NameUpdateCountry)
	return func(ctx context.Context) error {
		records, err := d.Proxies.ProxiesWithoutCountry(ctx, countryLookupLimit)
		if err != nil {
			return fmt.Errorf("loading proxies without country: %w", err)
		}
		if len(records) == 0 {
			logger.Debug().Msg("No proxies need a country update")
			return nil
		}

		seen := make(map[string]struct{}, len(records))
		ips := make([]string, 0, len(records))
		for _, r := range records {
			if _, ok := seen[r.IP]; ok {
				continue
			}
			seen[r.IP] = struct{}{}
			ips = append(ips, r.IP)
		}

		countries, err := d.Geo.LookupCountries(ctx, ips)
		if err != nil {
			return fmt.Errorf("resolving countries: %w", err)
		}

		updates := make([]store.CountryUpdate, 0, len(records))
		for _, r := range records {
			if cc, ok := countries[r.IP]; ok {
				updates = append(updates, store.CountryUpdate{ID: r.ID, Country: cc})
			}
		}
		if len(updates) == 0 {
			logger.Warn().Int("proxies", len(records)).Msg("No countries resolved")
			return nil
		}

		updated, err := d.Proxies.BatchUpdateCountries(ctx, updates)
		if err != nil {
			return fmt.Errorf("applying country updates: %w", err)
		}
		logger.Info().
			Int("proxies", len(records)).
			Int("unique_ips", len(ips)).
			Int64("updated", updated).
			Msg("Country update finished")
		return nil
	}
}
