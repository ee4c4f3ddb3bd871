package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/openskulk/skulk/pkg/api"
	"github.com/openskulk/skulk/pkg/cache"
	"github.com/openskulk/skulk/pkg/config"
	"github.com/openskulk/skulk/pkg/crawler"
	"github.com/openskulk/skulk/pkg/geo"
	"github.com/openskulk/skulk/pkg/log"
	"github.com/openskulk/skulk/pkg/proxy"
	"github.com/openskulk/skulk/pkg/scheduler"
	"github.com/openskulk/skulk/pkg/store"
	"github.com/openskulk/skulk/pkg/tasks"
	"github.com/openskulk/skulk/pkg/validator"
)

const shutdownTimeout = 10 * time.Second

// App is the composition root of one worker process. Every dependency is
// wired here explicitly; packages never reach for globals.
type App struct {
	cfg   *config.Config
	store store.Store
	cache *cache.Client

	proxies   *proxy.Service
	validator *validator.Validator
	deps      tasks.Deps

	sched  *scheduler.Scheduler
	server *api.Server
	logger zerolog.Logger
}

// New connects the backends and wires the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.NewPostgres(ctx, store.Options{
		URL:         cfg.DBURL,
		MinPoolSize: cfg.DBMinPoolSize,
		MaxPoolSize: cfg.DBMaxPoolSize,
	})
	if err != nil {
		return nil, err
	}

	cacheClient, err := cache.New(cfg.RedisURL)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	proxies := proxy.NewService(st, cfg.MaxFailCount)
	v := validator.New(validator.Options{
		TestURL:       cfg.ValidatorTestURL,
		TestURLCN:     cfg.ValidatorTestURLCN,
		Timeout:       cfg.ValidatorTimeout,
		MaxConcurrent: cfg.MaxConcurrentValidators,
	})

	deps := tasks.Deps{
		Proxies:   proxies,
		Validator: v,
		Crawler:   crawler.NewCoordinator(crawler.Sources(), cfg.MaxConcurrentSpiders),
		Geo:       geo.NewClient(),
		Config:    cfg,
	}

	sched := scheduler.New(cacheClient)
	server := api.New(api.Options{
		Addr:    cfg.Addr(),
		Weights: cfg.Weights,
	}, proxies, v, sched.Status)

	return &App{
		cfg:       cfg,
		store:     st,
		cache:     cacheClient,
		proxies:   proxies,
		validator: v,
		deps:      deps,
		sched:     sched,
		server:    server,
		logger:    log.WithComponent("app"),
	}, nil
}

// Deps exposes the wired task dependencies, used by the one-shot CLI
// commands.
func (a *App) Deps() tasks.Deps { return a.deps }

// Run starts the scheduler and the API and blocks until ctx is cancelled
// or the listener fails.
func (a *App) Run(ctx context.Context) error {
	shared := []scheduler.Spec{
		{Name: tasks.NameCrawl, Interval: a.cfg.CrawlInterval, Func: tasks.Crawl(a.deps)},
		{Name: tasks.NameValidateSuccess, Interval: a.cfg.ValidateSuccessInterval, Func: tasks.ValidateSuccess(a.deps)},
		{Name: tasks.NameCleanup, Interval: a.cfg.CleanupInterval, Func: tasks.Cleanup(a.deps)},
		{Name: tasks.NameUpdateCountry, Interval: a.cfg.UpdateCountryInterval, Func: tasks.UpdateCountry(a.deps)},
	}
	perWorker := []scheduler.Spec{
		{Name: tasks.NameValidatePending, Interval: a.cfg.ValidateInterval, Func: tasks.ValidatePending(a.deps)},
	}

	if err := a.sched.Init(ctx, shared, perWorker); err != nil {
		return err
	}
	a.sched.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			a.logger.Error().Err(err).Msg("API server failed")
			a.shutdown()
			return err
		}
	}
	a.shutdown()
	return nil
}

// Close releases the backends without running the scheduler, used by the
// one-shot commands.
func (a *App) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Closing cache failed")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Closing store failed")
	}
}

func (a *App) shutdown() {
	a.sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Stop(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("API shutdown failed")
	}
	a.Close()
	a.logger.Info().Msg("Shutdown complete")
}
