package crawler

import (
	"context"
	"sync"

	"github.com/openskulk/skulk/pkg/log"
	"github.com/openskulk/skulk/pkg/types"
)

// Result is the outcome of crawling one source. Err and Candidates are
// mutually exclusive.
type Result struct {
	Source     string
	Candidates []types.Candidate
	Err        error
}

// Coordinator fans out to the registered sources under a concurrency cap.
type Coordinator struct {
	sources       []Source
	maxConcurrent int
}

// NewCoordinator crawls the given sources. Pass Sources() for the global
// registry.
func NewCoordinator(sources []Source, maxConcurrent int) *Coordinator {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Coordinator{
		sources:       sources,
		maxConcurrent: maxConcurrent,
	}
}

// RunAll crawls every source and returns one result per source in
// registration order. Source errors are captured in the result list,
// never propagated: a broken list must not stop the rest.
func (c *Coordinator) RunAll(ctx context.Context) []Result {
	results := make([]Result, len(c.sources))
	sem := make(chan struct{}, c.maxConcurrent)

	var wg sync.WaitGroup
	for i, src := range c.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{Source: src.Name(), Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			candidates, err := src.FetchProxies(ctx)
			results[i] = Result{Source: src.Name(), Candidates: candidates, Err: err}

			srcLog := log.WithSource(src.Name())
			if err != nil {
				srcLog.Warn().Err(err).Msg("Source failed")
				return
			}
			srcLog.Info().Int("candidates", len(candidates)).Msg("Source crawled")
		}()
	}
	wg.Wait()
	return results
}
