package crawler

import (
	"context"
	"sync"

	"github.com/openskulk/skulk/pkg/types"
)

// Source is one external proxy list. Implementations return raw
// candidates; the proxy service filters malformed rows.
type Source interface {
	// Name identifies the source, stored on every row it discovers.
	Name() string
	// Enabled reports whether the source should be crawled.
	Enabled() bool
	// FetchProxies downloads and parses the list.
	FetchProxies(ctx context.Context) ([]types.Candidate, error)
}

var (
	registryMu sync.Mutex
	registry   []Source
)

// Register adds a source to the global registry. Called from adapter
// init functions; registration order is crawl order.
func Register(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, s)
}

// Sources returns the enabled sources in registration order.
func Sources() []Source {
	registryMu.Lock()
	defer registryMu.Unlock()

	enabled := make([]Source, 0, len(registry))
	for _, s := range registry {
		if s.Enabled() {
			enabled = append(enabled, s)
		}
	}
	return enabled
}
