package validator

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openskulk/skulk/pkg/log"
	"github.com/openskulk/skulk/pkg/types"
)

const maxEchoBody = 64 << 10

// Options configures a Validator.
type Options struct {
	// TestURL is the control URL; a 2xx response through the proxy counts
	// as working.
	TestURL string
	// TestURLCN is used instead of TestURL for proxies located in CN.
	TestURLCN string
	// Timeout bounds one whole request through one proxy.
	Timeout time.Duration
	// MaxConcurrent bounds in-flight checks within one batch.
	MaxConcurrent int
}

// Validator performs bounded-concurrency reachability checks. It never
// touches the store; callers record the verdicts it returns.
type Validator struct {
	opts   Options
	logger zerolog.Logger
}

func New(opts Options) *Validator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Validator{
		opts:   opts,
		logger: log.WithComponent("validator"),
	}
}

// ValidateBatch checks every proxy and returns one verdict per input.
// A failing proxy never affects its siblings; the only shared state is
// the concurrency semaphore.
func (v *Validator) ValidateBatch(ctx context.Context, proxies []types.Proxy) types.BatchResult {
	verdicts := make([]types.Verdict, len(proxies))
	sem := make(chan struct{}, v.opts.MaxConcurrent)

	var wg sync.WaitGroup
	for i, p := range proxies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				verdicts[i] = types.Verdict{ProxyID: p.ID}
				return
			}
			defer func() { <-sem }()
			verdicts[i] = v.checkOne(ctx, p)
		}()
	}
	wg.Wait()

	result := types.BatchResult{Total: len(proxies), Verdicts: verdicts}
	for _, vd := range verdicts {
		if vd.Success {
			result.Success++
		} else {
			result.Failed++
		}
	}
	return result
}

// Probe checks one ad-hoc proxy, used by the API's test endpoint.
func (v *Validator) Probe(ctx context.Context, p types.Proxy) types.Verdict {
	return v.checkOne(ctx, p)
}

func (v *Validator) checkOne(ctx context.Context, p types.Proxy) types.Verdict {
	verdict := types.Verdict{ProxyID: p.ID}
	target := v.controlURL(p)

	client, err := newClient(p, v.opts.Timeout)
	if err != nil {
		v.logger.Warn().Str("proxy", p.URL()).Err(err).Msg("Cannot build proxy client")
		return verdict
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		v.logger.Warn().Str("url", target).Err(err).Msg("Cannot build control request")
		return verdict
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		v.logger.Debug().Str("proxy", p.URL()).Err(err).Msg("Check failed")
		return verdict
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxEchoBody))
	_ = resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.logger.Debug().Str("proxy", p.URL()).Int("status", resp.StatusCode).Msg("Check failed")
		return verdict
	}

	headers, origin := resp.Header, p.IP
	if isEchoService(target) {
		if h, o, ok := parseEchoBody(body); ok {
			headers = h
			if o != "" {
				origin = o
			}
		}
	}
	anonymity := classifyAnonymity(headers, origin)
	speed := math.Round(elapsed.Seconds()*100) / 100

	verdict.Success = true
	verdict.Speed = &speed
	verdict.Anonymity = &anonymity

	v.logger.Debug().
		Str("proxy", p.URL()).
		Float64("speed", speed).
		Str("anonymity", string(anonymity)).
		Msg("Check succeeded")
	return verdict
}

// controlURL applies the CN policy hook: proxies located in China are
// probed against an endpoint reachable from there.
func (v *Validator) controlURL(p types.Proxy) string {
	if v.opts.TestURLCN != "" && p.Country != nil && *p.Country == "CN" {
		return v.opts.TestURLCN
	}
	return v.opts.TestURL
}

func isEchoService(url string) bool {
	return strings.Contains(url, "httpbin")
}

type echoBody struct {
	Headers map[string]string `json:"headers"`
	Origin  string            `json:"origin"`
}

// parseEchoBody extracts the headers and origin an echo service observed
// on the far side of the proxy.
func parseEchoBody(body []byte) (http.Header, string, bool) {
	var e echoBody
	if err := json.Unmarshal(body, &e); err != nil || e.Headers == nil {
		return nil, "", false
	}
	h := make(http.Header, len(e.Headers))
	for k, val := range e.Headers {
		h.Set(k, val)
	}
	return h, e.Origin, true
}
