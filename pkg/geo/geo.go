package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/openskulk/skulk/pkg/log"
)

const (
	defaultAPIURL = "http://ip-api.com/batch"
	apiFields     = "status,message,countryCode,query"

	// The free tier allows small batches at a limited rate.
	batchSize    = 20
	batchDelay   = 1500 * time.Millisecond
	batchTimeout = 30 * time.Second
)

// Result is one lookup outcome as reported by the geolocation API.
type Result struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	CountryCode string `json:"countryCode"`
	Query       string `json:"query"`
}

// Client resolves IP addresses to country codes through the ip-api.com
// batch endpoint.
type Client struct {
	apiURL string
	http   *http.Client
	delay  time.Duration
	logger zerolog.Logger
}

func NewClient() *Client {
	return &Client{
		apiURL: defaultAPIURL,
		http:   &http.Client{Timeout: batchTimeout},
		delay:  batchDelay,
		logger: log.WithComponent("geo"),
	}
}

// LookupCountries resolves the given IPs in batches and returns a map of
// IP to two-letter country code. IPs the API could not resolve are
// absent from the map; a failed batch drops only its own IPs.
func (c *Client) LookupCountries(ctx context.Context, ips []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(ips) == 0 {
		return out, nil
	}

	for start := 0; start < len(ips); start += batchSize {
		end := min(start+batchSize, len(ips))

		results, err := c.lookupBatch(ctx, ips[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			c.logger.Error().Err(err).Int("batch_start", start).Msg("Country batch failed")
		}
		for _, r := range results {
			if r.Status == "success" && len(r.CountryCode) == 2 {
				out[r.Query] = r.CountryCode
			}
		}

		if end < len(ips) {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				return out, ctx.Err()
			}
		}
	}
	return out, nil
}

func (c *Client) lookupBatch(ctx context.Context, ips []string) ([]Result, error) {
	payload, err := json.Marshal(ips)
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"?fields="+apiFields, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation API status %d", resp.StatusCode)
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding batch response: %w", err)
	}
	return results, nil
}
