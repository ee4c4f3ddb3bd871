package crawler

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openskulk/skulk/pkg/types"
)

const (
	fetchTimeout = 20 * time.Second
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	maxListBody = 4 << 20
)

// Free proxy list endpoints often sit behind broken certificates.
var fetchClient = &http.Client{
	Timeout: fetchTimeout,
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	},
}

// fetch downloads one list URL with the shared client and user agent.
func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListBody))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

// parseHostPortLines turns an ip:port-per-line body into candidates.
// Lines that do not parse are skipped.
func parseHostPortLines(body []byte, protocol types.Protocol, source string) []types.Candidate {
	var out []types.Candidate
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		ip, portStr, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(portStr))
		if err != nil {
			continue
		}
		out = append(out, types.Candidate{
			IP:       strings.TrimSpace(ip),
			Port:     port,
			Protocol: protocol,
			Source:   source,
		})
	}
	return out
}
