package crawler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openskulk/skulk/pkg/types"
)

const proxyscrapeURL = "https://api.proxyscrape.com/v3/free-proxy-list/get?request=displayproxies&proxy_format=protocolipport&format=json&limit=100"

func init() {
	Register(&ProxyScrape{url: proxyscrapeURL})
}

// ProxyScrape reads the proxyscrape.com JSON list, which carries protocol
// and country per entry.
type ProxyScrape struct {
	url string
}

func (p *ProxyScrape) Name() string  { return "proxyscrape" }
func (p *ProxyScrape) Enabled() bool { return true }

type proxyscrapeEntry struct {
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	IPData   struct {
		CountryCode string `json:"countryCode"`
	} `json:"ip_data"`
}

func (p *ProxyScrape) FetchProxies(ctx context.Context) ([]types.Candidate, error) {
	body, err := fetch(ctx, p.url)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Proxies []proxyscrapeEntry `json:"proxies"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing proxyscrape list: %w", err)
	}

	out := make([]types.Candidate, 0, len(payload.Proxies))
	for _, e := range payload.Proxies {
		out = append(out, types.Candidate{
			IP:       e.IP,
			Port:     e.Port,
			Protocol: types.Protocol(e.Protocol),
			Country:  e.IPData.CountryCode,
			Source:   p.Name(),
		})
	}
	return out, nil
}
