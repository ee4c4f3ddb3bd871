package crawler

import (
	"context"

	"github.com/openskulk/skulk/pkg/types"
)

func init() {
	Register(&TextList{
		name: "github_vakhov",
		urls: map[types.Protocol]string{
			types.ProtocolHTTP:   "https://vakhov.github.io/fresh-proxy-list/http.txt",
			types.ProtocolHTTPS:  "https://vakhov.github.io/fresh-proxy-list/https.txt",
			types.ProtocolSOCKS4: "https://vakhov.github.io/fresh-proxy-list/socks4.txt",
			types.ProtocolSOCKS5: "https://vakhov.github.io/fresh-proxy-list/socks5.txt",
		},
	})
	Register(&TextList{
		name: "github_databay",
		urls: map[types.Protocol]string{
			types.ProtocolHTTP:   "https://cdn.jsdelivr.net/gh/databay-labs/free-proxy-list/http.txt",
			types.ProtocolHTTPS:  "https://cdn.jsdelivr.net/gh/databay-labs/free-proxy-list/https.txt",
			types.ProtocolSOCKS5: "https://cdn.jsdelivr.net/gh/databay-labs/free-proxy-list/socks5.txt",
		},
	})
}

// TextList reads plain ip:port-per-line lists, one URL per protocol.
type TextList struct {
	name string
	urls map[types.Protocol]string
}

func (t *TextList) Name() string  { return t.name }
func (t *TextList) Enabled() bool { return true }

// FetchProxies downloads every protocol list. One failing list does not
// discard the others; the last error is surfaced alongside whatever
// parsed.
func (t *TextList) FetchProxies(ctx context.Context) ([]types.Candidate, error) {
	var (
		out     []types.Candidate
		lastErr error
	)
	for protocol, url := range t.urls {
		body, err := fetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, parseHostPortLines(body, protocol, t.name)...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}
