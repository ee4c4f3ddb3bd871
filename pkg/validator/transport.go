package validator

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"h12.io/socks"

	"github.com/openskulk/skulk/pkg/types"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// newClient builds a dedicated HTTP client routed through the given proxy.
// TLS verification is off: free proxies routinely front mismatched
// certificates and the check measures reachability, not trust. Redirects
// are followed (the default policy).
func newClient(p types.Proxy, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
		DisableKeepAlives: true,
	}

	switch p.Protocol {
	case types.ProtocolHTTP, types.ProtocolHTTPS:
		proxyURL := &url.URL{Scheme: "http", Host: net.JoinHostPort(p.IP, fmt.Sprintf("%d", p.Port))}
		transport.Proxy = http.ProxyURL(proxyURL)
	case types.ProtocolSOCKS4, types.ProtocolSOCKS5:
		transport.Dial = socks.Dial(p.URL())
	default:
		return nil, fmt.Errorf("unsupported protocol %q", p.Protocol)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
