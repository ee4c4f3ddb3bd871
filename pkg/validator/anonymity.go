package validator

import (
	"net/http"
	"strings"

	"github.com/openskulk/skulk/pkg/types"
)

// Header names a proxy adds when it reveals that the request was relayed.
var suspiciousHeaders = []string{
	"x-forwarded-for",
	"x-real-ip",
	"via",
	"x-proxy-id",
	"proxy-connection",
	"forwarded",
	"client-ip",
	"x-client-ip",
}

// classifyAnonymity grades a proxy from the headers observed on the far
// side of the relay. ip is the address the far side attributed the request
// to (the proxy's own IP, or the echoed origin in echo mode).
//
//   - any header value containing ip literally: transparent
//   - any suspicious header name present with a non-empty value: anonymous
//   - otherwise: elite
func classifyAnonymity(headers http.Header, ip string) types.Anonymity {
	if ip != "" {
		for _, values := range headers {
			for _, v := range values {
				if strings.Contains(v, ip) {
					return types.AnonymityTransparent
				}
			}
		}
	}
	for _, name := range suspiciousHeaders {
		for _, v := range headers.Values(name) {
			if v != "" {
				return types.AnonymityAnonymous
			}
		}
	}
	return types.AnonymityElite
}
