package types

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Protocol is the proxy protocol, stored lowercase.
type Protocol string

const (
	ProtocolHTTP   Protocol = "http"
	ProtocolHTTPS  Protocol = "https"
	ProtocolSOCKS4 Protocol = "socks4"
	ProtocolSOCKS5 Protocol = "socks5"
)

// ParseProtocol normalizes and validates a protocol string.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(s))); p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolSOCKS4, ProtocolSOCKS5:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported protocol %q", s)
	}
}

// Anonymity describes how much a proxy reveals about the real client.
type Anonymity string

const (
	// AnonymityTransparent means the proxy exposes the client IP.
	AnonymityTransparent Anonymity = "transparent"
	// AnonymityAnonymous means the proxy reveals itself but hides the IP.
	AnonymityAnonymous Anonymity = "anonymous"
	// AnonymityElite means the proxy reveals nothing.
	AnonymityElite Anonymity = "elite"
)

// ParseAnonymity normalizes and validates an anonymity string.
func ParseAnonymity(s string) (Anonymity, error) {
	switch a := Anonymity(strings.ToLower(strings.TrimSpace(s))); a {
	case AnonymityTransparent, AnonymityAnonymous, AnonymityElite:
		return a, nil
	default:
		return "", fmt.Errorf("unknown anonymity level %q", s)
	}
}

// Status is the proxy lifecycle state.
type Status int

const (
	StatusPending Status = 0
	StatusSuccess Status = 1
	StatusFailed  Status = 2
)

// String returns the lowercase name used in API payloads.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Proxy is the persistent proxy record. (ip, port, protocol) is globally
// unique; re-ingestion is idempotent.
type Proxy struct {
	ID           int64      `db:"id"`
	IP           string     `db:"ip"`
	Port         int        `db:"port"`
	Protocol     Protocol   `db:"protocol"`
	Country      *string    `db:"country"`
	Anonymity    *Anonymity `db:"anonymity"`
	Source       string     `db:"source"`
	Speed        *float64   `db:"speed"`
	SuccessCount int        `db:"success_count"`
	FailCount    int        `db:"fail_count"`
	Status       Status     `db:"status"`
	LastChecked  *time.Time `db:"last_checked"`
	LastSuccess  *time.Time `db:"last_success"`
	CreatedAt    *time.Time `db:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at"`
}

// URL returns the proxy address in protocol://host:port form.
func (p *Proxy) URL() string {
	return fmt.Sprintf("%s://%s", p.Protocol, net.JoinHostPort(p.IP, fmt.Sprintf("%d", p.Port)))
}

// SuccessRate returns the ratio of successful checks, 0 when unchecked.
func (p *Proxy) SuccessRate() float64 {
	total := p.SuccessCount + p.FailCount
	if total == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(total)
}

// QualityWeights are the weighted-score coefficients. They must sum to 1.0.
type QualityWeights struct {
	SuccessRate float64
	Speed       float64
	Stability   float64
}

// QualityScore derives a 0-100 ranking from success rate, speed, and recency
// of the last success. It is a read-time projection reported to API
// consumers, never a stored column or a selection sort key.
func (p *Proxy) QualityScore(w QualityWeights, now time.Time) float64 {
	successScore := p.SuccessRate() * 100

	var speedScore float64
	if p.Speed != nil && *p.Speed > 0 {
		speedScore = 100 - *p.Speed*10
		if speedScore < 0 {
			speedScore = 0
		}
	}

	var stabilityScore float64
	if p.LastSuccess != nil {
		hours := now.Sub(*p.LastSuccess).Hours()
		stabilityScore = 100 - hours*5
		if stabilityScore < 0 {
			stabilityScore = 0
		}
	}

	return successScore*w.SuccessRate + speedScore*w.Speed + stabilityScore*w.Stability
}

// Candidate is a proxy tuple produced by a crawl adapter before it is
// persisted.
type Candidate struct {
	IP       string
	Port     int
	Protocol Protocol
	Country  string
	Source   string
}

// Validate checks IP, port, and protocol. Country, when present, must be a
// two-letter code; it is normalized to uppercase.
func (c *Candidate) Validate() error {
	if net.ParseIP(c.IP) == nil {
		return fmt.Errorf("invalid IP address %q", c.IP)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := ParseProtocol(string(c.Protocol)); err != nil {
		return err
	}
	c.Country = strings.ToUpper(strings.TrimSpace(c.Country))
	if c.Country != "" && len(c.Country) != 2 {
		return fmt.Errorf("invalid country code %q", c.Country)
	}
	return nil
}

// Verdict is the outcome of validating one proxy. Speed and Anonymity are
// set only on success.
type Verdict struct {
	ProxyID   int64
	Success   bool
	Speed     *float64
	Anonymity *Anonymity
}

// BatchResult summarizes a validator batch. Every input proxy yields exactly
// one verdict carrying its id; order is not guaranteed.
type BatchResult struct {
	Total    int
	Success  int
	Failed   int
	Verdicts []Verdict
}

// PoolStats is the aggregate snapshot served by the stats endpoint.
type PoolStats struct {
	Total       int64    `db:"total" json:"total"`
	Active      int64    `db:"active" json:"active"`
	Inactive    int64    `db:"inactive" json:"inactive"`
	Pending     int64    `db:"pending" json:"pending"`
	Protocols   int64    `db:"protocols" json:"protocols"`
	Countries   int64    `db:"countries" json:"countries"`
	AvgSpeed    *float64 `db:"avg_speed" json:"avg_speed"`
	Transparent int64    `db:"transparent" json:"transparent"`
	Anonymous   int64    `db:"anonymous" json:"anonymous"`
	Elite       int64    `db:"elite" json:"elite"`
}
