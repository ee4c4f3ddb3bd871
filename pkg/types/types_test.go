package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Protocol
		wantErr bool
	}{
		{name: "lowercase http", input: "http", want: ProtocolHTTP},
		{name: "uppercase normalized", input: "SOCKS5", want: ProtocolSOCKS5},
		{name: "surrounding whitespace", input: " https ", want: ProtocolHTTPS},
		{name: "socks4", input: "socks4", want: ProtocolSOCKS4},
		{name: "unknown", input: "ftp", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProtocol(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCandidateValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		wantErr   bool
	}{
		{
			name:      "valid ipv4",
			candidate: Candidate{IP: "10.0.0.1", Port: 8080, Protocol: ProtocolHTTP},
		},
		{
			name:      "valid ipv6",
			candidate: Candidate{IP: "2001:db8::1", Port: 1080, Protocol: ProtocolSOCKS5},
		},
		{
			name:      "country normalized",
			candidate: Candidate{IP: "192.0.2.5", Port: 3128, Protocol: ProtocolHTTPS, Country: "us"},
		},
		{
			name:      "malformed ip",
			candidate: Candidate{IP: "999.1.1.1", Port: 8080, Protocol: ProtocolHTTP},
			wantErr:   true,
		},
		{
			name:      "hostname not allowed",
			candidate: Candidate{IP: "proxy.example.com", Port: 8080, Protocol: ProtocolHTTP},
			wantErr:   true,
		},
		{
			name:      "port zero",
			candidate: Candidate{IP: "10.0.0.1", Port: 0, Protocol: ProtocolHTTP},
			wantErr:   true,
		},
		{
			name:      "port too large",
			candidate: Candidate{IP: "10.0.0.1", Port: 70000, Protocol: ProtocolHTTP},
			wantErr:   true,
		},
		{
			name:      "bad protocol",
			candidate: Candidate{IP: "10.0.0.1", Port: 8080, Protocol: "gopher"},
			wantErr:   true,
		},
		{
			name:      "bad country",
			candidate: Candidate{IP: "10.0.0.1", Port: 8080, Protocol: ProtocolHTTP, Country: "USA"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candidate.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCandidateValidateUppercasesCountry(t *testing.T) {
	c := Candidate{IP: "192.0.2.5", Port: 3128, Protocol: ProtocolHTTP, Country: "cn"}
	require.NoError(t, c.Validate())
	assert.Equal(t, "CN", c.Country)
}

func TestProxyURL(t *testing.T) {
	p := &Proxy{IP: "192.0.2.5", Port: 8080, Protocol: ProtocolHTTP}
	assert.Equal(t, "http://192.0.2.5:8080", p.URL())

	v6 := &Proxy{IP: "2001:db8::1", Port: 1080, Protocol: ProtocolSOCKS5}
	assert.Equal(t, "socks5://[2001:db8::1]:1080", v6.URL())
}

func TestSuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, (&Proxy{}).SuccessRate())
	assert.Equal(t, 1.0, (&Proxy{SuccessCount: 4}).SuccessRate())
	assert.Equal(t, 0.5, (&Proxy{SuccessCount: 2, FailCount: 2}).SuccessRate())
}

func TestQualityScore(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	weights := QualityWeights{SuccessRate: 0.4, Speed: 0.3, Stability: 0.3}

	speed := 1.0
	recent := now.Add(-1 * time.Hour)
	p := &Proxy{SuccessCount: 10, Speed: &speed, LastSuccess: &recent}

	// success 100*0.4 + speed (100-10)*0.3 + stability (100-5)*0.3
	assert.InDelta(t, 40+27+28.5, p.QualityScore(weights, now), 0.001)

	// Never-succeeded proxy scores zero.
	assert.Equal(t, 0.0, (&Proxy{}).QualityScore(weights, now))

	// Very slow proxies clamp the speed score at zero instead of going negative.
	slow := 30.0
	pSlow := &Proxy{SuccessCount: 1, Speed: &slow}
	assert.InDelta(t, 40.0, pSlow.QualityScore(weights, now), 0.001)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
