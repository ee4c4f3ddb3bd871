package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/openskulk/skulk/pkg/scheduler"
	"github.com/openskulk/skulk/pkg/store"
	"github.com/openskulk/skulk/pkg/types"
)

const (
	defaultProxyLimit = 10
	maxProxyLimit     = 20
)

type proxyView struct {
	ID           int64            `json:"id"`
	IP           string           `json:"ip"`
	Port         int              `json:"port"`
	Protocol     types.Protocol   `json:"protocol"`
	Country      *string          `json:"country"`
	Anonymity    *types.Anonymity `json:"anonymity"`
	Source       string           `json:"source"`
	Speed        *float64         `json:"speed"`
	SuccessCount int              `json:"success_count"`
	FailCount    int              `json:"fail_count"`
	SuccessRate  float64          `json:"success_rate"`
	QualityScore float64          `json:"quality_score"`
	URL          string           `json:"url"`
	LastChecked  *time.Time       `json:"last_checked"`
	LastSuccess  *time.Time       `json:"last_success"`
	Status       int              `json:"status"`
}

func (s *Server) newProxyView(p types.Proxy, now time.Time) proxyView {
	return proxyView{
		ID:           p.ID,
		IP:           p.IP,
		Port:         p.Port,
		Protocol:     p.Protocol,
		Country:      p.Country,
		Anonymity:    p.Anonymity,
		Source:       p.Source,
		Speed:        p.Speed,
		SuccessCount: p.SuccessCount,
		FailCount:    p.FailCount,
		SuccessRate:  round2(p.SuccessRate()),
		QualityScore: round2(p.QualityScore(s.opts.Weights, now)),
		URL:          p.URL(),
		LastChecked:  p.LastChecked,
		LastSuccess:  p.LastSuccess,
		Status:       int(p.Status),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Server) handleProxies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ActiveFilter{Limit: defaultProxyLimit}

	if v := q.Get("protocol"); v != "" {
		p, err := types.ParseProtocol(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid protocol: "+v)
			return
		}
		filter.Protocol = p
	}
	if v := q.Get("anonymity"); v != "" {
		a, err := types.ParseAnonymity(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid anonymity: "+v)
			return
		}
		filter.Anonymity = a
	}
	filter.Country = q.Get("country")
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		filter.Limit = min(n, maxProxyLimit)
	}

	proxies, err := s.proxies.GetActiveProxies(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("Listing proxies failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	views := make([]proxyView, 0, len(proxies))
	for _, p := range proxies {
		views = append(views, s.newProxyView(p, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(views),
		"data":    views,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.proxies.Stats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Stats query failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": stats})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.proxies.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"status":  "unhealthy",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"status":      "healthy",
		"database":    "connected",
		"proxy_count": stats.Total,
	})
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	var statuses []scheduler.Status
	if s.taskStatus != nil {
		statuses = s.taskStatus()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(statuses),
		"data":    statuses,
	})
}

type testRequest struct {
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Country  string `json:"country"`
}

// handleTest probes one ad-hoc proxy without storing it.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := types.Candidate{IP: req.IP, Port: req.Port, Protocol: types.Protocol(req.Protocol), Country: req.Country}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := types.Proxy{IP: c.IP, Port: c.Port, Protocol: c.Protocol}
	if c.Country != "" {
		p.Country = &c.Country
	}
	verdict := s.validator.Probe(r.Context(), p)

	data := map[string]any{
		"proxy":   p.URL(),
		"working": verdict.Success,
	}
	if verdict.Speed != nil {
		data["speed"] = *verdict.Speed
	}
	if verdict.Anonymity != nil {
		data["anonymity"] = *verdict.Anonymity
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
