package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// serverRequest is the body of the add-server and remove-server endpoints.
type serverRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// serverStats is the per-backend section of the stats response.
type serverStats struct {
	Host              string  `json:"host"`
	Port              int     `json:"port"`
	IsHealthy         bool    `json:"is_healthy"`
	ActiveConnections int64   `json:"active_connections"`
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ErrorRate         string  `json:"error_rate"`
	AvgResponseTime   string  `json:"avg_response_time"`
	LastHealthCheck   *string `json:"last_health_check"`
}

// statsResponse is the full stats document.
type statsResponse struct {
	Algorithm      string                 `json:"algorithm"`
	TotalServers   int                    `json:"total_servers"`
	HealthyServers int                    `json:"healthy_servers"`
	ActiveSessions int                    `json:"active_sessions"`
	Servers        map[string]serverStats `json:"servers"`
}

// Handler builds the HTTP surface: dashboard and static assets first, then
// the management endpoints, then the catch-all forwarding route.
func (b *Balancer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/", b.handleDashboard)
	r.Get("/dashboard", b.handleDashboard)
	r.Get("/static/{filename}", b.handleStatic)

	r.Get("/lb/stats", b.handleStats)
	r.Post("/lb/add-server", b.handleAddServer)
	r.Post("/lb/remove-server", b.handleRemoveServer)
	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/*", b.forward)

	return r
}

func (b *Balancer) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := statsResponse{
		Algorithm:      string(b.selector.Algorithm()),
		TotalServers:   b.registry.Len(),
		HealthyServers: b.registry.HealthyCount(),
		ActiveSessions: b.sessions.Len(),
		Servers:        make(map[string]serverStats),
	}

	for _, backend := range b.registry.All() {
		entry := serverStats{
			Host:              backend.Host,
			Port:              backend.Port,
			IsHealthy:         backend.IsHealthy(),
			ActiveConnections: backend.GetConnections(),
			TotalRequests:     backend.GetRequestCount(),
			TotalErrors:       backend.GetErrorCount(),
			ErrorRate:         fmt.Sprintf("%.2f%%", backend.ErrorRate()*100),
			AvgResponseTime:   fmt.Sprintf("%.3fs", backend.AvgResponseTime()),
		}
		if at, ok := backend.LastCheck(); ok {
			formatted := at.Format(time.RFC3339Nano)
			entry.LastHealthCheck = &formatted
		}
		stats.Servers[backend.Key()] = entry
	}

	writeJSON(w, http.StatusOK, stats)
}

func (b *Balancer) handleAddServer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeServerRequest(w, r)
	if !ok {
		return
	}

	b.registry.Register(req.Host, req.Port)
	b.logger.Info("backend added", zap.String("backend", BackendKey(req.Host, req.Port)))
	updatePoolMetrics(b.registry)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Server %s:%d added successfully", req.Host, req.Port),
	})
}

func (b *Balancer) handleRemoveServer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeServerRequest(w, r)
	if !ok {
		return
	}

	key := BackendKey(req.Host, req.Port)
	switch err := b.registry.Deregister(req.Host, req.Port); {
	case err == nil:
		b.sessions.DeleteByBackend(key)
		dropBackendMetrics(key)
		b.logger.Info("backend removed", zap.String("backend", key))
	case errors.Is(err, ErrLastBackend):
		// Removal that would empty the pool is skipped.
		b.logger.Warn("refusing to remove last backend", zap.String("backend", key))
	case errors.Is(err, ErrBackendNotFound):
		b.logger.Debug("remove of unknown backend ignored", zap.String("backend", key))
	}
	updatePoolMetrics(b.registry)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Server %s:%d removed successfully", req.Host, req.Port),
	})
}

func (b *Balancer) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	content, err := os.ReadFile(filepath.Join(b.config.StaticDir, "dashboard.html"))
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

func (b *Balancer) handleStatic(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(chi.URLParam(r, "filename"))
	content, err := os.ReadFile(filepath.Join(b.config.StaticDir, filename))
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", staticContentType(filename))
	w.Write(content)
}

func staticContentType(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".css"):
		return "text/css"
	case strings.HasSuffix(filename, ".js"):
		return "application/javascript"
	case strings.HasSuffix(filename, ".html"):
		return "text/html; charset=utf-8"
	default:
		return "text/plain"
	}
}

// decodeServerRequest parses and validates the add/remove body, writing the
// error response itself when the body is unusable.
func decodeServerRequest(w http.ResponseWriter, r *http.Request) (serverRequest, bool) {
	var req serverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return req, false
	}
	if req.Host == "" || req.Port == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Host and port required"})
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
