package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthChecker probes every registered backend on a fixed cadence and
// flips its liveness flag. A backend is live iff its last probe returned
// exactly 200.
type HealthChecker struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	path     string
	client   *http.Client
	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewHealthChecker creates a health checker over the given registry.
func NewHealthChecker(registry *Registry, cfg HealthCheckConfig, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		registry: registry,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		path:     cfg.Path,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the probing loop.
func (hc *HealthChecker) Start() {
	hc.wg.Add(1)
	go hc.run()
	hc.logger.Info("health checker started", zap.Duration("interval", hc.interval))
}

// Stop halts probing and waits for the in-flight round to finish.
func (hc *HealthChecker) Stop() {
	close(hc.stopCh)
	hc.wg.Wait()
	hc.logger.Info("health checker stopped")
}

func (hc *HealthChecker) run() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	// Initial round so liveness settles before the first sleep.
	hc.checkAllBackends()

	for {
		select {
		case <-ticker.C:
			hc.checkAllBackends()
		case <-hc.stopCh:
			return
		}
	}
}

// checkAllBackends probes the current membership. Probes run concurrently
// and the round completes before the next one starts.
func (hc *HealthChecker) checkAllBackends() {
	backends := hc.registry.All()

	var wg sync.WaitGroup
	for _, backend := range backends {
		wg.Add(1)
		go func(b *Backend) {
			defer wg.Done()
			hc.checkBackend(b)
		}(backend)
	}
	wg.Wait()

	updatePoolMetrics(hc.registry)
}

// checkBackend performs one probe against a single backend. The probe's
// round-trip duration counts toward the backend's response-time window.
func (hc *HealthChecker) checkBackend(backend *Backend) {
	url := fmt.Sprintf("http://%s%s", backend.Key(), hc.path)

	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	start := time.Now()
	healthy := false

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		hc.logger.Error("failed to build health check request",
			zap.String("backend", backend.Key()), zap.Error(err))
	} else {
		resp, err := hc.client.Do(req)
		if err != nil {
			hc.logger.Warn("health check failed",
				zap.String("backend", backend.Key()), zap.Error(err))
		} else {
			healthy = resp.StatusCode == http.StatusOK
			resp.Body.Close()
			if !healthy {
				hc.logger.Warn("health check returned non-OK status",
					zap.String("backend", backend.Key()), zap.Int("status", resp.StatusCode))
			}
		}
	}

	backend.ObserveResponseTime(time.Since(start))
	backend.MarkChecked(time.Now())

	previous := backend.IsHealthy()
	backend.SetHealthy(healthy)
	if previous != healthy {
		hc.logger.Info("backend health changed",
			zap.String("backend", backend.Key()), zap.Bool("healthy", healthy))
	}
	setBackendHealthMetric(backend.Key(), healthy)
}
