package main

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Balancer ties the registry, session table, selector and health checker
// together. Every handler operates on one shared Balancer value; there is
// no package-level state besides the metric vectors.
type Balancer struct {
	config    *Config
	registry  *Registry
	sessions  *SessionTable
	selector  *Selector
	health    *HealthChecker
	transport http.RoundTripper
	logger    *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewBalancer builds a balancer from the configuration, seeding the pool
// from the servers file.
func NewBalancer(config *Config, logger *zap.Logger) (*Balancer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	algorithm, err := ParseAlgorithm(config.Algorithm)
	if err != nil {
		return nil, err
	}
	servers, err := LoadServers(config.ServersFile)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	for _, server := range servers {
		registry.Register(server.Host, server.Port)
		logger.Info("registered backend", zap.String("backend", BackendKey(server.Host, server.Port)))
	}

	b := &Balancer{
		config:    config,
		registry:  registry,
		sessions:  NewSessionTable(config.Session.TTL),
		selector:  NewSelector(algorithm),
		transport: http.DefaultTransport,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
	b.health = NewHealthChecker(registry, config.HealthCheck, logger)

	updatePoolMetrics(registry)
	return b, nil
}

// Start launches the background tasks: the health checker and the session
// sweeper.
func (b *Balancer) Start() {
	b.health.Start()

	b.wg.Add(1)
	go b.runSessionCleaner()
}

// Close stops the background tasks and waits for them to finish.
func (b *Balancer) Close() error {
	b.health.Stop()
	close(b.stopCh)
	b.wg.Wait()
	return nil
}

func (b *Balancer) runSessionCleaner() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.Session.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := b.sessions.Sweep(time.Now()); evicted > 0 {
				b.logger.Info("evicted expired sessions", zap.Int("count", evicted))
			}
			activeSessions.Set(float64(b.sessions.Len()))
		case <-b.stopCh:
			return
		}
	}
}

// nextBackend resolves the target for one request. A live session binding
// wins; a binding whose backend is gone or dead is dropped and the
// algorithm re-applied, re-binding the session to the fresh choice.
func (b *Balancer) nextBackend(sessionID string) (*Backend, error) {
	if sessionID != "" {
		if key, ok := b.sessions.Get(sessionID); ok {
			backend, err := b.registry.Lookup(key)
			if err == nil && backend.IsHealthy() {
				return backend, nil
			}
			b.sessions.Delete(sessionID)
		}
	}

	snapshot := b.registry.Snapshot()
	backend := b.selector.Pick(snapshot)
	if backend == nil {
		return nil, ErrNoHealthyBackend
	}

	if sessionID != "" {
		b.sessions.Put(sessionID, backend.Key())
		activeSessions.Set(float64(b.sessions.Len()))
	}
	return backend, nil
}
