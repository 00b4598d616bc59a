package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChecker(registry *Registry) *HealthChecker {
	return NewHealthChecker(registry, HealthCheckConfig{
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
		Path:     "/health",
	}, zap.NewNop())
}

func TestCheckBackendHealthy(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	registry := NewRegistry()
	addr := backendAddress(t, ts)
	backend := registry.Register(addr.Host, addr.Port)
	backend.SetHealthy(false)

	newTestChecker(registry).checkBackend(backend)

	assert.True(t, backend.IsHealthy(), "a 200 probe revives a dead backend")
	_, ok := backend.LastCheck()
	assert.True(t, ok)
	assert.Greater(t, backend.AvgResponseTime(), 0.0, "probe round-trips count toward the window")
}

func TestCheckBackendNon200(t *testing.T) {
	t.Parallel()

	status := int32(http.StatusInternalServerError)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}))
	t.Cleanup(ts.Close)

	registry := NewRegistry()
	addr := backendAddress(t, ts)
	backend := registry.Register(addr.Host, addr.Port)
	checker := newTestChecker(registry)

	checker.checkBackend(backend)
	assert.False(t, backend.IsHealthy(), "non-200 marks the backend dead")

	// Only an exact 200 revives it.
	atomic.StoreInt32(&status, http.StatusNoContent)
	checker.checkBackend(backend)
	assert.False(t, backend.IsHealthy())

	atomic.StoreInt32(&status, http.StatusOK)
	checker.checkBackend(backend)
	assert.True(t, backend.IsHealthy())
}

func TestCheckBackendConnectionFailure(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := backendAddress(t, ts)
	ts.Close()

	registry := NewRegistry()
	backend := registry.Register(addr.Host, addr.Port)

	newTestChecker(registry).checkBackend(backend)
	assert.False(t, backend.IsHealthy())
	_, ok := backend.LastCheck()
	assert.True(t, ok, "failed probes still stamp the check time")
}

func TestCheckAllBackends(t *testing.T) {
	t.Parallel()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(up.Close)
	down := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	downAddr := backendAddress(t, down)
	down.Close()

	registry := NewRegistry()
	upAddr := backendAddress(t, up)
	registry.Register(upAddr.Host, upAddr.Port)
	registry.Register(downAddr.Host, downAddr.Port)

	newTestChecker(registry).checkAllBackends()

	assert.Equal(t, 1, registry.HealthyCount())
	assert.Equal(t, 2, registry.Len())
}

func TestHealthCheckerStartStop(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	registry := NewRegistry()
	addr := backendAddress(t, ts)
	backend := registry.Register(addr.Host, addr.Port)

	checker := newTestChecker(registry)
	checker.Start()
	defer checker.Stop()

	require.Eventually(t, func() bool {
		_, ok := backend.LastCheck()
		return ok
	}, time.Second, 5*time.Millisecond, "the loop must probe shortly after start")
}
