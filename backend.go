package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// responseTimeWindow bounds how many recent samples feed the average.
const responseTimeWindow = 100

// Backend represents a single origin server and its runtime statistics.
type Backend struct {
	Host string
	Port int

	healthy       atomic.Bool
	connections   int64
	totalRequests int64
	totalErrors   int64

	mu            sync.Mutex
	responseTimes []time.Duration
	lastCheck     time.Time
}

// BackendKey renders the canonical host:port key for a backend.
func BackendKey(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// NewBackend creates a backend record. New backends are considered healthy
// until the first probe says otherwise.
func NewBackend(host string, port int) *Backend {
	b := &Backend{
		Host:          host,
		Port:          port,
		responseTimes: make([]time.Duration, 0, responseTimeWindow),
	}
	b.healthy.Store(true)
	return b
}

// Key returns the canonical host:port identity of this backend.
func (b *Backend) Key() string {
	return BackendKey(b.Host, b.Port)
}

// IsHealthy reports whether the last probe saw this backend alive.
func (b *Backend) IsHealthy() bool {
	return b.healthy.Load()
}

// SetHealthy flips the liveness flag.
func (b *Backend) SetHealthy(healthy bool) {
	b.healthy.Store(healthy)
}

// AddConnection increments the active connection counter.
func (b *Backend) AddConnection() {
	atomic.AddInt64(&b.connections, 1)
}

// RemoveConnection decrements the active connection counter.
func (b *Backend) RemoveConnection() {
	atomic.AddInt64(&b.connections, -1)
}

// GetConnections returns the number of in-flight requests.
func (b *Backend) GetConnections() int64 {
	return atomic.LoadInt64(&b.connections)
}

// AddRequest increments the total request counter.
func (b *Backend) AddRequest() {
	atomic.AddInt64(&b.totalRequests, 1)
}

// AddError increments the total error counter.
func (b *Backend) AddError() {
	atomic.AddInt64(&b.totalErrors, 1)
}

// GetRequestCount returns the total number of forwarded attempts.
func (b *Backend) GetRequestCount() int64 {
	return atomic.LoadInt64(&b.totalRequests)
}

// GetErrorCount returns the total number of upstream failures.
func (b *Backend) GetErrorCount() int64 {
	return atomic.LoadInt64(&b.totalErrors)
}

// ObserveResponseTime appends a sample to the response-time ring, evicting
// the oldest sample once the window is full. Both the forwarder and the
// health checker write here, so the append is serialized.
func (b *Backend) ObserveResponseTime(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.responseTimes) >= responseTimeWindow {
		b.responseTimes = b.responseTimes[1:]
	}
	b.responseTimes = append(b.responseTimes, d)
}

// AvgResponseTime returns the mean of the recent samples in seconds, or 0
// when no sample has been recorded yet.
func (b *Backend) AvgResponseTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.responseTimes) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range b.responseTimes {
		total += d
	}
	return total.Seconds() / float64(len(b.responseTimes))
}

// ErrorRate returns total_errors / total_requests, or 0 before any request.
func (b *Backend) ErrorRate() float64 {
	requests := b.GetRequestCount()
	if requests == 0 {
		return 0
	}
	return float64(b.GetErrorCount()) / float64(requests)
}

// MarkChecked records the timestamp of the latest health probe.
func (b *Backend) MarkChecked(at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastCheck = at
}

// LastCheck returns the time of the latest probe, or false if the backend
// has never been probed.
func (b *Backend) LastCheck() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCheck, !b.lastCheck.IsZero()
}
