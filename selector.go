package main

import (
	"fmt"
	"sync/atomic"
)

// Algorithm names a backend selection strategy.
type Algorithm string

const (
	// RoundRobin cycles through the healthy pool in insertion order.
	RoundRobin Algorithm = "round_robin"
	// LeastConnections picks the healthy backend with the fewest in-flight
	// requests, breaking ties by insertion order.
	LeastConnections Algorithm = "least_connections"
)

// ParseAlgorithm validates an algorithm name from configuration.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case RoundRobin, LeastConnections:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("unknown balancing algorithm: %q", s)
	}
}

// Selector chooses the next backend from a healthy snapshot.
type Selector struct {
	algorithm Algorithm
	cursor    uint64
}

// NewSelector creates a selector for the given algorithm.
func NewSelector(algorithm Algorithm) *Selector {
	return &Selector{algorithm: algorithm}
}

// Algorithm returns the configured strategy name.
func (s *Selector) Algorithm() Algorithm {
	return s.algorithm
}

// Pick selects one backend from the snapshot, or nil when it is empty.
func (s *Selector) Pick(backends []*Backend) *Backend {
	if len(backends) == 0 {
		return nil
	}

	switch s.algorithm {
	case LeastConnections:
		return s.pickLeastConnections(backends)
	default:
		return s.pickRoundRobin(backends)
	}
}

// pickRoundRobin advances a shared cursor over the snapshot. The cursor is
// taken modulo the current length, so membership changes may skip or repeat
// one backend before the rotation settles again.
func (s *Selector) pickRoundRobin(backends []*Backend) *Backend {
	index := atomic.AddUint64(&s.cursor, 1) - 1
	return backends[index%uint64(len(backends))]
}

func (s *Selector) pickLeastConnections(backends []*Backend) *Backend {
	selected := backends[0]
	minConnections := selected.GetConnections()

	for _, backend := range backends[1:] {
		if connections := backend.GetConnections(); connections < minConnections {
			minConnections = connections
			selected = backend
		}
	}
	return selected
}
