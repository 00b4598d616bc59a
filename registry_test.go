package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := r.Register("localhost", 3001)
	second := r.Register("localhost", 3001)

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryInsertionOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("localhost", 3001)
	r.Register("localhost", 3002)
	r.Register("localhost", 3003)

	keys := make([]string, 0, 3)
	for _, b := range r.All() {
		keys = append(keys, b.Key())
	}
	assert.Equal(t, []string{"localhost:3001", "localhost:3002", "localhost:3003"}, keys)
}

func TestRegistryDeregister(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("localhost", 3001)
	r.Register("localhost", 3002)

	require.NoError(t, r.Deregister("localhost", 3002))
	assert.Equal(t, 1, r.Len())

	_, err := r.Lookup("localhost:3002")
	assert.ErrorIs(t, err, ErrBackendNotFound)
}

func TestRegistryDeregisterRoundTrip(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("localhost", 3001)
	before := make([]string, 0, 1)
	for _, b := range r.All() {
		before = append(before, b.Key())
	}

	r.Register("localhost", 3002)
	require.NoError(t, r.Deregister("localhost", 3002))

	after := make([]string, 0, 1)
	for _, b := range r.All() {
		after = append(after, b.Key())
	}
	assert.Equal(t, before, after)
}

func TestRegistryDeregisterLastBackend(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("localhost", 3001)

	err := r.Deregister("localhost", 3001)
	assert.ErrorIs(t, err, ErrLastBackend)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDeregisterUnknown(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("localhost", 3001)

	err := r.Deregister("localhost", 9999)
	assert.ErrorIs(t, err, ErrBackendNotFound)
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySnapshotExcludesUnhealthy(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("localhost", 3001)
	dead := r.Register("localhost", 3002)
	r.Register("localhost", 3003)
	dead.SetHealthy(false)

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "localhost:3001", snapshot[0].Key())
	assert.Equal(t, "localhost:3003", snapshot[1].Key())

	assert.LessOrEqual(t, r.HealthyCount(), r.Len())
	assert.Equal(t, 2, r.HealthyCount())
}
