package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempServers(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadServers(t *testing.T) {
	t.Parallel()

	path := writeTempServers(t, `[{"host":"localhost","port":3001},{"host":"localhost","port":3002}]`)
	servers, err := LoadServers(path)
	require.NoError(t, err)
	assert.Equal(t, []ServerAddress{
		{Host: "localhost", Port: 3001},
		{Host: "localhost", Port: 3002},
	}, servers)
}

func TestLoadServersCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	path := writeTempServers(t,
		`[{"host":"localhost","port":3001},{"host":"localhost","port":3001},{"host":"localhost","port":3002}]`)
	servers, err := LoadServers(path)
	require.NoError(t, err)
	require.Len(t, servers, 2)
}

func TestLoadServersErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"empty pool", `[]`},
		{"malformed json", `{"host":`},
		{"missing host", `[{"port":3001}]`},
		{"bad port", `[{"host":"localhost","port":-1}]`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadServers(writeTempServers(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadServersMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadServers(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := DefaultConfig()
	require.NoError(t, valid.Validate())

	badPort := DefaultConfig()
	badPort.Port = 0
	require.Error(t, badPort.Validate())

	badAlgorithm := DefaultConfig()
	badAlgorithm.Algorithm = "random"
	require.Error(t, badAlgorithm.Validate())

	badTTL := DefaultConfig()
	badTTL.Session.TTL = 0
	require.Error(t, badTTL.Validate())
}
