package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "catalog.json")
	err := os.WriteFile(file, []byte(`{
		"store": {"backend": "bolt", "path": "/tmp/db", "options": {"nosync": true}},
		"catalog": {"partition_selection": "balanced", "graph_roots": false},
		"migration": {"batch_size": 10, "timeout": "1m"}
	}`), 0644)
	require.NoError(t, err)

	c, err := Load(file)
	require.NoError(t, err)
	require.Equal(t, "bolt", c.Store.Backend)
	require.Equal(t, true, c.Store.Options["nosync"])
	require.Equal(t, "balanced", c.Catalog.PartitionSelection)
	require.False(t, c.Catalog.GraphRoots)
	require.Equal(t, 10, c.Migration.BatchSize)
	require.Equal(t, time.Minute, c.Migration.Timeout)
	// defaults survive for keys absent from the file
	require.Equal(t, "%Y-%m-%d", c.Catalog.DateFormat)
	require.Equal(t, 3, c.Catalog.CreateRetries)

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestDuration(t *testing.T) {
	for _, c := range []struct {
		in  string
		out time.Duration
	}{
		{`"30s"`, 30 * time.Second},
		{`30`, 30 * time.Second},
		{`1.5`, 1500 * time.Millisecond},
		{`null`, 0},
	} {
		var d duration
		require.NoError(t, json.Unmarshal([]byte(c.in), &d), c.in)
		require.Equal(t, c.out, time.Duration(d), c.in)
	}
	data, err := json.Marshal(Migration{Timeout: 2 * time.Second})
	require.NoError(t, err)
	require.JSONEq(t, `{"batch_size":0,"parallelism":0,"timeout":"2s"}`, string(data))
}
