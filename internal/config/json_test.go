package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"password":         "pw",
		"target":           "postgres://u:p@db/idx",
		"directories":      []string{"/a", "/b"},
		"join_splits":      true,
		"s3_base_endpoint": "http://localhost:9000",
	})

	t.Run("loads from -config", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-config", path}))

		assert.Equal(t, "pw", cfg.Password)
		assert.Equal(t, "postgres://u:p@db/idx", cfg.Target)
		assert.Equal(t, []string{"/a", "/b"}, cfg.Directories)
		assert.True(t, cfg.JoinSplits)
		assert.Equal(t, "http://localhost:9000", cfg.S3BaseEndpoint)
		// keys absent from the file keep their defaults
		assert.Equal(t, "v3", cfg.Dialect)
		assert.True(t, cfg.Clean)
	})

	t.Run("no -c leaves config unchanged", func(t *testing.T) {
		cfg := &Config{Target: "keep"}
		require.NoError(t, parseJSON(cfg, []string{"-o", "x"}))
		assert.Equal(t, "keep", cfg.Target)
	})

	t.Run("missing file", func(t *testing.T) {
		err := parseJSON(&Config{}, []string{"-c", filepath.Join(t.TempDir(), "nope.json")})
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		require.Error(t, parseJSON(&Config{}, []string{"-c", bad}))
	})
}
