package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Output.IsCompressionEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"zero batch", func(c *EngineConfig) { c.Performance.BatchSize = 0 }},
		{"negative chunk", func(c *EngineConfig) { c.Performance.ChunkSize = -1 }},
		{"zero arena", func(c *EngineConfig) { c.Performance.ArenaBlockSize = 0 }},
		{"unknown compression", func(c *EngineConfig) { c.Output.Compression = "bzip2" }},
		{"level out of range", func(c *EngineConfig) { c.Output.CompressionLevel = 11 }},
		{"log level", func(c *EngineConfig) { c.Observability.LogLevel = "verbose" }},
		{"log encoding", func(c *EngineConfig) { c.Observability.LogEncoding = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestOutputAlgorithm(t *testing.T) {
	out := OutputConfig{Compression: "ZSTD"}
	a, err := out.Algorithm()
	require.NoError(t, err)
	assert.Equal(t, compression.Zstd, a)
	assert.True(t, out.IsCompressionEnabled())

	out.Compression = ""
	assert.False(t, out.IsCompressionEnabled())
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("STRATA_TEST_A", "alpha")
	t.Setenv("STRATA_TEST_EMPTY", "")

	assert.Equal(t, "x: alpha", substituteEnvVars("x: ${STRATA_TEST_A}"))
	assert.Equal(t, "x: beta", substituteEnvVars("x: ${STRATA_TEST_EMPTY:-beta}"))
	assert.Equal(t, "x: ", substituteEnvVars("x: ${STRATA_TEST_UNSET_VAR}"))
	assert.Equal(t, "alpha-alpha", substituteEnvVars("${STRATA_TEST_A}-${STRATA_TEST_A}"))
	assert.Equal(t, "x: ${open", substituteEnvVars("x: ${open"))
}

func TestLoadEngine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strata.yaml")
	t.Setenv("STRATA_TEST_ADDR", ":9100")
	require.NoError(t, os.WriteFile(path, []byte(`
performance:
  chunk_size: 4096
output:
  compression: gzip
  compression_level: 9
observability:
  metrics_addr: ${STRATA_TEST_ADDR}
  tracing: true
`), 0600))

	cfg, err := LoadEngine(path)
	require.NoError(t, err)
	assert.Equal(t, "strata", cfg.Name)
	assert.Equal(t, 1024, cfg.Performance.BatchSize)
	assert.Equal(t, 4096, cfg.Performance.ChunkSize)
	assert.Equal(t, "gzip", cfg.Output.Compression)
	assert.Equal(t, 9, cfg.Output.CompressionLevel)
	assert.Equal(t, ":9100", cfg.Observability.MetricsAddr)
	assert.True(t, cfg.Observability.Tracing)

	defaults, err := LoadEngine("")
	require.NoError(t, err)
	assert.Equal(t, Default(), defaults)
}

func TestLoadEngineErrors(t *testing.T) {
	_, err := LoadEngine(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("performance: [1, 2"), 0600))
	_, err = LoadEngine(bad)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("performance:\n  batch_size: -5\n"), 0600))
	_, err = LoadEngine(invalid)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Name = "saved"
	cfg.Output.Compression = "lz4"
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadEngine(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
