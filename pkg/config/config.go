package config

import (
	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// EngineConfig holds the settings that apply to a whole run, as opposed to
// the per-op arguments in a plan.
type EngineConfig struct {
	// Name labels the run in logs and metrics when the plan has no name
	Name string `yaml:"name" json:"name"`

	// Performance settings control batch and read sizes
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Output controls how encoded bytes are written
	Output OutputConfig `yaml:"output" json:"output"`

	// Observability settings for logging, metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// PerformanceConfig contains throughput and memory settings.
type PerformanceConfig struct {
	// BatchSize is the default number of rows a decoder accumulates
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// ChunkSize is the number of input bytes pushed per read
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// ArenaBlockSize sets the string arena block size of each batch
	ArenaBlockSize int `yaml:"arena_block_size" json:"arena_block_size"`
}

// OutputConfig contains output encoding settings.
type OutputConfig struct {
	// Compression names the algorithm wrapping the main output
	Compression string `yaml:"compression" json:"compression"`
	// CompressionLevel ranges from 1 (fastest) to 9 (best); 0 is the default
	CompressionLevel int `yaml:"compression_level" json:"compression_level"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level"`
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// MetricsAddr is the listen address for /metrics; empty disables it
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	Tracing     bool   `yaml:"tracing" json:"tracing"`
}

// Default returns a configuration with every default filled in.
func Default() *EngineConfig {
	return &EngineConfig{
		Name: "strata",
		Performance: PerformanceConfig{
			BatchSize:      1024,
			ChunkSize:      64 * 1024,
			ArenaBlockSize: 64 * 1024,
		},
		Output: OutputConfig{
			Compression: string(compression.None),
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogEncoding: "json",
		},
	}
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration for consistency.
func (c *EngineConfig) Validate() error {
	if c.Performance.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "performance.batch_size must be positive")
	}
	if c.Performance.ChunkSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "performance.chunk_size must be positive")
	}
	if c.Performance.ArenaBlockSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "performance.arena_block_size must be positive")
	}
	if _, err := c.Output.Algorithm(); err != nil {
		return err
	}
	if !compression.ValidLevel(compression.Level(c.Output.CompressionLevel)) {
		return errors.Newf(errors.ErrorTypeConfig, "output.compression_level must be within 1..9, got %d", c.Output.CompressionLevel)
	}
	if !logLevels[c.Observability.LogLevel] {
		return errors.Newf(errors.ErrorTypeConfig, "unknown observability.log_level %q", c.Observability.LogLevel)
	}
	switch c.Observability.LogEncoding {
	case "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown observability.log_encoding %q", c.Observability.LogEncoding)
	}
	return nil
}

// Algorithm resolves the configured compression name.
func (o *OutputConfig) Algorithm() (compression.Algorithm, error) {
	return compression.ParseAlgorithm(o.Compression)
}

// IsCompressionEnabled reports whether output is wrapped in a compressor.
func (o *OutputConfig) IsCompressionEnabled() bool {
	a, err := o.Algorithm()
	return err == nil && a != compression.None
}
