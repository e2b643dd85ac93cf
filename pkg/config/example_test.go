package config_test

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/strata/pkg/config"
)

// ExampleDefault shows the defaults every run starts from.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Batch Size: %d\n", cfg.Performance.BatchSize)
	fmt.Printf("Chunk Size: %d\n", cfg.Performance.ChunkSize)
	fmt.Printf("Compression: %s\n", cfg.Output.Compression)
	fmt.Printf("Log Level: %s\n", cfg.Observability.LogLevel)

	// Output:
	// Batch Size: 1024
	// Chunk Size: 65536
	// Compression: none
	// Log Level: info
}

// ExampleEngineConfig_Validate demonstrates validation failures.
func ExampleEngineConfig_Validate() {
	cfg := config.Default()
	cfg.Output.Compression = "rar"

	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid:", err)
	}

	// Output:
	// invalid: config: unsupported compression algorithm: rar
}

// ExampleLoadEngine loads a file with environment substitution.
func ExampleLoadEngine() {
	dir, _ := os.MkdirTemp("", "strata-config")
	defer os.RemoveAll(dir)

	os.Setenv("EXAMPLE_COMPRESSION", "zstd")
	defer os.Unsetenv("EXAMPLE_COMPRESSION")

	path := filepath.Join(dir, "strata.yaml")
	_ = os.WriteFile(path, []byte(`
name: nightly
performance:
  batch_size: ${EXAMPLE_BATCH:-4096}
output:
  compression: ${EXAMPLE_COMPRESSION}
`), 0600)

	cfg, err := config.LoadEngine(path)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("Name: %s\n", cfg.Name)
	fmt.Printf("Batch Size: %d\n", cfg.Performance.BatchSize)
	fmt.Printf("Compressed: %v\n", cfg.Output.IsCompressionEnabled())

	// Output:
	// Name: nightly
	// Batch Size: 4096
	// Compressed: true
}
