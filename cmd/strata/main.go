// Command strata runs streaming columnar transform plans over stdin/stdout
// or files.
package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/logger"
)

var version = "0.1.0"

// Exit codes by error type.
const (
	exitFailure = 1
	exitConfig  = 2
	exitFile    = 3
	exitData    = 4
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeConfig, errors.ErrorTypeValidation:
		return exitConfig
	case errors.ErrorTypeFile, errors.ErrorTypeNotFound:
		return exitFile
	case errors.ErrorTypeData:
		return exitData
	}
	return exitFailure
}

// newRootCmd builds the command tree. Each call gets its own viper instance
// so tests can execute it repeatedly.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("strata")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "strata",
		Short: "Strata - streaming columnar transform engine",
		Long: `Strata decodes a byte stream into columnar batches, runs them through a
chain of transform steps described by a plan, and encodes the result.

Settings come from --config, then STRATA_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogger(v)
		},
	}

	root.PersistentFlags().String("config", "", "Path to engine configuration YAML")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-encoding", "", "Log encoding (json, console)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("observability.log_level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("observability.log_encoding", root.PersistentFlags().Lookup("log-encoding"))

	root.AddCommand(
		newVersionCmd(),
		newOpsCmd(),
		newRecipesCmd(),
		newValidateCmd(v),
		newRunCmd(v),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Strata v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig reads the engine config file and layers environment variables
// and explicitly set flags on top.
func loadConfig(v *viper.Viper) (*config.EngineConfig, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}

	if v.IsSet("name") {
		cfg.Name = v.GetString("name")
	}
	if v.IsSet("performance.batch_size") {
		cfg.Performance.BatchSize = v.GetInt("performance.batch_size")
	}
	if v.IsSet("performance.chunk_size") {
		cfg.Performance.ChunkSize = v.GetInt("performance.chunk_size")
	}
	if v.IsSet("performance.arena_block_size") {
		cfg.Performance.ArenaBlockSize = v.GetInt("performance.arena_block_size")
	}
	if v.IsSet("output.compression") {
		cfg.Output.Compression = v.GetString("output.compression")
	}
	if v.IsSet("output.compression_level") {
		cfg.Output.CompressionLevel = v.GetInt("output.compression_level")
	}
	if v.IsSet("observability.log_level") {
		cfg.Observability.LogLevel = v.GetString("observability.log_level")
	}
	if v.IsSet("observability.log_encoding") {
		cfg.Observability.LogEncoding = v.GetString("observability.log_encoding")
	}
	if v.IsSet("observability.metrics_addr") {
		cfg.Observability.MetricsAddr = v.GetString("observability.metrics_addr")
	}
	if v.IsSet("observability.tracing") {
		cfg.Observability.Tracing = v.GetBool("observability.tracing")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(v *viper.Viper) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialise logger")
	}
	return nil
}
