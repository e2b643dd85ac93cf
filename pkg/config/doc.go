// Package config provides engine-wide configuration for strata runs.
//
// A plan says what a pipeline does; EngineConfig says how a run behaves:
// default batch sizes, read chunk size, output compression and the
// observability switches.
//
// # Usage
//
//	cfg, err := config.LoadEngine("strata.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variable Substitution
//
// Any ${VAR} in the file is replaced before parsing; ${VAR:-default}
// supplies a fallback:
//
//	# strata.yaml
//	name: nightly
//	performance:
//	  batch_size: ${STRATA_BATCH:-4096}
//	output:
//	  compression: zstd
//	observability:
//	  metrics_addr: ${METRICS_ADDR}
//
// The CLI layers flags and STRATA_* environment variables on top of the
// file through viper.
package config
