package main

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/ajitpratap0/strata/pkg/errors"
)

// startProfiling starts a CPU profile when cpuFile is set and returns a stop
// function that ends it and writes a heap profile when memFile is set.
func startProfiling(cpuFile, memFile string) (func() error, error) {
	var cpu *os.File
	if cpuFile != "" {
		f, err := os.Create(cpuFile) //nolint:gosec // G304: path comes from the command line
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create CPU profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to start CPU profile")
		}
		cpu = f
	}

	return func() error {
		if cpu != nil {
			pprof.StopCPUProfile()
			if err := cpu.Close(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to close CPU profile")
			}
		}
		if memFile == "" {
			return nil
		}
		f, err := os.Create(memFile) //nolint:gosec // G304: path comes from the command line
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create memory profile")
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write memory profile")
		}
		return nil
	}, nil
}
