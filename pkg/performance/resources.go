// Package performance samples process and host resource usage for run
// summaries and the peak-memory gauge.
package performance

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/errors"
)

// ResourceMonitor tracks resource usage of the current process since it
// was created. Safe for concurrent use.
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time

	mu      sync.Mutex
	peakRSS uint64
}

// NewResourceMonitor creates a monitor for this process.
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to inspect process")
	}
	rm := &ResourceMonitor{process: proc, startTime: time.Now()}
	if cpuTime, err := proc.Times(); err == nil {
		rm.startCPUTime = cpuTime.Total()
	}
	return rm, nil
}

// ResourceUsage is one sample.
type ResourceUsage struct {
	CPUPercent            float64
	MemoryRSS             uint64
	PeakRSS               uint64
	MemoryVMS             uint64
	SystemMemoryPercent   float64
	SystemMemoryAvailable uint64
	GoroutineCount        int
	ThreadCount           int32
}

// Sample reads current usage. Fields the platform cannot report stay zero.
func (rm *ResourceMonitor) Sample() ResourceUsage {
	var usage ResourceUsage

	if cpuTime, err := rm.process.Times(); err == nil {
		if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = ((cpuTime.Total() - rm.startCPUTime) / elapsed) * 100
		}
	}

	if memInfo, err := rm.process.MemoryInfo(); err == nil {
		usage.MemoryRSS = memInfo.RSS
		usage.MemoryVMS = memInfo.VMS
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}

	usage.GoroutineCount = runtime.NumGoroutine()
	usage.ThreadCount, _ = rm.process.NumThreads()

	rm.mu.Lock()
	if usage.MemoryRSS > rm.peakRSS {
		rm.peakRSS = usage.MemoryRSS
	}
	usage.PeakRSS = rm.peakRSS
	rm.mu.Unlock()

	return usage
}

// Fields renders a sample as log fields.
func (u ResourceUsage) Fields() []zap.Field {
	return []zap.Field{
		zap.Float64("cpu_percent", u.CPUPercent),
		zap.Uint64("rss_bytes", u.MemoryRSS),
		zap.Uint64("peak_rss_bytes", u.PeakRSS),
		zap.Int("goroutines", u.GoroutineCount),
		zap.Int32("threads", u.ThreadCount),
	}
}
