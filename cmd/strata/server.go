package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/performance"
)

// serveMetrics exposes /metrics until ctx is done. A listen failure is
// returned so the run fails fast instead of running unobserved.
func serveMetrics(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to listen on "+addr)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	log.Info("metrics server started", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-done:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, errors.ErrorTypeInternal, "metrics server failed")
		}
		return nil
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("metrics server shutdown failed", zap.Error(err))
	}
	return nil
}

// monitor publishes the tracker's rate and samples resource usage every
// interval until ctx is done. A nil ResourceMonitor skips sampling.
func monitor(ctx context.Context, t *metrics.ThroughputTracker, rm *performance.ResourceMonitor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.GetAndReset()
			return
		case <-ticker.C:
			t.GetAndReset()
			if rm != nil {
				rm.Sample()
			}
		}
	}
}
