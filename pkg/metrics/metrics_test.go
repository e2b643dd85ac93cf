package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test_counters")

	c.AddRows(DirectionIn, 10)
	c.AddRows(DirectionOut, 4)
	c.AddRows(DirectionOut, 0)
	c.AddBytes(DirectionIn, 128)
	c.SideRecord("stats")
	c.ObserveStep("filter", time.Millisecond)

	assert.Equal(t, 10.0, testutil.ToFloat64(RowsProcessed.WithLabelValues("test_counters", "in")))
	assert.Equal(t, 4.0, testutil.ToFloat64(RowsProcessed.WithLabelValues("test_counters", "out")))
	assert.Equal(t, 128.0, testutil.ToFloat64(BytesProcessed.WithLabelValues("test_counters", "in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SideRecords.WithLabelValues("test_counters", "stats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(BatchesProcessed.WithLabelValues("test_counters", "filter")))
}

func TestThroughputTracker(t *testing.T) {
	tr := NewThroughputTracker("test_throughput")
	tr.Increment(100)
	time.Sleep(5 * time.Millisecond)

	rps := tr.GetAndReset()
	assert.Greater(t, rps, 0.0)
	assert.Equal(t, rps, testutil.ToFloat64(Throughput.WithLabelValues("test_throughput")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("op")
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
	assert.Equal(t, "op", timer.Name())
}
