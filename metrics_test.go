package vidtask

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecordRequest(t *testing.T) {
	collector := NewCollector("test", prometheus.NewRegistry())

	collector.RecordRequest("sora", "submit", 200, 120*time.Millisecond)
	collector.RecordRequest("sora", "query", 502, 80*time.Millisecond)
	collector.RecordRequest("sora", "query", 0, time.Second) // no response at all

	assert.Equal(t, 3, testutil.CollectAndCount(collector.requestsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		collector.requestsTotal.WithLabelValues("sora", "submit", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		collector.requestsTotal.WithLabelValues("sora", "query", "0")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.requestDuration))
}

func TestCollectorRecordPollAndTask(t *testing.T) {
	collector := NewCollector("test", prometheus.NewRegistry())

	collector.RecordPoll("sora", "terminal", 4)
	collector.RecordTask("sora", "succeeded")
	collector.RecordTask("sora", "failed")

	assert.Equal(t, 1, testutil.CollectAndCount(collector.pollAttempts))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		collector.tasksTotal.WithLabelValues("sora", "succeeded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		collector.tasksTotal.WithLabelValues("sora", "failed")))
}

func TestCollectorNilIsSafe(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordRequest("sora", "submit", 200, time.Second)
		collector.RecordPoll("sora", "terminal", 1)
		collector.RecordTask("sora", "succeeded")
	})
}
