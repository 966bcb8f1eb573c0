package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordValidation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordValidation("dag", 3, 2, time.Millisecond)
	c.RecordValidation("dag", 1, 0, time.Millisecond)
	c.RecordValidation("rejected", 0, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.validations.WithLabelValues("dag")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.validations.WithLabelValues("rejected")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.pipelineNodes))
}

func TestRecordMutation(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordMutation("connect", nil)
	c.RecordMutation("connect", errors.New("boom"))
	c.RecordMutation("connect", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.mutations.WithLabelValues("connect", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.mutations.WithLabelValues("connect", "error")))
}

func TestGauges(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.SetActiveSessions(4)
	c.SetQueueDepth(7)
	c.RecordWorkerPoolStatus(1, 2, 3)

	assert.Equal(t, 4.0, testutil.ToFloat64(c.activeSessions))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workerPoolIdle))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.workerPoolBusy))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.workerPoolStopped))
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector(prometheus.NewRegistry())
		NewCollector(prometheus.NewRegistry())
	})
}
