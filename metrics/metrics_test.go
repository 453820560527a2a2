package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/warp/payplan/metrics"
)

func TestMetrics_Record(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.RowGenerated("operator")
	m.RowGenerated("operator")
	m.RowPreserved()
	m.PayComputed("month")
	m.LedgerEntriesSkipped(3)
	m.LedgerEntriesSkipped(0)
	m.GenerationDone("ok", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PlanRowsGenerated.WithLabelValues("operator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanRowsPreserved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PayComputations.WithLabelValues("month")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LedgerSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanGenerations.WithLabelValues("ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RowGenerated("role")
		m.RowPreserved()
		m.PayComputed("week")
		m.LedgerEntriesSkipped(1)
		m.GenerationDone("error", time.Now())
	})
}
