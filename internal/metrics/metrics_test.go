package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Iteration(100, time.Millisecond)
	m.Iteration(50, time.Millisecond)
	m.Match()
	m.Warning(3)
	m.Warning(0)
	m.ResultOverflow()
	m.LaneFault(2)

	assert.Equal(t, 150.0, testutil.ToFloat64(m.KeysProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Iterations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Matches))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Warnings))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResultOverflows))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LaneFaults))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 7)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Iteration(1, time.Second)
	m.Match()
	m.Warning(1)
	m.ResultOverflow()
	m.LaneFault(1)
}
