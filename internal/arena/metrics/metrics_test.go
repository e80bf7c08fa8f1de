package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.MatchStarted()
	m.MatchStarted()
	m.MatchCompleted("ko")
	m.Action("hit")
	m.BetRejected("duplicate")
	m.SetQueueDepth(3)
	m.AddUnallocated(0.000001)
	m.AddUnallocated(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MatchesStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveMatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchesCompleted.WithLabelValues("ko")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Actions.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BetsRejected.WithLabelValues("duplicate")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueDepth))
	assert.InDelta(t, 0.000001, testutil.ToFloat64(m.Unallocated), 1e-12)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MatchStarted()
		m.MatchCompleted("decision")
		m.SettlementFailed()
		m.SideEffectError("history")
	})
}
