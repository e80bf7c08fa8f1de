package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/metrics"
)

// blockHead ocupa a goroutine da fila até release ser fechado
func blockHead(t *testing.T, q *sideQueue) (release chan struct{}) {
	t.Helper()
	started := make(chan struct{})
	release = make(chan struct{})
	require.True(t, q.push("block", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	return release
}

func TestSideQueue_BoundedDropsWhenFull(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	q := newSideQueue("outbox", 2, zap.NewNop(), m)
	release := blockHead(t, q)

	var ran int
	inc := func(context.Context) error { ran++; return nil }
	assert.True(t, q.push("publish", inc))
	assert.True(t, q.push("publish", inc))
	assert.False(t, q.push("publish", inc), "terceiro não cabe")
	assert.Equal(t, 2, q.pending())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SideEffectErrors.WithLabelValues("publish_dropped")))

	close(release)
	q.flush()
	assert.Equal(t, 2, ran)
	q.close()
}

func TestSideQueue_UnboundedNeverDrops(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	q := newSideQueue("effects", 0, zap.NewNop(), m)
	release := blockHead(t, q)

	const n = 10000
	var ran int
	for i := 0; i < n; i++ {
		require.True(t, q.push("resolve_bets", func(context.Context) error { ran++; return nil }))
	}
	assert.Equal(t, n, q.pending())

	close(release)
	q.flush()
	assert.Equal(t, n, ran)
	assert.Zero(t, testutil.ToFloat64(m.SideEffectErrors.WithLabelValues("resolve_bets_dropped")))
	q.close()
}

func TestSideQueue_RunsInOrderAndCountsFailures(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	q := newSideQueue("effects", 0, zap.NewNop(), m)

	var mu sync.Mutex
	var order []string
	step := func(name string, err error) func(context.Context) error {
		return func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return err
		}
	}
	q.push("history", step("history", nil))
	q.push("stats", step("stats", errors.New("store down")))
	q.push("save_match", step("save_match", nil))
	q.flush()

	assert.Equal(t, []string{"history", "stats", "save_match"}, order)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SideEffectErrors.WithLabelValues("stats")))
	q.close()
}

func TestSideQueue_CloseDrainsThenRejects(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	q := newSideQueue("effects", 0, zap.NewNop(), m)
	release := blockHead(t, q)

	var ran int
	for i := 0; i < 5; i++ {
		q.push("stats", func(context.Context) error { ran++; return nil })
	}

	closed := make(chan struct{})
	go func() {
		q.close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("close returned with pending effects")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-closed
	assert.Equal(t, 5, ran)

	assert.False(t, q.push("stats", func(context.Context) error { ran++; return nil }))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SideEffectErrors.WithLabelValues("stats_dropped")))
	assert.NotPanics(t, q.flush, "flush depois do close não trava")
	assert.Equal(t, 5, ran)
}
