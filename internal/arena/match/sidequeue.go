package match

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/metrics"
)

const sideEffectTimeout = 5 * time.Second

type sideEffect struct {
	stage   string
	fn      func(ctx context.Context) error
	barrier chan struct{}
}

// sideQueue executa efeitos em ordem de chegada numa única goroutine.
// push nunca bloqueia. Com limit > 0 o efeito que não cabe é descartado e contado;
// com limit 0 a fila cresce sem limite e nada é descartado antes do close.
type sideQueue struct {
	name    string
	limit   int
	log     *zap.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	cond   *sync.Cond
	items  []sideEffect
	closed bool
	done   chan struct{}
}

func newSideQueue(name string, limit int, log *zap.Logger, m *metrics.Metrics) *sideQueue {
	q := &sideQueue{
		name:    name,
		limit:   limit,
		log:     log,
		metrics: m,
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// push devolve false quando o efeito foi descartado
func (q *sideQueue) push(stage string, fn func(ctx context.Context) error) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.log.Warn("side effect after shutdown", zap.String("queue", q.name), zap.String("stage", stage))
		q.metrics.SideEffectError(stage + "_dropped")
		return false
	}
	if q.limit > 0 && len(q.items) >= q.limit {
		q.mu.Unlock()
		q.log.Warn("side effect queue full", zap.String("queue", q.name), zap.String("stage", stage))
		q.metrics.SideEffectError(stage + "_dropped")
		return false
	}
	q.items = append(q.items, sideEffect{stage: stage, fn: fn})
	q.cond.Signal()
	q.mu.Unlock()
	return true
}

// flush espera todos os efeitos enfileirados até aqui; a barreira ignora o limite
func (q *sideQueue) flush() {
	b := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.items = append(q.items, sideEffect{barrier: b})
	q.cond.Signal()
	q.mu.Unlock()
	<-b
}

// close recusa novos efeitos e espera os pendentes terminarem
func (q *sideQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

func (q *sideQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *sideQueue) next() (sideEffect, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return sideEffect{}, false
	}
	ef := q.items[0]
	q.items[0] = sideEffect{}
	q.items = q.items[1:]
	return ef, true
}

func (q *sideQueue) run() {
	defer close(q.done)
	for {
		ef, ok := q.next()
		if !ok {
			return
		}
		if ef.barrier != nil {
			close(ef.barrier)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		if err := ef.fn(ctx); err != nil {
			q.log.Warn("side effect failed",
				zap.String("queue", q.name),
				zap.String("stage", ef.stage),
				zap.Error(err),
			)
			q.metrics.SideEffectError(ef.stage)
		}
		cancel()
	}
}
