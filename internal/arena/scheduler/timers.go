package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Timers mantém um job por partida disparando a cada intervalo
type Timers struct {
	log      *zap.Logger
	sched    gocron.Scheduler
	interval time.Duration

	mu   sync.Mutex
	jobs map[string]uuid.UUID
}

func New(log *zap.Logger, interval time.Duration) (*Timers, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	if interval <= 0 {
		interval = time.Second
	}
	s.Start()
	return &Timers{log: log, sched: s, interval: interval, jobs: make(map[string]uuid.UUID)}, nil
}

// Start agenda tick para a partida. Chamar de novo para a mesma partida é no-op.
func (t *Timers) Start(matchID string, tick func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[matchID]; ok {
		return nil
	}
	j, err := t.sched.NewJob(
		gocron.DurationJob(t.interval),
		gocron.NewTask(tick),
		gocron.WithName("match-"+matchID),
		// tick atrasado não acumula
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule match %s: %w", matchID, err)
	}
	t.jobs[matchID] = j.ID()
	return nil
}

// Stop remove o job da partida; idempotente
func (t *Timers) Stop(matchID string) {
	t.mu.Lock()
	id, ok := t.jobs[matchID]
	delete(t.jobs, matchID)
	t.mu.Unlock()
	if !ok {
		return
	}
	if err := t.sched.RemoveJob(id); err != nil {
		t.log.Warn("remove match timer failed", zap.String("match_id", matchID), zap.Error(err))
	}
}

func (t *Timers) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

func (t *Timers) Shutdown() error {
	return t.sched.Shutdown()
}
