package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/match"
	"github.com/radieske/agent-arena/internal/arena/metrics"
	"github.com/radieske/agent-arena/internal/arena/model"
	"github.com/radieske/agent-arena/internal/arena/store"
)

// DefaultEntryFee é a taxa cobrada do budget em partidas ranked
var DefaultEntryFee = decimal.NewFromInt(10)

// Arena é a parte do engine usada pela fila
type Arena interface {
	CreateMatch(ctx context.Context, a1, a2 model.Agent, opts match.Options) (model.Match, error)
	InLiveMatch(agentID string) bool
	RecordActivity(typ, agentID, matchID, msg string, data map[string]any)
}

type Entry struct {
	AgentID  string     `json:"agentId"`
	Mode     model.Mode `json:"mode"`
	JoinedAt time.Time  `json:"joinedAt"`
}

// JoinResult é devolvido ao agente que entrou na fila
type JoinResult struct {
	Position int             `json:"position"`
	Paired   bool            `json:"paired"`
	Opponent *model.AgentRef `json:"opponent,omitempty"`
	MatchID  string          `json:"matchId,omitempty"`
}

// Queue é a fila FIFO de pareamento. Um único lock cobre fila, cobrança da taxa e pareamento.
type Queue struct {
	log      *zap.Logger
	agents   store.AgentStore
	arena    Arena
	entryFee decimal.Decimal
	metrics  *metrics.Metrics
	now      func() time.Time

	mu      sync.Mutex
	entries []Entry
}

func NewQueue(log *zap.Logger, agents store.AgentStore, arena Arena, entryFee decimal.Decimal, m *metrics.Metrics) *Queue {
	if entryFee.IsNegative() {
		entryFee = DefaultEntryFee
	}
	return &Queue{log: log, agents: agents, arena: arena, entryFee: entryFee, metrics: m, now: time.Now}
}

// Enqueue coloca o agente na fila, cobra a taxa de entrada em ranked e tenta parear
func (q *Queue) Enqueue(ctx context.Context, agentID string, mode model.Mode) (JoinResult, error) {
	if mode == "" {
		mode = model.ModeRanked
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.arena.InLiveMatch(agentID) {
		// entrada velha de quem foi puxado para outra partida enquanto esperava
		q.removeLocked(agentID)
		return JoinResult{}, model.Conflict(model.ErrAlreadyInMatch, map[string]any{"agentId": agentID})
	}
	if pos := q.positionLocked(agentID); pos > 0 {
		return JoinResult{}, model.Conflict(model.ErrAlreadyQueued, map[string]any{"position": pos})
	}

	_, err := q.agents.UpdateAgent(ctx, agentID, func(a *model.Agent) error {
		// in_match sem partida ao vivo é o intervalo até o engine gravar o resultado
		if a.Status != model.AgentActive && a.Status != model.AgentInMatch {
			return model.Conflict(model.ErrAgentNotEligible, map[string]any{"status": a.Status})
		}
		if mode == model.ModeRanked && a.Budget != nil && q.entryFee.IsPositive() {
			if a.Budget.Remaining.LessThan(q.entryFee) {
				return model.Conflict(model.ErrInsufficientBudget, map[string]any{
					"remaining": a.Budget.Remaining.String(),
					"entryFee":  q.entryFee.String(),
				})
			}
			a.Budget.Spent = a.Budget.Spent.Add(q.entryFee)
			a.Budget.Remaining = a.Budget.Remaining.Sub(q.entryFee)
		}
		a.Status = model.AgentInQueue
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	q.entries = append(q.entries, Entry{AgentID: agentID, Mode: mode, JoinedAt: q.now()})
	res := JoinResult{Position: len(q.entries)}
	q.metrics.SetQueueDepth(len(q.entries))
	q.arena.RecordActivity(model.ActivityQueueJoined, agentID, "", fmt.Sprintf("%s joined the %s queue", agentID, mode), nil)
	q.log.Info("agent queued", zap.String("agent_id", agentID), zap.String("mode", string(mode)), zap.Int("position", res.Position))

	m, paired, err := q.pairLocked(ctx)
	if err != nil {
		q.log.Warn("pairing failed", zap.String("agent_id", agentID), zap.Error(err))
	}
	if paired {
		if side, ok := m.SideOf(agentID); ok {
			opp := m.Fighter(side.Other()).AgentRef
			return JoinResult{Position: 0, Paired: true, Opponent: &opp, MatchID: m.ID}, nil
		}
	}
	// entradas descartadas no pareamento mudam a posição
	res.Position = q.positionLocked(agentID)
	return res, nil
}

// TryPair pareia os dois agentes esperando há mais tempo
func (q *Queue) TryPair(ctx context.Context) (model.Match, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pairLocked(ctx)
}

// pairLocked pareia as duas entradas mais antigas. Entradas de agentes que
// já estão numa partida ao vivo ou que sumiram do store são descartadas,
// para que não travem a cabeça da fila.
func (q *Queue) pairLocked(ctx context.Context) (model.Match, bool, error) {
	q.dropLiveLocked()
	for len(q.entries) >= 2 {
		e1, e2 := q.entries[0], q.entries[1]
		a1, err := q.agents.GetAgent(ctx, e1.AgentID)
		if errors.Is(err, model.ErrAgentNotFound) {
			q.evictLocked(e1.AgentID, "agent not found")
			continue
		}
		if err != nil {
			return model.Match{}, false, fmt.Errorf("load %s: %w", e1.AgentID, err)
		}
		a2, err := q.agents.GetAgent(ctx, e2.AgentID)
		if errors.Is(err, model.ErrAgentNotFound) {
			q.evictLocked(e2.AgentID, "agent not found")
			continue
		}
		if err != nil {
			return model.Match{}, false, fmt.Errorf("load %s: %w", e2.AgentID, err)
		}

		m, err := q.arena.CreateMatch(ctx, a1, a2, match.Options{Mode: e1.Mode})
		if errors.Is(err, model.ErrAlreadyInMatch) {
			busy, _ := model.StateOf(err)["agentId"].(string)
			if q.evictLocked(busy, "already in a live match") {
				continue
			}
		}
		if err != nil {
			return model.Match{}, false, err
		}
		q.entries = append(q.entries[:0:0], q.entries[2:]...)
		q.metrics.SetQueueDepth(len(q.entries))
		return m, true, nil
	}
	return model.Match{}, false, nil
}

// dropLiveLocked descarta entradas de agentes puxados para outra partida (ex.: torneio)
func (q *Queue) dropLiveLocked() {
	kept := q.entries[:0:0]
	for _, e := range q.entries {
		if q.arena.InLiveMatch(e.AgentID) {
			q.log.Warn("dropping queue entry", zap.String("agent_id", e.AgentID), zap.String("reason", "already in a live match"))
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) != len(q.entries) {
		q.entries = kept
		q.metrics.SetQueueDepth(len(q.entries))
	}
}

func (q *Queue) evictLocked(agentID, reason string) bool {
	if !q.removeLocked(agentID) {
		return false
	}
	q.log.Warn("dropping queue entry", zap.String("agent_id", agentID), zap.String("reason", reason))
	return true
}

func (q *Queue) removeLocked(agentID string) bool {
	pos := q.positionLocked(agentID)
	if pos == 0 {
		return false
	}
	q.entries = append(q.entries[:pos-1:pos-1], q.entries[pos:]...)
	q.metrics.SetQueueDepth(len(q.entries))
	return true
}

// Dequeue tira o agente da fila e devolve o status para active. A taxa não é devolvida.
func (q *Queue) Dequeue(ctx context.Context, agentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.removeLocked(agentID) {
		return nil
	}

	_, err := q.agents.UpdateAgent(ctx, agentID, func(a *model.Agent) error {
		if a.Status == model.AgentInQueue {
			a.Status = model.AgentActive
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("restore agent %s: %w", agentID, err)
	}
	return nil
}

// Position devolve a posição 1-based na fila, ou 0 se o agente não está nela
func (q *Queue) Position(agentID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.positionLocked(agentID)
}

func (q *Queue) positionLocked(agentID string) int {
	for i, e := range q.entries {
		if e.AgentID == agentID {
			return i + 1
		}
	}
	return 0
}

func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.entries...)
}
