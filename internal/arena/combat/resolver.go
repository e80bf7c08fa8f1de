package combat

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/radieske/agent-arena/internal/arena/model"
)

const (
	OutcomeHit      = "hit"
	OutcomeBlocked  = "blocked"
	OutcomeDodged   = "dodged"
	OutcomeMissed   = "missed"
	OutcomeLanded   = "landed"
	OutcomeExecuted = "executed"
)

const (
	DefendWindow  = 2000 * time.Millisecond
	DodgeWindow   = 1000 * time.Millisecond
	BlockFactor   = 0.3
	StaminaRegen  = 3
	MaxLogEntries = 20

	minIntensity = 0.5
	maxIntensity = 1.0
	minVariance  = 0.8
	varianceSpan = 0.4
)

// Result é o efeito de uma ação aplicada
type Result struct {
	Action          string `json:"action"`
	Outcome         string `json:"outcome"`
	Damage          int    `json:"damage"`
	ActorHP         int    `json:"actorHp"`
	ActorStamina    int    `json:"actorStamina"`
	OpponentHP      int    `json:"opponentHp"`
	OpponentStamina int    `json:"opponentStamina"`
	Terminal        bool   `json:"terminal"`
}

// Resolver aplica ações sobre o estado de combate de uma partida.
// Não guarda estado de partida; rng e relógio são injetados para testes determinísticos.
type Resolver struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewResolver(rng *rand.Rand, now func() time.Time) *Resolver {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{rng: rng, now: now}
}

// Apply executa a ação do agente actorID na partida. O chamador deve
// serializar chamadas por partida e reagir a Result.Terminal encerrando a partida.
func (r *Resolver) Apply(m *model.Match, actorID, action string, intensity float64) (Result, error) {
	if m.Status != model.MatchLive {
		return Result{}, model.Conflict(model.ErrMatchNotLive, map[string]any{"status": m.Status})
	}
	side, ok := m.SideOf(actorID)
	if !ok {
		return Result{}, model.ErrNotAParticipant
	}
	spec, ok := Lookup(action)
	if !ok {
		return Result{}, model.ErrUnknownAction
	}

	actor := m.Fighter(side)
	opp := m.Fighter(side.Other())
	if actor.Stamina < spec.Cost {
		return Result{}, model.Conflict(model.ErrInsufficientStamina, map[string]any{
			"stamina": actor.Stamina,
			"cost":    spec.Cost,
		})
	}

	now := r.now()
	actor.Stamina -= spec.Cost
	opp.Stamina = min(opp.Stamina+StaminaRegen, model.MaxStamina)

	res := Result{Action: action, Outcome: OutcomeExecuted}
	switch spec.Category {
	case CategoryAttack:
		raw := float64(spec.BaseDamage) * clamp(intensity, minIntensity, maxIntensity) * r.variance()
		elapsed := now.Sub(opp.LastActionAt)
		switch {
		case opp.LastAction == Defend && within(elapsed, DefendWindow):
			res.Damage = int(math.Floor(raw * BlockFactor))
			res.Outcome = OutcomeBlocked
		case opp.LastAction == Dodge && within(elapsed, DodgeWindow):
			res.Damage = 0
			res.Outcome = OutcomeDodged
		default:
			res.Damage = int(math.Floor(raw))
			res.Outcome = OutcomeHit
		}
		opp.HP = max(opp.HP-res.Damage, 0)
	case CategorySpecial:
		if r.coinFlip() {
			res.Outcome = OutcomeLanded
		} else {
			res.Outcome = OutcomeMissed
		}
	}

	actor.LastAction = action
	actor.LastActionAt = now
	m.ActionLog = append(m.ActionLog, model.ActionLogEntry{
		Actor:   actorID,
		Action:  action,
		Outcome: res.Outcome,
		Damage:  res.Damage,
		At:      now,
	})
	if n := len(m.ActionLog); n > MaxLogEntries {
		m.ActionLog = append([]model.ActionLogEntry(nil), m.ActionLog[n-MaxLogEntries:]...)
	}
	m.UpdatedAt = now

	res.ActorHP, res.ActorStamina = actor.HP, actor.Stamina
	res.OpponentHP, res.OpponentStamina = opp.HP, opp.Stamina
	res.Terminal = m.Agent1.HP <= 0 || m.Agent2.HP <= 0
	return res, nil
}

func (r *Resolver) variance() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return minVariance + r.rng.Float64()*varianceSpan
}

func (r *Resolver) coinFlip() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(2) == 0
}

func within(elapsed, window time.Duration) bool {
	return elapsed >= 0 && elapsed <= window
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
