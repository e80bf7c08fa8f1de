package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/combat"
	"github.com/radieske/agent-arena/internal/arena/ledger"
	"github.com/radieske/agent-arena/internal/arena/metrics"
	"github.com/radieske/agent-arena/internal/arena/model"
	"github.com/radieske/agent-arena/internal/arena/payout"
	"github.com/radieske/agent-arena/internal/arena/publisher"
	"github.com/radieske/agent-arena/internal/arena/settlement"
	"github.com/radieske/agent-arena/internal/arena/store"
	"github.com/radieske/agent-arena/pkg/contracts/events"
)

// TieBreak decide o resultado quando o HP termina empatado
type TieBreak string

const (
	TieSide1 TieBreak = "side1"
	TieDraw  TieBreak = "draw"
)

// outboxLimit limita os eventos pendentes; a fila de efeitos no store não tem limite
const outboxLimit = 4096

// Timers dispara tick uma vez por segundo por partida
type Timers interface {
	Start(matchID string, tick func()) error
	Stop(matchID string)
}

type Config struct {
	MaxHP        int
	MaxRounds    int
	RoundSeconds int
	TieBreak     TieBreak
}

func DefaultConfig() Config {
	return Config{MaxHP: 200, MaxRounds: 3, RoundSeconds: 60, TieBreak: TieSide1}
}

// Deps são os colaboradores do engine. Publisher, Settler e Metrics são opcionais.
type Deps struct {
	Log       *zap.Logger
	Store     store.Store
	Ledger    *ledger.Ledger
	Resolver  *combat.Resolver
	Splitter  *payout.Splitter
	Timers    Timers
	Publisher publisher.Publisher
	Settler   settlement.Settler
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Options descreve como a partida foi criada
type Options struct {
	Mode            model.Mode
	TournamentID    string
	TournamentRound int
}

// Outcome é entregue aos listeners uma única vez por partida
type Outcome struct {
	MatchID         string
	WinnerID        string
	LoserID         string
	Draw            bool
	Reason          model.EndReason
	Mode            model.Mode
	TournamentID    string
	TournamentRound int
}

type Listener func(Outcome)

// ActionResult é a resposta de uma ação submetida
type ActionResult struct {
	MatchID       string
	Result        combat.Result
	Round         int
	TimeRemaining int
	Completed     bool
}

type liveMatch struct {
	mu sync.Mutex
	m  model.Match
}

// Engine é dono das partidas ao vivo. Estado de combate fica em memória;
// persistência, eventos e liquidação saem por filas ordenadas sem bloquear o combate.
type Engine struct {
	cfg       Config
	log       *zap.Logger
	store     store.Store
	ledger    *ledger.Ledger
	resolver  *combat.Resolver
	splitter  *payout.Splitter
	timers    Timers
	publisher publisher.Publisher
	settler   settlement.Settler
	metrics   *metrics.Metrics
	now       func() time.Time

	mu      sync.RWMutex
	live    map[string]*liveMatch
	byAgent map[string]string

	lmu       sync.RWMutex
	listeners []Listener

	effects *sideQueue // store e chain: nunca descarta
	outbox  *sideQueue // eventos: best effort
}

func New(cfg Config, d Deps) *Engine {
	def := DefaultConfig()
	if cfg.MaxHP <= 0 {
		cfg.MaxHP = def.MaxHP
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.RoundSeconds <= 0 {
		cfg.RoundSeconds = def.RoundSeconds
	}
	if cfg.TieBreak != TieDraw {
		cfg.TieBreak = TieSide1
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Publisher == nil {
		d.Publisher = publisher.Nop{}
	}
	if d.Settler == nil {
		d.Settler = settlement.Nop{}
	}
	if d.Resolver == nil {
		d.Resolver = combat.NewResolver(nil, d.Now)
	}
	if d.Splitter == nil {
		d.Splitter = payout.NewSplitter(payout.DefaultPercentages, d.Log)
	}
	if d.Ledger == nil {
		d.Ledger = ledger.New(d.Store, ledger.DefaultMaxBet, d.Now)
	}
	return &Engine{
		cfg:       cfg,
		log:       d.Log,
		store:     d.Store,
		ledger:    d.Ledger,
		resolver:  d.Resolver,
		splitter:  d.Splitter,
		timers:    d.Timers,
		publisher: d.Publisher,
		settler:   d.Settler,
		metrics:   d.Metrics,
		now:       d.Now,
		live:      make(map[string]*liveMatch),
		byAgent:   make(map[string]string),
		effects:   newSideQueue("effects", 0, d.Log, d.Metrics),
		outbox:    newSideQueue("outbox", outboxLimit, d.Log, d.Metrics),
	}
}

func (e *Engine) Config() Config { return e.cfg }

// Subscribe registra um listener de término. Listeners rodam fora do lock da partida.
func (e *Engine) Subscribe(l Listener) {
	e.lmu.Lock()
	e.listeners = append(e.listeners, l)
	e.lmu.Unlock()
}

// CreateMatch coloca os dois agentes numa nova partida ao vivo e inicia o timer
func (e *Engine) CreateMatch(ctx context.Context, a1, a2 model.Agent, opts Options) (model.Match, error) {
	if a1.ID == a2.ID {
		return model.Match{}, fmt.Errorf("create match: %w", model.ErrAgentNotEligible)
	}
	if opts.Mode == "" {
		opts.Mode = model.ModeRanked
	}
	now := e.now()
	m := model.Match{
		ID:              uuid.NewString(),
		Agent1:          e.newFighter(a1),
		Agent2:          e.newFighter(a2),
		Status:          model.MatchLive,
		Round:           1,
		MaxRounds:       e.cfg.MaxRounds,
		TimeRemaining:   e.cfg.RoundSeconds,
		MaxHP:           e.cfg.MaxHP,
		Mode:            opts.Mode,
		TournamentID:    opts.TournamentID,
		TournamentRound: opts.TournamentRound,
		ActionLog:       []model.ActionLogEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	lm := &liveMatch{m: m}

	e.mu.Lock()
	for _, id := range []string{a1.ID, a2.ID} {
		if cur, ok := e.byAgent[id]; ok {
			e.mu.Unlock()
			return model.Match{}, model.Conflict(model.ErrAlreadyInMatch, map[string]any{"agentId": id, "matchId": cur})
		}
	}
	e.live[m.ID] = lm
	e.byAgent[a1.ID] = m.ID
	e.byAgent[a2.ID] = m.ID
	e.mu.Unlock()

	marked := make([]string, 0, 2)
	for _, id := range []string{a1.ID, a2.ID} {
		if _, err := e.store.UpdateAgent(ctx, id, func(a *model.Agent) error {
			a.Status = model.AgentInMatch
			return nil
		}); err != nil {
			e.unregister(&m)
			e.releaseAgents(ctx, marked)
			return model.Match{}, fmt.Errorf("mark agent %s in match: %w", id, err)
		}
		marked = append(marked, id)
	}

	if e.timers != nil {
		id := m.ID
		if err := e.timers.Start(id, func() { e.Tick(id) }); err != nil {
			e.unregister(&m)
			e.releaseAgents(ctx, marked)
			return model.Match{}, err
		}
	}

	e.metrics.MatchStarted()
	e.log.Info("match started",
		zap.String("match_id", m.ID),
		zap.String("agent1", a1.ID),
		zap.String("agent2", a2.ID),
		zap.String("mode", string(m.Mode)),
	)

	snap := m.Clone()
	e.effects.push("save_match", func(ctx context.Context) error { return e.store.SaveMatch(ctx, snap) })
	e.RecordActivity(model.ActivityMatchStarted, "", m.ID,
		fmt.Sprintf("%s vs %s", a1.Name, a2.Name),
		map[string]any{"mode": m.Mode, "agent1": a1.ID, "agent2": a2.ID})
	e.publish(events.MatchStarted, m.ID, events.MatchStartedPayload{
		Mode:         string(m.Mode),
		TournamentID: m.TournamentID,
		Agent1:       fighterPayload(m.Agent1),
		Agent2:       fighterPayload(m.Agent2),
		Round:        m.Round,
		MaxRounds:    m.MaxRounds,
	})
	return snap, nil
}

func (e *Engine) newFighter(a model.Agent) model.Fighter {
	return model.Fighter{
		AgentRef:   a.Ref(),
		HP:         e.cfg.MaxHP,
		Stamina:    model.MaxStamina,
		WagerTotal: decimal.Zero,
		Odds:       ledger.InitialOdds,
	}
}

func (e *Engine) unregister(m *model.Match) {
	e.mu.Lock()
	delete(e.live, m.ID)
	for _, id := range []string{m.Agent1.ID, m.Agent2.ID} {
		if e.byAgent[id] == m.ID {
			delete(e.byAgent, id)
		}
	}
	e.mu.Unlock()
}

// releaseAgents desfaz o in_match de uma criação que falhou no meio
func (e *Engine) releaseAgents(ctx context.Context, ids []string) {
	for _, id := range ids {
		if _, err := e.store.UpdateAgent(ctx, id, func(a *model.Agent) error {
			if a.Status == model.AgentInMatch && !e.InLiveMatch(a.ID) {
				a.Status = model.AgentActive
			}
			return nil
		}); err != nil {
			e.log.Warn("release agent failed", zap.String("agent_id", id), zap.Error(err))
		}
	}
}

func (e *Engine) lookup(matchID string) *liveMatch {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.live[matchID]
}

func (e *Engine) lookupByAgent(agentID string) *liveMatch {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.byAgent[agentID]
	if !ok {
		return nil
	}
	return e.live[id]
}

// InLiveMatch informa se o agente ocupa alguma partida ao vivo
func (e *Engine) InLiveMatch(agentID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.byAgent[agentID]
	return ok
}

// SubmitAction aplica a ação do agente na partida em que ele está
func (e *Engine) SubmitAction(ctx context.Context, agentID, action string, intensity float64) (ActionResult, error) {
	lm := e.lookupByAgent(agentID)
	if lm == nil {
		return ActionResult{}, fmt.Errorf("agent %s: %w", agentID, model.ErrMatchNotFound)
	}

	lm.mu.Lock()
	res, err := e.resolver.Apply(&lm.m, agentID, action, intensity)
	if err != nil {
		lm.mu.Unlock()
		return ActionResult{}, err
	}
	var fin *finished
	if res.Terminal {
		fin = e.terminateLocked(lm, model.EndKO)
	}
	snap := lm.m.Clone()
	lm.mu.Unlock()

	e.metrics.Action(res.Outcome)
	out := ActionResult{
		MatchID:       snap.ID,
		Result:        res,
		Round:         snap.Round,
		TimeRemaining: snap.TimeRemaining,
		Completed:     snap.Status == model.MatchCompleted,
	}
	if fin == nil {
		e.effects.push("save_match", func(ctx context.Context) error { return e.store.SaveMatch(ctx, snap) })
	}
	e.publish(events.ActionResolved, snap.ID, events.ActionResolvedPayload{
		AgentID:         agentID,
		Action:          res.Action,
		Outcome:         res.Outcome,
		Damage:          res.Damage,
		ActorHP:         res.ActorHP,
		ActorStamina:    res.ActorStamina,
		OpponentHP:      res.OpponentHP,
		OpponentStamina: res.OpponentStamina,
		Round:           snap.Round,
		TimeRemaining:   snap.TimeRemaining,
	})
	if fin != nil {
		e.finish(fin)
	}
	return out, nil
}

// Tick avança o relógio da partida em um segundo
func (e *Engine) Tick(matchID string) {
	lm := e.lookup(matchID)
	if lm == nil {
		return
	}

	lm.mu.Lock()
	m := &lm.m
	if m.Status != model.MatchLive {
		lm.mu.Unlock()
		return
	}
	m.TimeRemaining--
	var fin *finished
	if m.TimeRemaining <= 0 {
		if m.Round < m.MaxRounds {
			m.Round++
			m.TimeRemaining = e.cfg.RoundSeconds
		} else {
			m.TimeRemaining = 0
			fin = e.terminateLocked(lm, model.EndDecision)
		}
	}
	m.UpdatedAt = e.now()
	snap := m.Clone()
	lm.mu.Unlock()

	if fin != nil {
		e.finish(fin)
		return
	}
	e.effects.push("save_match", func(ctx context.Context) error { return e.store.SaveMatch(ctx, snap) })
	e.publish(events.MatchTick, snap.ID, events.MatchTickPayload{
		Round:         snap.Round,
		TimeRemaining: snap.TimeRemaining,
		Agent1:        fighterPayload(snap.Agent1),
		Agent2:        fighterPayload(snap.Agent2),
	})
}

// PlaceBet registra um ticket na partida ao vivo
func (e *Engine) PlaceBet(ctx context.Context, matchID, agentID, wallet string, amount decimal.Decimal) (model.Bet, error) {
	lm := e.lookup(matchID)
	if lm == nil {
		if err := e.ledger.ValidateAmount(amount); err != nil {
			e.metrics.BetRejected("validation")
			return model.Bet{}, err
		}
		if _, err := ledger.NormalizeWallet(wallet); err != nil {
			e.metrics.BetRejected("validation")
			return model.Bet{}, err
		}
		m, err := e.store.GetMatch(ctx, matchID)
		if err != nil {
			return model.Bet{}, err
		}
		e.metrics.BetRejected("closed")
		return model.Bet{}, model.Conflict(model.ErrBettingClosed, map[string]any{"matchId": m.ID, "status": m.Status})
	}

	lm.mu.Lock()
	b, err := e.ledger.Place(&lm.m, agentID, wallet, amount)
	snap := lm.m.Clone()
	lm.mu.Unlock()
	if err != nil {
		e.metrics.BetRejected(rejectReason(err))
		return model.Bet{}, err
	}

	e.metrics.BetAccepted()
	e.effects.push("save_bet", func(ctx context.Context) error { return e.ledger.Persist(ctx, b) })
	e.effects.push("save_match", func(ctx context.Context) error { return e.store.SaveMatch(ctx, snap) })
	e.RecordActivity(model.ActivityBetPlaced, agentID, snap.ID,
		fmt.Sprintf("%s backed %s", b.Wallet, agentID),
		map[string]any{"betId": b.ID, "amount": b.Amount.String(), "odds": b.Odds.String()})
	e.publish(events.BetAccepted, snap.ID, events.BetAcceptedPayload{
		BetID:   b.ID,
		AgentID: agentID,
		Amount:  b.Amount,
		Odds1:   snap.Agent1.Odds,
		Odds2:   snap.Agent2.Odds,
		Pool:    snap.Pool(),
	})
	return b, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidAmount), errors.Is(err, model.ErrInvalidWallet):
		return "validation"
	case errors.Is(err, model.ErrDuplicateBet):
		return "duplicate"
	case errors.Is(err, model.ErrBettingClosed):
		return "closed"
	case errors.Is(err, model.ErrSideNotInMatch):
		return "side"
	}
	return "error"
}

// GetMatch devolve a partida ao vivo ou, se já encerrada, o último snapshot persistido
func (e *Engine) GetMatch(ctx context.Context, id string) (model.Match, error) {
	if lm := e.lookup(id); lm != nil {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		return lm.m.Clone(), nil
	}
	return e.store.GetMatch(ctx, id)
}

// MatchOf devolve a partida ao vivo do agente
func (e *Engine) MatchOf(agentID string) (model.Match, bool) {
	lm := e.lookupByAgent(agentID)
	if lm == nil {
		return model.Match{}, false
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.m.Clone(), true
}

// LiveMatches lista as partidas ao vivo, mais antigas primeiro
func (e *Engine) LiveMatches() []model.Match {
	e.mu.RLock()
	lms := make([]*liveMatch, 0, len(e.live))
	for _, lm := range e.live {
		lms = append(lms, lm)
	}
	e.mu.RUnlock()

	out := make([]model.Match, 0, len(lms))
	for _, lm := range lms {
		lm.mu.Lock()
		out = append(out, lm.m.Clone())
		lm.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (e *Engine) Bets(ctx context.Context, matchID string) ([]model.Bet, error) {
	return e.ledger.Bets(ctx, matchID)
}

// Flush espera os efeitos e eventos enfileirados até agora
func (e *Engine) Flush() {
	e.outbox.flush()
	e.effects.flush()
}

// Close para os timers das partidas ao vivo e drena as filas.
// Partidas ao vivo ficam como estão no store.
func (e *Engine) Close() {
	if e.timers != nil {
		e.mu.RLock()
		ids := make([]string, 0, len(e.live))
		for id := range e.live {
			ids = append(ids, id)
		}
		e.mu.RUnlock()
		for _, id := range ids {
			e.timers.Stop(id)
		}
	}
	e.outbox.close()
	e.effects.close()
}

// RecordActivity enfileira uma entrada no feed de atividades
func (e *Engine) RecordActivity(typ, agentID, matchID, msg string, data map[string]any) {
	a := e.newActivity(typ, agentID, matchID, msg, data)
	e.effects.push("activity", func(ctx context.Context) error { return e.store.AppendActivity(ctx, a) })
}

func (e *Engine) newActivity(typ, agentID, matchID, msg string, data map[string]any) model.Activity {
	return model.Activity{
		ID:        uuid.NewString(),
		Type:      typ,
		AgentID:   agentID,
		MatchID:   matchID,
		Message:   msg,
		Data:      data,
		CreatedAt: e.now(),
	}
}

func (e *Engine) publish(t events.Type, matchID string, payload any) {
	env, err := events.New(t, matchID, payload)
	if err != nil {
		e.log.Warn("encode event failed", zap.String("type", string(t)), zap.Error(err))
		return
	}
	e.outbox.push("publish", func(ctx context.Context) error { return e.publisher.Publish(ctx, env) })
}

// Notify publica um evento de torneio pela mesma fila dos eventos de partida
func (e *Engine) Notify(t events.Type, tournamentID string, payload any) {
	env, err := events.New(t, "", payload)
	if err != nil {
		e.log.Warn("encode event failed", zap.String("type", string(t)), zap.Error(err))
		return
	}
	env.TournamentID = tournamentID
	e.outbox.push("publish", func(ctx context.Context) error { return e.publisher.Publish(ctx, env) })
}

func fighterPayload(f model.Fighter) events.Fighter {
	return events.Fighter{
		AgentID: f.ID,
		Name:    f.Name,
		HP:      f.HP,
		Stamina: f.Stamina,
		Wagered: f.WagerTotal,
		Odds:    f.Odds,
	}
}
