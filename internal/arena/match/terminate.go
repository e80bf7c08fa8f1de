package match

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/model"
	"github.com/radieske/agent-arena/internal/arena/payout"
	"github.com/radieske/agent-arena/internal/arena/settlement"
	"github.com/radieske/agent-arena/pkg/contracts/events"
)

// finished carrega o que sobra para fazer depois de soltar o lock da partida
type finished struct {
	match      model.Match
	record     model.MatchRecord
	settlement payout.Settlement
	outcome    Outcome
}

// terminateLocked encerra a partida uma única vez. Exige lm.mu travado;
// devolve nil se a partida já não estava ao vivo.
func (e *Engine) terminateLocked(lm *liveMatch, reason model.EndReason) *finished {
	m := &lm.m
	if m.Status != model.MatchLive {
		return nil
	}
	now := e.now()
	m.Status = model.MatchCompleted
	m.EndedAt = &now
	m.UpdatedAt = now
	if e.timers != nil {
		e.timers.Stop(m.ID)
	}

	winner, loser, draw := e.decide(m)

	st := e.splitter.Settle(m.Pool(), e.ledger.Tickets(m.ID), winner, now)
	e.ledger.Settled(m.ID, st.Bets)

	e.unregister(m)

	rec := model.MatchRecord{
		MatchID:       m.ID,
		Agent1:        m.Agent1.AgentRef,
		Agent2:        m.Agent2.AgentRef,
		WinnerID:      winner,
		LoserID:       loser,
		Draw:          draw,
		Reason:        reason,
		FinalHP1:      m.Agent1.HP,
		FinalHP2:      m.Agent2.HP,
		Rounds:        m.Round,
		Mode:          m.Mode,
		TournamentID:  m.TournamentID,
		TotalPool:     st.TotalPool,
		Platform:      st.PlatformCarry,
		WinnerAmount:  st.WinnerCredit,
		BettorsAmount: st.Split.Bettors,
		Unallocated:   st.Distribution.Unallocated,
		Payouts:       st.Distribution.Payouts,
		StartedAt:     m.CreatedAt,
		EndedAt:       now,
	}
	return &finished{
		match:      m.Clone(),
		record:     rec,
		settlement: st,
		outcome: Outcome{
			MatchID:         m.ID,
			WinnerID:        winner,
			LoserID:         loser,
			Draw:            draw,
			Reason:          reason,
			Mode:            m.Mode,
			TournamentID:    m.TournamentID,
			TournamentRound: m.TournamentRound,
		},
	}
}

// decide aplica a regra de vencedor: maior HP vence, empate conforme TieBreak
func (e *Engine) decide(m *model.Match) (winner, loser string, draw bool) {
	hp1, hp2 := m.Agent1.HP, m.Agent2.HP
	switch {
	case hp1 > hp2:
		return m.Agent1.ID, m.Agent2.ID, false
	case hp2 > hp1:
		return m.Agent2.ID, m.Agent1.ID, false
	case e.cfg.TieBreak == TieDraw:
		return "", "", true
	default:
		return m.Agent1.ID, m.Agent2.ID, false
	}
}

// finish roda fora do lock: enfileira persistência, liquidação e eventos
// e notifica os listeners.
func (e *Engine) finish(f *finished) {
	rec, st, snap := f.record, f.settlement, f.match
	ko := rec.Reason == model.EndKO

	e.metrics.MatchCompleted(string(rec.Reason))
	e.metrics.AddUnallocated(st.Distribution.Unallocated.InexactFloat64())
	e.log.Info("match ended",
		zap.String("match_id", rec.MatchID),
		zap.String("winner", rec.WinnerID),
		zap.Bool("draw", rec.Draw),
		zap.String("reason", string(rec.Reason)),
		zap.String("pool", rec.TotalPool.String()),
	)

	e.effects.push("resolve_bets", func(ctx context.Context) error {
		return e.ledger.Resolve(ctx, rec.MatchID, st.Bets)
	})
	e.effects.push("history", func(ctx context.Context) error { return e.store.AppendHistory(ctx, rec) })
	e.effects.push("save_match", func(ctx context.Context) error { return e.store.SaveMatch(ctx, snap) })
	if rec.Draw {
		e.effects.push("stats", func(ctx context.Context) error {
			return e.recordStats(ctx, rec.Agent1.ID, func(s *model.AgentStats) { s.RecordDraw() })
		})
		e.effects.push("stats", func(ctx context.Context) error {
			return e.recordStats(ctx, rec.Agent2.ID, func(s *model.AgentStats) { s.RecordDraw() })
		})
	} else {
		e.effects.push("stats", func(ctx context.Context) error {
			return e.recordStats(ctx, rec.WinnerID, func(s *model.AgentStats) { s.RecordWin(ko, st.WinnerCredit) })
		})
		e.effects.push("stats", func(ctx context.Context) error {
			return e.recordStats(ctx, rec.LoserID, func(s *model.AgentStats) { s.RecordLoss() })
		})
	}
	msg := fmt.Sprintf("%s vs %s ended in a draw", rec.Agent1.Name, rec.Agent2.Name)
	if !rec.Draw {
		msg = fmt.Sprintf("%s defeated %s by %s", nameOf(rec, rec.WinnerID), nameOf(rec, rec.LoserID), rec.Reason)
	}
	e.RecordActivity(model.ActivityMatchEnded, rec.WinnerID, rec.MatchID, msg, map[string]any{
		"reason":    rec.Reason,
		"totalPool": rec.TotalPool.String(),
		"winner":    rec.WinnerAmount.String(),
		"platform":  rec.Platform.String(),
	})

	e.publish(events.MatchEnded, rec.MatchID, endedPayload(rec, st))
	e.settle(rec, st)

	e.lmu.RLock()
	ls := append([]Listener(nil), e.listeners...)
	e.lmu.RUnlock()
	for _, l := range ls {
		l(f.outcome)
	}
}

// recordStats atualiza estatísticas e devolve o agente para active,
// a menos que ele já esteja em outra partida ou tenha mudado de estado.
func (e *Engine) recordStats(ctx context.Context, agentID string, fn func(*model.AgentStats)) error {
	_, err := e.store.UpdateAgent(ctx, agentID, func(a *model.Agent) error {
		fn(&a.Stats)
		if a.Status == model.AgentInMatch && !e.InLiveMatch(a.ID) {
			a.Status = model.AgentActive
		}
		return nil
	})
	return err
}

// settle envia a liquidação on-chain; falhas são registradas e nunca refeitas
func (e *Engine) settle(rec model.MatchRecord, st payout.Settlement) {
	req := settlement.Request{
		MatchID:       rec.MatchID,
		WinnerID:      rec.WinnerID,
		Draw:          rec.Draw,
		TotalPool:     st.TotalPool,
		WinnerCredit:  st.WinnerCredit,
		PlatformCarry: st.PlatformCarry,
	}
	for _, b := range st.Bets {
		if b.Status == model.BetWon && b.Payout.IsPositive() {
			req.Payouts = append(req.Payouts, settlement.Payout{BetID: b.ID, Wallet: b.Wallet, Amount: b.Payout})
		}
	}
	// roda na goroutine de effects: a atividade de falha é gravada direto
	e.effects.push("chain_settlement", func(ctx context.Context) error {
		if err := e.settler.Settle(ctx, req); err != nil {
			e.log.Warn("chain settlement failed", zap.String("match_id", req.MatchID), zap.Error(err))
			e.metrics.SettlementFailed()
			a := e.newActivity(model.ActivitySettlementFailed, req.WinnerID, req.MatchID,
				"on-chain settlement failed", map[string]any{"error": err.Error()})
			return e.store.AppendActivity(ctx, a)
		}
		return nil
	})
}

func endedPayload(rec model.MatchRecord, st payout.Settlement) events.MatchEndedPayload {
	p := events.MatchEndedPayload{
		MatchID:       rec.MatchID,
		Agent1ID:      rec.Agent1.ID,
		Agent2ID:      rec.Agent2.ID,
		WinnerID:      rec.WinnerID,
		LoserID:       rec.LoserID,
		Draw:          rec.Draw,
		Reason:        string(rec.Reason),
		FinalHP1:      rec.FinalHP1,
		FinalHP2:      rec.FinalHP2,
		Rounds:        rec.Rounds,
		Mode:          string(rec.Mode),
		TournamentID:  rec.TournamentID,
		TotalPool:     rec.TotalPool,
		PlatformCarry: rec.Platform,
		WinnerAmount:  rec.WinnerAmount,
		BettorsAmount: rec.BettorsAmount,
		Unallocated:   rec.Unallocated,
		StartedAtMs:   rec.StartedAt.UnixMilli(),
		EndedAtMs:     rec.EndedAt.UnixMilli(),
	}
	for _, b := range st.Bets {
		p.Bets = append(p.Bets, events.BetSettlement{
			BetID:   b.ID,
			AgentID: b.AgentID,
			Wallet:  b.Wallet,
			Amount:  b.Amount,
			Status:  string(b.Status),
			Payout:  b.Payout,
		})
	}
	return p
}

func nameOf(rec model.MatchRecord, id string) string {
	if rec.Agent1.ID == id {
		return rec.Agent1.Name
	}
	return rec.Agent2.Name
}
