package payout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/agent-arena/internal/arena/model"
)

// Distribution é o resultado do rateio da parte dos apostadores
type Distribution struct {
	Payouts     map[string]decimal.Decimal `json:"payouts"` // betID -> valor
	Unallocated decimal.Decimal            `json:"unallocated"`
}

// DistributeBettorsPool rateia bettorsAmount proporcionalmente ao stake de cada
// ticket vencedor, arredondando para baixo em 6 casas. O resíduo volta como
// Unallocated e deve ser somado ao caixa da plataforma.
func DistributeBettorsPool(bettorsAmount decimal.Decimal, winning []model.Bet) Distribution {
	dist := Distribution{Payouts: make(map[string]decimal.Decimal, len(winning)), Unallocated: bettorsAmount}

	stake := decimal.Zero
	for _, b := range winning {
		stake = stake.Add(b.Amount)
	}
	if !stake.IsPositive() || !bettorsAmount.IsPositive() {
		return dist
	}

	paid := decimal.Zero
	for _, b := range winning {
		p := bettorsAmount.Mul(b.Amount).Div(stake).RoundFloor(Precision)
		dist.Payouts[b.ID] = p
		paid = paid.Add(p)
	}
	dist.Unallocated = bettorsAmount.Sub(paid)
	return dist
}

// Settlement consolida a liquidação de uma partida
type Settlement struct {
	TotalPool     decimal.Decimal `json:"totalPool"`
	Split         Split           `json:"split"`
	Distribution  Distribution    `json:"distribution"`
	WinnerCredit  decimal.Decimal `json:"winnerCredit"`
	PlatformCarry decimal.Decimal `json:"platformCarry"`
	Bets          []model.Bet     `json:"bets"`
}

// Settle divide o pool, rateia entre os tickets do vencedor e marca cada ticket
// como won/lost. winnerID vazio (empate) manda tudo que não é da plataforma para o caixa dela.
func (s *Splitter) Settle(total decimal.Decimal, bets []model.Bet, winnerID string, now time.Time) Settlement {
	split := s.SplitPool(total)
	out := Settlement{TotalPool: total, Split: split}

	var winning []model.Bet
	if winnerID != "" {
		for _, b := range bets {
			if b.AgentID == winnerID {
				winning = append(winning, b)
			}
		}
		out.WinnerCredit = split.Winner
	} else {
		out.WinnerCredit = decimal.Zero
	}

	out.Distribution = DistributeBettorsPool(split.Bettors, winning)
	out.PlatformCarry = split.Platform.Add(out.Distribution.Unallocated)
	if winnerID == "" {
		out.PlatformCarry = out.PlatformCarry.Add(split.Winner)
	}

	out.Bets = make([]model.Bet, 0, len(bets))
	for _, b := range bets {
		resolved := now
		b.ResolvedAt = &resolved
		if p, ok := out.Distribution.Payouts[b.ID]; ok {
			b.Status = model.BetWon
			b.Payout = p
		} else {
			b.Status = model.BetLost
			b.Payout = decimal.Zero
		}
		out.Bets = append(out.Bets, b)
	}
	return out
}
