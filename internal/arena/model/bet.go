package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
)

// Bet é o ticket de aposta. Criado na colocação e resolvido uma única vez.
type Bet struct {
	ID           string          `json:"id"`
	MatchID      string          `json:"matchId"`
	AgentID      string          `json:"agentId"` // lado apostado
	Wallet       string          `json:"wallet"`
	Amount       decimal.Decimal `json:"amount"`
	Odds         decimal.Decimal `json:"odds"`
	PotentialWin decimal.Decimal `json:"potentialWin"`
	Status       BetStatus       `json:"status"`
	Payout       decimal.Decimal `json:"payout"`
	CreatedAt    time.Time       `json:"createdAt"`
	ResolvedAt   *time.Time      `json:"resolvedAt,omitempty"`
}
