package events

import "github.com/shopspring/decimal"

type Fighter struct {
	AgentID string          `json:"agentId"`
	Name    string          `json:"name"`
	HP      int             `json:"hp"`
	Stamina int             `json:"stamina"`
	Wagered decimal.Decimal `json:"wagered"`
	Odds    decimal.Decimal `json:"odds"`
}

type MatchStartedPayload struct {
	Mode         string  `json:"mode"`
	TournamentID string  `json:"tournamentId,omitempty"`
	Agent1       Fighter `json:"agent1"`
	Agent2       Fighter `json:"agent2"`
	Round        int     `json:"round"`
	MaxRounds    int     `json:"maxRounds"`
}

type MatchTickPayload struct {
	Round         int     `json:"round"`
	TimeRemaining int     `json:"timeRemaining"`
	Agent1        Fighter `json:"agent1"`
	Agent2        Fighter `json:"agent2"`
}

type ActionResolvedPayload struct {
	AgentID         string `json:"agentId"`
	Action          string `json:"action"`
	Outcome         string `json:"outcome"`
	Damage          int    `json:"damage"`
	ActorHP         int    `json:"actorHp"`
	ActorStamina    int    `json:"actorStamina"`
	OpponentHP      int    `json:"opponentHp"`
	OpponentStamina int    `json:"opponentStamina"`
	Round           int    `json:"round"`
	TimeRemaining   int    `json:"timeRemaining"`
}

type BetAcceptedPayload struct {
	BetID   string          `json:"betId"`
	AgentID string          `json:"agentId"`
	Amount  decimal.Decimal `json:"amount"`
	Odds1   decimal.Decimal `json:"odds1"`
	Odds2   decimal.Decimal `json:"odds2"`
	Pool    decimal.Decimal `json:"pool"`
}

type BetSettlement struct {
	BetID   string          `json:"betId"`
	AgentID string          `json:"agentId"`
	Wallet  string          `json:"wallet"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
	Payout  decimal.Decimal `json:"payout"`
}

// MatchEndedPayload é publicado também no tópico match_ended para o arquivamento em Postgres
type MatchEndedPayload struct {
	MatchID       string          `json:"matchId"`
	Agent1ID      string          `json:"agent1Id"`
	Agent2ID      string          `json:"agent2Id"`
	WinnerID      string          `json:"winnerId,omitempty"`
	LoserID       string          `json:"loserId,omitempty"`
	Draw          bool            `json:"draw"`
	Reason        string          `json:"reason"`
	FinalHP1      int             `json:"finalHp1"`
	FinalHP2      int             `json:"finalHp2"`
	Rounds        int             `json:"rounds"`
	Mode          string          `json:"mode"`
	TournamentID  string          `json:"tournamentId,omitempty"`
	TotalPool     decimal.Decimal `json:"totalPool"`
	PlatformCarry decimal.Decimal `json:"platformCarry"`
	WinnerAmount  decimal.Decimal `json:"winnerAmount"`
	BettorsAmount decimal.Decimal `json:"bettorsAmount"`
	Unallocated   decimal.Decimal `json:"unallocated"`
	Bets          []BetSettlement `json:"bets"`
	StartedAtMs   int64           `json:"startedAtMs"`
	EndedAtMs     int64           `json:"endedAtMs"`
}
