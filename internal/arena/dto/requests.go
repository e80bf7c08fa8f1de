package dto

import "github.com/shopspring/decimal"

// ActionRequest é enviada pelo agente autenticado (header X-Agent-ID)
type ActionRequest struct {
	Action    string   `json:"action"`
	Intensity *float64 `json:"intensity,omitempty"` // 0..1, default 1
}

type PlaceBetRequest struct {
	MatchID       string          `json:"match_id"`
	AgentID       string          `json:"agent_id"` // lado apostado
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
}

type QueueJoinRequest struct {
	Mode string `json:"mode"` // ranked | challenge | tournament
}

type StartTournamentRequest struct {
	MinAgents int `json:"min_agents"`
}
