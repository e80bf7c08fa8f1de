package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/agent-arena/internal/arena/model"
)

type ActionResponse struct {
	ActionExecuted string `json:"action_executed"`
	Result         string `json:"result"` // hit | blocked | dodged | landed | missed | executed
	DamageDealt    int    `json:"damage_dealt"`
	YourHP         int    `json:"your_hp"`
	OpponentHP     int    `json:"opponent_hp"`
	YourStamina    int    `json:"your_stamina"`
	Round          int    `json:"round"`
	TimeRemaining  int    `json:"time_remaining"`
	MatchStatus    string `json:"match_status"` // ongoing | completed
}

type PlaceBetResponse struct {
	BetID        string          `json:"bet_id"`
	Odds         decimal.Decimal `json:"odds"`
	PotentialWin decimal.Decimal `json:"potential_win"`
	Status       string          `json:"status"`
}

type QueueJoinResponse struct {
	Position int             `json:"position"`
	Paired   bool            `json:"paired"`
	Opponent *model.AgentRef `json:"opponent,omitempty"`
	MatchID  string          `json:"match_id,omitempty"`
}

// ErrorResponse carrega o estado atual em conflitos (409)
type ErrorResponse struct {
	Error string         `json:"error"`
	State map[string]any `json:"state,omitempty"`
}
