package model

import "time"

const (
	ActivityQueueJoined       = "queue_joined"
	ActivityMatchStarted      = "match_started"
	ActivityMatchEnded        = "match_ended"
	ActivityBetPlaced         = "bet_placed"
	ActivityTournamentStarted = "tournament_started"
	ActivityTournamentRound   = "tournament_round"
	ActivityTournamentEnded   = "tournament_ended"
	ActivitySettlementFailed  = "settlement_failed"
)

// Activity é uma entrada do feed de atividades
type Activity struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	AgentID   string         `json:"agentId,omitempty"`
	MatchID   string         `json:"matchId,omitempty"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
