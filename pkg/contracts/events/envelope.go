package events

import (
	"encoding/json"
	"time"
)

type Type string

const (
	MatchStarted      Type = "match_started"
	MatchTick         Type = "match_tick"
	ActionResolved    Type = "action_resolved"
	BetAccepted       Type = "bet_accepted"
	MatchEnded        Type = "match_ended"
	TournamentStarted Type = "tournament_started"
	TournamentRound   Type = "tournament_round"
	TournamentEnded   Type = "tournament_ended"
)

// Envelope é o formato publicado no tópico arena_events e no canal de broadcast
type Envelope struct {
	Type         Type            `json:"type"`
	MatchID      string          `json:"matchId,omitempty"`
	TournamentID string          `json:"tournamentId,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	TsUnixMs     int64           `json:"ts_unix_ms"`
}

// New serializa o payload dentro de um envelope
func New(t Type, matchID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, MatchID: matchID, Payload: b, TsUnixMs: time.Now().UnixMilli()}, nil
}

// Key é a chave de partição: partida, senão torneio
func (e Envelope) Key() string {
	if e.MatchID != "" {
		return e.MatchID
	}
	return e.TournamentID
}
