package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type MatchStatus string

const (
	MatchLive      MatchStatus = "live"
	MatchCompleted MatchStatus = "completed"
)

type Mode string

const (
	ModeRanked     Mode = "ranked"
	ModeChallenge  Mode = "challenge"
	ModeTournament Mode = "tournament"
)

// ParseMode valida o modo recebido pela API
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeRanked, ModeChallenge, ModeTournament:
		return m, nil
	case "":
		return ModeRanked, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Side identifica o lado da partida (1 ou 2)
type Side int

const (
	Side1 Side = 1
	Side2 Side = 2
)

func (s Side) Other() Side {
	if s == Side1 {
		return Side2
	}
	return Side1
}

const MaxStamina = 100

// Fighter guarda o estado de combate e de apostas de um lado da partida
type Fighter struct {
	AgentRef
	HP           int             `json:"hp"`
	Stamina      int             `json:"stamina"`
	WagerTotal   decimal.Decimal `json:"wagerTotal"`
	Odds         decimal.Decimal `json:"odds"`
	LastAction   string          `json:"lastAction,omitempty"`
	LastActionAt time.Time       `json:"lastActionAt,omitempty"`
}

type ActionLogEntry struct {
	Actor   string    `json:"actor"`
	Action  string    `json:"action"`
	Outcome string    `json:"outcome"`
	Damage  int       `json:"damage"`
	At      time.Time `json:"at"`
}

type Match struct {
	ID              string           `json:"id"`
	Agent1          Fighter          `json:"agent1"`
	Agent2          Fighter          `json:"agent2"`
	Status          MatchStatus      `json:"status"`
	Round           int              `json:"round"`
	MaxRounds       int              `json:"maxRounds"`
	TimeRemaining   int              `json:"timeRemaining"`
	MaxHP           int              `json:"maxHp"`
	Mode            Mode             `json:"mode"`
	TournamentID    string           `json:"tournamentId,omitempty"`
	TournamentRound int              `json:"tournamentRound,omitempty"`
	ActionLog       []ActionLogEntry `json:"actionLog"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	EndedAt         *time.Time       `json:"endedAt,omitempty"`
}

// SideOf retorna o lado ocupado pelo agente, se ele participa da partida
func (m *Match) SideOf(agentID string) (Side, bool) {
	switch agentID {
	case m.Agent1.ID:
		return Side1, true
	case m.Agent2.ID:
		return Side2, true
	}
	return 0, false
}

func (m *Match) Fighter(s Side) *Fighter {
	if s == Side1 {
		return &m.Agent1
	}
	return &m.Agent2
}

// Pool é o total apostado somando os dois lados
func (m *Match) Pool() decimal.Decimal {
	return m.Agent1.WagerTotal.Add(m.Agent2.WagerTotal)
}

// Clone devolve uma cópia independente (o log de ações é copiado)
func (m Match) Clone() Match {
	out := m
	out.ActionLog = append([]ActionLogEntry(nil), m.ActionLog...)
	if m.EndedAt != nil {
		t := *m.EndedAt
		out.EndedAt = &t
	}
	return out
}

// EndReason indica como a partida terminou
type EndReason string

const (
	EndKO       EndReason = "ko"
	EndDecision EndReason = "decision"
)

// MatchRecord é o registro imutável arquivado no histórico
type MatchRecord struct {
	MatchID       string                     `json:"matchId"`
	Agent1        AgentRef                   `json:"agent1"`
	Agent2        AgentRef                   `json:"agent2"`
	WinnerID      string                     `json:"winnerId,omitempty"`
	LoserID       string                     `json:"loserId,omitempty"`
	Draw          bool                       `json:"draw"`
	Reason        EndReason                  `json:"reason"`
	FinalHP1      int                        `json:"finalHp1"`
	FinalHP2      int                        `json:"finalHp2"`
	Rounds        int                        `json:"rounds"`
	Mode          Mode                       `json:"mode"`
	TournamentID  string                     `json:"tournamentId,omitempty"`
	TotalPool     decimal.Decimal            `json:"totalPool"`
	Platform      decimal.Decimal            `json:"platformAmount"`
	WinnerAmount  decimal.Decimal            `json:"winnerAmount"`
	BettorsAmount decimal.Decimal            `json:"bettorsAmount"`
	Unallocated   decimal.Decimal            `json:"unallocated"`
	Payouts       map[string]decimal.Decimal `json:"payouts"`
	StartedAt     time.Time                  `json:"startedAt"`
	EndedAt       time.Time                  `json:"endedAt"`
}
