package model

import "github.com/shopspring/decimal"

// AgentStatus representa o estado operacional de um agente
type AgentStatus string

const (
	AgentPendingClaim AgentStatus = "pending_claim"
	AgentActive       AgentStatus = "active"
	AgentInQueue      AgentStatus = "in_queue"
	AgentInMatch      AgentStatus = "in_match"
	AgentSuspended    AgentStatus = "suspended"
)

type AgentStats struct {
	Wins          int             `json:"wins"`
	Losses        int             `json:"losses"`
	MatchesPlayed int             `json:"matchesPlayed"`
	WinRate       float64         `json:"winRate"`
	TotalEarnings decimal.Decimal `json:"totalEarnings"`
	CurrentStreak int             `json:"currentStreak"` // >0 vitórias seguidas, <0 derrotas seguidas
	KillStreak    int             `json:"killStreak"`    // vitórias seguidas por KO
}

// Budget limita quanto o agente pode gastar em taxas de entrada
type Budget struct {
	TotalAllowance decimal.Decimal `json:"totalAllowance"`
	Spent          decimal.Decimal `json:"spent"`
	Remaining      decimal.Decimal `json:"remaining"`
}

// Agent é o lutador autônomo. Registro e claim acontecem fora do core;
// aqui só lemos e atualizamos status e estatísticas.
type Agent struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Rank        *int        `json:"rank,omitempty"` // menor é melhor; nil = sem rank
	PowerRating float64     `json:"powerRating"`
	Status      AgentStatus `json:"status"`
	Stats       AgentStats  `json:"stats"`
	Budget      *Budget     `json:"budget,omitempty"`
}

// AgentRef é a visão resumida do agente guardada dentro de uma partida
type AgentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rank *int   `json:"rank,omitempty"`
}

func (a Agent) Ref() AgentRef {
	return AgentRef{ID: a.ID, Name: a.Name, Rank: a.Rank}
}

// RecordWin atualiza as estatísticas do vencedor. A taxa de vitória usa
// matchesPlayed+1 como denominador, incluindo a partida sendo registrada.
func (s *AgentStats) RecordWin(ko bool, earnings decimal.Decimal) {
	s.Wins++
	s.WinRate = float64(s.Wins) / float64(s.MatchesPlayed+1)
	s.MatchesPlayed++
	s.TotalEarnings = s.TotalEarnings.Add(earnings)
	if s.CurrentStreak >= 0 {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}
	if ko {
		s.KillStreak++
	}
}

// RecordLoss atualiza as estatísticas do perdedor
func (s *AgentStats) RecordLoss() {
	s.Losses++
	s.WinRate = float64(s.Wins) / float64(s.MatchesPlayed+1)
	s.MatchesPlayed++
	if s.CurrentStreak <= 0 {
		s.CurrentStreak--
	} else {
		s.CurrentStreak = -1
	}
	s.KillStreak = 0
}

// RecordDraw conta a partida sem alterar vitórias/derrotas
func (s *AgentStats) RecordDraw() {
	s.WinRate = float64(s.Wins) / float64(s.MatchesPlayed+1)
	s.MatchesPlayed++
	s.CurrentStreak = 0
}
