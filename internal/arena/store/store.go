package store

import (
	"context"

	"github.com/radieske/agent-arena/internal/arena/model"
)

// AgentStore acessa os agentes, que são donos externos (registro/claim)
type AgentStore interface {
	GetAgent(ctx context.Context, id string) (model.Agent, error)
	ListAgents(ctx context.Context) ([]model.Agent, error)
	SaveAgent(ctx context.Context, a model.Agent) error
	// UpdateAgent aplica fn de forma atômica sobre o registro atual
	UpdateAgent(ctx context.Context, id string, fn func(*model.Agent) error) (model.Agent, error)
}

// MatchStore guarda o último snapshot de cada partida (ao vivo ou encerrada) e o histórico imutável
type MatchStore interface {
	SaveMatch(ctx context.Context, m model.Match) error
	GetMatch(ctx context.Context, id string) (model.Match, error)
	AppendHistory(ctx context.Context, rec model.MatchRecord) error
	ListHistory(ctx context.Context, limit int) ([]model.MatchRecord, error)
}

type BetStore interface {
	SaveBet(ctx context.Context, b model.Bet) error
	ListBets(ctx context.Context, matchID string) ([]model.Bet, error)
	UpdateBet(ctx context.Context, b model.Bet) error
}

type ActivityStore interface {
	AppendActivity(ctx context.Context, a model.Activity) error
	ListActivity(ctx context.Context, limit int) ([]model.Activity, error)
}

// Store é a interface chave-valor abstrata consumida pelo core
type Store interface {
	AgentStore
	MatchStore
	BetStore
	ActivityStore
}
