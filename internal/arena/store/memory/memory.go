package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/radieske/agent-arena/internal/arena/model"
	"github.com/radieske/agent-arena/internal/arena/store"
)

var _ store.Store = (*Store)(nil)

// Store mantém tudo em memória do processo
type Store struct {
	mu       sync.RWMutex
	agents   map[string]model.Agent
	matches  map[string]model.Match
	history  []model.MatchRecord
	bets     map[string][]model.Bet // matchID -> tickets em ordem de criação
	activity []model.Activity
}

func New() *Store {
	return &Store{
		agents:  make(map[string]model.Agent),
		matches: make(map[string]model.Match),
		bets:    make(map[string][]model.Bet),
	}
}

func (s *Store) GetAgent(_ context.Context, id string) (model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return model.Agent{}, model.ErrAgentNotFound
	}
	return cloneAgent(a), nil
}

func (s *Store) ListAgents(_ context.Context) ([]model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, cloneAgent(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveAgent(_ context.Context, a model.Agent) error {
	s.mu.Lock()
	s.agents[a.ID] = cloneAgent(a)
	s.mu.Unlock()
	return nil
}

func (s *Store) UpdateAgent(_ context.Context, id string, fn func(*model.Agent) error) (model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return model.Agent{}, model.ErrAgentNotFound
	}
	a = cloneAgent(a)
	if err := fn(&a); err != nil {
		return model.Agent{}, err
	}
	s.agents[id] = a
	return cloneAgent(a), nil
}

func (s *Store) SaveMatch(_ context.Context, m model.Match) error {
	s.mu.Lock()
	s.matches[m.ID] = m.Clone()
	s.mu.Unlock()
	return nil
}

func (s *Store) GetMatch(_ context.Context, id string) (model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return model.Match{}, model.ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (s *Store) AppendHistory(_ context.Context, rec model.MatchRecord) error {
	s.mu.Lock()
	s.history = append(s.history, rec)
	s.mu.Unlock()
	return nil
}

// ListHistory retorna os registros mais recentes primeiro
func (s *Store) ListHistory(_ context.Context, limit int) ([]model.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.MatchRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}

// SaveBet só insere: um ticket já gravado (ex.: resolvido antes) não é sobrescrito
func (s *Store) SaveBet(_ context.Context, b model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.bets[b.MatchID] {
		if cur.ID == b.ID {
			return fmt.Errorf("bet %s already stored", b.ID)
		}
	}
	s.bets[b.MatchID] = append(s.bets[b.MatchID], b)
	return nil
}

func (s *Store) ListBets(_ context.Context, matchID string) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Bet(nil), s.bets[matchID]...), nil
}

func (s *Store) UpdateBet(_ context.Context, b model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.bets[b.MatchID]
	for i := range list {
		if list[i].ID == b.ID {
			list[i] = b
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *Store) AppendActivity(_ context.Context, a model.Activity) error {
	s.mu.Lock()
	s.activity = append(s.activity, a)
	s.mu.Unlock()
	return nil
}

// ListActivity retorna as entradas mais recentes primeiro
func (s *Store) ListActivity(_ context.Context, limit int) ([]model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.activity)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.Activity, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.activity[i])
	}
	return out, nil
}

func cloneAgent(a model.Agent) model.Agent {
	if a.Rank != nil {
		r := *a.Rank
		a.Rank = &r
	}
	if a.Budget != nil {
		b := *a.Budget
		a.Budget = &b
	}
	return a
}
