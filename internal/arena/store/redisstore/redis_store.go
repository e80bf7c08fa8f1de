package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/agent-arena/internal/arena/model"
	"github.com/radieske/agent-arena/internal/arena/store"
)

var _ store.Store = (*Store)(nil)

const (
	maxTxRetries   = 10
	activityMaxLen = 1000
)

// Store implementa a persistência chave-valor em Redis.
// Valores são JSON; atualizações de agente usam WATCH/MULTI.
type Store struct {
	rdb    *redis.Client
	prefix string
}

func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "arena"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) keyAgent(id string) string   { return s.prefix + ":agent:" + id }
func (s *Store) keyAgents() string           { return s.prefix + ":agents" }
func (s *Store) keyMatch(id string) string   { return s.prefix + ":match:" + id }
func (s *Store) keyHistory() string          { return s.prefix + ":history" }
func (s *Store) keyBets(match string) string { return s.prefix + ":bets:" + match }
func (s *Store) keyActivity() string         { return s.prefix + ":activity" }

func (s *Store) GetAgent(ctx context.Context, id string) (model.Agent, error) {
	var a model.Agent
	if err := s.getJSON(ctx, s.keyAgent(id), &a); err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Agent{}, model.ErrAgentNotFound
		}
		return model.Agent{}, err
	}
	return a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]model.Agent, error) {
	ids, err := s.rdb.SMembers(ctx, s.keyAgents()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	out := make([]model.Agent, 0, len(ids))
	for _, id := range ids {
		a, err := s.GetAgent(ctx, id)
		if errors.Is(err, model.ErrAgentNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) SaveAgent(ctx context.Context, a model.Agent) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keyAgent(a.ID), b, 0)
		pipe.SAdd(ctx, s.keyAgents(), a.ID)
		return nil
	})
	return err
}

// UpdateAgent lê, aplica fn e grava sob WATCH; repete se outra escrita interferir
func (s *Store) UpdateAgent(ctx context.Context, id string, fn func(*model.Agent) error) (model.Agent, error) {
	key := s.keyAgent(id)
	var out model.Agent

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return model.ErrAgentNotFound
		}
		if err != nil {
			return err
		}
		var a model.Agent
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Errorf("decode agent %s: %w", id, err)
		}
		if err := fn(&a); err != nil {
			return err
		}
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		if err == nil {
			out = a
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.Agent{}, err
	}
	return model.Agent{}, fmt.Errorf("update agent %s: too many concurrent writes", id)
}

func (s *Store) SaveMatch(ctx context.Context, m model.Match) error {
	return s.setJSON(ctx, s.keyMatch(m.ID), m)
}

func (s *Store) GetMatch(ctx context.Context, id string) (model.Match, error) {
	var m model.Match
	if err := s.getJSON(ctx, s.keyMatch(id), &m); err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Match{}, model.ErrMatchNotFound
		}
		return model.Match{}, err
	}
	return m, nil
}

func (s *Store) AppendHistory(ctx context.Context, rec model.MatchRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.LPush(ctx, s.keyHistory(), b).Err()
}

func (s *Store) ListHistory(ctx context.Context, limit int) ([]model.MatchRecord, error) {
	raws, err := s.rdb.LRange(ctx, s.keyHistory(), 0, stop(limit)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.MatchRecord, 0, len(raws))
	for _, raw := range raws {
		var rec model.MatchRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) SaveBet(ctx context.Context, b model.Bet) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	ok, err := s.rdb.HSetNX(ctx, s.keyBets(b.MatchID), b.ID, raw).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bet %s already stored", b.ID)
	}
	return nil
}

// ListBets retorna os tickets em ordem de criação
func (s *Store) ListBets(ctx context.Context, matchID string) ([]model.Bet, error) {
	raws, err := s.rdb.HGetAll(ctx, s.keyBets(matchID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Bet, 0, len(raws))
	for _, raw := range raws {
		var b model.Bet
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateBet(ctx context.Context, b model.Bet) error {
	key := s.keyBets(b.MatchID)
	exists, err := s.rdb.HExists(ctx, key, b.ID).Result()
	if err != nil {
		return err
	}
	if !exists {
		return model.ErrNotFound
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, key, b.ID, raw).Err()
}

func (s *Store) AppendActivity(ctx context.Context, a model.Activity) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.keyActivity(), raw)
		pipe.LTrim(ctx, s.keyActivity(), 0, activityMaxLen-1)
		return nil
	})
	return err
}

func (s *Store) ListActivity(ctx context.Context, limit int) ([]model.Activity, error) {
	raws, err := s.rdb.LRange(ctx, s.keyActivity(), 0, stop(limit)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Activity, 0, len(raws))
	for _, raw := range raws {
		var a model.Activity
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, 0).Err()
}

func (s *Store) getJSON(ctx context.Context, key string, dst any) error {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func stop(limit int) int64 {
	if limit <= 0 {
		return -1
	}
	return int64(limit - 1)
}
