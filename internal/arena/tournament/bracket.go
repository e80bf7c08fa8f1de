package tournament

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/match"
	"github.com/radieske/agent-arena/internal/arena/model"
	"github.com/radieske/agent-arena/internal/arena/store"
	"github.com/radieske/agent-arena/pkg/contracts/events"
)

// OddWinner decide o que fazer com o vencedor sem par numa rodada
type OddWinner string

const (
	OddDrop OddWinner = "drop"
	OddBye  OddWinner = "bye"
)

const DefaultMaxBracketSize = 16

// Arena é a parte do engine usada pelo chaveamento
type Arena interface {
	CreateMatch(ctx context.Context, a1, a2 model.Agent, opts match.Options) (model.Match, error)
	RecordActivity(typ, agentID, matchID, msg string, data map[string]any)
	Notify(t events.Type, tournamentID string, payload any)
}

type Round struct {
	Number         int      `json:"number"`
	ParticipantIDs []string `json:"participantIds"`
	MatchIDs       []string `json:"matchIds"`
	Winners        []string `json:"winners"`
	Bye            string   `json:"bye,omitempty"`

	pairs   map[string][2]string // matchID -> agentes
	results map[string]string    // matchID -> vencedor
}

type State struct {
	ID           string     `json:"id"`
	MinAgents    int        `json:"minAgents"`
	CurrentRound int        `json:"currentRound"`
	Participants []string   `json:"participants"`
	Rounds       []Round    `json:"rounds"`
	Champion     *string    `json:"champion"`
	Active       bool       `json:"active"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
}

func (s State) clone() State {
	out := s
	out.Participants = append([]string(nil), s.Participants...)
	out.Rounds = make([]Round, len(s.Rounds))
	for i, r := range s.Rounds {
		out.Rounds[i] = Round{
			Number:         r.Number,
			ParticipantIDs: append([]string(nil), r.ParticipantIDs...),
			MatchIDs:       append([]string(nil), r.MatchIDs...),
			Winners:        append([]string(nil), r.Winners...),
			Bye:            r.Bye,
		}
	}
	if s.Champion != nil {
		c := *s.Champion
		out.Champion = &c
	}
	return out
}

// Bracket conduz um torneio de eliminação simples sobre o engine de partidas
type Bracket struct {
	log     *zap.Logger
	agents  store.AgentStore
	arena   Arena
	maxSize int
	odd     OddWinner
	now     func() time.Time

	mu    sync.Mutex
	state *State
}

func New(log *zap.Logger, agents store.AgentStore, arena Arena, maxSize int, odd OddWinner) *Bracket {
	if maxSize < 2 {
		maxSize = DefaultMaxBracketSize
	}
	if odd != OddBye {
		odd = OddDrop
	}
	return &Bracket{log: log, agents: agents, arena: arena, maxSize: maxSize, odd: odd, now: time.Now}
}

// Current devolve o último torneio (ativo ou encerrado)
func (b *Bracket) Current() (State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return State{}, false
	}
	return b.state.clone(), true
}

// Start seleciona os agentes elegíveis e cria a primeira rodada
func (b *Bracket) Start(ctx context.Context, minAgents int) (State, error) {
	if minAgents < 2 {
		minAgents = 2
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != nil && b.state.Active {
		return State{}, model.Conflict(model.ErrTournamentAlreadyActive, map[string]any{
			"tournamentId": b.state.ID,
			"currentRound": b.state.CurrentRound,
		})
	}

	all, err := b.agents.ListAgents(ctx)
	if err != nil {
		return State{}, fmt.Errorf("list agents: %w", err)
	}
	eligible := Eligible(all)
	if len(eligible) < minAgents {
		return State{}, model.Conflict(model.ErrNotEnoughParticipants, map[string]any{
			"eligible": len(eligible),
			"required": minAgents,
		})
	}

	size := BracketSize(len(eligible), b.maxSize)
	ids := make([]string, 0, size)
	for _, a := range eligible[:size] {
		ids = append(ids, a.ID)
	}

	b.state = &State{
		ID:           uuid.NewString(),
		MinAgents:    minAgents,
		Participants: ids,
		Active:       true,
		StartedAt:    b.now(),
	}
	b.log.Info("tournament started", zap.String("tournament_id", b.state.ID), zap.Int("participants", size))
	b.arena.RecordActivity(model.ActivityTournamentStarted, "", "",
		fmt.Sprintf("tournament started with %d agents", size),
		map[string]any{"tournamentId": b.state.ID, "participants": ids})
	b.arena.Notify(events.TournamentStarted, b.state.ID, events.TournamentPayload{
		TournamentID: b.state.ID,
		Round:        1,
		Participants: ids,
	})

	b.openRoundLocked(ctx, ids)
	b.advanceLocked(ctx)
	return b.state.clone(), nil
}

// OnMatchComplete recebe o resultado de uma partida do torneio corrente.
// Partidas de fora do torneio e resultados repetidos são ignorados.
func (b *Bracket) OnMatchComplete(o match.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == nil || !b.state.Active || o.TournamentID != b.state.ID {
		return
	}
	r := b.currentLocked()
	pair, ok := r.pairs[o.MatchID]
	if !ok {
		return
	}
	if _, done := r.results[o.MatchID]; done {
		return
	}
	winner := o.WinnerID
	if o.Draw || winner == "" {
		// empate avança o lado 1 (melhor semente)
		winner = pair[0]
	}
	r.results[o.MatchID] = winner
	b.advanceLocked(context.Background())
}

func (b *Bracket) currentLocked() *Round {
	return &b.state.Rounds[len(b.state.Rounds)-1]
}

// openRoundLocked cria a rodada pareando participantes adjacentes
func (b *Bracket) openRoundLocked(ctx context.Context, ids []string) {
	b.state.CurrentRound++
	r := Round{
		Number:         b.state.CurrentRound,
		ParticipantIDs: append([]string(nil), ids...),
		pairs:          make(map[string][2]string),
		results:        make(map[string]string),
	}
	if len(ids)%2 == 1 {
		last := ids[len(ids)-1]
		ids = ids[:len(ids)-1]
		if b.odd == OddBye {
			r.Bye = last
		} else {
			b.log.Info("odd winner dropped", zap.String("tournament_id", b.state.ID), zap.String("agent_id", last))
		}
	}
	b.state.Rounds = append(b.state.Rounds, r)
	cur := b.currentLocked()

	for i := 0; i+1 < len(ids); i += 2 {
		a1, a2 := ids[i], ids[i+1]
		id, err := b.createMatch(ctx, a1, a2, cur.Number)
		if err != nil {
			// walkover: o adversário disponível avança
			winner := a1
			if st := model.StateOf(err); st != nil && st["agentId"] == a1 {
				winner = a2
			}
			b.log.Warn("tournament match not created, walkover",
				zap.String("tournament_id", b.state.ID),
				zap.String("agent1", a1),
				zap.String("agent2", a2),
				zap.String("advances", winner),
				zap.Error(err),
			)
			id = "walkover-" + uuid.NewString()
			cur.pairs[id] = [2]string{a1, a2}
			cur.MatchIDs = append(cur.MatchIDs, id)
			cur.results[id] = winner
			continue
		}
		cur.pairs[id] = [2]string{a1, a2}
		cur.MatchIDs = append(cur.MatchIDs, id)
	}

	if cur.Number > 1 {
		b.arena.RecordActivity(model.ActivityTournamentRound, "", "",
			fmt.Sprintf("tournament round %d started", cur.Number),
			map[string]any{"tournamentId": b.state.ID, "round": cur.Number})
		b.arena.Notify(events.TournamentRound, b.state.ID, events.TournamentPayload{
			TournamentID: b.state.ID,
			Round:        cur.Number,
			Participants: cur.ParticipantIDs,
			MatchIDs:     cur.MatchIDs,
		})
	}
}

func (b *Bracket) createMatch(ctx context.Context, id1, id2 string, round int) (string, error) {
	a1, err := b.agents.GetAgent(ctx, id1)
	if err != nil {
		return "", model.Conflict(err, map[string]any{"agentId": id1})
	}
	a2, err := b.agents.GetAgent(ctx, id2)
	if err != nil {
		return "", model.Conflict(err, map[string]any{"agentId": id2})
	}
	m, err := b.arena.CreateMatch(ctx, a1, a2, match.Options{
		Mode:            model.ModeTournament,
		TournamentID:    b.state.ID,
		TournamentRound: round,
	})
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// advanceLocked fecha rodadas completas: um vencedor vira campeão, senão nova rodada
func (b *Bracket) advanceLocked(ctx context.Context) {
	for b.state.Active {
		r := b.currentLocked()
		if len(r.results) < len(r.MatchIDs) {
			return
		}
		seen := make(map[string]struct{})
		winners := make([]string, 0, len(r.MatchIDs)+1)
		for _, id := range r.MatchIDs {
			w := r.results[id]
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			winners = append(winners, w)
		}
		if r.Bye != "" {
			if _, dup := seen[r.Bye]; !dup {
				winners = append(winners, r.Bye)
			}
		}
		r.Winners = winners

		if len(winners) <= 1 {
			b.finishLocked(winners)
			return
		}
		b.openRoundLocked(ctx, winners)
	}
}

func (b *Bracket) finishLocked(winners []string) {
	now := b.now()
	b.state.Active = false
	b.state.EndedAt = &now
	champion := ""
	if len(winners) == 1 {
		champion = winners[0]
		b.state.Champion = &champion
	}
	b.log.Info("tournament ended", zap.String("tournament_id", b.state.ID), zap.String("champion", champion))
	b.arena.RecordActivity(model.ActivityTournamentEnded, champion, "",
		fmt.Sprintf("tournament won by %s", champion),
		map[string]any{"tournamentId": b.state.ID, "rounds": b.state.CurrentRound})
	b.arena.Notify(events.TournamentEnded, b.state.ID, events.TournamentPayload{
		TournamentID: b.state.ID,
		Round:        b.state.CurrentRound,
		Participants: b.state.Participants,
		ChampionID:   champion,
	})
}

// Eligible filtra agentes active e ordena por rank (nulos por último) e depois poder
func Eligible(agents []model.Agent) []model.Agent {
	out := make([]model.Agent, 0, len(agents))
	for _, a := range agents {
		if a.Status == model.AgentActive {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Rank, out[j].Rank
		switch {
		case ri != nil && rj == nil:
			return true
		case ri == nil && rj != nil:
			return false
		case ri != nil && rj != nil && *ri != *rj:
			return *ri < *rj
		}
		if out[i].PowerRating != out[j].PowerRating {
			return out[i].PowerRating > out[j].PowerRating
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// BracketSize é a maior potência de dois <= min(max, n)
func BracketSize(n, max int) int {
	if max < n {
		n = max
	}
	size := 1
	for size*2 <= n {
		size *= 2
	}
	return size
}
