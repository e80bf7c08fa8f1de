package match_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/combat"
	"github.com/radieske/agent-arena/internal/arena/match"
	"github.com/radieske/agent-arena/internal/arena/model"
	"github.com/radieske/agent-arena/internal/arena/settlement"
	"github.com/radieske/agent-arena/internal/arena/store/memory"
	"github.com/radieske/agent-arena/pkg/contracts/events"
)

const (
	walletA = "0x52908400098527886E0F7030069857D2E4169EE7"
	walletB = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
)

type recorder struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (r *recorder) Publish(_ context.Context, e events.Envelope) error {
	r.mu.Lock()
	r.envs = append(r.envs, e)
	r.mu.Unlock()
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.envs))
	for _, e := range r.envs {
		out = append(out, e.Type)
	}
	return out
}

type fakeSettler struct {
	mu   sync.Mutex
	reqs []settlement.Request
	err  error
}

func (f *fakeSettler) Settle(_ context.Context, r settlement.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, r)
	return f.err
}

type fakeTimers struct {
	mu      sync.Mutex
	started map[string]int
	stopped map[string]int
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{started: map[string]int{}, stopped: map[string]int{}}
}

func (f *fakeTimers) Start(id string, _ func()) error {
	f.mu.Lock()
	f.started[id]++
	f.mu.Unlock()
	return nil
}

func (f *fakeTimers) Stop(id string) {
	f.mu.Lock()
	f.stopped[id]++
	f.mu.Unlock()
}

type harness struct {
	engine  *match.Engine
	store   *memory.Store
	pub     *recorder
	settler *fakeSettler
	timers  *fakeTimers
	a1, a2  model.Agent
}

func newHarness(t *testing.T, cfg match.Config) *harness {
	t.Helper()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	h := &harness{
		store:   memory.New(),
		pub:     &recorder{},
		settler: &fakeSettler{},
		timers:  newFakeTimers(),
		a1:      model.Agent{ID: "a1", Name: "Bruiser", Status: model.AgentActive},
		a2:      model.Agent{ID: "a2", Name: "Dancer", Status: model.AgentActive},
	}
	ctx := context.Background()
	require.NoError(t, h.store.SaveAgent(ctx, h.a1))
	require.NoError(t, h.store.SaveAgent(ctx, h.a2))

	h.engine = match.New(cfg, match.Deps{
		Log:       zap.NewNop(),
		Store:     h.store,
		Resolver:  combat.NewResolver(rand.New(rand.NewSource(7)), clock),
		Timers:    h.timers,
		Publisher: h.pub,
		Settler:   h.settler,
		Now:       clock,
	})
	t.Cleanup(h.engine.Close)
	return h
}

func (h *harness) start(t *testing.T) model.Match {
	t.Helper()
	m, err := h.engine.CreateMatch(context.Background(), h.a1, h.a2, match.Options{Mode: model.ModeRanked})
	require.NoError(t, err)
	return m
}

func TestCreateMatch_InitialState(t *testing.T) {
	h := newHarness(t, match.DefaultConfig())
	m := h.start(t)

	assert.Equal(t, model.MatchLive, m.Status)
	assert.Equal(t, 1, m.Round)
	assert.Equal(t, 60, m.TimeRemaining)
	assert.Equal(t, 200, m.Agent1.HP)
	assert.Equal(t, 100, m.Agent2.Stamina)
	assert.True(t, m.Agent1.Odds.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 1, h.timers.started[m.ID])

	a, err := h.store.GetAgent(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AgentInMatch, a.Status)
	assert.True(t, h.engine.InLiveMatch("a2"))

	_, err = h.engine.CreateMatch(context.Background(), h.a2, model.Agent{ID: "a3"}, match.Options{})
	assert.ErrorIs(t, err, model.ErrAlreadyInMatch)
	assert.Equal(t, "a2", model.StateOf(err)["agentId"])

	h.engine.Flush()
	assert.Contains(t, h.pub.types(), events.MatchStarted)
	stored, err := h.store.GetMatch(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchLive, stored.Status)
}

func TestTick_AdvancesRoundsThenDecides(t *testing.T) {
	h := newHarness(t, match.Config{MaxHP: 200, MaxRounds: 2, RoundSeconds: 2})
	var outcomes []match.Outcome
	h.engine.Subscribe(func(o match.Outcome) { outcomes = append(outcomes, o) })
	m := h.start(t)

	_, err := h.engine.SubmitAction(context.Background(), "a2", combat.Attack, 1)
	require.NoError(t, err)

	h.engine.Tick(m.ID)
	h.engine.Tick(m.ID)
	got, err := h.engine.GetMatch(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Round)
	assert.Equal(t, 2, got.TimeRemaining)
	assert.Less(t, got.Agent1.HP, 200, "HP persists across rounds")
	assert.Equal(t, 85, got.Agent2.Stamina)

	h.engine.Tick(m.ID)
	h.engine.Tick(m.ID)
	h.engine.Tick(m.ID)

	require.Len(t, outcomes, 1)
	assert.Equal(t, "a2", outcomes[0].WinnerID)
	assert.Equal(t, model.EndDecision, outcomes[0].Reason)
	assert.False(t, h.engine.InLiveMatch("a1"))
	assert.Equal(t, 1, h.timers.stopped[m.ID])

	h.engine.Flush()
	hist, err := h.store.ListHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 2, hist[0].Rounds)

	loser, _ := h.store.GetAgent(context.Background(), "a1")
	assert.Equal(t, 1, loser.Stats.Losses)
	assert.Equal(t, -1, loser.Stats.CurrentStreak)
	assert.Equal(t, model.AgentActive, loser.Status)
}

func TestTieBreak(t *testing.T) {
	t.Run("side1 wins equal HP", func(t *testing.T) {
		h := newHarness(t, match.Config{MaxRounds: 1, RoundSeconds: 1})
		var got match.Outcome
		h.engine.Subscribe(func(o match.Outcome) { got = o })
		m := h.start(t)
		h.engine.Tick(m.ID)
		assert.Equal(t, "a1", got.WinnerID)
		assert.False(t, got.Draw)
	})

	t.Run("draw policy", func(t *testing.T) {
		h := newHarness(t, match.Config{MaxRounds: 1, RoundSeconds: 1, TieBreak: match.TieDraw})
		var got match.Outcome
		h.engine.Subscribe(func(o match.Outcome) { got = o })
		m := h.start(t)

		_, err := h.engine.PlaceBet(context.Background(), m.ID, "a1", walletA, decimal.NewFromInt(100))
		require.NoError(t, err)
		h.engine.Tick(m.ID)

		assert.True(t, got.Draw)
		assert.Empty(t, got.WinnerID)

		h.engine.Flush()
		bets, err := h.store.ListBets(context.Background(), m.ID)
		require.NoError(t, err)
		require.Len(t, bets, 1)
		assert.Equal(t, model.BetLost, bets[0].Status)

		hist, _ := h.store.ListHistory(context.Background(), 1)
		require.Len(t, hist, 1)
		assert.True(t, hist[0].Platform.Equal(decimal.NewFromInt(100)))

		a1, _ := h.store.GetAgent(context.Background(), "a1")
		assert.Equal(t, 1, a1.Stats.MatchesPlayed)
		assert.Zero(t, a1.Stats.Wins+a1.Stats.Losses)
	})
}

func TestKO_SettlesPool(t *testing.T) {
	h := newHarness(t, match.Config{MaxHP: 20})
	var outcomes []match.Outcome
	h.engine.Subscribe(func(o match.Outcome) { outcomes = append(outcomes, o) })
	m := h.start(t)
	ctx := context.Background()

	bet, err := h.engine.PlaceBet(ctx, m.ID, "a1", walletA, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, bet.Odds.Equal(decimal.NewFromInt(2)))

	res, err := h.engine.SubmitAction(ctx, "a1", combat.HeavyAttack, 1)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 0, res.Result.OpponentHP)

	require.Len(t, outcomes, 1)
	assert.Equal(t, model.EndKO, outcomes[0].Reason)
	assert.Equal(t, "a1", outcomes[0].WinnerID)

	_, err = h.engine.SubmitAction(ctx, "a1", combat.Attack, 1)
	assert.ErrorIs(t, err, model.ErrMatchNotFound)
	h.engine.Flush()

	_, err = h.engine.PlaceBet(ctx, m.ID, "a2", walletB, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, model.ErrBettingClosed)

	bets, err := h.store.ListBets(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, model.BetWon, bets[0].Status)
	assert.True(t, bets[0].Payout.Equal(decimal.NewFromInt(750)))

	hist, err := h.store.ListHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].WinnerAmount.Equal(decimal.NewFromInt(150)))
	assert.True(t, hist[0].Platform.Equal(decimal.NewFromInt(100)))

	winner, _ := h.store.GetAgent(ctx, "a1")
	assert.Equal(t, 1, winner.Stats.Wins)
	assert.Equal(t, 1, winner.Stats.KillStreak)
	assert.Equal(t, 1.0, winner.Stats.WinRate)
	assert.True(t, winner.Stats.TotalEarnings.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, model.AgentActive, winner.Status)

	h.settler.mu.Lock()
	require.Len(t, h.settler.reqs, 1)
	req := h.settler.reqs[0]
	h.settler.mu.Unlock()
	assert.Equal(t, "a1", req.WinnerID)
	require.Len(t, req.Payouts, 1)
	assert.Equal(t, walletA, req.Payouts[0].Wallet)

	assert.Contains(t, h.pub.types(), events.MatchEnded)
}

func TestTermination_RunsOnceUnderRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t, match.Config{MaxHP: 20, MaxRounds: 1, RoundSeconds: 1})
		var fired atomic.Int32
		h.engine.Subscribe(func(match.Outcome) { fired.Add(1) })
		m := h.start(t)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); h.engine.Tick(m.ID) }()
		go func() { defer wg.Done(); _, _ = h.engine.SubmitAction(context.Background(), "a1", combat.HeavyAttack, 1) }()
		go func() { defer wg.Done(); h.engine.Tick(m.ID) }()
		wg.Wait()

		require.Equal(t, int32(1), fired.Load())
		h.engine.Flush()
		hist, _ := h.store.ListHistory(context.Background(), 10)
		require.Len(t, hist, 1)
	}
}

func TestSettlementFailure_RecordedNotRetried(t *testing.T) {
	h := newHarness(t, match.Config{MaxHP: 20})
	h.settler.err = errors.New("rpc unavailable")
	h.start(t)

	_, err := h.engine.SubmitAction(context.Background(), "a2", combat.HeavyAttack, 1)
	require.NoError(t, err)
	h.engine.Flush()

	acts, err := h.store.ListActivity(context.Background(), 10)
	require.NoError(t, err)
	var failed int
	for _, a := range acts {
		if a.Type == model.ActivitySettlementFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Len(t, h.settler.reqs, 1)

	hist, _ := h.store.ListHistory(context.Background(), 10)
	assert.Len(t, hist, 1, "history kept despite chain failure")
}

func TestSubmitAction_Errors(t *testing.T) {
	h := newHarness(t, match.DefaultConfig())
	h.start(t)
	ctx := context.Background()

	_, err := h.engine.SubmitAction(ctx, "ghost", combat.Attack, 1)
	assert.ErrorIs(t, err, model.ErrMatchNotFound)

	_, err = h.engine.SubmitAction(ctx, "a1", "fireball", 1)
	assert.ErrorIs(t, err, model.ErrUnknownAction)

	for i := 0; i < 3; i++ {
		_, err = h.engine.SubmitAction(ctx, "a1", combat.HeavyAttack, 0.5)
		require.NoError(t, err)
	}
	_, err = h.engine.SubmitAction(ctx, "a1", combat.HeavyAttack, 0.5)
	assert.ErrorIs(t, err, model.ErrInsufficientStamina)
}

func TestPlaceBet_UpdatesOdds(t *testing.T) {
	h := newHarness(t, match.DefaultConfig())
	m := h.start(t)
	ctx := context.Background()

	_, err := h.engine.PlaceBet(ctx, m.ID, "a1", walletA, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = h.engine.PlaceBet(ctx, m.ID, "a2", walletB, decimal.NewFromInt(300))
	require.NoError(t, err)

	got, err := h.engine.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "4", got.Agent1.Odds.String())
	assert.Equal(t, "1.33", got.Agent2.Odds.String())

	_, err = h.engine.PlaceBet(ctx, m.ID, "a3", walletA, decimal.NewFromInt(1))
	assert.Error(t, err)

	_, err = h.engine.PlaceBet(ctx, "nope", "a1", "bad", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, model.ErrInvalidWallet)

	assert.Len(t, h.engine.LiveMatches(), 1)
}

// flakyStore simula um store lento e instável no caminho das apostas
type flakyStore struct {
	*memory.Store
	saveDelay time.Duration
	saveFails atomic.Int32 // quantas gravações de ticket ainda falham
	listErr   error
}

func (f *flakyStore) SaveBet(ctx context.Context, b model.Bet) error {
	if f.saveDelay > 0 {
		time.Sleep(f.saveDelay)
	}
	if f.saveFails.Add(-1) >= 0 {
		return errors.New("bet store unavailable")
	}
	return f.Store.SaveBet(ctx, b)
}

func (f *flakyStore) ListBets(ctx context.Context, matchID string) ([]model.Bet, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListBets(ctx, matchID)
}

func newFlakyHarness(t *testing.T, cfg match.Config, fs *flakyStore) *harness {
	t.Helper()
	h := &harness{
		store:   fs.Store,
		pub:     &recorder{},
		settler: &fakeSettler{},
		timers:  newFakeTimers(),
		a1:      model.Agent{ID: "a1", Name: "Bruiser", Status: model.AgentActive},
		a2:      model.Agent{ID: "a2", Name: "Dancer", Status: model.AgentActive},
	}
	require.NoError(t, fs.SaveAgent(context.Background(), h.a1))
	require.NoError(t, fs.SaveAgent(context.Background(), h.a2))
	h.engine = match.New(cfg, match.Deps{
		Log:       zap.NewNop(),
		Store:     fs,
		Resolver:  combat.NewResolver(rand.New(rand.NewSource(7)), nil),
		Timers:    h.timers,
		Publisher: h.pub,
		Settler:   h.settler,
	})
	t.Cleanup(h.engine.Close)
	return h
}

func TestKO_SettlesFromLedgerWhenBetStoreFails(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), listErr: errors.New("redis down")}
	fs.saveFails.Store(1)
	h := newFlakyHarness(t, match.Config{MaxHP: 20}, fs)
	m := h.start(t)
	ctx := context.Background()

	_, err := h.engine.PlaceBet(ctx, m.ID, "a1", walletA, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = h.engine.SubmitAction(ctx, "a1", combat.HeavyAttack, 1)
	require.NoError(t, err)
	h.engine.Flush()

	// a gravação inicial falhou; a resolução grava o ticket já liquidado
	bets, err := fs.Store.ListBets(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, model.BetWon, bets[0].Status)
	assert.True(t, bets[0].Payout.Equal(decimal.NewFromInt(75)), "got %s", bets[0].Payout)

	hist, err := h.store.ListHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].BettorsAmount.Equal(decimal.NewFromInt(75)))
	assert.True(t, hist[0].Platform.Equal(decimal.NewFromInt(10)), "bettors share stays with bettors")
	assert.True(t, hist[0].Unallocated.IsZero())

	h.settler.mu.Lock()
	require.Len(t, h.settler.reqs, 1)
	require.Len(t, h.settler.reqs[0].Payouts, 1)
	assert.Equal(t, walletA, h.settler.reqs[0].Payouts[0].Wallet)
	h.settler.mu.Unlock()
}

func TestKO_KeepsSettledTicketsReadableWhenStoreStaysDown(t *testing.T) {
	fs := &flakyStore{Store: memory.New()}
	fs.saveFails.Store(100)
	h := newFlakyHarness(t, match.Config{MaxHP: 20}, fs)
	m := h.start(t)
	ctx := context.Background()

	_, err := h.engine.PlaceBet(ctx, m.ID, "a2", walletB, decimal.NewFromInt(40))
	require.NoError(t, err)
	_, err = h.engine.SubmitAction(ctx, "a1", combat.HeavyAttack, 1)
	require.NoError(t, err)
	h.engine.Flush()

	bets, err := h.engine.Bets(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, model.BetLost, bets[0].Status)

	hist, _ := h.store.ListHistory(ctx, 1)
	require.Len(t, hist, 1, "history independe do store de apostas")
}

func TestPlaceBet_SlowBetStoreDoesNotStallCombat(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), saveDelay: 300 * time.Millisecond}
	h := newFlakyHarness(t, match.Config{MaxRounds: 3, RoundSeconds: 10}, fs)
	m := h.start(t)
	ctx := context.Background()

	start := time.Now()
	_, err := h.engine.PlaceBet(ctx, m.ID, "a1", walletA, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = h.engine.PlaceBet(ctx, m.ID, "a2", walletB, decimal.NewFromInt(30))
	require.NoError(t, err)
	h.engine.Tick(m.ID)
	_, err = h.engine.SubmitAction(ctx, "a1", combat.Attack, 1)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	got, err := h.engine.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.TimeRemaining)
	assert.Equal(t, "4", got.Agent1.Odds.String())

	bets, err := h.engine.Bets(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, bets, 2, "tickets visíveis antes da gravação")

	h.engine.Flush()
	stored, _ := fs.Store.ListBets(ctx, m.ID)
	assert.Len(t, stored, 2)
}
