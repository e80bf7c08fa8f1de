package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/agent-arena/internal/arena/model"
)

// DefaultMaxBet é o limite superior de uma aposta (inclusivo)
var DefaultMaxBet = decimal.NewFromInt(10000)

// InitialOdds é a odd exibida enquanto algum lado ainda não tem stake
var InitialOdds = decimal.NewFromInt(2)

// BetStore é a parte da persistência usada pelo ledger
type BetStore interface {
	SaveBet(ctx context.Context, b model.Bet) error
	ListBets(ctx context.Context, matchID string) ([]model.Bet, error)
	UpdateBet(ctx context.Context, b model.Bet) error
}

// Ledger guarda os tickets e os agregados por partida.
// Os tickets de partidas ao vivo ficam em memória; o store só recebe cópias
// pelo caminho assíncrono do engine (Persist/Resolve). O chamador serializa
// Place e Settled por partida (lock da partida).
type Ledger struct {
	store  BetStore
	maxBet decimal.Decimal
	now    func() time.Time

	mu      sync.RWMutex
	tickets map[string]*book // matchID -> tickets até a persistência da resolução
}

type book struct {
	bets    []model.Bet
	wallets map[string]struct{}
}

func New(store BetStore, maxBet decimal.Decimal, now func() time.Time) *Ledger {
	if !maxBet.IsPositive() {
		maxBet = DefaultMaxBet
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, maxBet: maxBet, now: now, tickets: make(map[string]*book)}
}

// NormalizeWallet valida o formato 0x + 40 hex e devolve o endereço em checksum,
// para que a mesma carteira em caixa diferente conte como uma só.
func NormalizeWallet(addr string) (string, error) {
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidWallet, addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

// ValidateAmount exige 0 < amount <= max
func (l *Ledger) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(l.maxBet) {
		return fmt.Errorf("%w: must be > 0 and <= %s", model.ErrInvalidAmount, l.maxBet)
	}
	return nil
}

// Place cria o ticket em memória, atualiza os totais do lado apostado e recalcula as odds.
// Não faz I/O: o chamador persiste o ticket com Persist fora do lock da partida.
// Erros de validação vêm antes de qualquer checagem de estado; nada é alterado em caso de erro.
func (l *Ledger) Place(m *model.Match, agentID, wallet string, amount decimal.Decimal) (model.Bet, error) {
	if err := l.ValidateAmount(amount); err != nil {
		return model.Bet{}, err
	}
	wallet, err := NormalizeWallet(wallet)
	if err != nil {
		return model.Bet{}, err
	}
	if m.Status != model.MatchLive {
		return model.Bet{}, model.Conflict(model.ErrBettingClosed, map[string]any{"status": m.Status})
	}
	side, ok := m.SideOf(agentID)
	if !ok {
		return model.Bet{}, model.ErrSideNotInMatch
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	bk, ok := l.tickets[m.ID]
	if !ok {
		bk = &book{wallets: make(map[string]struct{})}
		l.tickets[m.ID] = bk
	}
	if _, dup := bk.wallets[wallet]; dup {
		return model.Bet{}, model.Conflict(model.ErrDuplicateBet, map[string]any{"wallet": wallet, "matchId": m.ID})
	}

	f := m.Fighter(side)
	odds := f.Odds
	if odds.IsZero() {
		odds = InitialOdds
	}
	b := model.Bet{
		ID:           uuid.NewString(),
		MatchID:      m.ID,
		AgentID:      agentID,
		Wallet:       wallet,
		Amount:       amount,
		Odds:         odds,
		PotentialWin: amount.Mul(odds).Round(6),
		Status:       model.BetPending,
		Payout:       decimal.Zero,
		CreatedAt:    l.now(),
	}
	bk.bets = append(bk.bets, b)
	bk.wallets[wallet] = struct{}{}

	f.WagerTotal = f.WagerTotal.Add(amount)
	RecomputeOdds(m)
	return b, nil
}

// Persist grava um ticket recém-criado
func (l *Ledger) Persist(ctx context.Context, b model.Bet) error {
	if err := l.store.SaveBet(ctx, b); err != nil {
		return fmt.Errorf("save bet %s: %w", b.ID, err)
	}
	return nil
}

// Tickets devolve uma cópia dos tickets em memória da partida, em ordem de criação
func (l *Ledger) Tickets(matchID string) []model.Bet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bk, ok := l.tickets[matchID]
	if !ok {
		return nil
	}
	return append([]model.Bet(nil), bk.bets...)
}

// Settled troca os tickets em memória pelos já resolvidos, para leituras
// feitas antes de Resolve terminar de persistir
func (l *Ledger) Settled(matchID string, bets []model.Bet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bk, ok := l.tickets[matchID]; ok {
		bk.bets = append([]model.Bet(nil), bets...)
	}
}

// Bets lista os tickets de uma partida: da memória enquanto ela é rastreada, senão do store
func (l *Ledger) Bets(ctx context.Context, matchID string) ([]model.Bet, error) {
	l.mu.RLock()
	bk, ok := l.tickets[matchID]
	var out []model.Bet
	if ok {
		out = append([]model.Bet(nil), bk.bets...)
	}
	l.mu.RUnlock()
	if ok {
		return out, nil
	}
	return l.store.ListBets(ctx, matchID)
}

// Resolve persiste o resultado de cada ticket e libera a partida da memória.
// Um ticket cuja gravação inicial falhou é gravado agora já resolvido.
func (l *Ledger) Resolve(ctx context.Context, matchID string, bets []model.Bet) error {
	var errs []error
	for _, b := range bets {
		err := l.store.UpdateBet(ctx, b)
		if errors.Is(err, model.ErrNotFound) {
			err = l.store.SaveBet(ctx, b)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve bet %s: %w", b.ID, err))
		}
	}
	if len(errs) > 0 {
		// mantém em memória para leitura; a resolução já está no payload de match_ended
		return errors.Join(errs...)
	}
	l.Forget(matchID)
	return nil
}

// Forget remove os tickets de uma partida da memória
func (l *Ledger) Forget(matchID string) {
	l.mu.Lock()
	delete(l.tickets, matchID)
	l.mu.Unlock()
}

// RecomputeOdds define odds = pool / stake do lado (2 casas) quando os dois lados têm stake
func RecomputeOdds(m *model.Match) {
	s1, s2 := m.Agent1.WagerTotal, m.Agent2.WagerTotal
	if !s1.IsPositive() || !s2.IsPositive() {
		return
	}
	pool := s1.Add(s2)
	m.Agent1.Odds = pool.Div(s1).Round(2)
	m.Agent2.Odds = pool.Div(s2).Round(2)
}
