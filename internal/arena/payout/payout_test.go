package payout_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/model"
	"github.com/radieske/agent-arena/internal/arena/payout"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bet(id, side, amount string) model.Bet {
	return model.Bet{ID: id, AgentID: side, Amount: d(amount), Status: model.BetPending}
}

func TestSplitPool_Default(t *testing.T) {
	s := payout.NewSplitter(payout.DefaultPercentages, zap.NewNop())
	split := s.SplitPool(d("1000"))

	assert.True(t, split.Platform.Equal(d("100")))
	assert.True(t, split.Winner.Equal(d("150")))
	assert.True(t, split.Bettors.Equal(d("750")))
	assert.False(t, s.UsingFallback())
}

func TestSplitPool_SumsToTotal(t *testing.T) {
	s := payout.NewSplitter(payout.Percentages{Platform: 7, Winner: 13, Bettors: 80}, zap.NewNop())
	for _, total := range []string{"0.000001", "1", "333.333333", "9999.999999", "12345.6789"} {
		split := s.SplitPool(d(total))
		sum := split.Platform.Add(split.Winner).Add(split.Bettors)
		assert.True(t, sum.Equal(d(total)), "total %s got %s", total, sum)
	}
}

func TestNewSplitter_MisconfiguredFallsBack(t *testing.T) {
	s := payout.NewSplitter(payout.Percentages{Platform: 50, Winner: 50, Bettors: 50}, zap.NewNop())
	assert.True(t, s.UsingFallback())
	assert.Equal(t, payout.DefaultPercentages, s.Percentages())

	s = payout.NewSplitter(payout.Percentages{Platform: -10, Winner: 35, Bettors: 75}, nil)
	assert.True(t, s.UsingFallback())
}

func TestDistribute_ProportionalWithResidual(t *testing.T) {
	winning := []model.Bet{bet("a", "x", "1"), bet("b", "x", "1"), bet("c", "x", "1")}
	dist := payout.DistributeBettorsPool(d("100"), winning)

	require.Len(t, dist.Payouts, 3)
	for _, p := range dist.Payouts {
		assert.True(t, p.Equal(d("33.333333")))
	}
	assert.True(t, dist.Unallocated.Equal(d("0.000001")))

	sum := dist.Unallocated
	for _, p := range dist.Payouts {
		sum = sum.Add(p)
	}
	assert.True(t, sum.Equal(d("100")))
}

func TestDistribute_NoWinningStake(t *testing.T) {
	dist := payout.DistributeBettorsPool(d("750"), nil)
	assert.Empty(t, dist.Payouts)
	assert.True(t, dist.Unallocated.Equal(d("750")))

	dist = payout.DistributeBettorsPool(decimal.Zero, []model.Bet{bet("a", "x", "10")})
	assert.Empty(t, dist.Payouts)
	assert.True(t, dist.Unallocated.IsZero())
}

func TestSettle_SingleWinningTicketTakesBettorsShare(t *testing.T) {
	s := payout.NewSplitter(payout.DefaultPercentages, zap.NewNop())
	bets := []model.Bet{bet("w", "x", "100"), bet("l", "y", "900")}
	now := time.Now()

	st := s.Settle(d("1000"), bets, "x", now)

	assert.True(t, st.WinnerCredit.Equal(d("150")))
	assert.True(t, st.Distribution.Payouts["w"].Equal(d("750")))
	assert.True(t, st.PlatformCarry.Equal(d("100")))
	require.Len(t, st.Bets, 2)
	assert.Equal(t, model.BetWon, st.Bets[0].Status)
	assert.True(t, st.Bets[0].Payout.Equal(d("750")))
	assert.Equal(t, model.BetLost, st.Bets[1].Status)
	assert.True(t, st.Bets[1].Payout.IsZero())
	assert.NotNil(t, st.Bets[1].ResolvedAt)
}

func TestSettle_PoolOnLosingSideGoesToPlatform(t *testing.T) {
	s := payout.NewSplitter(payout.DefaultPercentages, zap.NewNop())
	st := s.Settle(d("400"), []model.Bet{bet("l", "y", "400")}, "x", time.Now())

	assert.Empty(t, st.Distribution.Payouts)
	assert.True(t, st.PlatformCarry.Equal(d("340")))
	assert.True(t, st.WinnerCredit.Equal(d("60")))
	assert.Equal(t, model.BetLost, st.Bets[0].Status)
}

func TestSettle_DrawSweepsEverythingToPlatform(t *testing.T) {
	s := payout.NewSplitter(payout.DefaultPercentages, zap.NewNop())
	st := s.Settle(d("200"), []model.Bet{bet("a", "x", "100"), bet("b", "y", "100")}, "", time.Now())

	assert.True(t, st.WinnerCredit.IsZero())
	assert.True(t, st.PlatformCarry.Equal(d("200")))
	for _, b := range st.Bets {
		assert.Equal(t, model.BetLost, b.Status)
	}
}
