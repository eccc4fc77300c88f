package treasury

import (
	"testing"

	"github.com/stretchr/testify/require"

	"HolyLedger/internal/model"
	"HolyLedger/internal/token"
)

func TestBurnValuePortionsLeveragesEndowment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.profit(t, 1500, t0)
	f.mint(t, token.Governance, alice, 50_000_000)
	f.mint(t, token.Governance, bob, 950_000_000)

	endowment, bonus, err := f.tr.BurnValuePortions(alice, u(50_000_000))
	require.NoError(t, err)
	require.Equal(t, u(300), endowment)
	require.True(t, bonus.IsZero())
}

func TestClaimAndBurnPaysEndowmentPortion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.profit(t, 1500, t0)
	f.mint(t, token.Governance, alice, 50_000_000)
	f.mint(t, token.Governance, bob, 950_000_000)

	_, _, err := f.tr.ClaimAndBurn(alice, alice, u(50_000_000), t0)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	endowment, bonus, err := f.tr.ClaimAndBurn(frontEnd, alice, u(50_000_000), t0)
	require.NoError(t, err)
	require.Equal(t, u(300), endowment)
	require.True(t, bonus.IsZero())

	require.Equal(t, u(300), f.book.BalanceOf(token.BaseAsset, alice))
	require.Equal(t, u(1200), f.tr.EndowmentBalance())
	require.True(t, f.book.BalanceOf(token.Governance, alice).IsZero())
	require.Equal(t, u(950_000_000), f.book.TotalSupply(token.Governance))
}

func TestClaimAndBurnRejectsAboveCap(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.profit(t, 1500, t0)
	f.mint(t, token.Governance, alice, 50_000_001)
	f.mint(t, token.Governance, bob, 949_999_999)

	_, _, err := f.tr.ClaimAndBurn(frontEnd, alice, u(50_000_001), t0)
	require.ErrorIs(t, err, ErrBurnCapExceeded)
	require.ErrorIs(t, err, model.ErrInsufficientBalance)
	require.Equal(t, u(1500), f.tr.EndowmentBalance())
	require.Equal(t, u(50_000_001), f.book.BalanceOf(token.Governance, alice))
}

func TestClaimAndBurnSpendsBonusFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.profit(t, 10_000, t0) // no stakers yet: all endowment
	f.stake(t, alice, 2_000_000, 0)
	f.profit(t, 100, t0) // 50 endowment, 50 bonus to alice
	f.mint(t, token.Governance, alice, 48_000_000)
	f.mint(t, token.Governance, bob, 950_000_000)
	require.Equal(t, u(10_050), f.tr.EndowmentBalance())

	// 5% of supply at 4x leverage on 10050 is 2010: 50 from bonus, the rest from endowment.
	endowment, bonus, err := f.tr.ClaimAndBurn(frontEnd, alice, u(50_000_000), t0)
	require.NoError(t, err)
	require.Equal(t, u(50), bonus)
	require.Equal(t, u(1960), endowment)

	require.Equal(t, u(2010), f.book.BalanceOf(token.BaseAsset, alice))
	require.Equal(t, u(8090), f.tr.EndowmentBalance())
	require.True(t, f.tr.BonusBalance().IsZero())
	require.True(t, f.tr.TotalBonus(alice).IsZero())
}

func TestClaimAndBurnRevertsWhenBurnFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.profit(t, 1500, t0)
	f.mint(t, token.Governance, bob, 1_000_000_000)
	before := len(f.events)

	_, _, err := f.tr.ClaimAndBurn(frontEnd, alice, u(1_000), t0)
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
	require.Equal(t, u(1500), f.tr.EndowmentBalance())
	require.True(t, f.book.BalanceOf(token.BaseAsset, alice).IsZero())
	require.Len(t, f.events, before)
	require.Zero(t, f.j.Len())
}

func TestClaimUSDCForBonusRestakes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stake(t, alice, 2_000_000, 0)
	f.profit(t, 1000, t0)

	paid, err := f.tr.ClaimUSDCForBonus(alice, alice, t0)
	require.NoError(t, err)
	require.Equal(t, u(500), paid)

	require.Equal(t, u(500), f.book.BalanceOf(token.BaseAsset, alice))
	require.True(t, f.tr.TotalBonus(alice).IsZero())
	require.True(t, f.tr.BonusBalance().IsZero())
	require.Equal(t, u(500), f.tr.EndowmentBalance())

	base, _ := f.tr.StakeOf(alice)
	require.Equal(t, u(2_000_000+500_000_000_000_000), base)
	require.Equal(t, base, f.book.BalanceOf(token.Governance, treasuryAddr))

	_, err = f.tr.ClaimUSDCForBonus(alice, alice, t0)
	require.ErrorIs(t, err, ErrNothingToClaim)
}
