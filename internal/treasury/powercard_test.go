package treasury

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/model"
	"HolyLedger/internal/token"
)

func TestPowercardBoostsHolderWhileActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stake(t, alice, 100, 0)
	f.stake(t, bob, 100, 0)
	f.mint(t, token.Powercard, alice, 1)

	require.NoError(t, f.tr.StakePowercard(alice, t0))
	require.Equal(t, u(300), f.tr.TotalWeight())

	// The boost sits in the shared total weight: bob is diluted to a third and
	// the stakers' half of the profit is paid out exactly.
	f.profit(t, 600, t0.Add(time.Hour))
	require.Equal(t, u(200), f.tr.TotalBonus(alice))
	require.Equal(t, u(100), f.tr.TotalBonus(bob))
	require.Equal(t, u(300), calculator.MustAdd(f.tr.TotalBonus(alice), f.tr.TotalBonus(bob)))

	// The first touch after the active window drops the boost before splitting.
	f.profit(t, 600, t0.Add(8*24*time.Hour))
	require.Equal(t, u(350), f.tr.TotalBonus(alice))
	require.Equal(t, u(250), f.tr.TotalBonus(bob))
	require.Equal(t, u(200), f.tr.TotalWeight())
}

func TestPowercardStateMachine(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mint(t, token.Powercard, alice, 1)

	require.Equal(t, PhaseUnstaked, f.tr.PowercardState(t0).Phase)
	require.NoError(t, f.tr.StakePowercard(alice, t0))
	require.Equal(t, PhaseActive, f.tr.PowercardState(t0.Add(time.Hour)).Phase)

	require.ErrorIs(t, f.tr.StakePowercard(bob, t0), ErrPowercardOccupied)
	require.ErrorIs(t, f.tr.UnstakePowercard(bob, t0), model.ErrUnauthorized)
	err := f.tr.UnstakePowercard(alice, t0.Add(time.Hour))
	require.ErrorIs(t, err, ErrPowercardActive)
	require.ErrorIs(t, err, model.ErrTimelock)

	afterActive := t0.Add(7*24*time.Hour + time.Second)
	require.Equal(t, PhaseCooldown, f.tr.PowercardState(afterActive).Phase)
	require.ErrorIs(t, f.tr.StakePowercard(bob, afterActive), ErrPowercardOccupied)
	require.NoError(t, f.tr.UnstakePowercard(alice, afterActive))
	require.Equal(t, u(1), f.book.BalanceOf(token.Powercard, alice))

	// Unstaking early does not shorten the holder's cooldown.
	require.ErrorIs(t, f.tr.StakePowercard(alice, afterActive), ErrPowercardCooldown)
	require.NoError(t, f.tr.StakePowercard(alice, t0.Add(10*24*time.Hour)))
}

func TestPowercardPassesToAnotherHolder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mint(t, token.Powercard, alice, 1)
	require.NoError(t, f.tr.StakePowercard(alice, t0))
	afterActive := t0.Add(8 * 24 * time.Hour)
	require.NoError(t, f.tr.UnstakePowercard(alice, afterActive))
	require.NoError(t, f.book.Transfer(token.Powercard, alice, bob, u(1)))

	require.NoError(t, f.tr.StakePowercard(bob, afterActive))
	require.Equal(t, bob, f.tr.PowercardState(afterActive).Holder)
}

func TestPowercardStakeRequiresCard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	err := f.tr.StakePowercard(alice, t0)
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
	require.Equal(t, PhaseUnstaked, f.tr.PowercardState(t0).Phase)
}
