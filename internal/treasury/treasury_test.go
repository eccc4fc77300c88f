package treasury

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
	"HolyLedger/internal/model"
	"HolyLedger/internal/token"
)

var (
	treasuryAddr = common.HexToAddress("0x7e")
	admin        = common.HexToAddress("0xad")
	frontEnd     = common.HexToAddress("0xfe")
	alice        = common.HexToAddress("0xa1")
	bob          = common.HexToAddress("0xb0")
	carol        = common.HexToAddress("0xc0")

	t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	tr     *Treasury
	book   *token.Book
	j      *journal.Journal
	events []model.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{j: journal.New()}
	f.book = token.NewBook(f.j)
	tr, err := New(Config{
		Address:           treasuryAddr,
		Admin:             admin,
		FrontEnd:          frontEnd,
		PowercardActive:   7 * 24 * time.Hour,
		PowercardCooldown: 3 * 24 * time.Hour,
		Emit:              func(e model.Event) { f.events = append(f.events, e) },
	}, f.j, f.book)
	require.NoError(t, err)
	f.tr = tr
	require.NoError(t, f.book.Mint(token.BaseAsset, admin, uint256.NewInt(1_000_000_000)))
	return f
}

func (f *fixture) mint(t *testing.T, asset token.Asset, to common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, f.book.Mint(asset, to, uint256.NewInt(amount)))
}

func (f *fixture) stake(t *testing.T, who common.Address, base, lp uint64) {
	t.Helper()
	f.mint(t, token.Governance, who, base)
	f.mint(t, token.LPToken, who, lp)
	require.NoError(t, f.tr.Deposit(who, who, uint256.NewInt(base), uint256.NewInt(lp), t0))
}

func (f *fixture) profit(t *testing.T, amount uint64, now time.Time) {
	t.Helper()
	require.NoError(t, f.tr.ReceiveProfit(admin, uint256.NewInt(amount), now))
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestReceiveProfitSplitsBetweenEndowmentAndStakers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stake(t, alice, 2_000_000, 0)

	f.profit(t, 1000, t0)

	require.Equal(t, u(500), f.tr.EndowmentBalance())
	require.Equal(t, u(500), f.tr.BonusBalance())
	require.Equal(t, u(500), f.tr.PendingBonus(alice))
	require.Equal(t, u(1000), f.book.BalanceOf(token.BaseAsset, treasuryAddr))
}

func TestReceiveProfitWithoutStakersFundsEndowment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.profit(t, 1000, t0)

	require.Equal(t, u(1000), f.tr.EndowmentBalance())
	require.True(t, f.tr.BonusBalance().IsZero())
}

func TestReceiveProfitRequiresSender(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mint(t, token.BaseAsset, bob, 100)

	err := f.tr.ReceiveProfit(bob, u(100), t0)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	require.NoError(t, f.tr.AddProfitSender(admin, bob))
	require.NoError(t, f.tr.ReceiveProfit(bob, u(100), t0))
	require.Equal(t, u(100), f.tr.EndowmentBalance())
}

func TestStakeClassesAreWeighted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stake(t, alice, 100, 0)
	f.stake(t, bob, 0, 40) // 40 LP at 2.5x weighs as much as 100 base

	f.profit(t, 400, t0)

	require.Equal(t, u(100), f.tr.PendingBonus(alice))
	require.Equal(t, u(100), f.tr.PendingBonus(bob))
	require.Equal(t, u(200), f.tr.TotalWeight())
}

func TestStakeChangesTokenizePendingBonus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stake(t, alice, 2_000_000, 0)
	f.profit(t, 1000, t0)

	f.stake(t, alice, 1_000_000, 0)

	require.True(t, f.tr.PendingBonus(alice).IsZero())
	require.Equal(t, u(500), f.tr.TokenizedBonus(alice))
	require.Equal(t, u(500), f.tr.TotalBonus(alice))

	require.NoError(t, f.tr.Withdraw(alice, alice, u(3_000_000), u(0), t0))
	require.Equal(t, u(3_000_000), f.book.BalanceOf(token.Governance, alice))
	require.True(t, f.tr.TotalWeight().IsZero())
	require.Equal(t, u(500), f.tr.TotalBonus(alice))
}

func TestWithdrawChecks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stake(t, alice, 100, 10)

	require.ErrorIs(t, f.tr.Withdraw(bob, alice, u(1), u(0), t0), model.ErrUnauthorized)
	require.ErrorIs(t, f.tr.Withdraw(alice, alice, u(101), u(0), t0), ErrInsufficientStake)
	require.ErrorIs(t, f.tr.Withdraw(alice, alice, u(0), u(0), t0), ErrZeroAmount)

	// The front end may act for the staker.
	require.NoError(t, f.tr.Withdraw(frontEnd, alice, u(50), u(10), t0))
	base, lp := f.tr.StakeOf(alice)
	require.Equal(t, u(50), base)
	require.True(t, lp.IsZero())
}

func TestBonusConservationUnderChurn(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	stakers := []common.Address{alice, bob, carol}

	steps := []struct {
		who         int
		base, lp    uint64
		unstake     bool
		profitAfter uint64
	}{
		{0, 1_000, 0, false, 777},
		{1, 0, 333, false, 1_001},
		{2, 12_345, 7, false, 0},
		{0, 400, 0, true, 99_999},
		{1, 0, 100, true, 5},
		{2, 1, 1, false, 123_456},
		{0, 600, 0, true, 31},
	}
	for _, s := range steps {
		who := stakers[s.who]
		if s.unstake {
			require.NoError(t, f.tr.Withdraw(who, who, u(s.base), u(s.lp), t0))
		} else {
			f.stake(t, who, s.base, s.lp)
		}
		if s.profitAfter > 0 {
			f.profit(t, s.profitAfter, t0)
		}
	}

	owed := calculator.Zero()
	for _, s := range stakers {
		owed = calculator.MustAdd(owed, f.tr.TotalBonus(s))
	}
	pool := f.tr.BonusBalance()
	require.False(t, owed.Gt(pool), "owed %s exceeds bonus balance %s", owed.Dec(), pool.Dec())
	slack := uint256.NewInt(uint64(2 * (len(steps) + len(stakers))))
	require.False(t, new(uint256.Int).Sub(pool, owed).Gt(slack),
		"rounding loss %s", new(uint256.Int).Sub(pool, owed).Dec())

	held := calculator.MustAdd(f.tr.EndowmentBalance(), pool)
	require.Equal(t, f.book.BalanceOf(token.BaseAsset, treasuryAddr), held)
}
