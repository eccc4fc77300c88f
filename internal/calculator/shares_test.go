package calculator

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestSharesForDeposit(t *testing.T) {
	t.Parallel()

	t.Run("first deposit mints one to one", func(t *testing.T) {
		t.Parallel()
		got, err := SharesForDeposit(uint256.NewInt(100), Zero(), Zero())
		require.NoError(t, err)
		require.Equal(t, uint64(100), got.Uint64())
	})

	t.Run("rounds down in favour of the pool", func(t *testing.T) {
		t.Parallel()
		// 3 shares backed by 4 assets: 10 assets buys 7.5 shares.
		got, err := SharesForDeposit(uint256.NewInt(10), uint256.NewInt(3), uint256.NewInt(4))
		require.NoError(t, err)
		require.Equal(t, uint64(7), got.Uint64())
	})

	t.Run("empty assets with outstanding shares", func(t *testing.T) {
		t.Parallel()
		_, err := SharesForDeposit(uint256.NewInt(10), uint256.NewInt(3), Zero())
		require.ErrorIs(t, err, ErrDivisionByZero)
	})
}

func TestSharesForWithdrawalNeverExceedsOwnedShares(t *testing.T) {
	t.Parallel()

	totalShares := uint256.NewInt(1_000_003)
	totalAssets := uint256.NewInt(1_234_567)
	owned := uint256.NewInt(333_333)

	balance := AssetsForShares(owned, totalShares, totalAssets)
	burn, err := SharesForWithdrawal(balance, totalShares, totalAssets)
	require.NoError(t, err)
	require.False(t, burn.Gt(owned), "burn %s owned %s", burn.Dec(), owned.Dec())
}

func TestPricePerShare(t *testing.T) {
	t.Parallel()

	require.True(t, PricePerShare(Zero(), Zero()).Eq(Wad))
	pps := PricePerShare(uint256.NewInt(150), uint256.NewInt(100))
	require.Equal(t, "1500000000000000000", pps.Dec())
}
