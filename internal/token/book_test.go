package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"HolyLedger/internal/journal"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
)

func TestBook_MintTransferBurn(t *testing.T) {
	t.Parallel()

	b := NewBook(journal.New())
	require.NoError(t, b.Mint(BaseAsset, alice, uint256.NewInt(100)))
	require.NoError(t, b.Transfer(BaseAsset, alice, bob, uint256.NewInt(30)))
	require.NoError(t, b.Burn(BaseAsset, bob, uint256.NewInt(10)))

	require.Equal(t, uint64(70), b.BalanceOf(BaseAsset, alice).Uint64())
	require.Equal(t, uint64(20), b.BalanceOf(BaseAsset, bob).Uint64())
	require.Equal(t, uint64(90), b.TotalSupply(BaseAsset).Uint64())
	require.ElementsMatch(t, []common.Address{alice, bob}, b.Holders(BaseAsset))
}

func TestBook_InsufficientBalance(t *testing.T) {
	t.Parallel()

	b := NewBook(journal.New())
	require.NoError(t, b.Mint(Governance, alice, uint256.NewInt(5)))

	err := b.Transfer(Governance, alice, bob, uint256.NewInt(6))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	err = b.Burn(Governance, bob, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	err = b.Transfer(Governance, alice, common.Address{}, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrZeroAddress)
}

func TestBook_RevertedSectionRestoresBalances(t *testing.T) {
	t.Parallel()

	j := journal.New()
	b := NewBook(j)
	require.NoError(t, b.Mint(BaseAsset, alice, uint256.NewInt(100)))

	snap := j.Begin()
	require.NoError(t, b.Transfer(BaseAsset, alice, bob, uint256.NewInt(40)))
	require.NoError(t, b.Mint(BaseAsset, bob, uint256.NewInt(7)))
	j.End(snap, errors.New("rejected"))

	require.Equal(t, uint64(100), b.BalanceOf(BaseAsset, alice).Uint64())
	require.True(t, b.BalanceOf(BaseAsset, bob).IsZero())
	require.Equal(t, uint64(100), b.TotalSupply(BaseAsset).Uint64())
}
