// Package vault defines the yield source a valor invests into and ships a
// simulated implementation whose price-per-share follows its asset holdings.
package vault

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientShares = errors.New("insufficient vault shares")
	ErrZeroShares         = errors.New("deposit mints zero shares")
)

// Adapter is the narrow surface of an external yield-bearing vault.
// Conversions follow ERC-4626 rounding: ConvertToShares and ConvertToAssets
// round down, PreviewWithdraw and PreviewMint round up. PricePerShare is 18-decimal fixed
// point per whole share and is informational only.
type Adapter interface {
	Address() common.Address
	Deposit(from common.Address, amount *uint256.Int) (*uint256.Int, error)
	Withdraw(holder common.Address, shares *uint256.Int) (*uint256.Int, error)
	ConvertToShares(amount *uint256.Int) (*uint256.Int, error)
	ConvertToAssets(shares *uint256.Int) *uint256.Int
	PreviewWithdraw(amount *uint256.Int) (*uint256.Int, error)
	PreviewMint(shares *uint256.Int) *uint256.Int
	PricePerShare() *uint256.Int
	BalanceOf(holder common.Address) *uint256.Int
}
