// Package token keeps the balances of every asset the ledger moves: the base
// asset depositors bring, the governance and LP tokens stakers lock, the
// tokenized bonus and the single powercard.
package token

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
)

type Asset string

const (
	BaseAsset  Asset = "USDC"
	Governance Asset = "HH"
	LPToken    Asset = "HHLP"
	Bonus      Asset = "HHB"
	Powercard  Asset = "PWC"
)

// Decimals per asset.
var Decimals = map[Asset]int{
	BaseAsset:  6,
	Governance: 18,
	LPToken:    18,
	Bonus:      6,
	Powercard:  0,
}

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrZeroAddress         = errors.New("zero address")
)

// Book is a journaled multi-asset balance sheet.
type Book struct {
	j        *journal.Journal
	balances map[Asset]map[common.Address]*uint256.Int
	supply   map[Asset]*uint256.Int
}

func NewBook(j *journal.Journal) *Book {
	return &Book{
		j:        j,
		balances: make(map[Asset]map[common.Address]*uint256.Int),
		supply:   make(map[Asset]*uint256.Int),
	}
}

// BalanceOf returns a copy of the holder's balance.
func (b *Book) BalanceOf(asset Asset, holder common.Address) *uint256.Int {
	return calculator.Clone(b.balances[asset][holder])
}

// TotalSupply returns a copy of the asset's supply.
func (b *Book) TotalSupply(asset Asset) *uint256.Int {
	return calculator.Clone(b.supply[asset])
}

// Transfer moves amount from one holder to another.
func (b *Book) Transfer(asset Asset, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("transfer %s: %w", asset, ErrZeroAddress)
	}
	if amount.IsZero() || from == to {
		if b.BalanceOf(asset, from).Lt(amount) {
			return fmt.Errorf("transfer %s from %s: %w", asset, from.Hex(), ErrInsufficientBalance)
		}
		return nil
	}
	fromBal := b.BalanceOf(asset, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("transfer %s %s from %s (has %s): %w",
			amount.Dec(), asset, from.Hex(), fromBal.Dec(), ErrInsufficientBalance)
	}
	b.set(asset, from, new(uint256.Int).Sub(fromBal, amount))
	b.set(asset, to, calculator.MustAdd(b.BalanceOf(asset, to), amount))
	return nil
}

// Mint creates amount of asset for holder.
func (b *Book) Mint(asset Asset, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("mint %s: %w", asset, ErrZeroAddress)
	}
	supply, err := calculator.Add(b.TotalSupply(asset), amount)
	if err != nil {
		return fmt.Errorf("mint %s: %w", asset, err)
	}
	journal.SetEntry(b.j, b.supply, asset, supply)
	b.set(asset, to, calculator.MustAdd(b.BalanceOf(asset, to), amount))
	return nil
}

// Burn destroys amount of asset held by holder.
func (b *Book) Burn(asset Asset, from common.Address, amount *uint256.Int) error {
	bal := b.BalanceOf(asset, from)
	if bal.Lt(amount) {
		return fmt.Errorf("burn %s %s from %s (has %s): %w",
			amount.Dec(), asset, from.Hex(), bal.Dec(), ErrInsufficientBalance)
	}
	b.set(asset, from, new(uint256.Int).Sub(bal, amount))
	journal.SetEntry(b.j, b.supply, asset, calculator.SaturatingSub(b.TotalSupply(asset), amount))
	return nil
}

// Holders lists every address with a non-zero balance of asset.
func (b *Book) Holders(asset Asset) []common.Address {
	var out []common.Address
	for addr, bal := range b.balances[asset] {
		if !bal.IsZero() {
			out = append(out, addr)
		}
	}
	return out
}

func (b *Book) set(asset Asset, holder common.Address, v *uint256.Int) {
	m, ok := b.balances[asset]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		b.balances[asset] = m
	}
	journal.SetEntry(b.j, m, holder, v)
}
