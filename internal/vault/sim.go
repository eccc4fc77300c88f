package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
	"HolyLedger/internal/token"
)

// ShareScalar is the number of share units minted per base-asset unit on the
// first deposit: vault shares carry 18 decimals over the 6-decimal base asset.
var ShareScalar = uint256.NewInt(1_000_000_000_000)

var priceScale = new(uint256.Int).Mul(calculator.Wad, ShareScalar)

// Sim is an in-ledger vault: assets are its base-asset balance in the book,
// shares are tracked locally. Yield arrives through Accrue.
type Sim struct {
	addr        common.Address
	book        *token.Book
	j           *journal.Journal
	shares      map[common.Address]*uint256.Int
	totalShares *uint256.Int

	// Haircut is an 18-decimal fraction withheld from every withdrawal, used to
	// simulate slippage in the external vault.
	Haircut *uint256.Int
	// OnCall runs at the start of Deposit and Withdraw before any state change.
	OnCall func()
}

func NewSim(addr common.Address, book *token.Book, j *journal.Journal) *Sim {
	return &Sim{
		addr:        addr,
		book:        book,
		j:           j,
		shares:      make(map[common.Address]*uint256.Int),
		totalShares: calculator.Zero(),
		Haircut:     calculator.Zero(),
	}
}

func (s *Sim) Address() common.Address { return s.addr }

func (s *Sim) totalAssets() *uint256.Int {
	return s.book.BalanceOf(token.BaseAsset, s.addr)
}

func (s *Sim) TotalShares() *uint256.Int { return s.totalShares.Clone() }

// PricePerShare is the base-asset value of one base-asset unit worth of
// shares at issue, so a fresh vault reports 1.0.
func (s *Sim) PricePerShare() *uint256.Int {
	if s.totalShares.IsZero() {
		return calculator.Wad.Clone()
	}
	z, err := calculator.MulDiv(s.totalAssets(), priceScale, s.totalShares)
	if err != nil {
		return calculator.Zero()
	}
	return z
}

func (s *Sim) ConvertToShares(amount *uint256.Int) (*uint256.Int, error) {
	if s.totalShares.IsZero() {
		return calculator.MulDiv(amount, ShareScalar, calculator.New(1))
	}
	return calculator.SharesForDeposit(amount, s.totalShares, s.totalAssets())
}

func (s *Sim) ConvertToAssets(shares *uint256.Int) *uint256.Int {
	return calculator.AssetsForShares(shares, s.totalShares, s.totalAssets())
}

func (s *Sim) PreviewMint(shares *uint256.Int) *uint256.Int {
	return calculator.AssetsForSharesUp(shares, s.totalShares, s.totalAssets())
}

func (s *Sim) PreviewWithdraw(amount *uint256.Int) (*uint256.Int, error) {
	if s.totalShares.IsZero() {
		return calculator.MulDiv(amount, ShareScalar, calculator.New(1))
	}
	return calculator.SharesForWithdrawal(amount, s.totalShares, s.totalAssets())
}

func (s *Sim) BalanceOf(holder common.Address) *uint256.Int {
	return calculator.Clone(s.shares[holder])
}

// Deposit pulls amount of base asset from the depositor and mints shares to it.
func (s *Sim) Deposit(from common.Address, amount *uint256.Int) (_ *uint256.Int, err error) {
	if s.OnCall != nil {
		s.OnCall()
	}
	snap := s.j.Begin()
	defer func() { s.j.End(snap, err) }()

	shares, err := s.ConvertToShares(amount)
	if err != nil {
		return nil, fmt.Errorf("vault deposit: %w", err)
	}
	if shares.IsZero() {
		return nil, ErrZeroShares
	}
	if err := s.book.Transfer(token.BaseAsset, from, s.addr, amount); err != nil {
		return nil, fmt.Errorf("vault deposit: %w", err)
	}
	journal.SetEntry(s.j, s.shares, from, calculator.MustAdd(s.BalanceOf(from), shares))
	journal.Set(s.j, &s.totalShares, calculator.MustAdd(s.totalShares, shares))
	return shares, nil
}

// Withdraw burns shares of holder and sends the underlying back to it.
func (s *Sim) Withdraw(holder common.Address, shares *uint256.Int) (_ *uint256.Int, err error) {
	if s.OnCall != nil {
		s.OnCall()
	}
	snap := s.j.Begin()
	defer func() { s.j.End(snap, err) }()

	owned := s.BalanceOf(holder)
	if owned.Lt(shares) {
		return nil, fmt.Errorf("vault withdraw %s shares (has %s): %w", shares.Dec(), owned.Dec(), ErrInsufficientShares)
	}
	amount := calculator.AssetsForShares(shares, s.totalShares, s.totalAssets())
	amount = calculator.SaturatingSub(amount, calculator.ApplyFraction(amount, s.Haircut))

	journal.SetEntry(s.j, s.shares, holder, new(uint256.Int).Sub(owned, shares))
	journal.Set(s.j, &s.totalShares, calculator.SaturatingSub(s.totalShares, shares))
	if err := s.book.Transfer(token.BaseAsset, s.addr, holder, amount); err != nil {
		return nil, fmt.Errorf("vault withdraw: %w", err)
	}
	return amount, nil
}

// Accrue mints yield into the vault, raising its price-per-share.
func (s *Sim) Accrue(amount *uint256.Int) error {
	return s.book.Mint(token.BaseAsset, s.addr, amount)
}

// Lose burns vault assets, lowering the price-per-share.
func (s *Sim) Lose(amount *uint256.Int) error {
	return s.book.Burn(token.BaseAsset, s.addr, amount)
}
