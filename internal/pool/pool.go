// Package pool is the depositor ledger: ownership is tracked in shares whose
// price rises as harvested yield is pushed back into the pool. Withdrawals are
// served from the idle reserve first, then by reclaiming principal from the
// attached valors in attachment order.
package pool

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
	"HolyLedger/internal/model"
	"HolyLedger/internal/token"
)

var (
	ErrUnauthorized          = fmt.Errorf("pool: %w", model.ErrUnauthorized)
	ErrZeroAmount            = fmt.Errorf("zero amount: %w", model.ErrPolicyViolation)
	ErrZeroShares            = fmt.Errorf("deposit too small to mint shares: %w", model.ErrPolicyViolation)
	ErrDepositsDisabled      = fmt.Errorf("deposits disabled: %w", model.ErrPolicyViolation)
	ErrWithdrawalsDisabled   = fmt.Errorf("withdrawals disabled: %w", model.ErrPolicyViolation)
	ErrInsufficientDeposit   = fmt.Errorf("insufficient deposit balance: %w", model.ErrInsufficientBalance)
	ErrInsufficientLiquidity = fmt.Errorf("insufficient pool liquidity: %w", model.ErrInsufficientBalance)
	ErrGrantBelowMinimum     = fmt.Errorf("idle funds below minimum grant: %w", model.ErrInsufficientBalance)
	ErrUnknownValor          = fmt.Errorf("valor not attached: %w", model.ErrUnauthorized)
	ErrValorAttached         = fmt.Errorf("valor already attached: %w", model.ErrPolicyViolation)
	ErrValorHasPrincipal     = fmt.Errorf("valor still holds principal: %w", model.ErrPolicyViolation)
	ErrInvalidFee            = fmt.Errorf("fee above 100%%: %w", model.ErrPolicyViolation)
)

// Reclaimer is the pool's view of an attached valor.
type Reclaimer interface {
	Address() common.Address
	AmountInvested() *uint256.Int
	SafeReclaimAmount() *uint256.Int
	TotalReclaimAmount() *uint256.Int
	DivestFromVault(caller common.Address, amount *uint256.Int, safeOnly bool) (*uint256.Int, error)
}

type Config struct {
	Address       common.Address
	Admin         common.Address
	TransferProxy common.Address
	ReserveTarget *uint256.Int
	// ForcedReclaimFee applies to the part of a withdrawal that exceeds the
	// reserve plus every valor's safe reclaim amount.
	ForcedReclaimFee *uint256.Int
	// FeeRecipient receives forced-reclaim fees. Defaults to Admin.
	FeeRecipient common.Address
	Logger       *slog.Logger
	Emit         model.Emit
}

func (cfg *Config) Validate() error {
	if cfg.Address == (common.Address{}) {
		return fmt.Errorf("pool address is required")
	}
	if cfg.Admin == (common.Address{}) {
		return fmt.Errorf("pool admin is required")
	}
	if cfg.ReserveTarget == nil {
		cfg.ReserveTarget = calculator.Zero()
	}
	if cfg.ForcedReclaimFee == nil {
		cfg.ForcedReclaimFee = calculator.MustParseDecimal("0.005", calculator.WadDecimals)
	}
	if cfg.ForcedReclaimFee.Gt(calculator.Wad) {
		return ErrInvalidFee
	}
	if cfg.FeeRecipient == (common.Address{}) {
		cfg.FeeRecipient = cfg.Admin
	}
	if cfg.FeeRecipient == cfg.Address {
		return fmt.Errorf("pool cannot receive its own fees: %w", model.ErrPolicyViolation)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return nil
}

// Pool is not safe for concurrent use.
type Pool struct {
	cfg   Config
	log   *slog.Logger
	j     *journal.Journal
	book  *token.Book
	guard journal.Guard

	shares      map[common.Address]*uint256.Int
	totalShares *uint256.Int

	reserveTarget      *uint256.Int
	forcedReclaimFee   *uint256.Int
	feeRecipient       common.Address
	transferProxy      common.Address
	valors             []Reclaimer
	depositsEnabled    bool
	withdrawalsEnabled bool
}

func New(cfg Config, j *journal.Journal, book *token.Book) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pool{
		cfg:                cfg,
		log:                cfg.Logger,
		j:                  j,
		book:               book,
		shares:             make(map[common.Address]*uint256.Int),
		totalShares:        calculator.Zero(),
		reserveTarget:      cfg.ReserveTarget.Clone(),
		forcedReclaimFee:   cfg.ForcedReclaimFee.Clone(),
		feeRecipient:       cfg.FeeRecipient,
		transferProxy:      cfg.TransferProxy,
		depositsEnabled:    true,
		withdrawalsEnabled: true,
	}, nil
}

func (p *Pool) Address() common.Address { return p.cfg.Address }

func (p *Pool) TotalShares() *uint256.Int { return p.totalShares.Clone() }

func (p *Pool) SharesOf(account common.Address) *uint256.Int {
	return calculator.Clone(p.shares[account])
}

func (p *Pool) ReserveTarget() *uint256.Int { return p.reserveTarget.Clone() }

func (p *Pool) ForcedReclaimFee() *uint256.Int { return p.forcedReclaimFee.Clone() }

func (p *Pool) TransferProxy() common.Address { return p.transferProxy }

func (p *Pool) FeeRecipient() common.Address { return p.feeRecipient }

// ReserveBalance is the idle base asset held by the pool.
func (p *Pool) ReserveBalance() *uint256.Int {
	return p.book.BalanceOf(token.BaseAsset, p.cfg.Address)
}

// TotalAssets is the reserve plus the principal every valor reports.
func (p *Pool) TotalAssets() *uint256.Int {
	total := p.ReserveBalance()
	for _, v := range p.valors {
		total = calculator.MustAdd(total, v.AmountInvested())
	}
	return total
}

// PricePerShare in 18-decimal fixed point.
func (p *Pool) PricePerShare() *uint256.Int {
	return calculator.PricePerShare(p.TotalAssets(), p.totalShares)
}

// GetDepositBalance is the asset value of an account's shares.
func (p *Pool) GetDepositBalance(account common.Address) *uint256.Int {
	return calculator.AssetsForShares(p.SharesOf(account), p.totalShares, p.TotalAssets())
}

// SafeReclaimCapacity sums every valor's fee-free reclaim amount.
func (p *Pool) SafeReclaimCapacity() *uint256.Int {
	total := calculator.Zero()
	for _, v := range p.valors {
		total = calculator.MustAdd(total, v.SafeReclaimAmount())
	}
	return total
}

// Valors returns the attached valors in reclaim priority order.
func (p *Pool) Valors() []common.Address {
	out := make([]common.Address, len(p.valors))
	for i, v := range p.valors {
		out[i] = v.Address()
	}
	return out
}

func (p *Pool) isValor(addr common.Address) bool {
	for _, v := range p.valors {
		if v.Address() == addr {
			return true
		}
	}
	return false
}

// Deposit pulls amount from the transfer proxy and credits shares to beneficiary.
func (p *Pool) Deposit(caller, beneficiary common.Address, amount *uint256.Int) (_ *uint256.Int, err error) {
	if caller != p.transferProxy || caller == (common.Address{}) {
		return nil, ErrUnauthorized
	}
	if !p.depositsEnabled {
		return nil, ErrDepositsDisabled
	}
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}
	snap := p.j.Begin()
	defer func() { p.j.End(snap, err) }()

	shares, err := calculator.SharesForDeposit(amount, p.totalShares, p.TotalAssets())
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	if shares.IsZero() {
		return nil, ErrZeroShares
	}
	if err := p.book.Transfer(token.BaseAsset, caller, p.cfg.Address, amount); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	journal.SetEntry(p.j, p.shares, beneficiary, calculator.MustAdd(p.SharesOf(beneficiary), shares))
	journal.Set(p.j, &p.totalShares, calculator.MustAdd(p.totalShares, shares))

	p.log.Info("pool: deposit", "account", beneficiary.Hex(), "amount", amount.Dec(), "shares", shares.Dec())
	p.cfg.Emit.Send(model.NewEvent(model.EventDeposit, p.cfg.Address, beneficiary,
		"amount", amount, "shares", shares))
	return shares, nil
}

// LendToValor hands idle funds above the reserve target to an attached valor.
func (p *Pool) LendToValor(caller common.Address, maxAmount, minAcceptable *uint256.Int) (_ *uint256.Int, err error) {
	if !p.isValor(caller) {
		return nil, ErrUnknownValor
	}
	available := calculator.SaturatingSub(p.ReserveBalance(), p.reserveTarget)
	grant := calculator.Min(maxAmount, available)
	if grant.Lt(minAcceptable) {
		return nil, fmt.Errorf("lend %s (available %s, minimum %s): %w",
			grant.Dec(), available.Dec(), minAcceptable.Dec(), ErrGrantBelowMinimum)
	}
	if grant.IsZero() {
		return grant, nil
	}
	if err := p.book.Transfer(token.BaseAsset, p.cfg.Address, caller, grant); err != nil {
		return nil, fmt.Errorf("lend: %w", err)
	}
	p.log.Debug("pool: lent to valor", "valor", caller.Hex(), "amount", grant.Dec())
	return grant, nil
}

// IdleForInvestment is the reserve above target that LendToValor would grant.
func (p *Pool) IdleForInvestment() *uint256.Int {
	return calculator.SaturatingSub(p.ReserveBalance(), p.reserveTarget)
}
