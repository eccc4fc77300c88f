// Package valor moves idle pool capital into one external vault and back,
// tracking invested principal separately from the vault shares it holds so
// that yield can be harvested without touching principal.
package valor

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
	"HolyLedger/internal/model"
	"HolyLedger/internal/token"
	"HolyLedger/internal/vault"
)

var (
	ErrUnauthorized            = fmt.Errorf("valor: %w", model.ErrUnauthorized)
	ErrInsufficientSafeBalance = fmt.Errorf("insufficient safe withdraw balance: %w", model.ErrPolicyViolation)
	ErrInsufficientInvested    = fmt.Errorf("insufficient invested balance: %w", model.ErrInsufficientBalance)
	ErrInsufficientVaultValue  = fmt.Errorf("insufficient vault balance: %w", model.ErrInsufficientBalance)
	ErrGrantBelowMinimum       = fmt.Errorf("pool grant below minimum: %w", model.ErrInsufficientBalance)
	ErrSlippage                = fmt.Errorf("harvest outside expected bounds: %w", model.ErrPolicyViolation)
	ErrInvalidFraction         = fmt.Errorf("fraction above 100%%: %w", model.ErrPolicyViolation)
)

// Lender is the pool side of an investment: it hands over idle funds.
type Lender interface {
	Address() common.Address
	LendToValor(caller common.Address, maxAmount, minAcceptable *uint256.Int) (*uint256.Int, error)
}

type Config struct {
	Name    string
	Address common.Address
	Admin   common.Address
	// SafeFraction of the vault position that can be reclaimed fee-free.
	SafeFraction *uint256.Int
	// LPPrecisionEpsilon, in vault share units, is shaved off the safe share
	// budget to absorb share rounding.
	LPPrecisionEpsilon *uint256.Int
	Logger             *slog.Logger
	Emit               model.Emit
}

func (cfg *Config) Validate() error {
	if cfg.Address == (common.Address{}) {
		return fmt.Errorf("valor address is required")
	}
	if cfg.Admin == (common.Address{}) {
		return fmt.Errorf("valor admin is required")
	}
	if cfg.SafeFraction == nil {
		cfg.SafeFraction = calculator.MustParseDecimal("0.15", calculator.WadDecimals)
	}
	if cfg.SafeFraction.Gt(calculator.Wad) {
		return ErrInvalidFraction
	}
	if cfg.LPPrecisionEpsilon == nil {
		cfg.LPPrecisionEpsilon = calculator.New(1)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Address.Hex()
	}
	return nil
}

// Valor is not safe for concurrent use.
type Valor struct {
	cfg     Config
	log     *slog.Logger
	j       *journal.Journal
	book    *token.Book
	adapter vault.Adapter
	pool    Lender
	guard   journal.Guard

	operators map[common.Address]bool
	redeemer  common.Address

	amountInvested *uint256.Int
	lpShares       *uint256.Int
}

func New(cfg Config, j *journal.Journal, book *token.Book, adapter vault.Adapter, pool Lender) (*Valor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Valor{
		cfg:            cfg,
		log:            cfg.Logger.With("valor", cfg.Name),
		j:              j,
		book:           book,
		adapter:        adapter,
		pool:           pool,
		operators:      map[common.Address]bool{cfg.Admin: true},
		amountInvested: calculator.Zero(),
		lpShares:       calculator.Zero(),
	}, nil
}

func (v *Valor) Address() common.Address { return v.cfg.Address }
func (v *Valor) Name() string            { return v.cfg.Name }
func (v *Valor) Adapter() vault.Adapter  { return v.adapter }

func (v *Valor) AmountInvested() *uint256.Int { return v.amountInvested.Clone() }
func (v *Valor) LPShares() *uint256.Int       { return v.lpShares.Clone() }

// YieldBalance is the harvested yield waiting for the redeemer.
func (v *Valor) YieldBalance() *uint256.Int {
	return v.book.BalanceOf(token.BaseAsset, v.cfg.Address)
}

// VaultValue is the current underlying value of the held vault shares.
func (v *Valor) VaultValue() *uint256.Int {
	return v.adapter.ConvertToAssets(v.lpShares)
}

// AccruedYield is vault value above principal; unrealised until harvested.
func (v *Valor) AccruedYield() *uint256.Int {
	return calculator.SaturatingSub(v.VaultValue(), v.amountInvested)
}

// SafeReclaimAmount is what can be divested without a forced-reclaim fee:
// the safe fraction of the held shares less the precision epsilon, valued up
// to the base asset's precision. It depends on the live vault price and must
// not be cached.
func (v *Valor) SafeReclaimAmount() *uint256.Int {
	budget := calculator.ApplyFraction(v.lpShares, v.cfg.SafeFraction)
	budget = calculator.SaturatingSub(budget, v.cfg.LPPrecisionEpsilon)
	return calculator.Min(v.adapter.PreviewMint(budget), v.amountInvested)
}

// TotalReclaimAmount is the most principal the valor can return at all.
func (v *Valor) TotalReclaimAmount() *uint256.Int {
	return calculator.Min(v.VaultValue(), v.amountInvested)
}

// PreviewHarvest returns the base asset a harvest would realise right now.
func (v *Valor) PreviewHarvest() *uint256.Int {
	shares, err := v.adapter.ConvertToShares(v.AccruedYield())
	if err != nil {
		return calculator.Zero()
	}
	return v.adapter.ConvertToAssets(shares)
}

func (v *Valor) isOperator(caller common.Address) bool {
	return v.operators[caller]
}

// InvestInVault borrows between minAcceptable and maxAmount from the pool and
// deposits it into the vault.
func (v *Valor) InvestInVault(caller common.Address, maxAmount, minAcceptable *uint256.Int) (_ *uint256.Int, err error) {
	if !v.isOperator(caller) {
		return nil, ErrUnauthorized
	}
	release, err := v.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	snap := v.j.Begin()
	defer func() { v.j.End(snap, err) }()

	granted, err := v.pool.LendToValor(v.cfg.Address, maxAmount, minAcceptable)
	if err != nil {
		return nil, fmt.Errorf("invest: %w", err)
	}
	if granted.Lt(minAcceptable) {
		return nil, ErrGrantBelowMinimum
	}
	if granted.IsZero() {
		return granted, nil
	}

	journal.Set(v.j, &v.amountInvested, calculator.MustAdd(v.amountInvested, granted))
	shares, err := v.adapter.Deposit(v.cfg.Address, granted)
	if err != nil {
		return nil, fmt.Errorf("invest: vault deposit: %w", err)
	}
	journal.Set(v.j, &v.lpShares, calculator.MustAdd(v.lpShares, shares))

	v.log.Info("valor: invested", "amount", granted.Dec(), "shares", shares.Dec(), "invested", v.amountInvested.Dec())
	v.cfg.Emit.Send(model.NewEvent(model.EventInvest, v.cfg.Address, v.cfg.Address,
		"amount", granted, "lp_minted", shares, "amount_invested", v.amountInvested))
	return granted, nil
}

// DivestFromVault returns amount of principal to the pool. With safeOnly the
// request must fit inside SafeReclaimAmount. The received amount may differ
// from the request by vault rounding or slippage; fees are the pool's concern.
func (v *Valor) DivestFromVault(caller common.Address, amount *uint256.Int, safeOnly bool) (_ *uint256.Int, err error) {
	if caller != v.pool.Address() && !v.isOperator(caller) {
		return nil, ErrUnauthorized
	}
	if amount.IsZero() {
		return calculator.Zero(), nil
	}
	if amount.Gt(v.amountInvested) {
		return nil, fmt.Errorf("divest %s (invested %s): %w", amount.Dec(), v.amountInvested.Dec(), ErrInsufficientInvested)
	}
	if safeOnly {
		if safe := v.SafeReclaimAmount(); amount.Gt(safe) {
			return nil, fmt.Errorf("divest %s (safe %s): %w", amount.Dec(), safe.Dec(), ErrInsufficientSafeBalance)
		}
	}
	release, err := v.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	snap := v.j.Begin()
	defer func() { v.j.End(snap, err) }()

	shares, err := v.adapter.PreviewWithdraw(amount)
	if err != nil {
		return nil, fmt.Errorf("divest: %w", err)
	}
	if shares.Gt(v.lpShares) {
		if v.VaultValue().Lt(amount) {
			return nil, fmt.Errorf("divest %s (vault value %s): %w", amount.Dec(), v.VaultValue().Dec(), ErrInsufficientVaultValue)
		}
		shares = v.lpShares.Clone()
	}

	journal.Set(v.j, &v.amountInvested, new(uint256.Int).Sub(v.amountInvested, amount))
	journal.Set(v.j, &v.lpShares, new(uint256.Int).Sub(v.lpShares, shares))

	received, err := v.adapter.Withdraw(v.cfg.Address, shares)
	if err != nil {
		return nil, fmt.Errorf("divest: vault withdraw: %w", err)
	}
	if err := v.book.Transfer(token.BaseAsset, v.cfg.Address, v.pool.Address(), received); err != nil {
		return nil, fmt.Errorf("divest: return funds: %w", err)
	}

	v.log.Info("valor: divested", "requested", amount.Dec(), "received", received.Dec(), "safe_only", safeOnly)
	v.cfg.Emit.Send(model.NewEvent(model.EventDivest, v.cfg.Address, v.cfg.Address,
		"requested", amount, "received", received, "lp_withdrawn", shares, "amount_invested", v.amountInvested))
	return received, nil
}

// HarvestResult describes a realised harvest.
type HarvestResult struct {
	LPWithdrawn *uint256.Int
	Expected    *uint256.Int
	Received    *uint256.Int
	LPBalance   *uint256.Int
}

// HarvestYield converts the accrued yield into base asset held by the valor.
// Principal is untouched; only lpShares shrink. The call reverts when the
// amount received falls outside [minExpected, maxExpected].
func (v *Valor) HarvestYield(caller common.Address, minExpected, maxExpected *uint256.Int) (_ *HarvestResult, err error) {
	if !v.isOperator(caller) {
		return nil, ErrUnauthorized
	}
	release, err := v.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	snap := v.j.Begin()
	defer func() { v.j.End(snap, err) }()

	accrued := v.AccruedYield()
	shares, err := v.adapter.ConvertToShares(accrued)
	if err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}
	res := &HarvestResult{LPWithdrawn: shares, Expected: accrued, Received: calculator.Zero()}
	if !shares.IsZero() {
		journal.Set(v.j, &v.lpShares, new(uint256.Int).Sub(v.lpShares, shares))
		res.Received, err = v.adapter.Withdraw(v.cfg.Address, shares)
		if err != nil {
			return nil, fmt.Errorf("harvest: vault withdraw: %w", err)
		}
	}
	res.LPBalance = v.lpShares.Clone()
	if res.Received.Lt(minExpected) || res.Received.Gt(maxExpected) {
		return nil, fmt.Errorf("harvest received %s, want [%s, %s]: %w",
			res.Received.Dec(), minExpected.Dec(), maxExpected.Dec(), ErrSlippage)
	}
	if shares.IsZero() {
		return res, nil
	}

	v.log.Info("valor: harvested", "lp_withdrawn", shares.Dec(), "expected", accrued.Dec(), "received", res.Received.Dec())
	v.cfg.Emit.Send(model.NewEvent(model.EventHarvest, v.cfg.Address, v.cfg.Address,
		"lp_withdrawn", shares, "expected", accrued, "received", res.Received, "lp_balance", res.LPBalance))
	return res, nil
}

// ReleaseYield hands the whole harvested balance to the redeemer.
func (v *Valor) ReleaseYield(caller common.Address) (*uint256.Int, error) {
	if caller != v.redeemer || caller == (common.Address{}) {
		return nil, ErrUnauthorized
	}
	bal := v.YieldBalance()
	if bal.IsZero() {
		return bal, nil
	}
	if err := v.book.Transfer(token.BaseAsset, v.cfg.Address, caller, bal); err != nil {
		return nil, fmt.Errorf("release yield: %w", err)
	}
	return bal, nil
}

// SetRedeemer designates the only account allowed to take harvested yield.
func (v *Valor) SetRedeemer(caller, redeemer common.Address) error {
	if caller != v.cfg.Admin {
		return ErrUnauthorized
	}
	journal.Set(v.j, &v.redeemer, redeemer)
	return nil
}

// SetOperator grants or revokes the keeper role (invest, harvest, manual divest).
func (v *Valor) SetOperator(caller, operator common.Address, enabled bool) error {
	if caller != v.cfg.Admin {
		return ErrUnauthorized
	}
	journal.SetEntry(v.j, v.operators, operator, enabled)
	return nil
}

// SetSafeFraction changes the fee-free share of the vault position.
func (v *Valor) SetSafeFraction(caller common.Address, fraction *uint256.Int) error {
	if caller != v.cfg.Admin {
		return ErrUnauthorized
	}
	if fraction.Gt(calculator.Wad) {
		return ErrInvalidFraction
	}
	journal.Set(v.j, &v.cfg.SafeFraction, fraction.Clone())
	return nil
}

func (v *Valor) Snapshot() model.ValorSnapshot {
	return model.ValorSnapshot{
		Address:            v.cfg.Address.Hex(),
		Name:               v.cfg.Name,
		AmountInvested:     v.amountInvested.Dec(),
		LPShares:           v.lpShares.Dec(),
		VaultPricePerShare: v.adapter.PricePerShare().Dec(),
		AccruedYield:       v.AccruedYield().Dec(),
		YieldBalance:       v.YieldBalance().Dec(),
		SafeReclaimAmount:  v.SafeReclaimAmount().Dec(),
		TotalReclaimAmount: v.TotalReclaimAmount().Dec(),
	}
}
