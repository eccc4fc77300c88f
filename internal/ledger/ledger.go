// Package ledger wires the pool, its valors, the redeemer and the treasury
// onto one token book and serializes every mutating call. Each call runs in a
// single journal section: it either commits with all of its events, or
// reverts with none.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
	"HolyLedger/internal/metrics"
	"HolyLedger/internal/model"
	"HolyLedger/internal/pool"
	"HolyLedger/internal/recorder"
	"HolyLedger/internal/redeemer"
	"HolyLedger/internal/token"
	"HolyLedger/internal/treasury"
	"HolyLedger/internal/valor"
	"HolyLedger/internal/vault"
)

var (
	DefaultPoolAddress     = common.HexToAddress("0x000000000000000000000000000000000000b001")
	DefaultRedeemerAddress = common.HexToAddress("0x000000000000000000000000000000000000b002")
	DefaultTreasuryAddress = common.HexToAddress("0x000000000000000000000000000000000000b003")

	ErrUnknownValor  = fmt.Errorf("unknown valor: %w", model.ErrPolicyViolation)
	ErrSystemAccount = fmt.Errorf("system account balances move only through their components: %w", model.ErrPolicyViolation)
)

// ValorConfig describes one valor and the simulated vault behind it.
type ValorConfig struct {
	Name         string
	Address      common.Address
	Vault        common.Address
	SafeFraction *uint256.Int
}

// Grant is a balance minted when the ledger is created.
type Grant struct {
	Account common.Address
	Asset   token.Asset
	Amount  *uint256.Int
}

type Config struct {
	Admin         common.Address
	Keeper        common.Address
	TransferProxy common.Address
	FrontEnd      common.Address
	Operations    common.Address

	PoolAddress     common.Address
	RedeemerAddress common.Address
	TreasuryAddress common.Address

	ReserveTarget        *uint256.Int
	ForcedReclaimFee     *uint256.Int
	TreasuryPercentage   *uint256.Int
	OperationsPercentage *uint256.Int
	EndowmentPercentage  *uint256.Int
	BurnLeverage         *uint256.Int
	MaxBurnFraction      *uint256.Int
	PowercardBoost       *uint256.Int
	PowercardActive      time.Duration
	PowercardCooldown    time.Duration
	// HarvestTolerance bounds the keeper's harvest around the previewed amount.
	HarvestTolerance *uint256.Int

	Valors  []ValorConfig
	Genesis []Grant

	StateFile string
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Recorder  recorder.Recorder
}

func (cfg *Config) Validate() error {
	if cfg.Admin == (common.Address{}) {
		return errors.New("admin address is required")
	}
	if cfg.Keeper == (common.Address{}) {
		cfg.Keeper = cfg.Admin
	}
	if cfg.TransferProxy == (common.Address{}) {
		return errors.New("transfer proxy address is required")
	}
	if cfg.Operations == (common.Address{}) {
		return errors.New("operations address is required")
	}
	if cfg.PoolAddress == (common.Address{}) {
		cfg.PoolAddress = DefaultPoolAddress
	}
	if cfg.RedeemerAddress == (common.Address{}) {
		cfg.RedeemerAddress = DefaultRedeemerAddress
	}
	if cfg.TreasuryAddress == (common.Address{}) {
		cfg.TreasuryAddress = DefaultTreasuryAddress
	}
	if cfg.HarvestTolerance == nil {
		cfg.HarvestTolerance = calculator.MustParseDecimal("0.01", calculator.WadDecimals)
	}
	if cfg.HarvestTolerance.Gt(calculator.Wad) {
		return errors.New("harvest tolerance above 100%")
	}
	seen := make(map[common.Address]bool)
	for _, v := range cfg.Valors {
		if v.Address == (common.Address{}) || v.Vault == (common.Address{}) {
			return fmt.Errorf("valor %q: address and vault are required", v.Name)
		}
		if seen[v.Address] || seen[v.Vault] {
			return fmt.Errorf("valor %q: duplicate address", v.Name)
		}
		seen[v.Address], seen[v.Vault] = true, true
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = recorder.NewNoopRecorder()
	}
	return nil
}

// Ledger is safe for concurrent use; calls are serialized.
type Ledger struct {
	mu    sync.Mutex
	cfg   Config
	log   *slog.Logger
	clock clockwork.Clock
	rec   recorder.Recorder

	j        *journal.Journal
	book     *token.Book
	pool     *pool.Pool
	valors   []*valor.Valor
	vaults   map[common.Address]*vault.Sim
	redeemer *redeemer.Redeemer
	treasury *treasury.Treasury

	pending  []model.Event
	sequence uint64
}

func New(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Ledger{
		cfg:    cfg,
		log:    cfg.Logger,
		clock:  cfg.Clock,
		rec:    cfg.Recorder,
		j:      journal.New(),
		vaults: make(map[common.Address]*vault.Sim),
	}
	l.book = token.NewBook(l.j)

	if cfg.StateFile != "" {
		prev, err := LoadState(cfg.StateFile)
		if err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
		l.sequence = prev.Sequence
	}

	if err := l.exec("genesis", func(now time.Time) error { return l.wire() }); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) wire() error {
	cfg := l.cfg
	var err error

	l.pool, err = pool.New(pool.Config{
		Address:          cfg.PoolAddress,
		Admin:            cfg.Admin,
		TransferProxy:    cfg.TransferProxy,
		ReserveTarget:    cfg.ReserveTarget,
		ForcedReclaimFee: cfg.ForcedReclaimFee,
		FeeRecipient:     cfg.Operations,
		Logger:           l.log,
		Emit:             l.emit,
	}, l.j, l.book)
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}

	l.treasury, err = treasury.New(treasury.Config{
		Address:             cfg.TreasuryAddress,
		Admin:               cfg.Admin,
		FrontEnd:            cfg.FrontEnd,
		EndowmentPercentage: cfg.EndowmentPercentage,
		BurnLeverage:        cfg.BurnLeverage,
		MaxBurnFraction:     cfg.MaxBurnFraction,
		PowercardBoost:      cfg.PowercardBoost,
		PowercardActive:     cfg.PowercardActive,
		PowercardCooldown:   cfg.PowercardCooldown,
		Logger:              l.log,
		Emit:                l.emit,
	}, l.j, l.book)
	if err != nil {
		return fmt.Errorf("treasury: %w", err)
	}

	l.redeemer, err = redeemer.New(redeemer.Config{
		Address:              cfg.RedeemerAddress,
		Admin:                cfg.Admin,
		Pool:                 cfg.PoolAddress,
		Operations:           cfg.Operations,
		TreasuryPercentage:   cfg.TreasuryPercentage,
		OperationsPercentage: cfg.OperationsPercentage,
		Logger:               l.log,
		Emit:                 l.emit,
	}, l.j, l.book, l.treasury)
	if err != nil {
		return fmt.Errorf("redeemer: %w", err)
	}
	if err := l.treasury.AddProfitSender(cfg.Admin, cfg.RedeemerAddress); err != nil {
		return err
	}
	if err := l.redeemer.SetOperator(cfg.Admin, cfg.Keeper, true); err != nil {
		return err
	}

	for _, vc := range cfg.Valors {
		if err := l.attach(vc); err != nil {
			return fmt.Errorf("valor %s: %w", vc.Name, err)
		}
	}

	for _, g := range cfg.Genesis {
		if err := l.book.Mint(g.Asset, g.Account, g.Amount); err != nil {
			return fmt.Errorf("genesis grant to %s: %w", g.Account.Hex(), err)
		}
	}
	return nil
}

func (l *Ledger) attach(vc ValorConfig) error {
	sim := vault.NewSim(vc.Vault, l.book, l.j)
	v, err := valor.New(valor.Config{
		Name:         vc.Name,
		Address:      vc.Address,
		Admin:        l.cfg.Admin,
		SafeFraction: vc.SafeFraction,
		Logger:       l.log,
		Emit:         l.emit,
	}, l.j, l.book, sim, l.pool)
	if err != nil {
		return err
	}
	admin := l.cfg.Admin
	if err := l.pool.AddHolyValor(admin, v); err != nil {
		return err
	}
	if err := v.SetRedeemer(admin, l.cfg.RedeemerAddress); err != nil {
		return err
	}
	if err := v.SetOperator(admin, l.cfg.Keeper, true); err != nil {
		return err
	}
	if err := l.redeemer.AddValor(admin, v); err != nil {
		return err
	}
	journal.Set(l.j, &l.valors, append(append([]*valor.Valor(nil), l.valors...), v))
	journal.SetEntry(l.j, l.vaults, vc.Address, sim)
	return nil
}

// emit buffers an event in the current journal section so that a revert
// drops it together with the state it describes.
func (l *Ledger) emit(e model.Event) {
	n := len(l.pending)
	l.j.Record(func() { l.pending = l.pending[:n] })
	l.pending = append(l.pending, e)
}

// exec runs fn as one all-or-nothing ledger transaction.
func (l *Ledger) exec(op string, fn func(now time.Time) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now().UTC()
	snap := l.j.Begin()
	err := fn(now)
	l.j.End(snap, err)
	if err != nil {
		l.pending = l.pending[:0]
		metrics.OperationsTotal.WithLabelValues(op, "error").Inc()
		l.log.Warn("ledger: operation reverted", "op", op, "error", err)
		return err
	}
	metrics.OperationsTotal.WithLabelValues(op, "ok").Inc()
	l.flush(now)
	return nil
}

func (l *Ledger) flush(now time.Time) {
	for i := range l.pending {
		e := &l.pending[i]
		e.ID = uuid.NewString()
		e.Time = now
		if err := l.rec.RecordEvent(e); err != nil {
			l.log.Error("ledger: record event", "kind", e.Kind, "error", err)
		}
		metrics.EventsTotal.WithLabelValues(string(e.Kind)).Inc()
	}
	l.pending = l.pending[:0]
	l.updateGauges()
}

func (l *Ledger) valor(addr common.Address) (*valor.Valor, error) {
	for _, v := range l.valors {
		if v.Address() == addr {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", addr.Hex(), ErrUnknownValor)
}

// Deposit credits pool shares to beneficiary against base asset pulled from caller.
func (l *Ledger) Deposit(caller, beneficiary common.Address, amount *uint256.Int) (shares *uint256.Int, err error) {
	err = l.exec("deposit", func(time.Time) error {
		shares, err = l.pool.Deposit(caller, beneficiary, amount)
		return err
	})
	return shares, err
}

func (l *Ledger) Withdraw(caller, beneficiary common.Address, amount *uint256.Int) (res *pool.WithdrawResult, err error) {
	err = l.exec("withdraw", func(time.Time) error {
		res, err = l.pool.Withdraw(caller, beneficiary, amount)
		return err
	})
	return res, err
}

func (l *Ledger) Invest(caller, valorAddr common.Address, maxAmount, minAcceptable *uint256.Int) (granted *uint256.Int, err error) {
	err = l.exec("invest", func(time.Time) error {
		v, err := l.valor(valorAddr)
		if err != nil {
			return err
		}
		granted, err = v.InvestInVault(caller, maxAmount, minAcceptable)
		return err
	})
	return granted, err
}

func (l *Ledger) Divest(caller, valorAddr common.Address, amount *uint256.Int, safeOnly bool) (received *uint256.Int, err error) {
	err = l.exec("divest", func(time.Time) error {
		v, err := l.valor(valorAddr)
		if err != nil {
			return err
		}
		received, err = v.DivestFromVault(caller, amount, safeOnly)
		return err
	})
	return received, err
}

func (l *Ledger) Harvest(caller, valorAddr common.Address, minExpected, maxExpected *uint256.Int) (res *valor.HarvestResult, err error) {
	err = l.exec("harvest", func(time.Time) error {
		v, err := l.valor(valorAddr)
		if err != nil {
			return err
		}
		res, err = v.HarvestYield(caller, minExpected, maxExpected)
		return err
	})
	return res, err
}

// Redeem distributes the harvested yield of the given valors, or of every
// valor when none are named.
func (l *Ledger) Redeem(caller common.Address, valors ...common.Address) (out []*redeemer.Redemption, err error) {
	err = l.exec("redeem", func(now time.Time) error {
		if len(valors) == 0 {
			valors = l.redeemer.Valors()
		}
		out, err = l.redeemer.RedeemMultiAddress(caller, valors, now)
		return err
	})
	return out, err
}

// ReceiveProfit injects profit straight into the treasury from an allowed sender.
func (l *Ledger) ReceiveProfit(caller common.Address, amount *uint256.Int) error {
	return l.exec("receive_profit", func(now time.Time) error {
		return l.treasury.ReceiveProfit(caller, amount, now)
	})
}

func orZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return calculator.Zero()
	}
	return x
}

// Stake stakes governance and LP tokens for account; a nil amount means none.
func (l *Ledger) Stake(caller, account common.Address, baseAmount, lpAmount *uint256.Int) error {
	return l.exec("stake", func(now time.Time) error {
		return l.treasury.Deposit(caller, account, orZero(baseAmount), orZero(lpAmount), now)
	})
}

func (l *Ledger) Unstake(caller, account common.Address, baseAmount, lpAmount *uint256.Int) error {
	return l.exec("unstake", func(now time.Time) error {
		return l.treasury.Withdraw(caller, account, orZero(baseAmount), orZero(lpAmount), now)
	})
}

func (l *Ledger) ClaimAndBurn(caller, account common.Address, amount *uint256.Int) (endowmentPortion, bonusPortion *uint256.Int, err error) {
	err = l.exec("claim_and_burn", func(now time.Time) error {
		endowmentPortion, bonusPortion, err = l.treasury.ClaimAndBurn(caller, account, amount, now)
		return err
	})
	return endowmentPortion, bonusPortion, err
}

func (l *Ledger) ClaimUSDCForBonus(caller, account common.Address) (paid *uint256.Int, err error) {
	err = l.exec("claim_bonus", func(now time.Time) error {
		paid, err = l.treasury.ClaimUSDCForBonus(caller, account, now)
		return err
	})
	return paid, err
}

func (l *Ledger) StakePowercard(caller common.Address) error {
	return l.exec("powercard_stake", func(now time.Time) error {
		return l.treasury.StakePowercard(caller, now)
	})
}

func (l *Ledger) UnstakePowercard(caller common.Address) error {
	return l.exec("powercard_unstake", func(now time.Time) error {
		return l.treasury.UnstakePowercard(caller, now)
	})
}

// Transfer moves the caller's own unlocked tokens to another account; the
// front end uses it to fund the transfer proxy before a deposit. Balances held
// by the pool, redeemer, treasury, valors and vaults cannot be moved this way.
func (l *Ledger) Transfer(caller common.Address, asset token.Asset, to common.Address, amount *uint256.Int) error {
	return l.exec("transfer", func(time.Time) error {
		if l.isSystemAccount(caller) {
			return fmt.Errorf("transfer from %s: %w", caller.Hex(), ErrSystemAccount)
		}
		return l.book.Transfer(asset, caller, to, amount)
	})
}

func (l *Ledger) isSystemAccount(addr common.Address) bool {
	switch addr {
	case l.cfg.PoolAddress, l.cfg.RedeemerAddress, l.cfg.TreasuryAddress:
		return true
	}
	for valorAddr, sim := range l.vaults {
		if valorAddr == addr || sim.Address() == addr {
			return true
		}
	}
	return false
}

// AccrueYield credits amount to a valor's simulated vault. Admin only.
func (l *Ledger) AccrueYield(caller, valorAddr common.Address, amount *uint256.Int) error {
	return l.exec("accrue", func(time.Time) error {
		if caller != l.cfg.Admin {
			return fmt.Errorf("accrue: %w", model.ErrUnauthorized)
		}
		sim, ok := l.vaults[valorAddr]
		if !ok {
			return fmt.Errorf("%s: %w", valorAddr.Hex(), ErrUnknownValor)
		}
		return sim.Accrue(amount)
	})
}

func (l *Ledger) SetReserveTarget(caller common.Address, target *uint256.Int) error {
	return l.exec("set_reserve_target", func(time.Time) error {
		return l.pool.SetReserveTarget(caller, target)
	})
}

func (l *Ledger) SetForcedReclaimFee(caller common.Address, fee *uint256.Int) error {
	return l.exec("set_forced_reclaim_fee", func(time.Time) error {
		return l.pool.SetForcedReclaimFee(caller, fee)
	})
}

func (l *Ledger) SetRedeemerPercentages(caller common.Address, treasuryPct, operationsPct *uint256.Int) error {
	return l.exec("set_percentages", func(time.Time) error {
		return l.redeemer.SetPercentages(caller, treasuryPct, operationsPct)
	})
}

func (l *Ledger) SetEndowmentPercentage(caller common.Address, pct *uint256.Int) error {
	return l.exec("set_endowment_percentage", func(time.Time) error {
		return l.treasury.SetEndowmentPercentage(caller, pct)
	})
}

func (l *Ledger) SetPaused(caller common.Address, deposits, withdrawals bool) error {
	return l.exec("set_paused", func(time.Time) error {
		if err := l.pool.SetDepositsEnabled(caller, !deposits); err != nil {
			return err
		}
		return l.pool.SetWithdrawalsEnabled(caller, !withdrawals)
	})
}

// AttachValor adds a valor backed by a fresh simulated vault.
func (l *Ledger) AttachValor(caller common.Address, vc ValorConfig) error {
	return l.exec("attach_valor", func(time.Time) error {
		if caller != l.cfg.Admin {
			return fmt.Errorf("attach valor: %w", model.ErrUnauthorized)
		}
		if vc.Address == (common.Address{}) || vc.Vault == (common.Address{}) {
			return fmt.Errorf("attach valor %q: address and vault are required: %w", vc.Name, model.ErrPolicyViolation)
		}
		if _, ok := l.vaults[vc.Address]; ok {
			return fmt.Errorf("attach valor %q: %w", vc.Name, pool.ErrValorAttached)
		}
		return l.attach(vc)
	})
}

func (l *Ledger) SetTransferProxy(caller, proxy common.Address) error {
	return l.exec("set_transfer_proxy", func(time.Time) error {
		return l.pool.SetTransferProxy(caller, proxy)
	})
}

func (l *Ledger) SetOperationsAddress(caller, operations common.Address) error {
	return l.exec("set_operations", func(time.Time) error {
		if err := l.redeemer.SetOperations(caller, operations); err != nil {
			return err
		}
		return l.pool.SetFeeRecipient(caller, operations)
	})
}

// DetachValor removes a valor that holds no principal from the pool.
func (l *Ledger) DetachValor(caller, valorAddr common.Address) error {
	return l.exec("detach_valor", func(time.Time) error {
		if err := l.pool.RemoveHolyValor(caller, valorAddr); err != nil {
			return err
		}
		next := make([]*valor.Valor, 0, len(l.valors))
		for _, v := range l.valors {
			if v.Address() != valorAddr {
				next = append(next, v)
			}
		}
		journal.Set(l.j, &l.valors, next)
		return nil
	})
}
