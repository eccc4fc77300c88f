// Package redeemer splits harvested yield between the pool, the treasury and
// the operations account.
package redeemer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
	"HolyLedger/internal/model"
	"HolyLedger/internal/token"
)

var (
	ErrUnauthorized      = fmt.Errorf("redeemer: %w", model.ErrUnauthorized)
	ErrUnknownValor      = fmt.Errorf("valor not registered with redeemer: %w", model.ErrPolicyViolation)
	ErrInvalidPercentage = fmt.Errorf("treasury and operations percentages exceed 100%%: %w", model.ErrPolicyViolation)
)

// YieldSource is a valor holding harvested yield.
type YieldSource interface {
	Address() common.Address
	ReleaseYield(caller common.Address) (*uint256.Int, error)
}

// ProfitSink receives the treasury cut and accounts for it.
type ProfitSink interface {
	Address() common.Address
	ReceiveProfit(caller common.Address, amount *uint256.Int, now time.Time) error
}

type Config struct {
	Address              common.Address
	Admin                common.Address
	Pool                 common.Address
	Operations           common.Address
	TreasuryPercentage   *uint256.Int
	OperationsPercentage *uint256.Int
	Logger               *slog.Logger
	Emit                 model.Emit
}

func (cfg *Config) Validate() error {
	if cfg.Address == (common.Address{}) || cfg.Admin == (common.Address{}) {
		return fmt.Errorf("redeemer address and admin are required")
	}
	if cfg.Pool == (common.Address{}) || cfg.Operations == (common.Address{}) {
		return fmt.Errorf("redeemer pool and operations addresses are required")
	}
	if cfg.TreasuryPercentage == nil {
		cfg.TreasuryPercentage = calculator.MustParseDecimal("0.1", calculator.WadDecimals)
	}
	if cfg.OperationsPercentage == nil {
		cfg.OperationsPercentage = calculator.MustParseDecimal("0.1", calculator.WadDecimals)
	}
	if err := checkPercentages(cfg.TreasuryPercentage, cfg.OperationsPercentage); err != nil {
		return err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return nil
}

func checkPercentages(treasury, ops *uint256.Int) error {
	sum, err := calculator.Add(treasury, ops)
	if err != nil || sum.Gt(calculator.Wad) {
		return ErrInvalidPercentage
	}
	return nil
}

// Redemption is the split of one valor's harvested balance.
type Redemption struct {
	Valor       common.Address
	Total       *uint256.Int
	PoolCut     *uint256.Int
	TreasuryCut *uint256.Int
	OpsCut      *uint256.Int
}

// Redeemer is stateless beyond its configuration.
type Redeemer struct {
	cfg       Config
	log       *slog.Logger
	j         *journal.Journal
	book      *token.Book
	treasury  ProfitSink
	sources   map[common.Address]YieldSource
	order     []common.Address
	operators map[common.Address]bool

	treasuryPct *uint256.Int
	opsPct      *uint256.Int
}

func New(cfg Config, j *journal.Journal, book *token.Book, treasury ProfitSink) (*Redeemer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Redeemer{
		cfg:         cfg,
		log:         cfg.Logger,
		j:           j,
		book:        book,
		treasury:    treasury,
		sources:     make(map[common.Address]YieldSource),
		operators:   map[common.Address]bool{cfg.Admin: true},
		treasuryPct: cfg.TreasuryPercentage.Clone(),
		opsPct:      cfg.OperationsPercentage.Clone(),
	}, nil
}

func (r *Redeemer) Address() common.Address { return r.cfg.Address }

func (r *Redeemer) Percentages() (treasury, operations *uint256.Int) {
	return r.treasuryPct.Clone(), r.opsPct.Clone()
}

// Split computes the waterfall for a balance; both explicit cuts round down
// and the pool receives the remainder.
func (r *Redeemer) Split(balance *uint256.Int) (poolCut, treasuryCut, opsCut *uint256.Int) {
	treasuryCut = calculator.ApplyFraction(balance, r.treasuryPct)
	opsCut = calculator.ApplyFraction(balance, r.opsPct)
	poolCut = calculator.SaturatingSub(calculator.SaturatingSub(balance, treasuryCut), opsCut)
	return poolCut, treasuryCut, opsCut
}

// RedeemSingleAddress distributes everything the valor has harvested. A valor
// with nothing harvested yields an empty redemption, not an error.
func (r *Redeemer) RedeemSingleAddress(caller, valor common.Address, now time.Time) (_ *Redemption, err error) {
	if !r.operators[caller] {
		return nil, ErrUnauthorized
	}
	src, ok := r.sources[valor]
	if !ok {
		return nil, fmt.Errorf("%s: %w", valor.Hex(), ErrUnknownValor)
	}
	snap := r.j.Begin()
	defer func() { r.j.End(snap, err) }()

	total, err := src.ReleaseYield(r.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("redeem %s: %w", valor.Hex(), err)
	}
	res := &Redemption{Valor: valor, Total: total}
	res.PoolCut, res.TreasuryCut, res.OpsCut = r.Split(total)
	if total.IsZero() {
		return res, nil
	}

	if err := r.book.Transfer(token.BaseAsset, r.cfg.Address, r.cfg.Pool, res.PoolCut); err != nil {
		return nil, fmt.Errorf("redeem pool cut: %w", err)
	}
	if err := r.book.Transfer(token.BaseAsset, r.cfg.Address, r.cfg.Operations, res.OpsCut); err != nil {
		return nil, fmt.Errorf("redeem operations cut: %w", err)
	}
	if !res.TreasuryCut.IsZero() {
		if err := r.treasury.ReceiveProfit(r.cfg.Address, res.TreasuryCut, now); err != nil {
			return nil, fmt.Errorf("redeem treasury cut: %w", err)
		}
	}

	r.log.Info("redeemer: distributed", "valor", valor.Hex(), "total", total.Dec(),
		"pool", res.PoolCut.Dec(), "treasury", res.TreasuryCut.Dec(), "operations", res.OpsCut.Dec())
	r.cfg.Emit.Send(model.NewEvent(model.EventRedeem, r.cfg.Address, valor,
		"total", total, "pool", res.PoolCut, "treasury", res.TreasuryCut, "operations", res.OpsCut))
	return res, nil
}

// RedeemMultiAddress redeems every listed valor in one atomic call.
func (r *Redeemer) RedeemMultiAddress(caller common.Address, valors []common.Address, now time.Time) (_ []*Redemption, err error) {
	snap := r.j.Begin()
	defer func() { r.j.End(snap, err) }()

	out := make([]*Redemption, 0, len(valors))
	for _, v := range valors {
		res, err := r.RedeemSingleAddress(caller, v, now)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Valors lists registered yield sources in registration order.
func (r *Redeemer) Valors() []common.Address {
	return append([]common.Address(nil), r.order...)
}

func (r *Redeemer) AddValor(caller common.Address, src YieldSource) error {
	if caller != r.cfg.Admin {
		return ErrUnauthorized
	}
	if _, ok := r.sources[src.Address()]; ok {
		return nil
	}
	journal.SetEntry(r.j, r.sources, src.Address(), src)
	journal.Set(r.j, &r.order, append(append([]common.Address(nil), r.order...), src.Address()))
	return nil
}

func (r *Redeemer) SetOperator(caller, operator common.Address, enabled bool) error {
	if caller != r.cfg.Admin {
		return ErrUnauthorized
	}
	journal.SetEntry(r.j, r.operators, operator, enabled)
	return nil
}

func (r *Redeemer) SetPercentages(caller common.Address, treasury, operations *uint256.Int) error {
	if caller != r.cfg.Admin {
		return ErrUnauthorized
	}
	if err := checkPercentages(treasury, operations); err != nil {
		return err
	}
	journal.Set(r.j, &r.treasuryPct, treasury.Clone())
	journal.Set(r.j, &r.opsPct, operations.Clone())
	return nil
}

func (r *Redeemer) SetOperations(caller, operations common.Address) error {
	if caller != r.cfg.Admin {
		return ErrUnauthorized
	}
	journal.Set(r.j, &r.cfg.Operations, operations)
	return nil
}
