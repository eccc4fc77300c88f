// Package treasury is the bonus engine: profit injections are split into an
// endowment kept by the treasury and a bonus distributed to weighted stakers
// of the governance and LP tokens. Bonus owed under the accumulator is
// tokenized (minted as bonus tokens) whenever a staker's weight changes.
package treasury

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
	ErrUnauthorized       = fmt.Errorf("treasury: %w", model.ErrUnauthorized)
	ErrZeroAmount         = fmt.Errorf("zero amount: %w", model.ErrPolicyViolation)
	ErrInsufficientStake  = fmt.Errorf("insufficient staked balance: %w", model.ErrInsufficientBalance)
	ErrBurnCapExceeded    = fmt.Errorf("burn amount exceeds max burn amount: %w", model.ErrInsufficientBalance)
	ErrNoSupply           = fmt.Errorf("governance token has no supply: %w", model.ErrInsufficientBalance)
	ErrNothingToClaim     = fmt.Errorf("no bonus to claim: %w", model.ErrInsufficientBalance)
	ErrInvalidPercentage  = fmt.Errorf("percentage above 100%%: %w", model.ErrPolicyViolation)
	ErrPowercardOccupied  = fmt.Errorf("powercard already staked: %w", model.ErrPolicyViolation)
	ErrPowercardNotHolder = fmt.Errorf("caller does not hold the powercard: %w", model.ErrUnauthorized)
	ErrPowercardActive    = fmt.Errorf("powercard still active: %w", model.ErrTimelock)
	ErrPowercardCooldown  = fmt.Errorf("powercard cooldown not elapsed: %w", model.ErrTimelock)
)

type Config struct {
	Address  common.Address
	Admin    common.Address
	FrontEnd common.Address

	BaseWeight          *uint256.Int // weight per governance token staked, 18-decimal
	LPWeight            *uint256.Int // weight per LP token staked, 18-decimal
	EndowmentPercentage *uint256.Int
	BurnLeverage        *uint256.Int // multiple of the pro-rata endowment a burn claims
	MaxBurnFraction     *uint256.Int // of governance supply, per claim-and-burn
	BonusStakeRate      *uint256.Int // governance tokens restaked per bonus unit claimed

	PowercardBoost    *uint256.Int
	PowercardActive   time.Duration
	PowercardCooldown time.Duration

	Logger *slog.Logger
	Emit   model.Emit
}

func wad(s string) *uint256.Int { return calculator.MustParseDecimal(s, calculator.WadDecimals) }

func (cfg *Config) Validate() error {
	if cfg.Address == (common.Address{}) || cfg.Admin == (common.Address{}) {
		return fmt.Errorf("treasury address and admin are required")
	}
	defaults := []struct {
		field **uint256.Int
		value string
	}{
		{&cfg.BaseWeight, "1"},
		{&cfg.LPWeight, "2.5"},
		{&cfg.EndowmentPercentage, "0.5"},
		{&cfg.BurnLeverage, "4"},
		{&cfg.MaxBurnFraction, "0.05"},
		{&cfg.BonusStakeRate, "1"},
		{&cfg.PowercardBoost, "2"},
	}
	for _, d := range defaults {
		if *d.field == nil {
			*d.field = wad(d.value)
		}
	}
	if cfg.EndowmentPercentage.Gt(calculator.Wad) || cfg.MaxBurnFraction.Gt(calculator.Wad) {
		return ErrInvalidPercentage
	}
	if cfg.PowercardBoost.Lt(calculator.Wad) {
		return fmt.Errorf("powercard boost must be at least 1x")
	}
	if cfg.PowercardActive <= 0 {
		cfg.PowercardActive = 7 * 24 * time.Hour
	}
	if cfg.PowercardCooldown <= 0 {
		cfg.PowercardCooldown = 7 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return nil
}

// Treasury is not safe for concurrent use.
type Treasury struct {
	cfg  Config
	log  *slog.Logger
	j    *journal.Journal
	book *token.Book
	acc  *Accumulator

	profitSenders map[common.Address]bool

	stakedBase map[common.Address]*uint256.Int
	stakedLP   map[common.Address]*uint256.Int
	totalBase  *uint256.Int
	totalLP    *uint256.Int

	endowment    *uint256.Int
	bonusBalance *uint256.Int
	endowmentPct *uint256.Int
	maxBurn      *uint256.Int

	card Powercard
}

func New(cfg Config, j *journal.Journal, book *token.Book) (*Treasury, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Treasury{
		cfg:           cfg,
		log:           cfg.Logger,
		j:             j,
		book:          book,
		acc:           NewAccumulator(j),
		profitSenders: map[common.Address]bool{cfg.Admin: true},
		stakedBase:    make(map[common.Address]*uint256.Int),
		stakedLP:      make(map[common.Address]*uint256.Int),
		totalBase:     calculator.Zero(),
		totalLP:       calculator.Zero(),
		endowment:     calculator.Zero(),
		bonusBalance:  calculator.Zero(),
		endowmentPct:  cfg.EndowmentPercentage.Clone(),
		maxBurn:       cfg.MaxBurnFraction.Clone(),
		card: Powercard{
			ActiveDuration:   cfg.PowercardActive,
			CooldownDuration: cfg.PowercardCooldown,
		},
	}, nil
}

func (t *Treasury) Address() common.Address { return t.cfg.Address }

func (t *Treasury) EndowmentBalance() *uint256.Int { return t.endowment.Clone() }
func (t *Treasury) BonusBalance() *uint256.Int     { return t.bonusBalance.Clone() }
func (t *Treasury) TotalWeight() *uint256.Int      { return t.acc.TotalWeight() }
func (t *Treasury) TotalStaked() (base, lp *uint256.Int) {
	return t.totalBase.Clone(), t.totalLP.Clone()
}

func (t *Treasury) StakeOf(account common.Address) (base, lp *uint256.Int) {
	return calculator.Clone(t.stakedBase[account]), calculator.Clone(t.stakedLP[account])
}

// PendingBonus is bonus owed under the accumulator but not yet tokenized.
func (t *Treasury) PendingBonus(account common.Address) *uint256.Int {
	return t.acc.Owed(account)
}

// TokenizedBonus is bonus already minted to the account as bonus tokens.
func (t *Treasury) TokenizedBonus(account common.Address) *uint256.Int {
	return t.book.BalanceOf(token.Bonus, account)
}

// TotalBonus is pending plus tokenized bonus.
func (t *Treasury) TotalBonus(account common.Address) *uint256.Int {
	return calculator.MustAdd(t.PendingBonus(account), t.TokenizedBonus(account))
}

func (t *Treasury) Powercard() Powercard { return t.card }

// baseWeight is the unboosted stake weight of an account.
func (t *Treasury) baseWeight(account common.Address) *uint256.Int {
	base, lp := t.StakeOf(account)
	return calculator.MustAdd(
		calculator.ApplyFraction(base, t.cfg.BaseWeight),
		calculator.ApplyFraction(lp, t.cfg.LPWeight),
	)
}

func (t *Treasury) effectiveWeight(account common.Address) *uint256.Int {
	w := t.baseWeight(account)
	if t.card.Boosted && t.card.Holder == account {
		return calculator.ApplyFraction(w, t.cfg.PowercardBoost)
	}
	return w
}

// reweigh settles account at its current weight, tokenizes what it was owed,
// and moves it to its recomputed weight.
func (t *Treasury) reweigh(account common.Address) error {
	owed := t.acc.SetWeight(account, t.effectiveWeight(account))
	return t.tokenize(account, owed)
}

func (t *Treasury) tokenize(account common.Address, owed *uint256.Int) error {
	if owed.IsZero() {
		return nil
	}
	if err := t.book.Mint(token.Bonus, account, owed); err != nil {
		return fmt.Errorf("tokenize bonus: %w", err)
	}
	t.cfg.Emit.Send(model.NewEvent(model.EventBonusTokenized, t.cfg.Address, account, "amount", owed))
	return nil
}

// sync applies time-driven powercard transitions: once the active window has
// passed the holder's boost is removed before anything else reads weights.
func (t *Treasury) sync(now time.Time) error {
	if !t.card.Boosted || t.card.Phase(now) == PhaseActive {
		return nil
	}
	journal.Set(t.j, &t.card.Boosted, false)
	t.log.Info("treasury: powercard boost expired", "holder", t.card.Holder.Hex())
	return t.reweigh(t.card.Holder)
}

// ReceiveProfit takes amount from caller and splits it between the endowment
// and the stakers. With no stake weight everything goes to the endowment.
func (t *Treasury) ReceiveProfit(caller common.Address, amount *uint256.Int, now time.Time) (err error) {
	if !t.profitSenders[caller] {
		return ErrUnauthorized
	}
	if amount.IsZero() {
		return nil
	}
	snap := t.j.Begin()
	defer func() { t.j.End(snap, err) }()

	if err := t.sync(now); err != nil {
		return err
	}
	if err := t.book.Transfer(token.BaseAsset, caller, t.cfg.Address, amount); err != nil {
		return fmt.Errorf("receive profit: %w", err)
	}

	endowCut := amount.Clone()
	bonusCut := calculator.Zero()
	if !t.acc.TotalWeight().IsZero() {
		endowCut = calculator.ApplyFraction(amount, t.endowmentPct)
		bonusCut = new(uint256.Int).Sub(amount, endowCut)
		// Rounding dust nobody can claim stays in the bonus balance.
		if _, err := t.acc.Distribute(bonusCut); err != nil {
			return fmt.Errorf("receive profit: %w", err)
		}
	}
	journal.Set(t.j, &t.endowment, calculator.MustAdd(t.endowment, endowCut))
	journal.Set(t.j, &t.bonusBalance, calculator.MustAdd(t.bonusBalance, bonusCut))

	t.log.Info("treasury: profit received", "amount", amount.Dec(), "endowment", endowCut.Dec(), "bonus", bonusCut.Dec())
	t.cfg.Emit.Send(model.NewEvent(model.EventProfit, t.cfg.Address, caller,
		"amount", amount, "endowment", endowCut, "bonus", bonusCut, "acc_per_weight", t.acc.AccPerWeight()))
	return nil
}

func (t *Treasury) onBehalf(caller, account common.Address) bool {
	return caller == account || (caller == t.cfg.FrontEnd && caller != (common.Address{}))
}

// Deposit stakes governance and LP tokens for account.
func (t *Treasury) Deposit(caller, account common.Address, baseAmount, lpAmount *uint256.Int, now time.Time) (err error) {
	if !t.onBehalf(caller, account) {
		return ErrUnauthorized
	}
	if baseAmount.IsZero() && lpAmount.IsZero() {
		return ErrZeroAmount
	}
	snap := t.j.Begin()
	defer func() { t.j.End(snap, err) }()

	if err := t.sync(now); err != nil {
		return err
	}
	if err := t.book.Transfer(token.Governance, account, t.cfg.Address, baseAmount); err != nil {
		return fmt.Errorf("stake: %w", err)
	}
	if err := t.book.Transfer(token.LPToken, account, t.cfg.Address, lpAmount); err != nil {
		return fmt.Errorf("stake: %w", err)
	}
	t.addStake(account, baseAmount, lpAmount)
	if err := t.reweigh(account); err != nil {
		return err
	}

	t.log.Info("treasury: staked", "account", account.Hex(), "base", baseAmount.Dec(), "lp", lpAmount.Dec())
	t.cfg.Emit.Send(model.NewEvent(model.EventStake, t.cfg.Address, account,
		"base", baseAmount, "lp", lpAmount, "weight", t.acc.Weight(account)))
	return nil
}

// Withdraw unstakes governance and LP tokens back to account.
func (t *Treasury) Withdraw(caller, account common.Address, baseAmount, lpAmount *uint256.Int, now time.Time) (err error) {
	if !t.onBehalf(caller, account) {
		return ErrUnauthorized
	}
	if baseAmount.IsZero() && lpAmount.IsZero() {
		return ErrZeroAmount
	}
	base, lp := t.StakeOf(account)
	if base.Lt(baseAmount) || lp.Lt(lpAmount) {
		return fmt.Errorf("unstake %s/%s (staked %s/%s): %w",
			baseAmount.Dec(), lpAmount.Dec(), base.Dec(), lp.Dec(), ErrInsufficientStake)
	}
	snap := t.j.Begin()
	defer func() { t.j.End(snap, err) }()

	if err := t.sync(now); err != nil {
		return err
	}
	journal.SetEntry(t.j, t.stakedBase, account, new(uint256.Int).Sub(base, baseAmount))
	journal.SetEntry(t.j, t.stakedLP, account, new(uint256.Int).Sub(lp, lpAmount))
	journal.Set(t.j, &t.totalBase, calculator.SaturatingSub(t.totalBase, baseAmount))
	journal.Set(t.j, &t.totalLP, calculator.SaturatingSub(t.totalLP, lpAmount))
	if err := t.reweigh(account); err != nil {
		return err
	}
	if err := t.book.Transfer(token.Governance, t.cfg.Address, account, baseAmount); err != nil {
		return fmt.Errorf("unstake: %w", err)
	}
	if err := t.book.Transfer(token.LPToken, t.cfg.Address, account, lpAmount); err != nil {
		return fmt.Errorf("unstake: %w", err)
	}

	t.log.Info("treasury: unstaked", "account", account.Hex(), "base", baseAmount.Dec(), "lp", lpAmount.Dec())
	t.cfg.Emit.Send(model.NewEvent(model.EventUnstake, t.cfg.Address, account,
		"base", baseAmount, "lp", lpAmount, "weight", t.acc.Weight(account)))
	return nil
}

func (t *Treasury) addStake(account common.Address, baseAmount, lpAmount *uint256.Int) {
	base, lp := t.StakeOf(account)
	journal.SetEntry(t.j, t.stakedBase, account, calculator.MustAdd(base, baseAmount))
	journal.SetEntry(t.j, t.stakedLP, account, calculator.MustAdd(lp, lpAmount))
	journal.Set(t.j, &t.totalBase, calculator.MustAdd(t.totalBase, baseAmount))
	journal.Set(t.j, &t.totalLP, calculator.MustAdd(t.totalLP, lpAmount))
}
