package treasury

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
	"HolyLedger/internal/model"
	"HolyLedger/internal/token"
)

// governanceScale converts base-asset units into governance units.
var governanceScale = new(uint256.Int).Exp(uint256.NewInt(10),
	uint256.NewInt(uint64(token.Decimals[token.Governance]-token.Decimals[token.BaseAsset])))

// MaxBurnAmount is the largest governance amount a single claim-and-burn may destroy.
func (t *Treasury) MaxBurnAmount() *uint256.Int {
	return calculator.ApplyFraction(t.book.TotalSupply(token.Governance), t.maxBurn)
}

// BurnValuePortions prices a burn of amount governance tokens for user. The
// burn entitles the user to amount/supply of the endowment scaled by the burn
// leverage. That entitlement is paid from the user's own bonus first, 1:1,
// and the rest from the endowment, which caps it.
func (t *Treasury) BurnValuePortions(user common.Address, amount *uint256.Int) (endowmentPortion, bonusPortion *uint256.Int, err error) {
	supply := t.book.TotalSupply(token.Governance)
	if supply.IsZero() {
		return nil, nil, ErrNoSupply
	}
	if amount.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if limit := t.MaxBurnAmount(); amount.Gt(limit) {
		return nil, nil, fmt.Errorf("burn %s above %s: %w", amount.Dec(), limit.Dec(), ErrBurnCapExceeded)
	}
	leveraged := calculator.ApplyFraction(t.endowment, t.cfg.BurnLeverage)
	entitlement, err := calculator.MulDiv(amount, leveraged, supply)
	if err != nil {
		return nil, nil, err
	}
	bonusPortion = calculator.Min(t.TotalBonus(user), entitlement)
	endowmentPortion = calculator.Min(new(uint256.Int).Sub(entitlement, bonusPortion), t.endowment)
	return endowmentPortion, bonusPortion, nil
}

// ClaimAndBurn burns amount of the account's governance tokens and pays the
// portions quoted by BurnValuePortions in the base asset. Only the front end
// may call it.
func (t *Treasury) ClaimAndBurn(caller, account common.Address, amount *uint256.Int, now time.Time) (endowmentPortion, bonusPortion *uint256.Int, err error) {
	if caller != t.cfg.FrontEnd || caller == (common.Address{}) {
		return nil, nil, ErrUnauthorized
	}
	snap := t.j.Begin()
	defer func() { t.j.End(snap, err) }()

	if err := t.sync(now); err != nil {
		return nil, nil, err
	}
	endowmentPortion, bonusPortion, err = t.BurnValuePortions(account, amount)
	if err != nil {
		return nil, nil, err
	}
	if err := t.book.Burn(token.Governance, account, amount); err != nil {
		return nil, nil, fmt.Errorf("claim and burn: %w", err)
	}
	if err := t.spendBonus(account, bonusPortion); err != nil {
		return nil, nil, err
	}
	journal.Set(t.j, &t.endowment, new(uint256.Int).Sub(t.endowment, endowmentPortion))

	payout := calculator.MustAdd(endowmentPortion, bonusPortion)
	if err := t.book.Transfer(token.BaseAsset, t.cfg.Address, account, payout); err != nil {
		return nil, nil, fmt.Errorf("claim and burn payout: %w", err)
	}

	t.log.Info("treasury: claim and burn", "account", account.Hex(), "burned", amount.Dec(),
		"endowment", endowmentPortion.Dec(), "bonus", bonusPortion.Dec())
	t.cfg.Emit.Send(model.NewEvent(model.EventClaimAndBurn, t.cfg.Address, account,
		"burned", amount, "endowment", endowmentPortion, "bonus", bonusPortion))
	return endowmentPortion, bonusPortion, nil
}

// ClaimUSDCForBonus pays the account's whole bonus in the base asset and
// restakes the equivalent governance amount, minted fresh, into its base stake.
func (t *Treasury) ClaimUSDCForBonus(caller, account common.Address, now time.Time) (paid *uint256.Int, err error) {
	if !t.onBehalf(caller, account) {
		return nil, ErrUnauthorized
	}
	snap := t.j.Begin()
	defer func() { t.j.End(snap, err) }()

	if err := t.sync(now); err != nil {
		return nil, err
	}
	paid = t.TotalBonus(account)
	if paid.IsZero() {
		return nil, ErrNothingToClaim
	}
	if err := t.spendBonus(account, paid); err != nil {
		return nil, err
	}
	if err := t.book.Transfer(token.BaseAsset, t.cfg.Address, account, paid); err != nil {
		return nil, fmt.Errorf("bonus payout: %w", err)
	}

	restake := new(uint256.Int).Mul(calculator.ApplyFraction(paid, t.cfg.BonusStakeRate), governanceScale)
	if !restake.IsZero() {
		if err := t.book.Mint(token.Governance, t.cfg.Address, restake); err != nil {
			return nil, fmt.Errorf("bonus restake: %w", err)
		}
		t.addStake(account, restake, calculator.Zero())
		if err := t.reweigh(account); err != nil {
			return nil, err
		}
	}

	t.log.Info("treasury: bonus claimed", "account", account.Hex(), "paid", paid.Dec(), "restaked", restake.Dec())
	t.cfg.Emit.Send(model.NewEvent(model.EventBonusClaim, t.cfg.Address, account,
		"paid", paid, "restaked", restake))
	return paid, nil
}

// spendBonus tokenizes whatever the account is still owed, then burns amount
// of its bonus tokens against the bonus balance.
func (t *Treasury) spendBonus(account common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := t.tokenize(account, t.acc.Settle(account)); err != nil {
		return err
	}
	if err := t.book.Burn(token.Bonus, account, amount); err != nil {
		return fmt.Errorf("spend bonus: %w", err)
	}
	left, err := calculator.Sub(t.bonusBalance, amount)
	if err != nil {
		return fmt.Errorf("spend bonus %s of %s: %w", amount.Dec(), t.bonusBalance.Dec(), err)
	}
	journal.Set(t.j, &t.bonusBalance, left)
	return nil
}
