package treasury

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
	"HolyLedger/internal/model"
)

func (t *Treasury) onlyAdmin(caller common.Address) error {
	if caller != t.cfg.Admin {
		return ErrUnauthorized
	}
	return nil
}

// AddProfitSender allows sender to call ReceiveProfit.
func (t *Treasury) AddProfitSender(caller, sender common.Address) error {
	if err := t.onlyAdmin(caller); err != nil {
		return err
	}
	journal.SetEntry(t.j, t.profitSenders, sender, true)
	return nil
}

func (t *Treasury) SetFrontEnd(caller, frontEnd common.Address) error {
	if err := t.onlyAdmin(caller); err != nil {
		return err
	}
	journal.Set(t.j, &t.cfg.FrontEnd, frontEnd)
	return nil
}

func (t *Treasury) SetEndowmentPercentage(caller common.Address, pct *uint256.Int) error {
	if err := t.onlyAdmin(caller); err != nil {
		return err
	}
	if pct.Gt(calculator.Wad) {
		return ErrInvalidPercentage
	}
	journal.Set(t.j, &t.endowmentPct, pct.Clone())
	t.cfg.Emit.Send(model.NewEvent(model.EventConfig, t.cfg.Address, caller, "endowment_percentage", pct))
	return nil
}

func (t *Treasury) SetMaxBurnFraction(caller common.Address, fraction *uint256.Int) error {
	if err := t.onlyAdmin(caller); err != nil {
		return err
	}
	if fraction.Gt(calculator.Wad) {
		return ErrInvalidPercentage
	}
	journal.Set(t.j, &t.maxBurn, fraction.Clone())
	t.cfg.Emit.Send(model.NewEvent(model.EventConfig, t.cfg.Address, caller, "max_burn_fraction", fraction))
	return nil
}

func (t *Treasury) Snapshot(now time.Time) model.TreasurySnapshot {
	card := t.PowercardState(now)
	snap := model.TreasurySnapshot{
		EndowmentBalance:    t.endowment.Dec(),
		BonusBalance:        t.bonusBalance.Dec(),
		TotalStakedBase:     t.totalBase.Dec(),
		TotalStakedLP:       t.totalLP.Dec(),
		TotalWeight:         t.acc.TotalWeight().Dec(),
		AccPerWeight:        t.acc.AccPerWeight().Dec(),
		EndowmentPercentage: t.endowmentPct.Dec(),
		PowercardPhase:      string(card.Phase),
	}
	if card.Phase != PhaseUnstaked {
		snap.PowercardHolder = card.Holder.Hex()
	}
	return snap
}
