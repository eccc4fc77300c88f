package treasury

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/journal"
	"HolyLedger/internal/model"
	"HolyLedger/internal/token"
)

// Phase of the multiplier position.
type Phase string

const (
	PhaseUnstaked Phase = "UNSTAKED"
	PhaseActive   Phase = "ACTIVE"
	PhaseCooldown Phase = "COOLDOWN"
)

// Powercard is the single scarce multiplier position. Phases advance purely
// on elapsed time: Active for ActiveDuration after staking, then Cooldown
// until the holder unstakes. The same holder cannot stake again until
// ActiveDuration+CooldownDuration after its last stake.
type Powercard struct {
	Holder      common.Address
	StakedAt    time.Time
	Boosted     bool
	LastHolder  common.Address
	LockedUntil time.Time

	ActiveDuration   time.Duration
	CooldownDuration time.Duration
}

func (c Powercard) Phase(now time.Time) Phase {
	switch {
	case c.Holder == (common.Address{}):
		return PhaseUnstaked
	case now.Before(c.ActiveUntil()):
		return PhaseActive
	default:
		return PhaseCooldown
	}
}

func (c Powercard) ActiveUntil() time.Time {
	return c.StakedAt.Add(c.ActiveDuration)
}

func (c Powercard) CooldownUntil() time.Time {
	return c.ActiveUntil().Add(c.CooldownDuration)
}

// Occupied reports whether someone holds the position in any phase.
func (c Powercard) Occupied() bool {
	return c.Holder != (common.Address{})
}

// Locked reports whether addr is still barred from staking again.
func (c Powercard) Locked(addr common.Address, now time.Time) bool {
	return c.LastHolder == addr && now.Before(c.LockedUntil)
}

// PowercardState is the read view of the multiplier position at a given time.
type PowercardState struct {
	Phase         Phase
	Holder        common.Address
	ActiveUntil   time.Time
	CooldownUntil time.Time
}

func (t *Treasury) PowercardState(now time.Time) PowercardState {
	st := PowercardState{Phase: t.card.Phase(now), Holder: t.card.Holder}
	if st.Phase != PhaseUnstaked {
		st.ActiveUntil = t.card.ActiveUntil()
		st.CooldownUntil = t.card.CooldownUntil()
	}
	return st
}

// StakePowercard locks the caller's powercard in the treasury and boosts its
// weight for the active window.
func (t *Treasury) StakePowercard(caller common.Address, now time.Time) (err error) {
	snap := t.j.Begin()
	defer func() { t.j.End(snap, err) }()

	if err := t.sync(now); err != nil {
		return err
	}
	if t.card.Occupied() {
		return ErrPowercardOccupied
	}
	if t.card.Locked(caller, now) {
		return fmt.Errorf("locked until %s: %w", t.card.LockedUntil.Format(time.RFC3339), ErrPowercardCooldown)
	}
	if err := t.book.Transfer(token.Powercard, caller, t.cfg.Address, uint256.NewInt(1)); err != nil {
		return fmt.Errorf("stake powercard: %w", err)
	}
	card := t.card
	card.Holder = caller
	card.StakedAt = now
	card.Boosted = true
	card.LastHolder = caller
	card.LockedUntil = card.CooldownUntil()
	journal.Set(t.j, &t.card, card)
	if err := t.reweigh(caller); err != nil {
		return err
	}

	t.log.Info("treasury: powercard staked", "holder", caller.Hex(), "active_until", card.ActiveUntil())
	t.cfg.Emit.Send(model.NewEvent(model.EventPowercardStake, t.cfg.Address, caller, "weight", t.acc.Weight(caller)))
	return nil
}

// UnstakePowercard returns the powercard to its holder once the active
// window has passed.
func (t *Treasury) UnstakePowercard(caller common.Address, now time.Time) (err error) {
	snap := t.j.Begin()
	defer func() { t.j.End(snap, err) }()

	if err := t.sync(now); err != nil {
		return err
	}
	if !t.card.Occupied() || t.card.Holder != caller {
		return ErrPowercardNotHolder
	}
	if t.card.Phase(now) != PhaseCooldown {
		return fmt.Errorf("active until %s: %w", t.card.ActiveUntil().Format(time.RFC3339), ErrPowercardActive)
	}
	card := t.card
	card.Holder = common.Address{}
	card.Boosted = false
	journal.Set(t.j, &t.card, card)
	if err := t.book.Transfer(token.Powercard, t.cfg.Address, caller, uint256.NewInt(1)); err != nil {
		return fmt.Errorf("unstake powercard: %w", err)
	}

	t.log.Info("treasury: powercard unstaked", "holder", caller.Hex())
	t.cfg.Emit.Send(model.NewEvent(model.EventPowercardUnstake, t.cfg.Address, caller))
	return nil
}
