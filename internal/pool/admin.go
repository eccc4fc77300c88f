package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
	"HolyLedger/internal/model"
)

func (p *Pool) onlyAdmin(caller common.Address) error {
	if caller != p.cfg.Admin {
		return ErrUnauthorized
	}
	return nil
}

func (p *Pool) SetReserveTarget(caller common.Address, target *uint256.Int) error {
	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	journal.Set(p.j, &p.reserveTarget, target.Clone())
	p.cfg.Emit.Send(model.NewEvent(model.EventConfig, p.cfg.Address, caller, "reserve_target", target))
	return nil
}

func (p *Pool) SetForcedReclaimFee(caller common.Address, fee *uint256.Int) error {
	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	if fee.Gt(calculator.Wad) {
		return ErrInvalidFee
	}
	journal.Set(p.j, &p.forcedReclaimFee, fee.Clone())
	p.cfg.Emit.Send(model.NewEvent(model.EventConfig, p.cfg.Address, caller, "forced_reclaim_fee", fee))
	return nil
}

func (p *Pool) SetTransferProxy(caller, proxy common.Address) error {
	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	journal.Set(p.j, &p.transferProxy, proxy)
	return nil
}

// SetFeeRecipient redirects future forced-reclaim fees.
func (p *Pool) SetFeeRecipient(caller, recipient common.Address) error {
	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	if recipient == (common.Address{}) || recipient == p.cfg.Address {
		return fmt.Errorf("fee recipient %s: %w", recipient.Hex(), model.ErrPolicyViolation)
	}
	journal.Set(p.j, &p.feeRecipient, recipient)
	return nil
}

func (p *Pool) SetDepositsEnabled(caller common.Address, enabled bool) error {
	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	journal.Set(p.j, &p.depositsEnabled, enabled)
	return nil
}

func (p *Pool) SetWithdrawalsEnabled(caller common.Address, enabled bool) error {
	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	journal.Set(p.j, &p.withdrawalsEnabled, enabled)
	return nil
}

// AddHolyValor appends a valor; attachment order is reclaim priority.
func (p *Pool) AddHolyValor(caller common.Address, v Reclaimer) error {
	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	if p.isValor(v.Address()) {
		return fmt.Errorf("%s: %w", v.Address().Hex(), ErrValorAttached)
	}
	next := append(append([]Reclaimer(nil), p.valors...), v)
	journal.Set(p.j, &p.valors, next)
	p.log.Info("pool: valor attached", "valor", v.Address().Hex(), "position", len(next))
	return nil
}

// RemoveHolyValor detaches a valor that no longer holds principal.
func (p *Pool) RemoveHolyValor(caller, addr common.Address) error {
	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	next := make([]Reclaimer, 0, len(p.valors))
	found := false
	for _, v := range p.valors {
		if v.Address() != addr {
			next = append(next, v)
			continue
		}
		found = true
		if !v.AmountInvested().IsZero() {
			return fmt.Errorf("%s: %w", addr.Hex(), ErrValorHasPrincipal)
		}
	}
	if !found {
		return fmt.Errorf("%s: %w", addr.Hex(), ErrUnknownValor)
	}
	journal.Set(p.j, &p.valors, next)
	return nil
}

func (p *Pool) Snapshot() model.PoolSnapshot {
	valors := make([]string, 0, len(p.valors))
	for _, v := range p.Valors() {
		valors = append(valors, v.Hex())
	}
	return model.PoolSnapshot{
		TotalShares:      p.totalShares.Dec(),
		TotalAssets:      p.TotalAssets().Dec(),
		ReserveBalance:   p.ReserveBalance().Dec(),
		ReserveTarget:    p.reserveTarget.Dec(),
		PricePerShare:    p.PricePerShare().Dec(),
		SafeCapacity:     p.SafeReclaimCapacity().Dec(),
		ForcedReclaimFee: p.forcedReclaimFee.Dec(),
		Valors:           valors,
	}
}
