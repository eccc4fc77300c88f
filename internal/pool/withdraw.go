package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
	"HolyLedger/internal/model"
	"HolyLedger/internal/token"
)

// Reclaim is what one valor was asked for during a withdrawal and what it returned.
type Reclaim struct {
	Valor     common.Address
	Requested *uint256.Int
	Reclaimed *uint256.Int
	Forced    *uint256.Int // part of Requested taken beyond the safe amount
}

// WithdrawResult describes a served withdrawal.
type WithdrawResult struct {
	Requested    *uint256.Int
	Delivered    *uint256.Int
	Fee          *uint256.Int
	SharesBurned *uint256.Int
	Reclaims     []Reclaim
}

// reclaimPlan accumulates per-valor reclaims in attachment order.
type reclaimPlan struct {
	order []common.Address
	byVal map[common.Address]*Reclaim
}

func newReclaimPlan() *reclaimPlan {
	return &reclaimPlan{byVal: make(map[common.Address]*Reclaim)}
}

func (rp *reclaimPlan) add(valor common.Address, requested, reclaimed *uint256.Int, forced bool) {
	r, ok := rp.byVal[valor]
	if !ok {
		r = &Reclaim{Valor: valor, Requested: calculator.Zero(), Reclaimed: calculator.Zero(), Forced: calculator.Zero()}
		rp.byVal[valor] = r
		rp.order = append(rp.order, valor)
	}
	r.Requested = calculator.MustAdd(r.Requested, requested)
	r.Reclaimed = calculator.MustAdd(r.Reclaimed, reclaimed)
	if forced {
		r.Forced = calculator.MustAdd(r.Forced, requested)
	}
}

func (rp *reclaimPlan) list() []Reclaim {
	out := make([]Reclaim, 0, len(rp.order))
	for _, v := range rp.order {
		out = append(out, *rp.byVal[v])
	}
	return out
}

func (rp *reclaimPlan) received() *uint256.Int {
	total := calculator.Zero()
	for _, r := range rp.byVal {
		total = calculator.MustAdd(total, r.Reclaimed)
	}
	return total
}

// Withdraw pays out amount of beneficiary's deposit to the transfer proxy.
//
// The reserve serves the request when it can. Otherwise the shortfall, plus a
// top-up back to the reserve target, is reclaimed fee-free from the valors in
// attachment order up to each one's safe amount. Anything beyond the reserve
// and all safe amounts is force-reclaimed from the valors in reverse order.
// The forced-reclaim fee on that excess is withheld from the payout and sent
// to the fee recipient, so it leaves the pool without raising the share price.
// Shares burned always correspond to the requested amount.
func (p *Pool) Withdraw(caller, beneficiary common.Address, amount *uint256.Int) (_ *WithdrawResult, err error) {
	if caller != p.transferProxy || caller == (common.Address{}) {
		return nil, ErrUnauthorized
	}
	if !p.withdrawalsEnabled {
		return nil, ErrWithdrawalsDisabled
	}
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if balance := p.GetDepositBalance(beneficiary); balance.Lt(amount) {
		return nil, fmt.Errorf("withdraw %s (balance %s): %w", amount.Dec(), balance.Dec(), ErrInsufficientDeposit)
	}
	release, err := p.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	snap := p.j.Begin()
	defer func() { p.j.End(snap, err) }()

	burn, err := calculator.SharesForWithdrawal(amount, p.totalShares, p.TotalAssets())
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	burn = calculator.Min(burn, p.SharesOf(beneficiary))

	// Ledger effects happen before any valor is called.
	journal.SetEntry(p.j, p.shares, beneficiary, new(uint256.Int).Sub(p.SharesOf(beneficiary), burn))
	journal.Set(p.j, &p.totalShares, new(uint256.Int).Sub(p.totalShares, burn))

	res := &WithdrawResult{
		Requested:    amount.Clone(),
		Delivered:    amount.Clone(),
		Fee:          calculator.Zero(),
		SharesBurned: burn,
	}

	reserve := p.ReserveBalance()
	if reserve.Lt(amount) {
		plan, fee, err := p.reclaim(new(uint256.Int).Sub(amount, reserve))
		if err != nil {
			return nil, err
		}
		res.Fee = fee
		res.Delivered = new(uint256.Int).Sub(amount, fee)
		res.Reclaims = plan.list()
		if available := calculator.MustAdd(reserve, plan.received()); available.Lt(amount) {
			return nil, fmt.Errorf("withdraw %s (available %s after reclaim): %w",
				amount.Dec(), available.Dec(), ErrInsufficientLiquidity)
		}
	}

	if err := p.book.Transfer(token.BaseAsset, p.cfg.Address, caller, res.Delivered); err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	if !res.Fee.IsZero() {
		if err := p.book.Transfer(token.BaseAsset, p.cfg.Address, p.feeRecipient, res.Fee); err != nil {
			return nil, fmt.Errorf("withdraw: forced reclaim fee: %w", err)
		}
	}

	for _, r := range res.Reclaims {
		p.cfg.Emit.Send(model.NewEvent(model.EventReclaim, p.cfg.Address, r.Valor,
			"requested", r.Requested, "reclaimed", r.Reclaimed, "forced", r.Forced))
	}
	p.log.Info("pool: withdraw", "account", beneficiary.Hex(), "requested", amount.Dec(),
		"delivered", res.Delivered.Dec(), "fee", res.Fee.Dec(), "reclaims", len(res.Reclaims))
	p.cfg.Emit.Send(model.NewEvent(model.EventWithdraw, p.cfg.Address, beneficiary,
		"requested", amount, "actual", res.Delivered, "fee", res.Fee, "shares", burn))
	return res, nil
}

// reclaim pulls shortfall from the valors and returns the fee owed on the
// forced part.
func (p *Pool) reclaim(shortfall *uint256.Int) (*reclaimPlan, *uint256.Int, error) {
	plan := newReclaimPlan()

	safeCaps := make([]*uint256.Int, len(p.valors))
	safeTotal := calculator.Zero()
	for i, v := range p.valors {
		safeCaps[i] = v.SafeReclaimAmount()
		safeTotal = calculator.MustAdd(safeTotal, safeCaps[i])
	}

	if !shortfall.Gt(safeTotal) {
		// Fee-free: also top the reserve back up toward its target.
		want := calculator.Min(calculator.MustAdd(shortfall, p.reserveTarget), safeTotal)
		if err := p.reclaimSafe(plan, safeCaps, want); err != nil {
			return nil, nil, err
		}
		return plan, calculator.Zero(), nil
	}

	excess := new(uint256.Int).Sub(shortfall, safeTotal)
	forcedCap := calculator.Zero()
	for i, v := range p.valors {
		forcedCap = calculator.MustAdd(forcedCap, calculator.SaturatingSub(v.TotalReclaimAmount(), safeCaps[i]))
	}
	if forcedCap.Lt(excess) {
		return nil, nil, fmt.Errorf("reclaim %s beyond safe capacity (forced capacity %s): %w",
			excess.Dec(), forcedCap.Dec(), ErrInsufficientLiquidity)
	}

	if err := p.reclaimSafe(plan, safeCaps, safeTotal); err != nil {
		return nil, nil, err
	}
	remaining := excess.Clone()
	for i := len(p.valors) - 1; i >= 0 && !remaining.IsZero(); i-- {
		v := p.valors[i]
		req := calculator.Min(v.TotalReclaimAmount(), remaining)
		if req.IsZero() {
			continue
		}
		got, err := v.DivestFromVault(p.cfg.Address, req, false)
		if err != nil {
			return nil, nil, fmt.Errorf("forced reclaim from %s: %w", v.Address().Hex(), err)
		}
		plan.add(v.Address(), req, got, true)
		remaining = new(uint256.Int).Sub(remaining, req)
	}
	fee := calculator.ApplyFraction(excess, p.forcedReclaimFee)
	p.log.Warn("pool: forced reclaim", "excess", excess.Dec(), "fee", fee.Dec())
	return plan, fee, nil
}

func (p *Pool) reclaimSafe(plan *reclaimPlan, caps []*uint256.Int, want *uint256.Int) error {
	remaining := want.Clone()
	for i, v := range p.valors {
		if remaining.IsZero() {
			break
		}
		req := calculator.Min(caps[i], remaining)
		if req.IsZero() {
			continue
		}
		got, err := v.DivestFromVault(p.cfg.Address, req, true)
		if err != nil {
			return fmt.Errorf("safe reclaim from %s: %w", v.Address().Hex(), err)
		}
		plan.add(v.Address(), req, got, false)
		remaining = new(uint256.Int).Sub(remaining, req)
	}
	return nil
}
