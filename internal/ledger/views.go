package ledger

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/metrics"
	"HolyLedger/internal/model"
	"HolyLedger/internal/recorder"
	"HolyLedger/internal/token"
	"HolyLedger/internal/treasury"
)

var assets = []token.Asset{token.BaseAsset, token.Governance, token.LPToken, token.Bonus, token.Powercard}

func (l *Ledger) Now() time.Time { return l.clock.Now().UTC() }

func (l *Ledger) Config() Config { return l.cfg }

// Snapshot summarizes pool, valors and treasury at the current time.
func (l *Ledger) Snapshot() *model.LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked(l.Now())
}

func (l *Ledger) snapshotLocked(now time.Time) *model.LedgerSnapshot {
	snap := &model.LedgerSnapshot{
		Pool:      l.pool.Snapshot(),
		Valors:    make([]model.ValorSnapshot, 0, len(l.valors)),
		Treasury:  l.treasury.Snapshot(now),
		Sequence:  l.sequence,
		UpdatedAt: now,
	}
	for _, v := range l.valors {
		snap.Valors = append(snap.Valors, v.Snapshot())
	}
	return snap
}

func (l *Ledger) AccountSnapshot(account common.Address) model.AccountSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	base, lp := l.treasury.StakeOf(account)
	snap := model.AccountSnapshot{
		Address:        account.Hex(),
		PoolShares:     l.pool.SharesOf(account).Dec(),
		DepositBalance: l.pool.GetDepositBalance(account).Dec(),
		StakedBase:     base.Dec(),
		StakedLP:       lp.Dec(),
		PendingBonus:   l.treasury.PendingBonus(account).Dec(),
		TotalBonus:     l.treasury.TotalBonus(account).Dec(),
		Balances:       make(map[string]string, len(assets)),
	}
	for _, a := range assets {
		snap.Balances[string(a)] = l.book.BalanceOf(a, account).Dec()
	}
	return snap
}

func (l *Ledger) BalanceOf(asset token.Asset, account common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.book.BalanceOf(asset, account)
}

func (l *Ledger) PowercardState() treasury.PowercardState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.treasury.PowercardState(l.Now())
}

// BurnValuePortions previews a claim-and-burn without executing it.
func (l *Ledger) BurnValuePortions(account common.Address, amount *uint256.Int) (endowmentPortion, bonusPortion *uint256.Int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.treasury.BurnValuePortions(account, amount)
}

func (l *Ledger) Valors() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]common.Address, 0, len(l.valors))
	for _, v := range l.valors {
		out = append(out, v.Address())
	}
	return out
}

func (l *Ledger) RecentEvents(limit int) ([]recorder.StoredEvent, error) {
	return l.rec.RecentEvents(limit)
}

func (l *Ledger) updateGauges() {
	metrics.PoolPricePerShare.Set(toFloat(l.pool.PricePerShare(), calculator.WadDecimals))
	metrics.PoolTotalAssets.Set(toFloat(l.pool.TotalAssets(), token.Decimals[token.BaseAsset]))
	metrics.PoolReserve.Set(toFloat(l.pool.ReserveBalance(), token.Decimals[token.BaseAsset]))
	for _, v := range l.valors {
		metrics.ValorInvested.WithLabelValues(v.Name()).Set(toFloat(v.AmountInvested(), token.Decimals[token.BaseAsset]))
	}
	metrics.TreasuryEndowment.Set(toFloat(l.treasury.EndowmentBalance(), token.Decimals[token.BaseAsset]))
	metrics.TreasuryBonus.Set(toFloat(l.treasury.BonusBalance(), token.Decimals[token.BaseAsset]))
}

// toFloat is lossy and only meant for gauges.
func toFloat(x *uint256.Int, decimals int) float64 {
	f, err := strconv.ParseFloat(calculator.FormatDecimal(x, decimals), 64)
	if err != nil {
		return 0
	}
	return f
}
