package notifier

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/ledger"
	"HolyLedger/internal/model"
	"HolyLedger/internal/token"
)

var usdcDecimals = token.Decimals[token.BaseAsset]

// units renders a base-unit decimal string with the given decimals.
func units(s string, decimals int) string {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return s
	}
	return calculator.FormatDecimal(v, decimals)
}

func usdc(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return calculator.FormatDecimal(x, usdcDecimals)
}

// FormatKeeperReport formats one keeper cycle into a Telegram message.
func FormatKeeperReport(r *ledger.KeeperReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🛠 <b>HolyLedger keeper</b> | %s\n\n", r.StartedAt.Format("2006-01-02 15:04")))

	if len(r.Harvests) == 0 {
		b.WriteString("No yield to harvest\n")
	}
	for _, h := range r.Harvests {
		if h.Err != nil {
			b.WriteString(fmt.Sprintf("❌ %s harvest failed: %v\n", h.Name, h.Err))
			continue
		}
		b.WriteString(fmt.Sprintf("🌾 %s harvested %s USDC (expected %s)\n",
			h.Name, usdc(h.Result.Received), usdc(h.Result.Expected)))
	}

	var pool, treasury, ops uint256.Int
	for _, rd := range r.Redemptions {
		pool.Add(&pool, rd.PoolCut)
		treasury.Add(&treasury, rd.TreasuryCut)
		ops.Add(&ops, rd.OpsCut)
	}
	if !pool.IsZero() || !treasury.IsZero() || !ops.IsZero() {
		b.WriteString("\n💸 <b>Redeemed:</b>\n")
		b.WriteString(fmt.Sprintf("  pool: %s\n", usdc(&pool)))
		b.WriteString(fmt.Sprintf("  treasury: %s\n", usdc(&treasury)))
		b.WriteString(fmt.Sprintf("  operations: %s\n", usdc(&ops)))
	}

	if len(r.Invested) > 0 {
		var total uint256.Int
		for _, v := range r.Invested {
			total.Add(&total, v)
		}
		b.WriteString(fmt.Sprintf("\n📥 Idle reserve invested: %s USDC across %d valors\n", usdc(&total), len(r.Invested)))
	}

	if r.Snapshot != nil {
		b.WriteString("\n" + FormatPoolStatus(r.Snapshot))
	}
	if len(r.Errors) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ %d step(s) failed, see logs\n", len(r.Errors)))
	}
	return b.String()
}

// FormatPoolStatus formats the pool and its valors for display.
func FormatPoolStatus(s *model.LedgerSnapshot) string {
	var b strings.Builder
	b.WriteString("📦 <b>Pool</b>\n\n")
	b.WriteString(fmt.Sprintf("Total assets: %s USDC\n", units(s.Pool.TotalAssets, usdcDecimals)))
	b.WriteString(fmt.Sprintf("Reserve: %s / target %s\n",
		units(s.Pool.ReserveBalance, usdcDecimals), units(s.Pool.ReserveTarget, usdcDecimals)))
	b.WriteString(fmt.Sprintf("Price per share: %s\n", units(s.Pool.PricePerShare, calculator.WadDecimals)))
	b.WriteString(fmt.Sprintf("Safe reclaim capacity: %s\n", units(s.Pool.SafeCapacity, usdcDecimals)))
	for _, v := range s.Valors {
		b.WriteString(fmt.Sprintf("  • %s: invested %s, accrued %s\n", v.Name,
			units(v.AmountInvested, usdcDecimals), units(v.AccruedYield, usdcDecimals)))
	}
	b.WriteString(fmt.Sprintf("Updated: %s\n", s.UpdatedAt.Format("2006-01-02 15:04")))
	return b.String()
}

// FormatTreasuryStatus formats the treasury balances and the powercard.
func FormatTreasuryStatus(s *model.LedgerSnapshot) string {
	t := s.Treasury
	var b strings.Builder
	b.WriteString("🏛 <b>Treasury</b>\n\n")
	b.WriteString(fmt.Sprintf("Endowment: %s USDC\n", units(t.EndowmentBalance, usdcDecimals)))
	b.WriteString(fmt.Sprintf("Bonus owed: %s USDC\n", units(t.BonusBalance, usdcDecimals)))
	b.WriteString(fmt.Sprintf("Staked: %s HH, %s HHLP\n",
		units(t.TotalStakedBase, token.Decimals[token.Governance]), units(t.TotalStakedLP, token.Decimals[token.LPToken])))
	b.WriteString(fmt.Sprintf("Endowment share: %s\n", units(t.EndowmentPercentage, calculator.WadDecimals)))
	if t.PowercardHolder != "" {
		b.WriteString(fmt.Sprintf("Powercard: %s (%s)\n", t.PowercardPhase, t.PowercardHolder))
	} else {
		b.WriteString(fmt.Sprintf("Powercard: %s\n", t.PowercardPhase))
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Commands:\n• /pool\n• /treasury\n• /harvest"
}
