package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/model"
	"HolyLedger/internal/redeemer"
	"HolyLedger/internal/valor"
)

// HarvestOutcome is one valor's result within a keeper cycle.
type HarvestOutcome struct {
	Valor  common.Address
	Name   string
	Result *valor.HarvestResult
	Err    error
}

// KeeperReport summarizes one keeper cycle.
type KeeperReport struct {
	StartedAt   time.Time
	Harvests    []HarvestOutcome
	Redemptions []*redeemer.Redemption
	Invested    map[common.Address]*uint256.Int
	Snapshot    *model.LedgerSnapshot
	Errors      []error
}

// Err joins every error the cycle hit.
func (r *KeeperReport) Err() error { return errors.Join(r.Errors...) }

// HarvestAll harvests every valor with accrued yield as the keeper. Each
// harvest is bounded by the previewed amount plus or minus HarvestTolerance
// and commits on its own, so one failing valor does not block the others.
func (l *Ledger) HarvestAll() []HarvestOutcome {
	var out []HarvestOutcome
	for _, addr := range l.Valors() {
		o := HarvestOutcome{Valor: addr}
		o.Err = l.exec("harvest", func(time.Time) error {
			v, err := l.valor(addr)
			if err != nil {
				return err
			}
			o.Name = v.Name()
			preview := v.PreviewHarvest()
			if preview.IsZero() {
				return nil
			}
			slack := calculator.ApplyFraction(preview, l.cfg.HarvestTolerance)
			o.Result, err = v.HarvestYield(l.cfg.Keeper,
				calculator.SaturatingSub(preview, slack), calculator.MustAdd(preview, slack))
			return err
		})
		if o.Result == nil && o.Err == nil {
			continue
		}
		out = append(out, o)
	}
	return out
}

// InvestIdle spreads the pool's idle funds above the reserve target evenly
// across attached valors; the last valor takes the rounding remainder.
func (l *Ledger) InvestIdle() (map[common.Address]*uint256.Int, error) {
	invested := make(map[common.Address]*uint256.Int)
	err := l.exec("invest_idle", func(time.Time) error {
		if len(l.valors) == 0 {
			return nil
		}
		idle := l.pool.IdleForInvestment()
		if idle.IsZero() {
			return nil
		}
		n := uint256.NewInt(uint64(len(l.valors)))
		each := new(uint256.Int).Div(idle, n)
		for i, v := range l.valors {
			amount := each
			if i == len(l.valors)-1 {
				amount = l.pool.IdleForInvestment()
			}
			if amount.IsZero() {
				continue
			}
			granted, err := v.InvestInVault(l.cfg.Keeper, amount, calculator.Zero())
			if err != nil {
				return fmt.Errorf("invest idle into %s: %w", v.Name(), err)
			}
			invested[v.Address()] = granted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invested, nil
}

// KeeperCycle runs harvest, redeem and idle investment, then saves a snapshot.
func (l *Ledger) KeeperCycle() *KeeperReport {
	report := &KeeperReport{StartedAt: l.Now()}

	report.Harvests = l.HarvestAll()
	for _, h := range report.Harvests {
		if h.Err != nil {
			l.log.Warn("ledger: keeper harvest failed", "valor", h.Name, "error", h.Err)
			report.Errors = append(report.Errors, fmt.Errorf("harvest %s: %w", h.Name, h.Err))
		}
	}

	redemptions, err := l.Redeem(l.cfg.Keeper)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("redeem: %w", err))
	}
	report.Redemptions = redemptions

	invested, err := l.InvestIdle()
	if err != nil {
		report.Errors = append(report.Errors, err)
	}
	report.Invested = invested

	snap, err := l.SaveSnapshot()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("save snapshot: %w", err))
	}
	report.Snapshot = snap

	l.log.Info("ledger: keeper cycle done", "harvests", len(report.Harvests),
		"redemptions", len(report.Redemptions), "errors", len(report.Errors))
	return report
}
