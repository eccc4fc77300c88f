package treasury

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/journal"
)

// AccPrecision scales accPerWeight so per-unit rewards survive integer division.
var AccPrecision = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(36))

var ErrNoWeight = errors.New("no weight to distribute to")

type position struct {
	weight *uint256.Int
	debt   *uint256.Int
}

// Accumulator distributes rewards pro rata to weight in O(1): each
// distribution bumps a reward-per-weight index and every position remembers
// the index it last settled at (as debt). Owed = weight*index - debt.
// Debt rounds up and owed rounds down, so the sum owed never exceeds the
// sum distributed.
type Accumulator struct {
	j            *journal.Journal
	accPerWeight *uint256.Int
	totalWeight  *uint256.Int
	positions    map[common.Address]position
}

func NewAccumulator(j *journal.Journal) *Accumulator {
	return &Accumulator{
		j:            j,
		accPerWeight: calculator.Zero(),
		totalWeight:  calculator.Zero(),
		positions:    make(map[common.Address]position),
	}
}

func (a *Accumulator) AccPerWeight() *uint256.Int { return a.accPerWeight.Clone() }
func (a *Accumulator) TotalWeight() *uint256.Int  { return a.totalWeight.Clone() }

func (a *Accumulator) Weight(addr common.Address) *uint256.Int {
	return calculator.Clone(a.positions[addr].weight)
}

func (a *Accumulator) accrued(weight *uint256.Int) *uint256.Int {
	if weight == nil || weight.IsZero() {
		return calculator.Zero()
	}
	z, err := calculator.MulDiv(weight, a.accPerWeight, AccPrecision)
	if err != nil {
		panic(err)
	}
	return z
}

func (a *Accumulator) debt(weight *uint256.Int) *uint256.Int {
	if weight.IsZero() {
		return calculator.Zero()
	}
	z, err := calculator.MulDivUp(weight, a.accPerWeight, AccPrecision)
	if err != nil {
		panic(err)
	}
	return z
}

// Owed is what addr has earned since it last settled.
func (a *Accumulator) Owed(addr common.Address) *uint256.Int {
	pos := a.positions[addr]
	return calculator.SaturatingSub(a.accrued(pos.weight), calculator.Clone(pos.debt))
}

// Distribute spreads amount over the current total weight. It returns the
// amount actually attributable; the rounding remainder is not owed to anyone.
func (a *Accumulator) Distribute(amount *uint256.Int) (*uint256.Int, error) {
	if a.totalWeight.IsZero() {
		return nil, ErrNoWeight
	}
	if amount.IsZero() {
		return calculator.Zero(), nil
	}
	delta, err := calculator.MulDiv(amount, AccPrecision, a.totalWeight)
	if err != nil {
		return nil, err
	}
	acc, err := calculator.Add(a.accPerWeight, delta)
	if err != nil {
		return nil, err
	}
	journal.Set(a.j, &a.accPerWeight, acc)
	attributable, err := calculator.MulDiv(delta, a.totalWeight, AccPrecision)
	if err != nil {
		return nil, err
	}
	return attributable, nil
}

// Settle returns and clears what addr is owed, leaving its weight untouched.
func (a *Accumulator) Settle(addr common.Address) *uint256.Int {
	return a.SetWeight(addr, a.Weight(addr))
}

// SetWeight settles addr at its old weight, then moves it to weight.
func (a *Accumulator) SetWeight(addr common.Address, weight *uint256.Int) *uint256.Int {
	owed := a.Owed(addr)
	old := a.Weight(addr)
	total := calculator.MustAdd(calculator.SaturatingSub(a.totalWeight, old), weight)
	journal.Set(a.j, &a.totalWeight, total)
	journal.SetEntry(a.j, a.positions, addr, position{weight: weight.Clone(), debt: a.debt(weight)})
	return owed
}
