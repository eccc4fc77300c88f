package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventKind identifies a state-changing ledger operation.
type EventKind string

const (
	EventDeposit          EventKind = "DEPOSIT"
	EventWithdraw         EventKind = "WITHDRAW"
	EventReclaim          EventKind = "RECLAIM"
	EventInvest           EventKind = "INVEST"
	EventDivest           EventKind = "DIVEST"
	EventHarvest          EventKind = "HARVEST"
	EventRedeem           EventKind = "REDEEM"
	EventProfit           EventKind = "PROFIT"
	EventStake            EventKind = "STAKE"
	EventUnstake          EventKind = "UNSTAKE"
	EventBonusTokenized   EventKind = "BONUS_TOKENIZED"
	EventClaimAndBurn     EventKind = "CLAIM_AND_BURN"
	EventBonusClaim       EventKind = "BONUS_CLAIM"
	EventPowercardStake   EventKind = "POWERCARD_STAKE"
	EventPowercardUnstake EventKind = "POWERCARD_UNSTAKE"
	EventConfig           EventKind = "CONFIG"
)

// Event is the structured record every mutating operation emits.
// Amounts are keyed by role, e.g. "requested" and "actual" on a withdrawal.
type Event struct {
	ID      string
	Kind    EventKind
	Time    time.Time
	Source  common.Address // component that emitted the event
	Account common.Address // depositor, staker or valor the event concerns
	Amounts map[string]*uint256.Int
	Note    string
}

// Emit receives events from components. Nil is allowed and discards them.
type Emit func(Event)

// NewEvent builds an event with its amounts copied.
func NewEvent(kind EventKind, source, account common.Address, kv ...any) Event {
	e := Event{Kind: kind, Source: source, Account: account, Amounts: make(map[string]*uint256.Int)}
	for i := 0; i+1 < len(kv); i += 2 {
		name, _ := kv[i].(string)
		if v, ok := kv[i+1].(*uint256.Int); ok && v != nil {
			e.Amounts[name] = v.Clone()
		}
	}
	return e
}

// Send delivers e when the sink is set.
func (f Emit) Send(e Event) {
	if f != nil {
		f(e)
	}
}
