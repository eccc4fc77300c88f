package model

import "time"

// Snapshots carry decimal strings so they serialise losslessly to JSON.

type PoolSnapshot struct {
	TotalShares      string   `json:"total_shares"`
	TotalAssets      string   `json:"total_assets"`
	ReserveBalance   string   `json:"reserve_balance"`
	ReserveTarget    string   `json:"reserve_target"`
	PricePerShare    string   `json:"price_per_share"`
	SafeCapacity     string   `json:"safe_capacity"`
	ForcedReclaimFee string   `json:"forced_reclaim_fee"`
	Valors           []string `json:"valors"`
}

type ValorSnapshot struct {
	Address            string `json:"address"`
	Name               string `json:"name"`
	AmountInvested     string `json:"amount_invested"`
	LPShares           string `json:"lp_shares"`
	VaultPricePerShare string `json:"vault_price_per_share"`
	AccruedYield       string `json:"accrued_yield"`
	YieldBalance       string `json:"yield_balance"`
	SafeReclaimAmount  string `json:"safe_reclaim_amount"`
	TotalReclaimAmount string `json:"total_reclaim_amount"`
}

type TreasurySnapshot struct {
	EndowmentBalance    string `json:"endowment_balance"`
	BonusBalance        string `json:"bonus_balance"`
	TotalStakedBase     string `json:"total_staked_base"`
	TotalStakedLP       string `json:"total_staked_lp"`
	TotalWeight         string `json:"total_weight"`
	AccPerWeight        string `json:"acc_per_weight"`
	EndowmentPercentage string `json:"endowment_percentage"`
	PowercardPhase      string `json:"powercard_phase"`
	PowercardHolder     string `json:"powercard_holder,omitempty"`
}

type AccountSnapshot struct {
	Address        string `json:"address"`
	PoolShares     string `json:"pool_shares"`
	DepositBalance string `json:"deposit_balance"`
	StakedBase     string `json:"staked_base"`
	StakedLP       string `json:"staked_lp"`
	PendingBonus   string `json:"pending_bonus"`
	TotalBonus     string `json:"total_bonus"`
	// Balances holds the account's unlocked token balances keyed by asset symbol.
	Balances map[string]string `json:"balances"`
}

// LedgerSnapshot is the periodic summary persisted to the state file.
type LedgerSnapshot struct {
	Pool      PoolSnapshot     `json:"pool"`
	Valors    []ValorSnapshot  `json:"valors"`
	Treasury  TreasurySnapshot `json:"treasury"`
	Sequence  uint64           `json:"sequence"`
	UpdatedAt time.Time        `json:"updated_at"`
}
