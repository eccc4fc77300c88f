package calculator

import "github.com/holiman/uint256"

// SharesForDeposit converts a deposit into pool shares, rounding down so the
// pool never mints more ownership than the assets it receives. The first deposit
// mints shares 1:1 with the asset amount.
func SharesForDeposit(amount, totalShares, totalAssets *uint256.Int) (*uint256.Int, error) {
	if totalShares.IsZero() {
		return amount.Clone(), nil
	}
	if totalAssets.IsZero() {
		return nil, ErrDivisionByZero
	}
	return MulDiv(amount, totalShares, totalAssets)
}

// SharesForWithdrawal converts a withdrawal request into shares to burn,
// rounding up so the remaining holders never subsidise the withdrawer.
func SharesForWithdrawal(amount, totalShares, totalAssets *uint256.Int) (*uint256.Int, error) {
	if totalAssets.IsZero() {
		return nil, ErrDivisionByZero
	}
	return MulDivUp(amount, totalShares, totalAssets)
}

// AssetsForShares returns the floor asset value of shares.
func AssetsForShares(shares, totalShares, totalAssets *uint256.Int) *uint256.Int {
	if totalShares.IsZero() {
		return Zero()
	}
	z, err := MulDiv(shares, totalAssets, totalShares)
	if err != nil {
		return Zero()
	}
	return z
}

// AssetsForSharesUp returns the ceiling asset value of shares.
func AssetsForSharesUp(shares, totalShares, totalAssets *uint256.Int) *uint256.Int {
	if totalShares.IsZero() {
		return Zero()
	}
	z, err := MulDivUp(shares, totalAssets, totalShares)
	if err != nil {
		return Zero()
	}
	return z
}

// PricePerShare returns totalAssets/totalShares in 18-decimal fixed point.
func PricePerShare(totalAssets, totalShares *uint256.Int) *uint256.Int {
	if totalShares.IsZero() {
		return Wad.Clone()
	}
	z, err := MulDiv(totalAssets, Wad, totalShares)
	if err != nil {
		return Zero()
	}
	return z
}
