package types

import "math/big"

// Account holds the per-address balances tracked by the sale ledger. HLS is
// the issued asset; the remaining fields mirror the accepted payment media.
// PurchasedUnits accumulates the lifetime HLS bought through the sale and
// StakeSequence hands out stake identifiers, one per deposit, never reused.
type Account struct {
	BalanceHLS     *big.Int `json:"balanceHLS"`
	BalanceNative  *big.Int `json:"balanceNative"`
	BalanceUSDT    *big.Int `json:"balanceUSDT"`
	BalanceUSDC    *big.Int `json:"balanceUSDC"`
	PurchasedUnits *big.Int `json:"purchasedUnits"`
	StakeSequence  uint64   `json:"stakeSequence"`
}

// Normalize replaces nil balance fields with zero so arithmetic downstream
// never has to nil-check.
func (a *Account) Normalize() *Account {
	if a == nil {
		return nil
	}
	if a.BalanceHLS == nil {
		a.BalanceHLS = big.NewInt(0)
	}
	if a.BalanceNative == nil {
		a.BalanceNative = big.NewInt(0)
	}
	if a.BalanceUSDT == nil {
		a.BalanceUSDT = big.NewInt(0)
	}
	if a.BalanceUSDC == nil {
		a.BalanceUSDC = big.NewInt(0)
	}
	if a.PurchasedUnits == nil {
		a.PurchasedUnits = big.NewInt(0)
	}
	return a
}
