// Package rewards provides the clamping disbursement primitive shared by
// the affiliate commission path and the staking payout path. Each caller
// wraps its own backing balance; the two balances are never conflated.
package rewards

import "math/big"

// Source is a payout balance that can only degrade, never fail: a
// disbursement request is clamped to what is available and the shortfall is
// the caller's signal, not an error.
type Source struct {
	balance *big.Int
}

// NewSource wraps the supplied balance. A nil or negative initial value is
// treated as empty.
func NewSource(initial *big.Int) *Source {
	s := &Source{balance: big.NewInt(0)}
	if initial != nil && initial.Sign() > 0 {
		s.balance = new(big.Int).Set(initial)
	}
	return s
}

// Available returns a copy of the current balance.
func (s *Source) Available() *big.Int {
	if s == nil || s.balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(s.balance)
}

// Fund credits the source and returns the new balance.
func (s *Source) Fund(amount *big.Int) *big.Int {
	if s == nil {
		return big.NewInt(0)
	}
	if amount != nil && amount.Sign() > 0 {
		s.balance = new(big.Int).Add(s.balance, amount)
	}
	return s.Available()
}

// Disburse pays out min(requested, available), decrements the balance by
// exactly that amount and returns it. Insufficiency degrades to a partial
// or zero payment; it is never an error.
func (s *Source) Disburse(requested *big.Int) *big.Int {
	if s == nil || requested == nil || requested.Sign() <= 0 {
		return big.NewInt(0)
	}
	actual := new(big.Int).Set(requested)
	if actual.Cmp(s.balance) > 0 {
		actual.Set(s.balance)
	}
	s.balance = new(big.Int).Sub(s.balance, actual)
	return actual
}
