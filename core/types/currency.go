package types

import "math/big"

// Currency identifies the asset a balance or payout is denominated in.
type Currency string

const (
	// CurrencyHLS is the issued asset sold through the stage ladder.
	CurrencyHLS Currency = "HLS"
	// CurrencyNative is the chain coin priced through the oracle feed.
	CurrencyNative Currency = "NATIVE"
	// CurrencyUSDT is the first USD-pegged stable payment medium.
	CurrencyUSDT Currency = "USDT"
	// CurrencyUSDC is the second USD-pegged stable payment medium.
	CurrencyUSDC Currency = "USDC"
)

// PaymentCurrencies lists the media accepted by the purchase allocator.
var PaymentCurrencies = []Currency{CurrencyNative, CurrencyUSDT, CurrencyUSDC}

// IsPayment reports whether the currency is an accepted payment medium.
func (c Currency) IsPayment() bool {
	for _, cur := range PaymentCurrencies {
		if c == cur {
			return true
		}
	}
	return false
}

// Decimals returns the fixed decimal precision of the currency.
func (c Currency) Decimals() uint8 {
	switch c {
	case CurrencyUSDT, CurrencyUSDC:
		return 6
	default:
		return 18
	}
}

// Balance returns a copy of the account balance in the given currency.
func (a *Account) Balance(c Currency) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	a.Normalize()
	switch c {
	case CurrencyHLS:
		return new(big.Int).Set(a.BalanceHLS)
	case CurrencyNative:
		return new(big.Int).Set(a.BalanceNative)
	case CurrencyUSDT:
		return new(big.Int).Set(a.BalanceUSDT)
	case CurrencyUSDC:
		return new(big.Int).Set(a.BalanceUSDC)
	}
	return big.NewInt(0)
}

// Add credits the account balance in the given currency.
func (a *Account) Add(c Currency, amount *big.Int) {
	if a == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	a.Normalize()
	switch c {
	case CurrencyHLS:
		a.BalanceHLS = new(big.Int).Add(a.BalanceHLS, amount)
	case CurrencyNative:
		a.BalanceNative = new(big.Int).Add(a.BalanceNative, amount)
	case CurrencyUSDT:
		a.BalanceUSDT = new(big.Int).Add(a.BalanceUSDT, amount)
	case CurrencyUSDC:
		a.BalanceUSDC = new(big.Int).Add(a.BalanceUSDC, amount)
	}
}

// Sub debits the account balance in the given currency. Callers must check
// sufficiency first; the balance is floored at zero as a hard stop.
func (a *Account) Sub(c Currency, amount *big.Int) {
	if a == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	a.Normalize()
	sub := func(balance *big.Int) *big.Int {
		next := new(big.Int).Sub(balance, amount)
		if next.Sign() < 0 {
			next.SetInt64(0)
		}
		return next
	}
	switch c {
	case CurrencyHLS:
		a.BalanceHLS = sub(a.BalanceHLS)
	case CurrencyNative:
		a.BalanceNative = sub(a.BalanceNative)
	case CurrencyUSDT:
		a.BalanceUSDT = sub(a.BalanceUSDT)
	case CurrencyUSDC:
		a.BalanceUSDC = sub(a.BalanceUSDC)
	}
}
