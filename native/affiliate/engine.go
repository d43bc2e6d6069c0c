package affiliate

import (
	"errors"
	"math/big"

	"helios/core/events"
	coretypes "helios/core/types"
	"helios/crypto"
	nativecommon "helios/native/common"
	"helios/native/rewards"
)

const moduleName = "affiliate"

var (
	errNilState      = errors.New("affiliate engine: state not configured")
	errInvalidAmount = errors.New("affiliate engine: amount must be non-negative")
	errNoAccount     = errors.New("affiliate engine: account not found")
)

// Outcome classifies what happened to the payout step of a settlement.
type Outcome uint8

const (
	// OutcomeNone means settlement did not apply (null or self referral).
	OutcomeNone Outcome = iota
	// OutcomePaid means the commission was disbursed in full.
	OutcomePaid
	// OutcomeSkipped means attribution was recorded but the payout step
	// was skipped; Reason carries the observable cause.
	OutcomeSkipped
)

// SettleResult makes the silent-degrade payout path explicit: Paid versus
// Skipped(reason), never a swallowed error.
type SettleResult struct {
	Outcome  Outcome
	Amount   *big.Int
	Currency coretypes.Currency
	RateBps  uint64
	Reason   string
}

type engineState interface {
	GetAffiliate(addr crypto.Address) (*Account, error)
	PutAffiliate(account *Account) error
	GetAccount(addr crypto.Address) (*coretypes.Account, error)
	PutAccount(addr crypto.Address, account *coretypes.Account) error
	AffiliateAllowance() (*big.Int, error)
	SetAffiliateAllowance(amount *big.Int) error
	AppendEvent(evt *coretypes.Event)
}

// Engine maintains per-referrer attribution and computes and dispatches
// commissions. Payouts never block or revert the purchase that earned
// them: funding shortfalls degrade to recorded skips.
type Engine struct {
	state         engineState
	moduleAddress crypto.Address
	funderAddress crypto.Address
	pauses        nativecommon.PauseView
}

// NewEngine constructs an affiliate engine. moduleAddr holds the sale's
// payment balances used for privileged same-currency payouts; funderAddr
// backs the allowance-funded HLS commissions.
func NewEngine(moduleAddr, funderAddr crypto.Address) *Engine {
	return &Engine{moduleAddress: moduleAddr, funderAddress: funderAddr}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Rate returns the commission rate for the account: the highest volume tier
// met, or the administrator override when that is higher.
func (e *Engine) Rate(account *Account) uint64 {
	if account == nil {
		return RateForVolume(nil)
	}
	account.Normalize()
	rate := RateForVolume(account.LifetimeAttributedUSD)
	if account.TierOverrideBps > rate {
		rate = account.TierOverrideBps
	}
	return rate
}

// Settle attributes a purchase to its referrer and dispatches the
// commission. The rate is evaluated against the volume before this
// settlement, so a purchase that lifts the referrer onto a new tier pays
// the old rate and the next one pays the new rate.
//
// Attribution and the referral counter always advance, even when the
// payout is skipped.
func (e *Engine) Settle(referrer, buyer crypto.Address, paid, unitsBought, usdValue *big.Int, currency coretypes.Currency) (*SettleResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if referrer.IsZero() || referrer.Equal(buyer) {
		return &SettleResult{Outcome: OutcomeNone, Amount: big.NewInt(0)}, nil
	}
	if usdValue == nil || usdValue.Sign() < 0 {
		return nil, errInvalidAmount
	}

	account, err := e.ensureAccount(referrer)
	if err != nil {
		return nil, err
	}

	rate := e.Rate(account)

	account.LifetimeAttributedUSD = new(big.Int).Add(account.LifetimeAttributedUSD, usdValue)
	account.ReferralCount++

	result := &SettleResult{RateBps: rate, Amount: big.NewInt(0)}
	switch account.Policy() {
	case PayoutSameCurrency:
		e.settleSameCurrency(account, paid, currency, rate, result)
	default:
		e.settleToken(account, unitsBought, rate, result)
	}

	if err := e.state.PutAffiliate(account); err != nil {
		return nil, err
	}

	var refKey, buyerKey [20]byte
	copy(refKey[:], referrer.Bytes())
	copy(buyerKey[:], buyer.Bytes())
	switch result.Outcome {
	case OutcomePaid:
		events.Append(e.state, events.CommissionPaid{
			Referrer: refKey,
			Buyer:    buyerKey,
			Amount:   new(big.Int).Set(result.Amount),
			Currency: result.Currency,
			RateBps:  rate,
		})
	case OutcomeSkipped:
		events.Append(e.state, events.CommissionSkipped{
			Referrer: refKey,
			Buyer:    buyerKey,
			Amount:   new(big.Int).Set(result.Amount),
			Currency: result.Currency,
			Reason:   result.Reason,
		})
	}
	return result, nil
}

// settleSameCurrency pays privileged referrers in the purchase currency
// from the sale module's holdings, skipping when the holdings are short.
func (e *Engine) settleSameCurrency(account *Account, paid *big.Int, currency coretypes.Currency, rate uint64, result *SettleResult) {
	result.Currency = currency
	result.Outcome = OutcomeSkipped

	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		result.Reason = "module_paused"
		return
	}
	if paid == nil || paid.Sign() <= 0 || !currency.IsPayment() {
		result.Reason = "invalid_payment"
		return
	}

	reward := new(big.Int).Mul(paid, new(big.Int).SetUint64(rate))
	reward.Quo(reward, big.NewInt(10_000))
	result.Amount = reward
	if reward.Sign() == 0 {
		result.Reason = "reward_rounds_to_zero"
		return
	}

	moduleAcc, err := e.state.GetAccount(e.moduleAddress)
	if err != nil {
		result.Reason = "module_account_unavailable"
		return
	}
	if moduleAcc.Balance(currency).Cmp(reward) < 0 {
		result.Reason = "insufficient_holdings"
		return
	}
	refAcc, err := e.state.GetAccount(account.Address)
	if err != nil {
		result.Reason = "referrer_account_unavailable"
		return
	}

	moduleAcc.Sub(currency, reward)
	refAcc.Add(currency, reward)
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		result.Reason = "persist_failed"
		return
	}
	if err := e.state.PutAccount(account.Address, refAcc); err != nil {
		result.Reason = "persist_failed"
		return
	}

	switch currency {
	case coretypes.CurrencyNative:
		account.RewardsNative = new(big.Int).Add(account.RewardsNative, reward)
	case coretypes.CurrencyUSDT:
		account.RewardsUSDT = new(big.Int).Add(account.RewardsUSDT, reward)
	case coretypes.CurrencyUSDC:
		account.RewardsUSDC = new(big.Int).Add(account.RewardsUSDC, reward)
	}
	result.Outcome = OutcomePaid
}

// settleToken pays standard referrers in HLS from the allowance-backed
// funding source. Both the allowance and the funder balance must cover the
// full reward; anything less is a recorded skip, never a partial payment.
func (e *Engine) settleToken(account *Account, unitsBought *big.Int, rate uint64, result *SettleResult) {
	result.Currency = coretypes.CurrencyHLS
	result.Outcome = OutcomeSkipped

	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		result.Reason = "module_paused"
		return
	}
	if unitsBought == nil || unitsBought.Sign() <= 0 {
		result.Reason = "invalid_units"
		return
	}

	reward := new(big.Int).Mul(unitsBought, new(big.Int).SetUint64(rate))
	reward.Quo(reward, big.NewInt(10_000))
	result.Amount = reward
	if reward.Sign() == 0 {
		result.Reason = "reward_rounds_to_zero"
		return
	}

	allowance, err := e.state.AffiliateAllowance()
	if err != nil {
		result.Reason = "allowance_unavailable"
		return
	}
	source := rewards.NewSource(allowance)
	if source.Available().Cmp(reward) < 0 {
		result.Reason = "insufficient_allowance"
		return
	}
	funderAcc, err := e.state.GetAccount(e.funderAddress)
	if err != nil {
		result.Reason = "funder_account_unavailable"
		return
	}
	if funderAcc.Balance(coretypes.CurrencyHLS).Cmp(reward) < 0 {
		result.Reason = "insufficient_funder_balance"
		return
	}
	refAcc, err := e.state.GetAccount(account.Address)
	if err != nil {
		result.Reason = "referrer_account_unavailable"
		return
	}

	paid := source.Disburse(reward)
	funderAcc.Sub(coretypes.CurrencyHLS, paid)
	refAcc.Add(coretypes.CurrencyHLS, paid)
	if err := e.state.PutAccount(e.funderAddress, funderAcc); err != nil {
		result.Reason = "persist_failed"
		return
	}
	if err := e.state.PutAccount(account.Address, refAcc); err != nil {
		result.Reason = "persist_failed"
		return
	}
	if err := e.state.SetAffiliateAllowance(source.Available()); err != nil {
		result.Reason = "persist_failed"
		return
	}

	account.TokenRewards = new(big.Int).Add(account.TokenRewards, paid)
	result.Amount = paid
	result.Outcome = OutcomePaid
}

// --- Administrative surface ---

// SetPrivileged marks or unmarks a referrer as an ambassador paid in the
// purchase currency.
func (e *Engine) SetPrivileged(referrer crypto.Address, privileged bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	account, err := e.ensureAccount(referrer)
	if err != nil {
		return err
	}
	account.Privileged = privileged
	return e.state.PutAffiliate(account)
}

// SetTierOverride grants a commission floor independent of sales volume.
func (e *Engine) SetTierOverride(referrer crypto.Address, bps uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	account, err := e.ensureAccount(referrer)
	if err != nil {
		return err
	}
	account.TierOverrideBps = bps
	return e.state.PutAffiliate(account)
}

// FundAllowance increases the allowance the token payout path may draw
// from the funder account.
func (e *Engine) FundAllowance(amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	allowance, err := e.state.AffiliateAllowance()
	if err != nil {
		return nil, err
	}
	source := rewards.NewSource(allowance)
	next := source.Fund(amount)
	if err := e.state.SetAffiliateAllowance(next); err != nil {
		return nil, err
	}
	return next, nil
}

// Get returns the affiliate record, or an error when none exists.
func (e *Engine) Get(referrer crypto.Address) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	account, err := e.state.GetAffiliate(referrer)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errNoAccount
	}
	return account.Normalize(), nil
}

func (e *Engine) ensureAccount(referrer crypto.Address) (*Account, error) {
	account, err := e.state.GetAffiliate(referrer)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &Account{Address: referrer}
	}
	return account.Normalize(), nil
}
