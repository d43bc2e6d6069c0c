package affiliate

import (
	"math/big"
	"testing"

	coretypes "helios/core/types"
	"helios/crypto"
)

var unitScale = big.NewInt(1_000_000_000_000_000_000)

type mockState struct {
	accounts   map[string]*coretypes.Account
	affiliates map[string]*Account
	allowance  *big.Int
	events     []*coretypes.Event
	pauses     map[string]bool
}

func newMockState() *mockState {
	return &mockState{
		accounts:   make(map[string]*coretypes.Account),
		affiliates: make(map[string]*Account),
		allowance:  big.NewInt(0),
		pauses:     make(map[string]bool),
	}
}

func (m *mockState) IsPaused(module string) bool { return m.pauses[module] }

func (m *mockState) GetAffiliate(addr crypto.Address) (*Account, error) {
	if acc, ok := m.affiliates[addr.String()]; ok {
		copied := *acc
		return (&copied).Normalize(), nil
	}
	return nil, nil
}

func (m *mockState) PutAffiliate(account *Account) error {
	copied := *account
	m.affiliates[account.Address.String()] = (&copied).Normalize()
	return nil
}

func (m *mockState) GetAccount(addr crypto.Address) (*coretypes.Account, error) {
	if acc, ok := m.accounts[addr.String()]; ok {
		copied := *acc
		return (&copied).Normalize(), nil
	}
	return (&coretypes.Account{}).Normalize(), nil
}

func (m *mockState) PutAccount(addr crypto.Address, account *coretypes.Account) error {
	copied := *account
	m.accounts[addr.String()] = (&copied).Normalize()
	return nil
}

func (m *mockState) AffiliateAllowance() (*big.Int, error) {
	return new(big.Int).Set(m.allowance), nil
}

func (m *mockState) SetAffiliateAllowance(amount *big.Int) error {
	m.allowance = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) AppendEvent(evt *coretypes.Event) { m.events = append(m.events, evt) }

func testAddr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.MustNewAddress(crypto.HLSPrefix, raw)
}

func units(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), unitScale)
}

func newTestEngine(t *testing.T) (*Engine, *mockState, crypto.Address, crypto.Address) {
	t.Helper()
	state := newMockState()
	module := testAddr(0xAA)
	funder := testAddr(0xBB)
	state.accounts[module.String()] = (&coretypes.Account{
		BalanceUSDT:   big.NewInt(1_000_000_000), // 1,000 USDT
		BalanceNative: units(100),
	}).Normalize()
	state.accounts[funder.String()] = (&coretypes.Account{BalanceHLS: units(10_000)}).Normalize()
	state.allowance = units(1_000)

	engine := NewEngine(module, funder)
	engine.SetState(state)
	engine.SetPauses(state)
	return engine, state, module, funder
}

func TestSettleTokenPayout(t *testing.T) {
	engine, state, _, funder := newTestEngine(t)
	referrer := testAddr(1)
	buyer := testAddr(2)

	result, err := engine.Settle(referrer, buyer, big.NewInt(100_000_000), units(200), usd(100), coretypes.CurrencyUSDT)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != OutcomePaid {
		t.Fatalf("outcome = %d, reason %q", result.Outcome, result.Reason)
	}
	if result.Currency != coretypes.CurrencyHLS {
		t.Fatalf("currency = %s", result.Currency)
	}
	// Bronze pays 5% of the 200 purchased units.
	if want := units(10); result.Amount.Cmp(want) != 0 {
		t.Fatalf("amount = %s, want %s", result.Amount, want)
	}

	refAcc := state.accounts[referrer.String()]
	if refAcc == nil || refAcc.BalanceHLS.Cmp(units(10)) != 0 {
		t.Fatalf("referrer HLS balance wrong: %+v", refAcc)
	}
	funderAcc := state.accounts[funder.String()]
	if funderAcc.BalanceHLS.Cmp(units(9_990)) != 0 {
		t.Fatalf("funder HLS = %s", funderAcc.BalanceHLS)
	}
	if state.allowance.Cmp(units(990)) != 0 {
		t.Fatalf("allowance = %s", state.allowance)
	}

	record := state.affiliates[referrer.String()]
	if record.LifetimeAttributedUSD.Cmp(usd(100)) != 0 {
		t.Fatalf("attributed = %s", record.LifetimeAttributedUSD)
	}
	if record.TokenRewards.Cmp(units(10)) != 0 {
		t.Fatalf("token rewards = %s", record.TokenRewards)
	}
	if record.ReferralCount != 1 {
		t.Fatalf("referral count = %d", record.ReferralCount)
	}
	if len(state.events) != 1 || state.events[0].Type != "affiliate.commissionPaid" {
		t.Fatalf("unexpected events %v", state.events)
	}
}

func TestSettleRateEvaluatedBeforeAttribution(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	referrer := testAddr(3)
	buyer := testAddr(4)

	// First settlement lands the referrer exactly on the silver threshold;
	// it must still pay the bronze rate.
	result, err := engine.Settle(referrer, buyer, big.NewInt(1_000_000_000), units(1_000), usd(1_000), coretypes.CurrencyUSDT)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.RateBps != 500 {
		t.Fatalf("first settlement rate = %d, want bronze 500", result.RateBps)
	}

	// The next settlement sees the accumulated volume and pays silver.
	result, err = engine.Settle(referrer, buyer, big.NewInt(100_000_000), units(100), usd(100), coretypes.CurrencyUSDT)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.RateBps != 1_500 {
		t.Fatalf("second settlement rate = %d, want silver 1500", result.RateBps)
	}
}

func TestSettleSkipsSelfAndZeroReferral(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	buyer := testAddr(5)

	result, err := engine.Settle(crypto.Address{}, buyer, big.NewInt(1), units(1), usd(1), coretypes.CurrencyUSDT)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != OutcomeNone {
		t.Fatalf("zero referrer outcome = %d", result.Outcome)
	}

	result, err = engine.Settle(buyer, buyer, big.NewInt(1), units(1), usd(1), coretypes.CurrencyUSDT)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != OutcomeNone {
		t.Fatalf("self referral outcome = %d", result.Outcome)
	}
	if len(state.affiliates) != 0 {
		t.Fatal("no-op settlements must not create affiliate records")
	}
	if len(state.events) != 0 {
		t.Fatalf("no-op settlements must not emit events, got %d", len(state.events))
	}
}

func TestSettleSkipsOnInsufficientAllowance(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	state.allowance = units(1)
	referrer := testAddr(6)
	buyer := testAddr(7)

	result, err := engine.Settle(referrer, buyer, big.NewInt(100_000_000), units(200), usd(100), coretypes.CurrencyUSDT)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != OutcomeSkipped {
		t.Fatalf("outcome = %d", result.Outcome)
	}
	if result.Reason != "insufficient_allowance" {
		t.Fatalf("reason = %q", result.Reason)
	}
	// All-or-nothing: the allowance is untouched, no partial payout.
	if state.allowance.Cmp(units(1)) != 0 {
		t.Fatalf("allowance = %s, want untouched", state.allowance)
	}

	// Attribution still advanced.
	record := state.affiliates[referrer.String()]
	if record == nil || record.LifetimeAttributedUSD.Cmp(usd(100)) != 0 {
		t.Fatalf("attribution must advance on skip: %+v", record)
	}
	if record.ReferralCount != 1 {
		t.Fatalf("referral count = %d", record.ReferralCount)
	}
	if len(state.events) != 1 || state.events[0].Type != "affiliate.commissionSkipped" {
		t.Fatalf("unexpected events %v", state.events)
	}
	if state.events[0].Attributes["reason"] != "insufficient_allowance" {
		t.Fatalf("event reason = %q", state.events[0].Attributes["reason"])
	}
}

func TestSettleSkipsWhenPaused(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	state.pauses[moduleName] = true
	referrer := testAddr(8)

	result, err := engine.Settle(referrer, testAddr(9), big.NewInt(100_000_000), units(200), usd(100), coretypes.CurrencyUSDT)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != OutcomeSkipped || result.Reason != "module_paused" {
		t.Fatalf("outcome = %d, reason %q", result.Outcome, result.Reason)
	}
	// Attribution is not subject to the payout pause.
	record := state.affiliates[referrer.String()]
	if record == nil || record.LifetimeAttributedUSD.Cmp(usd(100)) != 0 {
		t.Fatalf("attribution must advance while paused: %+v", record)
	}
}

func TestSettleSameCurrencyForPrivileged(t *testing.T) {
	engine, state, module, _ := newTestEngine(t)
	referrer := testAddr(10)
	if err := engine.SetPrivileged(referrer, true); err != nil {
		t.Fatalf("set privileged: %v", err)
	}

	paid := big.NewInt(200_000_000) // 200 USDT
	result, err := engine.Settle(referrer, testAddr(11), paid, units(400), usd(200), coretypes.CurrencyUSDT)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != OutcomePaid {
		t.Fatalf("outcome = %d, reason %q", result.Outcome, result.Reason)
	}
	if result.Currency != coretypes.CurrencyUSDT {
		t.Fatalf("currency = %s", result.Currency)
	}
	// 5% of the 200 USDT payment.
	if want := big.NewInt(10_000_000); result.Amount.Cmp(want) != 0 {
		t.Fatalf("amount = %s, want %s", result.Amount, want)
	}

	refAcc := state.accounts[referrer.String()]
	if refAcc.BalanceUSDT.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("referrer USDT = %s", refAcc.BalanceUSDT)
	}
	moduleAcc := state.accounts[module.String()]
	if moduleAcc.BalanceUSDT.Cmp(big.NewInt(990_000_000)) != 0 {
		t.Fatalf("module USDT = %s", moduleAcc.BalanceUSDT)
	}
	record := state.affiliates[referrer.String()]
	if record.RewardsUSDT.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("rewards USDT = %s", record.RewardsUSDT)
	}
	if record.TokenRewards.Sign() != 0 {
		t.Fatal("privileged payout must not touch token rewards")
	}
}

func TestSettleSameCurrencySkipsOnShortHoldings(t *testing.T) {
	engine, state, module, _ := newTestEngine(t)
	state.accounts[module.String()] = (&coretypes.Account{BalanceUSDT: big.NewInt(1)}).Normalize()
	referrer := testAddr(12)
	if err := engine.SetPrivileged(referrer, true); err != nil {
		t.Fatalf("set privileged: %v", err)
	}

	result, err := engine.Settle(referrer, testAddr(13), big.NewInt(200_000_000), units(400), usd(200), coretypes.CurrencyUSDT)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != OutcomeSkipped || result.Reason != "insufficient_holdings" {
		t.Fatalf("outcome = %d, reason %q", result.Outcome, result.Reason)
	}
	if state.accounts[module.String()].BalanceUSDT.Cmp(big.NewInt(1)) != 0 {
		t.Fatal("skip must not move module holdings")
	}
}

func TestTierOverrideRaisesRate(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	referrer := testAddr(14)
	if err := engine.SetTierOverride(referrer, 3_500); err != nil {
		t.Fatalf("set override: %v", err)
	}

	result, err := engine.Settle(referrer, testAddr(15), big.NewInt(100_000_000), units(200), usd(100), coretypes.CurrencyUSDT)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.RateBps != 3_500 {
		t.Fatalf("rate = %d, want override 3500", result.RateBps)
	}

	// The override is a floor, not a cap: volume beyond it wins.
	account, err := engine.Get(referrer)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	account.LifetimeAttributedUSD = usd(25_000)
	if rate := engine.Rate(account); rate != 5_000 {
		t.Fatalf("rate = %d, want diamond 5000", rate)
	}
}

func TestFundAllowance(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	next, err := engine.FundAllowance(units(500))
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if next.Cmp(units(1_500)) != 0 {
		t.Fatalf("allowance = %s", next)
	}
	if state.allowance.Cmp(units(1_500)) != 0 {
		t.Fatalf("persisted allowance = %s", state.allowance)
	}
	if _, err := engine.FundAllowance(big.NewInt(0)); err == nil {
		t.Fatal("zero funding should be rejected")
	}
}
