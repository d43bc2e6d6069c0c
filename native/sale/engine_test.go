package sale

import (
	"errors"
	"math/big"
	"testing"
	"time"

	coretypes "helios/core/types"
	"helios/crypto"
	"helios/native/affiliate"
	"helios/native/pricefeed"
)

type mockState struct {
	ledger     *Ledger
	accounts   map[string]*coretypes.Account
	affiliates map[string]*affiliate.Account
	allowance  *big.Int
	events     []*coretypes.Event
	pauses     map[string]bool
}

func newMockState() *mockState {
	return &mockState{
		accounts:   make(map[string]*coretypes.Account),
		affiliates: make(map[string]*affiliate.Account),
		allowance:  big.NewInt(0),
		pauses:     make(map[string]bool),
	}
}

func (m *mockState) IsPaused(module string) bool { return m.pauses[module] }

func (m *mockState) SaleLedger() (*Ledger, error) { return m.ledger.Clone(), nil }

func (m *mockState) PutSaleLedger(ledger *Ledger) error {
	m.ledger = ledger.Clone()
	return nil
}

func cloneAccount(a *coretypes.Account) *coretypes.Account {
	a.Normalize()
	return &coretypes.Account{
		BalanceHLS:     new(big.Int).Set(a.BalanceHLS),
		BalanceNative:  new(big.Int).Set(a.BalanceNative),
		BalanceUSDT:    new(big.Int).Set(a.BalanceUSDT),
		BalanceUSDC:    new(big.Int).Set(a.BalanceUSDC),
		PurchasedUnits: new(big.Int).Set(a.PurchasedUnits),
		StakeSequence:  a.StakeSequence,
	}
}

func (m *mockState) GetAccount(addr crypto.Address) (*coretypes.Account, error) {
	if acc, ok := m.accounts[addr.String()]; ok {
		return cloneAccount(acc), nil
	}
	return (&coretypes.Account{}).Normalize(), nil
}

func (m *mockState) PutAccount(addr crypto.Address, account *coretypes.Account) error {
	m.accounts[addr.String()] = cloneAccount(account)
	return nil
}

func (m *mockState) GetAffiliate(addr crypto.Address) (*affiliate.Account, error) {
	if acc, ok := m.affiliates[addr.String()]; ok {
		copied := *acc
		return (&copied).Normalize(), nil
	}
	return nil, nil
}

func (m *mockState) PutAffiliate(account *affiliate.Account) error {
	copied := *account
	m.affiliates[account.Address.String()] = (&copied).Normalize()
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

func (m *mockState) eventTypes() []string {
	out := make([]string, 0, len(m.events))
	for _, evt := range m.events {
		out = append(out, evt.Type)
	}
	return out
}

func testAddr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.MustNewAddress(crypto.HLSPrefix, raw)
}

func stableAmount(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), big.NewInt(1_000_000))
}

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	state := newMockState()
	state.ledger = NewLedger([]StageConfig{
		{Capacity: unitAmount(100), PriceUSD: new(big.Int).Set(PriceScale)},
		{Capacity: unitAmount(100), PriceUSD: new(big.Int).Mul(big.NewInt(2), PriceScale)},
	}, nil, nil)

	module := testAddr(0xAA)
	moduleAcc := (&coretypes.Account{BalanceHLS: unitAmount(1_000)}).Normalize()
	state.accounts[module.String()] = moduleAcc

	engine := NewEngine(module)
	engine.SetState(state)
	engine.SetPauses(state)
	return engine, state
}

func fundBuyer(state *mockState, addr crypto.Address, currency coretypes.Currency, amount *big.Int) {
	acc := (&coretypes.Account{}).Normalize()
	acc.Add(currency, amount)
	state.accounts[addr.String()] = acc
}

func TestBuyWithStableAllocatesAcrossStages(t *testing.T) {
	engine, state := newTestEngine(t)
	buyer := testAddr(1)
	fundBuyer(state, buyer, coretypes.CurrencyUSDT, stableAmount(120))

	receipt, err := engine.BuyWithStable(buyer, crypto.Address{}, coretypes.CurrencyUSDT, stableAmount(120), time.Now())
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if want := unitAmount(110); receipt.Units.Cmp(want) != 0 {
		t.Fatalf("units = %s, want %s", receipt.Units, want)
	}
	if want := usdAmount(120); receipt.USDValue.Cmp(want) != 0 {
		t.Fatalf("usd value = %s, want %s", receipt.USDValue, want)
	}

	buyerAcc := state.accounts[buyer.String()]
	if buyerAcc.BalanceUSDT.Sign() != 0 {
		t.Fatalf("buyer should have spent all USDT, has %s", buyerAcc.BalanceUSDT)
	}
	if buyerAcc.BalanceHLS.Cmp(unitAmount(110)) != 0 {
		t.Fatalf("buyer HLS = %s", buyerAcc.BalanceHLS)
	}
	if buyerAcc.PurchasedUnits.Cmp(unitAmount(110)) != 0 {
		t.Fatalf("purchased units = %s", buyerAcc.PurchasedUnits)
	}

	moduleAcc := state.accounts[engine.ModuleAddress().String()]
	if moduleAcc.BalanceUSDT.Cmp(stableAmount(120)) != 0 {
		t.Fatalf("module USDT = %s", moduleAcc.BalanceUSDT)
	}
	if moduleAcc.BalanceHLS.Cmp(unitAmount(890)) != 0 {
		t.Fatalf("module HLS = %s", moduleAcc.BalanceHLS)
	}

	if state.ledger.UnitsSold.Cmp(unitAmount(110)) != 0 {
		t.Fatalf("units sold = %s", state.ledger.UnitsSold)
	}
	if state.ledger.RaisedUSDT.Cmp(stableAmount(120)) != 0 {
		t.Fatalf("raised USDT = %s", state.ledger.RaisedUSDT)
	}
	if state.ledger.ActiveStage != 1 {
		t.Fatalf("active stage = %d", state.ledger.ActiveStage)
	}
	if err := engine.CheckInvariant(); err != nil {
		t.Fatalf("invariant: %v", err)
	}

	types := state.eventTypes()
	if len(types) != 2 || types[0] != "sale.stageAdvanced" || types[1] != "sale.purchaseCompleted" {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestBuyWithNativeUsesFeed(t *testing.T) {
	engine, state := newTestEngine(t)
	now := time.Now()
	feed := pricefeed.NewManualFeed()
	feed.Set(pricefeed.RoundData{
		RoundID:         7,
		Answer:          big.NewInt(2 * 100_000_000), // $2.00 per native coin
		UpdatedAt:       now.Unix(),
		AnsweredInRound: 7,
	})
	engine.SetFeed(feed)

	buyer := testAddr(2)
	wei := new(big.Int).Mul(big.NewInt(10), UnitScale) // 10 native coins
	fundBuyer(state, buyer, coretypes.CurrencyNative, wei)

	receipt, err := engine.BuyWithNative(buyer, crypto.Address{}, wei, now)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	// $20 at $1.00 per unit buys 20 units from stage 0.
	if want := unitAmount(20); receipt.Units.Cmp(want) != 0 {
		t.Fatalf("units = %s, want %s", receipt.Units, want)
	}
	if state.ledger.RaisedNative.Cmp(wei) != 0 {
		t.Fatalf("raised native = %s", state.ledger.RaisedNative)
	}
}

func TestBuyWithNativeRejectsStaleFeed(t *testing.T) {
	engine, state := newTestEngine(t)
	now := time.Now()
	feed := pricefeed.NewManualFeed()
	feed.Set(pricefeed.RoundData{
		RoundID:         3,
		Answer:          big.NewInt(2 * 100_000_000),
		UpdatedAt:       now.Add(-2 * time.Hour).Unix(),
		AnsweredInRound: 3,
	})
	engine.SetFeed(feed)

	buyer := testAddr(3)
	fundBuyer(state, buyer, coretypes.CurrencyNative, unitAmount(1))

	if _, err := engine.BuyWithNative(buyer, crypto.Address{}, unitAmount(1), now); !errors.Is(err, pricefeed.ErrStaleAnswer) {
		t.Fatalf("expected stale answer rejection, got %v", err)
	}
	if buyerAcc := state.accounts[buyer.String()]; buyerAcc.BalanceNative.Cmp(unitAmount(1)) != 0 {
		t.Fatalf("rejected purchase must not move funds, balance %s", buyerAcc.BalanceNative)
	}
}

func TestBuyRejections(t *testing.T) {
	now := time.Now()

	t.Run("paused module", func(t *testing.T) {
		engine, state := newTestEngine(t)
		state.pauses[moduleName] = true
		buyer := testAddr(4)
		fundBuyer(state, buyer, coretypes.CurrencyUSDC, stableAmount(10))
		if _, err := engine.BuyWithStable(buyer, crypto.Address{}, coretypes.CurrencyUSDC, stableAmount(10), now); err == nil {
			t.Fatal("expected pause rejection")
		}
	})

	t.Run("closed sale", func(t *testing.T) {
		engine, state := newTestEngine(t)
		state.ledger.Open = false
		buyer := testAddr(4)
		fundBuyer(state, buyer, coretypes.CurrencyUSDT, stableAmount(10))
		if _, err := engine.BuyWithStable(buyer, crypto.Address{}, coretypes.CurrencyUSDT, stableAmount(10), now); !errors.Is(err, errSaleClosed) {
			t.Fatalf("expected closed-sale rejection, got %v", err)
		}
	})

	t.Run("below minimum", func(t *testing.T) {
		engine, state := newTestEngine(t)
		state.ledger.MinPurchaseUSD = usdAmount(50)
		buyer := testAddr(5)
		fundBuyer(state, buyer, coretypes.CurrencyUSDT, stableAmount(10))
		if _, err := engine.BuyWithStable(buyer, crypto.Address{}, coretypes.CurrencyUSDT, stableAmount(10), now); !errors.Is(err, errBelowMinimum) {
			t.Fatalf("expected minimum rejection, got %v", err)
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		engine, state := newTestEngine(t)
		buyer := testAddr(6)
		fundBuyer(state, buyer, coretypes.CurrencyUSDT, stableAmount(5))
		if _, err := engine.BuyWithStable(buyer, crypto.Address{}, coretypes.CurrencyUSDT, stableAmount(10), now); !errors.Is(err, errInsufficientBalance) {
			t.Fatalf("expected balance rejection, got %v", err)
		}
	})

	t.Run("insufficient inventory", func(t *testing.T) {
		engine, state := newTestEngine(t)
		module := engine.ModuleAddress()
		state.accounts[module.String()] = (&coretypes.Account{BalanceHLS: unitAmount(1)}).Normalize()
		buyer := testAddr(7)
		fundBuyer(state, buyer, coretypes.CurrencyUSDT, stableAmount(50))
		if _, err := engine.BuyWithStable(buyer, crypto.Address{}, coretypes.CurrencyUSDT, stableAmount(50), now); !errors.Is(err, errInsufficientUnits) {
			t.Fatalf("expected inventory rejection, got %v", err)
		}
	})

	t.Run("cap exceeded", func(t *testing.T) {
		engine, state := newTestEngine(t)
		state.ledger.SaleCapUnits = unitAmount(10)
		buyer := testAddr(8)
		fundBuyer(state, buyer, coretypes.CurrencyUSDT, stableAmount(50))
		if _, err := engine.BuyWithStable(buyer, crypto.Address{}, coretypes.CurrencyUSDT, stableAmount(50), now); !errors.Is(err, errCapExceeded) {
			t.Fatalf("expected cap rejection, got %v", err)
		}
	})

	t.Run("unsupported currency", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		if _, err := engine.BuyWithStable(testAddr(9), crypto.Address{}, coretypes.CurrencyHLS, stableAmount(10), now); !errors.Is(err, errInvalidCurrency) {
			t.Fatalf("expected currency rejection, got %v", err)
		}
	})
}

func TestDirectTransferRetainsFundsOnSkip(t *testing.T) {
	engine, state := newTestEngine(t)
	state.ledger.Open = false
	buyer := testAddr(10)
	fundBuyer(state, buyer, coretypes.CurrencyUSDT, stableAmount(40))

	receipt, err := engine.HandleDirectTransfer(buyer, coretypes.CurrencyUSDT, stableAmount(40), time.Now())
	if err != nil {
		t.Fatalf("direct transfer: %v", err)
	}
	if !receipt.Skipped {
		t.Fatal("expected skipped receipt")
	}
	if receipt.SkipReason != "sale_closed" {
		t.Fatalf("skip reason = %q", receipt.SkipReason)
	}
	if receipt.Units.Sign() != 0 {
		t.Fatalf("skipped receipt allocated %s units", receipt.Units)
	}

	// The payment is retained even though no allocation happened.
	if acc := state.accounts[buyer.String()]; acc.BalanceUSDT.Sign() != 0 {
		t.Fatalf("buyer retained USDT %s", acc.BalanceUSDT)
	}
	moduleAcc := state.accounts[engine.ModuleAddress().String()]
	if moduleAcc.BalanceUSDT.Cmp(stableAmount(40)) != 0 {
		t.Fatalf("module USDT = %s", moduleAcc.BalanceUSDT)
	}
	if state.ledger.UnitsSold.Sign() != 0 {
		t.Fatalf("skip must not sell units, sold %s", state.ledger.UnitsSold)
	}

	types := state.eventTypes()
	if len(types) != 1 || types[0] != "sale.purchaseSkipped" {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestDirectTransferAllocatesWhenOpen(t *testing.T) {
	engine, state := newTestEngine(t)
	buyer := testAddr(11)
	fundBuyer(state, buyer, coretypes.CurrencyUSDC, stableAmount(30))

	receipt, err := engine.HandleDirectTransfer(buyer, coretypes.CurrencyUSDC, stableAmount(30), time.Now())
	if err != nil {
		t.Fatalf("direct transfer: %v", err)
	}
	if receipt.Skipped {
		t.Fatalf("open sale should allocate, skipped with %q", receipt.SkipReason)
	}
	if want := unitAmount(30); receipt.Units.Cmp(want) != 0 {
		t.Fatalf("units = %s, want %s", receipt.Units, want)
	}
}

func TestSaleClosesAtCap(t *testing.T) {
	engine, state := newTestEngine(t)
	state.ledger.SaleCapUnits = unitAmount(100)
	buyer := testAddr(12)
	fundBuyer(state, buyer, coretypes.CurrencyUSDT, stableAmount(100))

	receipt, err := engine.BuyWithStable(buyer, crypto.Address{}, coretypes.CurrencyUSDT, stableAmount(100), time.Now())
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if receipt.Units.Cmp(unitAmount(100)) != 0 {
		t.Fatalf("units = %s", receipt.Units)
	}
	if state.ledger.Open {
		t.Fatal("sale should close once the cap is reached")
	}

	types := state.eventTypes()
	if types[len(types)-1] != "sale.closed" {
		t.Fatalf("expected closing event, got %v", types)
	}
}

func TestBuySettlesCommission(t *testing.T) {
	engine, state := newTestEngine(t)
	funder := testAddr(0xBB)
	state.accounts[funder.String()] = (&coretypes.Account{BalanceHLS: unitAmount(10_000)}).Normalize()
	state.allowance = unitAmount(1_000)

	affEngine := affiliate.NewEngine(engine.ModuleAddress(), funder)
	affEngine.SetState(state)
	engine.SetAffiliateEngine(affEngine)

	buyer := testAddr(13)
	referrer := testAddr(14)
	fundBuyer(state, buyer, coretypes.CurrencyUSDT, stableAmount(100))

	receipt, err := engine.BuyWithStable(buyer, referrer, coretypes.CurrencyUSDT, stableAmount(100), time.Now())
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if receipt.Commission == nil {
		t.Fatal("expected commission settlement")
	}
	if receipt.Commission.Outcome != affiliate.OutcomePaid {
		t.Fatalf("commission outcome = %d, reason %q", receipt.Commission.Outcome, receipt.Commission.Reason)
	}
	// Bronze pays 5% of the 100 purchased units in HLS.
	if want := unitAmount(5); receipt.Commission.Amount.Cmp(want) != 0 {
		t.Fatalf("commission = %s, want %s", receipt.Commission.Amount, want)
	}

	record, err := affEngine.Get(referrer)
	if err != nil {
		t.Fatalf("get affiliate: %v", err)
	}
	// Attribution is recorded at stable-token precision.
	if want := stableAmount(100); record.LifetimeAttributedUSD.Cmp(want) != 0 {
		t.Fatalf("attributed = %s, want %s", record.LifetimeAttributedUSD, want)
	}
	if record.ReferralCount != 1 {
		t.Fatalf("referral count = %d", record.ReferralCount)
	}
}

func TestSetStagePrice(t *testing.T) {
	engine, state := newTestEngine(t)

	newPrice := new(big.Int).Mul(big.NewInt(3), PriceScale)
	if err := engine.SetStagePrice(1, newPrice); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if state.ledger.Stages[1].PriceUSD.Cmp(newPrice) != 0 {
		t.Fatalf("stage 1 price = %s", state.ledger.Stages[1].PriceUSD)
	}
	types := state.eventTypes()
	if len(types) != 1 || types[0] != "sale.stagePriceUpdated" {
		t.Fatalf("unexpected events %v", types)
	}

	if err := engine.SetStagePrice(NumStages, newPrice); !errors.Is(err, errStageOutOfRange) {
		t.Fatalf("expected range rejection, got %v", err)
	}
	if err := engine.SetStagePrice(0, big.NewInt(0)); !errors.Is(err, errInvalidPrice) {
		t.Fatalf("expected price rejection, got %v", err)
	}
}

func TestSetOpen(t *testing.T) {
	engine, state := newTestEngine(t)
	if err := engine.SetOpen(false); err != nil {
		t.Fatalf("close: %v", err)
	}
	if state.ledger.Open {
		t.Fatal("sale should be closed")
	}
	types := state.eventTypes()
	if len(types) != 1 || types[0] != "sale.closed" {
		t.Fatalf("unexpected events %v", types)
	}
	if err := engine.SetOpen(true); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !state.ledger.Open {
		t.Fatal("sale should be open again")
	}
}

func TestStableValuationFollowsCurrencyDecimals(t *testing.T) {
	engine, _ := newTestEngine(t)

	// $50 in a 6-decimal stable token values at 50 * PriceScale.
	units, usdValue, err := engine.Quote(coretypes.CurrencyUSDC, stableAmount(50), time.Now())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if want := usdAmount(50); usdValue.Cmp(want) != 0 {
		t.Fatalf("usd value = %s, want %s", usdValue, want)
	}
	if want := unitAmount(50); units.Cmp(want) != 0 {
		t.Fatalf("units = %s, want %s", units, want)
	}

	if got := stableUSDValue(stableAmount(50), coretypes.CurrencyUSDT); got.Cmp(usdAmount(50)) != 0 {
		t.Fatalf("USDT rescale = %s, want %s", got, usdAmount(50))
	}
}
