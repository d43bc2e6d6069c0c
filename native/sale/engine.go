package sale

import (
	"math/big"
	"time"

	"helios/core/events"
	coretypes "helios/core/types"
	"helios/crypto"
	nativecommon "helios/native/common"
	"helios/native/affiliate"
	"helios/native/pricefeed"
)

const moduleName = "sale"

type engineState interface {
	SaleLedger() (*Ledger, error)
	PutSaleLedger(ledger *Ledger) error
	GetAccount(addr crypto.Address) (*coretypes.Account, error)
	PutAccount(addr crypto.Address, account *coretypes.Account) error
	AppendEvent(evt *coretypes.Event)
}

// Engine orchestrates purchases: it converts payments into fixed-point USD,
// drives the stage ladder, updates the sale totals and hands the result to
// the affiliate engine for commission settlement.
type Engine struct {
	state         engineState
	moduleAddress crypto.Address
	feed          pricefeed.Feed
	maxQuoteAge   time.Duration
	pauses        nativecommon.PauseView
	affiliates    *affiliate.Engine
}

// Receipt reports the outcome of a purchase attempt. Skipped receipts come
// only from the passive receipt path, which retains the payment without
// converting it.
type Receipt struct {
	Buyer      crypto.Address
	Currency   coretypes.Currency
	Paid       *big.Int
	Units      *big.Int
	USDValue   *big.Int
	Skipped    bool
	SkipReason string
	Commission *affiliate.SettleResult
}

// NewEngine constructs a sale engine anchored at the module address that
// custodies the HLS inventory and receives payments.
func NewEngine(moduleAddr crypto.Address) *Engine {
	return &Engine{moduleAddress: moduleAddr, maxQuoteAge: pricefeed.DefaultMaxAge}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFeed wires the native-coin price feed.
func (e *Engine) SetFeed(feed pricefeed.Feed) {
	if e == nil {
		return
	}
	e.feed = feed
}

// SetMaxQuoteAge overrides the oracle freshness window.
func (e *Engine) SetMaxQuoteAge(maxAge time.Duration) {
	if e == nil || maxAge <= 0 {
		return
	}
	e.maxQuoteAge = maxAge
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetAffiliateEngine wires commission settlement. Settlement failures are
// surfaced on the receipt, never allowed to fail the purchase.
func (e *Engine) SetAffiliateEngine(engine *affiliate.Engine) {
	if e == nil {
		return
	}
	e.affiliates = engine
}

// ModuleAddress returns the custody address for inventory and payments.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}

// Quote converts a payment to USD and walks the ladder read-only.
func (e *Engine) Quote(currency coretypes.Currency, amount *big.Int, now time.Time) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	usdValue, err := e.usdValue(currency, amount, now)
	if err != nil {
		return nil, nil, err
	}
	ledger, err := e.ledger()
	if err != nil {
		return nil, nil, err
	}
	return ledger.Quote(usdValue), usdValue, nil
}

// BuyWithNative executes a purchase paid in the native coin, valued through
// the freshness-checked price feed. Every check failure rejects the whole
// purchase atomically.
func (e *Engine) BuyWithNative(buyer, referrer crypto.Address, amountWei *big.Int, now time.Time) (*Receipt, error) {
	return e.purchase(buyer, referrer, coretypes.CurrencyNative, amountWei, now, false)
}

// BuyWithStable executes a purchase paid in one of the USD-pegged tokens at
// their fixed one-dollar valuation.
func (e *Engine) BuyWithStable(buyer, referrer crypto.Address, token coretypes.Currency, amount *big.Int, now time.Time) (*Receipt, error) {
	if token != coretypes.CurrencyUSDT && token != coretypes.CurrencyUSDC {
		return nil, errInvalidCurrency
	}
	return e.purchase(buyer, referrer, token, amount, now, false)
}

// HandleDirectTransfer is the passive receipt path: the payment is taken in
// unconditionally, and when supply or inventory checks fail the purchase is
// skipped while the funds stay unconverted. The asymmetry with Buy is
// deliberate and observable through the skip event.
func (e *Engine) HandleDirectTransfer(buyer crypto.Address, currency coretypes.Currency, amount *big.Int, now time.Time) (*Receipt, error) {
	return e.purchase(buyer, crypto.Address{}, currency, amount, now, true)
}

func (e *Engine) purchase(buyer, referrer crypto.Address, currency coretypes.Currency, amount *big.Int, now time.Time, passive bool) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if buyer.IsZero() {
		return nil, errInvalidBuyer
	}
	if !currency.IsPayment() {
		return nil, errInvalidCurrency
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	// The payment transfer itself is all-or-nothing on both paths.
	buyerAcc, err := e.state.GetAccount(buyer)
	if err != nil {
		return nil, err
	}
	if buyerAcc.Balance(currency).Cmp(amount) < 0 {
		return nil, errInsufficientBalance
	}
	moduleAcc, err := e.state.GetAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Buyer:    buyer,
		Currency: currency,
		Paid:     new(big.Int).Set(amount),
		Units:    big.NewInt(0),
		USDValue: big.NewInt(0),
	}

	usdValue, convErr := e.usdValue(currency, amount, now)
	if convErr != nil {
		// Oracle failures reject even passive receipts: without a rate the
		// payment cannot be valued at all.
		return nil, convErr
	}
	receipt.USDValue = usdValue

	ledger, err := e.ledger()
	if err != nil {
		return nil, err
	}

	staged := ledger.Clone()
	units, transitions := staged.Allocate(usdValue)

	checkErr := e.checkAllocation(ledger, staged, moduleAcc, units, usdValue)
	if checkErr != nil {
		if !passive {
			return nil, checkErr
		}
		// Passive path: keep the funds, skip the conversion, leave the
		// ladder untouched.
		buyerAcc.Sub(currency, amount)
		moduleAcc.Add(currency, amount)
		if err := e.state.PutAccount(buyer, buyerAcc); err != nil {
			return nil, err
		}
		if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
			return nil, err
		}
		receipt.Skipped = true
		receipt.SkipReason = skipReason(checkErr)
		var buyerKey [20]byte
		copy(buyerKey[:], buyer.Bytes())
		events.Append(e.state, events.PurchaseSkipped{
			Buyer:    buyerKey,
			Currency: currency,
			Paid:     new(big.Int).Set(amount),
			Reason:   receipt.SkipReason,
		})
		return receipt, nil
	}

	// Move the payment and the purchased units.
	buyerAcc.Sub(currency, amount)
	moduleAcc.Add(currency, amount)
	moduleAcc.Sub(coretypes.CurrencyHLS, units)
	buyerAcc.Add(coretypes.CurrencyHLS, units)
	buyerAcc.PurchasedUnits = new(big.Int).Add(buyerAcc.PurchasedUnits, units)

	// Fold the purchase into the running totals.
	staged.UnitsSold = new(big.Int).Add(staged.UnitsSold, units)
	staged.RaisedUSD = new(big.Int).Add(staged.RaisedUSD, usdValue)
	switch currency {
	case coretypes.CurrencyNative:
		staged.RaisedNative = new(big.Int).Add(staged.RaisedNative, amount)
	case coretypes.CurrencyUSDT:
		staged.RaisedUSDT = new(big.Int).Add(staged.RaisedUSDT, amount)
	case coretypes.CurrencyUSDC:
		staged.RaisedUSDC = new(big.Int).Add(staged.RaisedUSDC, amount)
	}

	capReached := staged.SaleCapUnits.Sign() > 0 && staged.UnitsSold.Cmp(staged.SaleCapUnits) >= 0
	if capReached || staged.Exhausted() {
		staged.Open = false
	}

	if err := e.state.PutAccount(buyer, buyerAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutSaleLedger(staged); err != nil {
		return nil, err
	}

	for _, t := range transitions {
		events.Append(e.state, events.StageAdvanced{
			OldStage: t.OldStage,
			NewStage: t.NewStage,
			NewPrice: t.NewPrice,
		})
	}
	var buyerKey [20]byte
	copy(buyerKey[:], buyer.Bytes())
	events.Append(e.state, events.PurchaseCompleted{
		Buyer:    buyerKey,
		Currency: currency,
		Paid:     new(big.Int).Set(amount),
		Units:    new(big.Int).Set(units),
		USDValue: new(big.Int).Set(usdValue),
	})
	if !staged.Open {
		events.Append(e.state, events.SaleClosed{
			UnitsSold: new(big.Int).Set(staged.UnitsSold),
			RaisedUSD: new(big.Int).Set(staged.RaisedUSD),
		})
	}

	receipt.Units = units

	// Commission settlement runs after the purchase has settled and can
	// never claw it back.
	if e.affiliates != nil && !referrer.IsZero() {
		settle, err := e.affiliates.Settle(referrer, buyer, amount, units, attributionValue(usdValue), currency)
		if err == nil {
			receipt.Commission = settle
		}
	}

	return receipt, nil
}

// checkAllocation enforces the supply-cap and inventory preconditions that
// reject a primary purchase and skip a passive one.
func (e *Engine) checkAllocation(current, staged *Ledger, moduleAcc *coretypes.Account, units, usdValue *big.Int) error {
	if !current.Open {
		return errSaleClosed
	}
	if current.MinPurchaseUSD.Sign() > 0 && usdValue.Cmp(current.MinPurchaseUSD) < 0 {
		return errBelowMinimum
	}
	if units.Sign() == 0 {
		return errZeroUnits
	}
	if current.SaleCapUnits.Sign() > 0 {
		sold := new(big.Int).Add(current.UnitsSold, units)
		if sold.Cmp(current.SaleCapUnits) > 0 {
			return errCapExceeded
		}
	}
	if moduleAcc.Balance(coretypes.CurrencyHLS).Cmp(units) < 0 {
		return errInsufficientUnits
	}
	return nil
}

// usdValue converts a payment into 8-decimal fixed-point USD. Native
// payments go through the freshness-checked feed; stable payments are
// rescaled from the token's own precision at a fixed one-dollar valuation.
func (e *Engine) usdValue(currency coretypes.Currency, amount *big.Int, now time.Time) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	switch currency {
	case coretypes.CurrencyNative:
		if e.feed == nil {
			return nil, errFeedNotConfigured
		}
		round, err := pricefeed.LatestValidated(e.feed, now, e.maxQuoteAge)
		if err != nil {
			return nil, err
		}
		value := new(big.Int).Mul(amount, round.Answer)
		return value.Quo(value, UnitScale), nil
	case coretypes.CurrencyUSDT, coretypes.CurrencyUSDC:
		return stableUSDValue(amount, currency), nil
	}
	return nil, errInvalidCurrency
}

// stableUSDValue rescales a one-dollar-pegged payment from the currency's
// declared precision to the 8-decimal PriceScale representation.
func stableUSDValue(amount *big.Int, currency coretypes.Currency) *big.Int {
	shift := priceDecimals - int(currency.Decimals())
	if shift >= 0 {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil)
		return new(big.Int).Mul(amount, factor)
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-shift)), nil)
	return new(big.Int).Quo(amount, factor)
}

// attributionValue rescales 8-decimal USD to the affiliate ledger's
// 6-decimal attribution unit.
func attributionValue(usd8 *big.Int) *big.Int {
	if usd8 == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(usd8, big.NewInt(100))
}

func skipReason(err error) string {
	switch err {
	case errSaleClosed:
		return "sale_closed"
	case errBelowMinimum:
		return "below_minimum"
	case errZeroUnits:
		return "zero_units"
	case errCapExceeded:
		return "cap_exceeded"
	case errInsufficientUnits:
		return "insufficient_inventory"
	}
	return "rejected"
}

// --- Administrative surface ---

// SetStagePrice revises a stage's unit price; capacities are immutable.
func (e *Engine) SetStagePrice(stage uint8, price *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if price == nil || price.Sign() <= 0 {
		return errInvalidPrice
	}
	ledger, err := e.ledger()
	if err != nil {
		return err
	}
	if int(stage) >= len(ledger.Stages) {
		return errStageOutOfRange
	}
	old := new(big.Int).Set(ledger.Stages[stage].PriceUSD)
	ledger.Stages[stage].PriceUSD = new(big.Int).Set(price)
	if err := e.state.PutSaleLedger(ledger); err != nil {
		return err
	}
	events.Append(e.state, events.StagePriceUpdated{
		Stage:    stage,
		OldPrice: old,
		NewPrice: new(big.Int).Set(price),
	})
	return nil
}

// SetOpen flips the sale-open flag.
func (e *Engine) SetOpen(open bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	ledger, err := e.ledger()
	if err != nil {
		return err
	}
	ledger.Open = open
	if err := e.state.PutSaleLedger(ledger); err != nil {
		return err
	}
	if !open {
		events.Append(e.state, events.SaleClosed{
			UnitsSold: new(big.Int).Set(ledger.UnitsSold),
			RaisedUSD: new(big.Int).Set(ledger.RaisedUSD),
		})
	}
	return nil
}

// SetMinPurchaseUSD revises the minimum purchase threshold (8-decimal USD).
func (e *Engine) SetMinPurchaseUSD(minimum *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if minimum == nil || minimum.Sign() < 0 {
		return errInvalidAmount
	}
	ledger, err := e.ledger()
	if err != nil {
		return err
	}
	ledger.MinPurchaseUSD = new(big.Int).Set(minimum)
	return e.state.PutSaleLedger(ledger)
}

// LedgerSnapshot returns a deep copy of the sale ledger for queries.
func (e *Engine) LedgerSnapshot() (*Ledger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ledger, err := e.ledger()
	if err != nil {
		return nil, err
	}
	return ledger.Clone(), nil
}

// CheckInvariant verifies the central cross-invariant between the stage
// ladder and the sale totals.
func (e *Engine) CheckInvariant() error {
	ledger, err := e.ledger()
	if err != nil {
		return err
	}
	if ledger.ConsumedTotal().Cmp(ledger.UnitsSold) != 0 {
		return errLedgerInventoryDrift
	}
	return nil
}

func (e *Engine) ledger() (*Ledger, error) {
	ledger, err := e.state.SaleLedger()
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, errNilLedger
	}
	return ledger.Normalize(), nil
}
