package sale

import "math/big"

// NumStages is the fixed length of the price ladder.
const NumStages = 10

// StageExhausted is the terminal cursor value once every stage is consumed.
const StageExhausted = uint8(NumStages)

// priceDecimals is the fixed-point precision behind PriceScale.
const priceDecimals = 8

var (
	// UnitScale is the fixed-point scale of HLS units (18 decimals).
	UnitScale = big.NewInt(1_000_000_000_000_000_000)
	// PriceScale is the fixed-point scale of USD values (8 decimals).
	PriceScale = big.NewInt(100_000_000)

	basisPoints = big.NewInt(10_000)
)

// Stage is one tier of the ladder: a fixed capacity of units offered at a
// revisable USD price per whole unit.
type Stage struct {
	Capacity *big.Int `json:"capacity"`
	PriceUSD *big.Int `json:"priceUSD"`
	Consumed *big.Int `json:"consumed"`
}

// Remaining returns the unsold capacity of the stage.
func (s *Stage) Remaining() *big.Int {
	if s == nil || s.Capacity == nil {
		return big.NewInt(0)
	}
	consumed := s.Consumed
	if consumed == nil {
		consumed = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(s.Capacity, consumed)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// Ledger is the sale aggregate: the ten stages, the monotonic cursor, the
// running totals and the open flag. It is owned exclusively by the sale
// engine and persisted as a single record.
type Ledger struct {
	Stages         []Stage  `json:"stages"`
	ActiveStage    uint8    `json:"activeStage"`
	UnitsSold      *big.Int `json:"unitsSold"`
	RaisedUSD      *big.Int `json:"raisedUSD"`
	RaisedNative   *big.Int `json:"raisedNative"`
	RaisedUSDT     *big.Int `json:"raisedUSDT"`
	RaisedUSDC     *big.Int `json:"raisedUSDC"`
	Open           bool     `json:"open"`
	SaleCapUnits   *big.Int `json:"saleCapUnits"`
	MinPurchaseUSD *big.Int `json:"minPurchaseUSD"`
}

// Normalize replaces nil fields with zero values so arithmetic downstream
// never nil-checks.
func (l *Ledger) Normalize() *Ledger {
	if l == nil {
		return nil
	}
	for i := range l.Stages {
		if l.Stages[i].Capacity == nil {
			l.Stages[i].Capacity = big.NewInt(0)
		}
		if l.Stages[i].PriceUSD == nil {
			l.Stages[i].PriceUSD = big.NewInt(0)
		}
		if l.Stages[i].Consumed == nil {
			l.Stages[i].Consumed = big.NewInt(0)
		}
	}
	if l.UnitsSold == nil {
		l.UnitsSold = big.NewInt(0)
	}
	if l.RaisedUSD == nil {
		l.RaisedUSD = big.NewInt(0)
	}
	if l.RaisedNative == nil {
		l.RaisedNative = big.NewInt(0)
	}
	if l.RaisedUSDT == nil {
		l.RaisedUSDT = big.NewInt(0)
	}
	if l.RaisedUSDC == nil {
		l.RaisedUSDC = big.NewInt(0)
	}
	if l.SaleCapUnits == nil {
		l.SaleCapUnits = big.NewInt(0)
	}
	if l.MinPurchaseUSD == nil {
		l.MinPurchaseUSD = big.NewInt(0)
	}
	return l
}

// Clone returns a deep copy so a purchase can be staged and abandoned
// without touching the persisted ledger.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	l.Normalize()
	clone := &Ledger{
		Stages:         make([]Stage, len(l.Stages)),
		ActiveStage:    l.ActiveStage,
		UnitsSold:      new(big.Int).Set(l.UnitsSold),
		RaisedUSD:      new(big.Int).Set(l.RaisedUSD),
		RaisedNative:   new(big.Int).Set(l.RaisedNative),
		RaisedUSDT:     new(big.Int).Set(l.RaisedUSDT),
		RaisedUSDC:     new(big.Int).Set(l.RaisedUSDC),
		Open:           l.Open,
		SaleCapUnits:   new(big.Int).Set(l.SaleCapUnits),
		MinPurchaseUSD: new(big.Int).Set(l.MinPurchaseUSD),
	}
	for i := range l.Stages {
		clone.Stages[i] = Stage{
			Capacity: new(big.Int).Set(l.Stages[i].Capacity),
			PriceUSD: new(big.Int).Set(l.Stages[i].PriceUSD),
			Consumed: new(big.Int).Set(l.Stages[i].Consumed),
		}
	}
	return clone
}

// ConsumedTotal sums per-stage consumption. The ledger invariant is
// ConsumedTotal() == UnitsSold at all times.
func (l *Ledger) ConsumedTotal() *big.Int {
	total := big.NewInt(0)
	if l == nil {
		return total
	}
	for i := range l.Stages {
		if l.Stages[i].Consumed != nil {
			total.Add(total, l.Stages[i].Consumed)
		}
	}
	return total
}

// StageConfig seeds one ladder tier at genesis.
type StageConfig struct {
	Capacity *big.Int
	PriceUSD *big.Int
}

// NewLedger builds a fresh sale ledger from the genesis stage table.
func NewLedger(stages []StageConfig, capUnits, minPurchaseUSD *big.Int) *Ledger {
	ledger := &Ledger{
		Stages: make([]Stage, len(stages)),
		Open:   true,
	}
	for i, cfg := range stages {
		ledger.Stages[i] = Stage{Consumed: big.NewInt(0)}
		if cfg.Capacity != nil {
			ledger.Stages[i].Capacity = new(big.Int).Set(cfg.Capacity)
		}
		if cfg.PriceUSD != nil {
			ledger.Stages[i].PriceUSD = new(big.Int).Set(cfg.PriceUSD)
		}
	}
	if capUnits != nil {
		ledger.SaleCapUnits = new(big.Int).Set(capUnits)
	}
	if minPurchaseUSD != nil {
		ledger.MinPurchaseUSD = new(big.Int).Set(minPurchaseUSD)
	}
	return ledger.Normalize()
}

// DefaultStages returns the production ladder: ten tiers of 10M units each,
// opening at one cent per unit and rising roughly 20% per tier.
func DefaultStages() []StageConfig {
	capacity := new(big.Int).Mul(big.NewInt(10_000_000), UnitScale)
	prices := []int64{
		1_000_000, // $0.010
		1_200_000, // $0.012
		1_440_000,
		1_730_000,
		2_070_000,
		2_490_000,
		2_990_000,
		3_580_000,
		4_300_000,
		5_160_000, // $0.0516
	}
	stages := make([]StageConfig, 0, NumStages)
	for _, p := range prices {
		stages = append(stages, StageConfig{
			Capacity: new(big.Int).Set(capacity),
			PriceUSD: big.NewInt(p),
		})
	}
	return stages
}
