package sale

import "math/big"

// Transition records the cursor advancing past a stage during allocation.
// NewPrice is nil once the ladder is exhausted.
type Transition struct {
	OldStage uint8
	NewStage uint8
	NewPrice *big.Int
}

// Quote walks the ladder from the active stage and returns how many units
// the supplied USD amount buys at current prices, spanning stages as needed.
// It never mutates the ledger; Allocate on the same pre-state must return
// the identical unit count.
func (l *Ledger) Quote(usdAmount *big.Int) *big.Int {
	units, _ := l.walk(usdAmount, false)
	return units
}

// Allocate performs the same walk as Quote but consumes stage capacity and
// advances the active-stage cursor whenever a stage fills. The returned
// transitions describe each cursor advance for event emission.
//
// Leftover USD when the ladder runs out is not tracked here; the caller
// decides whether that is an error.
func (l *Ledger) Allocate(usdAmount *big.Int) (*big.Int, []Transition) {
	return l.walk(usdAmount, true)
}

func (l *Ledger) walk(usdAmount *big.Int, mutate bool) (*big.Int, []Transition) {
	units := big.NewInt(0)
	if l == nil || usdAmount == nil || usdAmount.Sign() <= 0 {
		return units, nil
	}
	l.Normalize()

	var transitions []Transition
	remaining := new(big.Int).Set(usdAmount)
	idx := l.ActiveStage

	advance := func(from uint8) uint8 {
		next := from + 1
		if mutate {
			t := Transition{OldStage: from, NewStage: next}
			if int(next) < len(l.Stages) {
				t.NewPrice = new(big.Int).Set(l.Stages[next].PriceUSD)
			}
			transitions = append(transitions, t)
			l.ActiveStage = next
		}
		return next
	}

	for int(idx) < len(l.Stages) && remaining.Sign() > 0 {
		stage := &l.Stages[idx]
		if stage.PriceUSD.Sign() <= 0 {
			break
		}
		room := stage.Remaining()
		if room.Sign() == 0 {
			// Exhausted stages are skipped without consuming USD.
			idx = advance(idx)
			continue
		}

		// unitsAtPrice = usd * UnitScale / price, floor division.
		unitsAtPrice := new(big.Int).Mul(remaining, UnitScale)
		unitsAtPrice.Quo(unitsAtPrice, stage.PriceUSD)

		if unitsAtPrice.Cmp(room) <= 0 {
			// The remaining USD fits inside this stage.
			units.Add(units, unitsAtPrice)
			if mutate {
				stage.Consumed = new(big.Int).Add(stage.Consumed, unitsAtPrice)
				if stage.Consumed.Cmp(stage.Capacity) == 0 {
					advance(idx)
				}
			}
			remaining.SetInt64(0)
			break
		}

		// Partial fill: take the whole stage, charge its floor cost and
		// carry the rest of the USD into the next tier.
		units.Add(units, room)
		cost := new(big.Int).Mul(room, stage.PriceUSD)
		cost.Quo(cost, UnitScale)
		remaining.Sub(remaining, cost)
		if remaining.Sign() < 0 {
			remaining.SetInt64(0)
		}
		if mutate {
			stage.Consumed = new(big.Int).Set(stage.Capacity)
		}
		idx = advance(idx)
	}

	return units, transitions
}

// Exhausted reports whether the cursor has moved past the final stage.
func (l *Ledger) Exhausted() bool {
	return l != nil && l.ActiveStage >= StageExhausted
}

// ActivePrice returns the unit price of the currently selling stage, or nil
// when the ladder is exhausted.
func (l *Ledger) ActivePrice() *big.Int {
	if l == nil || int(l.ActiveStage) >= len(l.Stages) {
		return nil
	}
	price := l.Stages[l.ActiveStage].PriceUSD
	if price == nil {
		return nil
	}
	return new(big.Int).Set(price)
}
