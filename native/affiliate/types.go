package affiliate

import (
	"math/big"

	"helios/crypto"
)

// AttributionScale is the fixed-point scale of lifetime attributed USD
// volume (6 decimals, stable-token precision).
var AttributionScale = big.NewInt(1_000_000)

// Tier is one row of the fixed commission schedule. Thresholds are
// inclusive: an affiliate sitting exactly on MinAttributedUSD earns the
// tier's rate.
type Tier struct {
	Name             string
	MinAttributedUSD *big.Int
	RateBps          uint64
}

var tierTable = []Tier{
	{Name: "bronze", MinAttributedUSD: big.NewInt(0), RateBps: 500},
	{Name: "silver", MinAttributedUSD: usd(1_000), RateBps: 1_500},
	{Name: "gold", MinAttributedUSD: usd(5_000), RateBps: 3_000},
	{Name: "platinum", MinAttributedUSD: usd(10_000), RateBps: 4_000},
	{Name: "diamond", MinAttributedUSD: usd(25_000), RateBps: 5_000},
}

func usd(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), AttributionScale)
}

// Tiers returns a defensive copy of the commission schedule.
func Tiers() []Tier {
	out := make([]Tier, len(tierTable))
	for i, tier := range tierTable {
		out[i] = Tier{
			Name:             tier.Name,
			MinAttributedUSD: new(big.Int).Set(tier.MinAttributedUSD),
			RateBps:          tier.RateBps,
		}
	}
	return out
}

// RateForVolume returns the bps rate of the highest tier whose threshold
// the volume meets.
func RateForVolume(volume *big.Int) uint64 {
	if volume == nil || volume.Sign() < 0 {
		return tierTable[0].RateBps
	}
	rate := tierTable[0].RateBps
	for _, tier := range tierTable {
		if volume.Cmp(tier.MinAttributedUSD) >= 0 {
			rate = tier.RateBps
		}
	}
	return rate
}

// TierForVolume names the tier the volume currently sits in.
func TierForVolume(volume *big.Int) Tier {
	current := tierTable[0]
	if volume == nil {
		return Tier{Name: current.Name, MinAttributedUSD: new(big.Int).Set(current.MinAttributedUSD), RateBps: current.RateBps}
	}
	for _, tier := range tierTable {
		if volume.Cmp(tier.MinAttributedUSD) >= 0 {
			current = tier
		}
	}
	return Tier{Name: current.Name, MinAttributedUSD: new(big.Int).Set(current.MinAttributedUSD), RateBps: current.RateBps}
}

// Account is the per-referrer record. LifetimeAttributedUSD only ever
// grows; it advances even when a payout is skipped.
type Account struct {
	Address               crypto.Address `json:"-"`
	LifetimeAttributedUSD *big.Int       `json:"lifetimeAttributedUSD"`
	TokenRewards          *big.Int       `json:"tokenRewards"`
	RewardsNative         *big.Int       `json:"rewardsNative"`
	RewardsUSDT           *big.Int       `json:"rewardsUSDT"`
	RewardsUSDC           *big.Int       `json:"rewardsUSDC"`
	ReferralCount         uint64         `json:"referralCount"`
	Privileged            bool           `json:"privileged"`
	TierOverrideBps       uint64         `json:"tierOverrideBps"`
}

// Normalize replaces nil counters with zero.
func (a *Account) Normalize() *Account {
	if a == nil {
		return nil
	}
	if a.LifetimeAttributedUSD == nil {
		a.LifetimeAttributedUSD = big.NewInt(0)
	}
	if a.TokenRewards == nil {
		a.TokenRewards = big.NewInt(0)
	}
	if a.RewardsNative == nil {
		a.RewardsNative = big.NewInt(0)
	}
	if a.RewardsUSDT == nil {
		a.RewardsUSDT = big.NewInt(0)
	}
	if a.RewardsUSDC == nil {
		a.RewardsUSDC = big.NewInt(0)
	}
	return a
}

// PayoutPolicy is the tagged payout variant resolved once per settlement.
type PayoutPolicy uint8

const (
	// PayoutToken pays commission in HLS from the allowance-backed source.
	PayoutToken PayoutPolicy = iota
	// PayoutSameCurrency pays privileged referrers in the purchase
	// currency from sale module holdings.
	PayoutSameCurrency
)

// Policy resolves the payout variant for the account.
func (a *Account) Policy() PayoutPolicy {
	if a != nil && a.Privileged {
		return PayoutSameCurrency
	}
	return PayoutToken
}
