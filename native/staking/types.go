package staking

import (
	"math/big"
	"time"

	"helios/crypto"
)

// secondsPerYear is the accrual denominator (365 days).
const secondsPerYear = 31_536_000

var basisPoints = big.NewInt(10_000)

// Plan is one row of the staking schedule. Plans are referenced live: a
// parameter change applies to every subsequent accrual window of existing
// stakes, with no per-stake snapshot.
type Plan struct {
	ID           uint8         `json:"id"`
	LockDuration time.Duration `json:"lockDuration"`
	ApyBps       uint64        `json:"apyBps"`
	BonusBps     uint64        `json:"bonusBps"`
	Enabled      bool          `json:"enabled"`
}

// DefaultPlans returns the production schedule: a flexible plan plus three
// locked terms with rising APY and a one-time completion bonus.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: 0, LockDuration: 0, ApyBps: 800, BonusBps: 0, Enabled: true},
		{ID: 1, LockDuration: 30 * 24 * time.Hour, ApyBps: 1_200, BonusBps: 100, Enabled: true},
		{ID: 2, LockDuration: 90 * 24 * time.Hour, ApyBps: 1_600, BonusBps: 300, Enabled: true},
		{ID: 3, LockDuration: 180 * 24 * time.Hour, ApyBps: 2_000, BonusBps: 500, Enabled: true},
	}
}

// Stake is one deposit. IDs come from the owner account's stake sequence
// and are never reused; Active flips to false exactly once, on withdrawal.
type Stake struct {
	Owner           crypto.Address `json:"-"`
	ID              uint64         `json:"id"`
	Principal       *big.Int       `json:"principal"`
	PlanID          uint8          `json:"planId"`
	StartTime       int64          `json:"startTime"`
	LockEndTime     int64          `json:"lockEndTime"`
	LastAccrualTime int64          `json:"lastAccrualTime"`
	Active          bool           `json:"active"`
}

// Normalize replaces nil amounts with zero.
func (s *Stake) Normalize() *Stake {
	if s == nil {
		return nil
	}
	if s.Principal == nil {
		s.Principal = big.NewInt(0)
	}
	return s
}

// Locked reports whether the stake is still inside its lock window.
func (s *Stake) Locked(now time.Time) bool {
	return s != nil && now.Unix() < s.LockEndTime
}

// PoolState is the staking aggregate: the shared reward pool, the total
// principal under custody and the live plan table.
type PoolState struct {
	RewardPool  *big.Int `json:"rewardPool"`
	TotalStaked *big.Int `json:"totalStaked"`
	Plans       []Plan   `json:"plans"`
}

// NewPoolState seeds the aggregate with the supplied plan table.
func NewPoolState(plans []Plan) *PoolState {
	pool := &PoolState{Plans: append([]Plan(nil), plans...)}
	return pool.Normalize()
}

// Normalize replaces nil amounts with zero.
func (p *PoolState) Normalize() *PoolState {
	if p == nil {
		return nil
	}
	if p.RewardPool == nil {
		p.RewardPool = big.NewInt(0)
	}
	if p.TotalStaked == nil {
		p.TotalStaked = big.NewInt(0)
	}
	return p
}

// Plan looks up a plan by id.
func (p *PoolState) Plan(id uint8) (Plan, bool) {
	if p == nil {
		return Plan{}, false
	}
	for _, plan := range p.Plans {
		if plan.ID == id {
			return plan, true
		}
	}
	return Plan{}, false
}

// SetPlan inserts or replaces a plan, keeping the table sorted by id.
func (p *PoolState) SetPlan(plan Plan) {
	for i := range p.Plans {
		if p.Plans[i].ID == plan.ID {
			p.Plans[i] = plan
			return
		}
	}
	p.Plans = append(p.Plans, plan)
	for i := len(p.Plans) - 1; i > 0 && p.Plans[i-1].ID > p.Plans[i].ID; i-- {
		p.Plans[i-1], p.Plans[i] = p.Plans[i], p.Plans[i-1]
	}
}

// AccrualReward computes the floor-division reward for an accrual window:
// principal * apyBps * seconds / (secondsPerYear * 10000).
func AccrualReward(principal *big.Int, apyBps uint64, seconds int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || seconds <= 0 || apyBps == 0 {
		return big.NewInt(0)
	}
	reward := new(big.Int).Mul(principal, new(big.Int).SetUint64(apyBps))
	reward.Mul(reward, big.NewInt(seconds))
	reward.Quo(reward, new(big.Int).Mul(big.NewInt(secondsPerYear), basisPoints))
	return reward
}

// CompletionBonus computes the one-time bonus paid on withdrawal:
// principal * bonusBps / 10000, floor.
func CompletionBonus(principal *big.Int, bonusBps uint64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || bonusBps == 0 {
		return big.NewInt(0)
	}
	bonus := new(big.Int).Mul(principal, new(big.Int).SetUint64(bonusBps))
	return bonus.Quo(bonus, basisPoints)
}
