package staking

import (
	"math/big"
	"time"

	"helios/core/events"
	coretypes "helios/core/types"
	"helios/crypto"
	nativecommon "helios/native/common"
	"helios/native/rewards"
)

const moduleName = "staking"

type engineState interface {
	StakingPool() (*PoolState, error)
	PutStakingPool(pool *PoolState) error
	GetStake(owner crypto.Address, id uint64) (*Stake, error)
	PutStake(stake *Stake) error
	ListStakes(owner crypto.Address) ([]*Stake, error)
	GetAccount(addr crypto.Address) (*coretypes.Account, error)
	PutAccount(addr crypto.Address, account *coretypes.Account) error
	AppendEvent(evt *coretypes.Event)
}

// Engine runs time-proportional reward accrual over plan-parameterized
// stakes. Principal sits in the module account for the life of the stake;
// rewards draw from a shared pool that clamps rather than rejects.
type Engine struct {
	state         engineState
	moduleAddress crypto.Address
	pauses        nativecommon.PauseView
}

// NewEngine constructs a staking engine anchored at the custody address for
// staked principal and pooled rewards.
func NewEngine(moduleAddr crypto.Address) *Engine {
	return &Engine{moduleAddress: moduleAddr}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// ClaimResult reports a claim, including zero-payout claims where the pool
// clamp left nothing to pay.
type ClaimResult struct {
	StakeID   uint64
	Requested *big.Int
	Paid      *big.Int
}

// WithdrawResult reports the terminal settlement of a stake.
type WithdrawResult struct {
	StakeID   uint64
	Principal *big.Int
	Requested *big.Int
	Paid      *big.Int
}

// Deposit locks HLS under a plan and opens a new stake. The stake id comes
// from the owner account's sequence counter and is never reused.
func (e *Engine) Deposit(owner crypto.Address, planID uint8, amount *big.Int, now time.Time) (*Stake, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if owner.IsZero() {
		return nil, errInvalidOwner
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	plan, ok := pool.Plan(planID)
	if !ok {
		return nil, errUnknownPlan
	}
	if !plan.Enabled {
		return nil, errPlanDisabled
	}

	ownerAcc, err := e.state.GetAccount(owner)
	if err != nil {
		return nil, err
	}
	if ownerAcc.Balance(coretypes.CurrencyHLS).Cmp(amount) < 0 {
		return nil, errInsufficientHLS
	}
	moduleAcc, err := e.state.GetAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}

	start := now.Unix()
	stake := &Stake{
		Owner:           owner,
		ID:              ownerAcc.StakeSequence,
		Principal:       new(big.Int).Set(amount),
		PlanID:          planID,
		StartTime:       start,
		LockEndTime:     now.Add(plan.LockDuration).Unix(),
		LastAccrualTime: start,
		Active:          true,
	}
	ownerAcc.StakeSequence++
	ownerAcc.Sub(coretypes.CurrencyHLS, amount)
	moduleAcc.Add(coretypes.CurrencyHLS, amount)
	pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, amount)

	if err := e.state.PutAccount(owner, ownerAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutStake(stake); err != nil {
		return nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}

	var ownerKey [20]byte
	copy(ownerKey[:], owner.Bytes())
	events.Append(e.state, events.StakeOpened{
		Owner:     ownerKey,
		StakeID:   stake.ID,
		PlanID:    planID,
		Principal: new(big.Int).Set(amount),
		LockEnd:   uint64(stake.LockEndTime),
	})
	return stake, nil
}

// Claim accrues rewards since the last accrual and pays out as much as the
// pool covers. A claim whose payout clamps to zero is a reportable no-op:
// the stake keeps its accrual anchor so nothing is forfeited, and the
// zero-paid event still fires.
func (e *Engine) Claim(owner crypto.Address, id uint64, now time.Time) (*ClaimResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	stake, err := e.activeStake(owner, id)
	if err != nil {
		return nil, err
	}
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	plan, ok := pool.Plan(stake.PlanID)
	if !ok {
		return nil, errUnknownPlan
	}

	elapsed := now.Unix() - stake.LastAccrualTime
	requested := AccrualReward(stake.Principal, plan.ApyBps, elapsed)
	source := rewards.NewSource(pool.RewardPool)
	paid := source.Disburse(requested)

	result := &ClaimResult{StakeID: id, Requested: requested, Paid: paid}
	var ownerKey [20]byte
	copy(ownerKey[:], owner.Bytes())

	if paid.Sign() == 0 {
		events.Append(e.state, events.StakeClaimed{
			Owner:     ownerKey,
			StakeID:   id,
			Requested: new(big.Int).Set(requested),
			Paid:      big.NewInt(0),
		})
		return result, nil
	}

	ownerAcc, err := e.state.GetAccount(owner)
	if err != nil {
		return nil, err
	}
	moduleAcc, err := e.state.GetAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	moduleAcc.Sub(coretypes.CurrencyHLS, paid)
	ownerAcc.Add(coretypes.CurrencyHLS, paid)
	pool.RewardPool = source.Available()
	stake.LastAccrualTime = now.Unix()

	if err := e.state.PutAccount(owner, ownerAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutStake(stake); err != nil {
		return nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}

	events.Append(e.state, events.PoolDrawn{
		Amount:  new(big.Int).Set(paid),
		Balance: new(big.Int).Set(pool.RewardPool),
	})
	events.Append(e.state, events.StakeClaimed{
		Owner:     ownerKey,
		StakeID:   id,
		Requested: new(big.Int).Set(requested),
		Paid:      new(big.Int).Set(paid),
	})
	return result, nil
}

// Withdraw settles a stake once its lock has expired: the final accrual plus
// the plan's one-time completion bonus are clamped as a sum to the pool, the
// principal is returned in full regardless, and the stake closes for good.
func (e *Engine) Withdraw(owner crypto.Address, id uint64, now time.Time) (*WithdrawResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	stake, err := e.activeStake(owner, id)
	if err != nil {
		return nil, err
	}
	if stake.Locked(now) {
		return nil, errStakeLocked
	}
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	plan, ok := pool.Plan(stake.PlanID)
	if !ok {
		return nil, errUnknownPlan
	}

	elapsed := now.Unix() - stake.LastAccrualTime
	requested := AccrualReward(stake.Principal, plan.ApyBps, elapsed)
	requested = requested.Add(requested, CompletionBonus(stake.Principal, plan.BonusBps))
	source := rewards.NewSource(pool.RewardPool)
	paid := source.Disburse(requested)

	ownerAcc, err := e.state.GetAccount(owner)
	if err != nil {
		return nil, err
	}
	moduleAcc, err := e.state.GetAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}

	payout := new(big.Int).Add(stake.Principal, paid)
	moduleAcc.Sub(coretypes.CurrencyHLS, payout)
	ownerAcc.Add(coretypes.CurrencyHLS, payout)
	pool.RewardPool = source.Available()
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, stake.Principal)
	if pool.TotalStaked.Sign() < 0 {
		pool.TotalStaked = big.NewInt(0)
	}
	stake.LastAccrualTime = now.Unix()
	stake.Active = false

	if err := e.state.PutAccount(owner, ownerAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutStake(stake); err != nil {
		return nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}

	var ownerKey [20]byte
	copy(ownerKey[:], owner.Bytes())
	if paid.Sign() > 0 {
		events.Append(e.state, events.PoolDrawn{
			Amount:  new(big.Int).Set(paid),
			Balance: new(big.Int).Set(pool.RewardPool),
		})
	}
	events.Append(e.state, events.StakeClosed{
		Owner:     ownerKey,
		StakeID:   id,
		Principal: new(big.Int).Set(stake.Principal),
		Requested: new(big.Int).Set(requested),
		Paid:      new(big.Int).Set(paid),
	})
	return &WithdrawResult{
		StakeID:   id,
		Principal: new(big.Int).Set(stake.Principal),
		Requested: requested,
		Paid:      paid,
	}, nil
}

// FundPool moves HLS from the funder into pool custody and raises the
// reward balance.
func (e *Engine) FundPool(funder crypto.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if funder.IsZero() {
		return nil, errInvalidOwner
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	funderAcc, err := e.state.GetAccount(funder)
	if err != nil {
		return nil, err
	}
	if funderAcc.Balance(coretypes.CurrencyHLS).Cmp(amount) < 0 {
		return nil, errInsufficientHLS
	}
	moduleAcc, err := e.state.GetAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}

	funderAcc.Sub(coretypes.CurrencyHLS, amount)
	moduleAcc.Add(coretypes.CurrencyHLS, amount)
	pool.RewardPool = rewards.NewSource(pool.RewardPool).Fund(amount)

	if err := e.state.PutAccount(funder, funderAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}

	var funderKey [20]byte
	copy(funderKey[:], funder.Bytes())
	events.Append(e.state, events.PoolFunded{
		Funder:  funderKey,
		Amount:  new(big.Int).Set(amount),
		Balance: new(big.Int).Set(pool.RewardPool),
	})
	return new(big.Int).Set(pool.RewardPool), nil
}

// SweepPool is the emergency drain: unlike reward disbursement it is
// all-or-nothing, rejecting sweeps the pool cannot cover in full.
func (e *Engine) SweepPool(recipient crypto.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if recipient.IsZero() {
		return nil, errInvalidOwner
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	if pool.RewardPool.Cmp(amount) < 0 {
		return nil, errInsufficientPool
	}
	moduleAcc, err := e.state.GetAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	recipientAcc, err := e.state.GetAccount(recipient)
	if err != nil {
		return nil, err
	}

	pool.RewardPool = new(big.Int).Sub(pool.RewardPool, amount)
	moduleAcc.Sub(coretypes.CurrencyHLS, amount)
	recipientAcc.Add(coretypes.CurrencyHLS, amount)

	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(recipient, recipientAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}

	var recipientKey [20]byte
	copy(recipientKey[:], recipient.Bytes())
	events.Append(e.state, events.PoolSwept{
		Recipient: recipientKey,
		Amount:    new(big.Int).Set(amount),
		Balance:   new(big.Int).Set(pool.RewardPool),
	})
	return new(big.Int).Set(pool.RewardPool), nil
}

// SetPlan inserts or revises a plan. Existing stakes pick up the change on
// their next accrual window.
func (e *Engine) SetPlan(plan Plan) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	pool, err := e.pool()
	if err != nil {
		return err
	}
	pool.SetPlan(plan)
	if err := e.state.PutStakingPool(pool); err != nil {
		return err
	}
	events.Append(e.state, events.StakePlanUpdated{
		PlanID:   plan.ID,
		ApyBps:   plan.ApyBps,
		BonusBps: plan.BonusBps,
		Enabled:  plan.Enabled,
	})
	return nil
}

// Plans returns the live plan table.
func (e *Engine) Plans() ([]Plan, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	return append([]Plan(nil), pool.Plans...), nil
}

// Pool returns a copy of the staking aggregate for queries.
func (e *Engine) Pool() (*PoolState, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	return &PoolState{
		RewardPool:  new(big.Int).Set(pool.RewardPool),
		TotalStaked: new(big.Int).Set(pool.TotalStaked),
		Plans:       append([]Plan(nil), pool.Plans...),
	}, nil
}

// Get returns one stake.
func (e *Engine) Get(owner crypto.Address, id uint64) (*Stake, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stake, err := e.state.GetStake(owner, id)
	if err != nil {
		return nil, err
	}
	if stake == nil {
		return nil, errStakeNotFound
	}
	return stake.Normalize(), nil
}

// List returns every stake of the owner, open and closed.
func (e *Engine) List(owner crypto.Address) ([]*Stake, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stakes, err := e.state.ListStakes(owner)
	if err != nil {
		return nil, err
	}
	for _, stake := range stakes {
		stake.Normalize()
	}
	return stakes, nil
}

func (e *Engine) activeStake(owner crypto.Address, id uint64) (*Stake, error) {
	if owner.IsZero() {
		return nil, errInvalidOwner
	}
	stake, err := e.state.GetStake(owner, id)
	if err != nil {
		return nil, err
	}
	if stake == nil {
		return nil, errStakeNotFound
	}
	if !stake.Active {
		return nil, errStakeClosed
	}
	return stake.Normalize(), nil
}

func (e *Engine) pool() (*PoolState, error) {
	pool, err := e.state.StakingPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = NewPoolState(DefaultPlans())
	}
	return pool.Normalize(), nil
}

// ModuleAddress returns the custody address for principal and pool funds.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}
