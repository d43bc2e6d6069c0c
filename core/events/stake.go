package events

import (
	"math/big"
	"strconv"

	"helios/core/types"
	"helios/crypto"
)

const (
	// TypeStakeOpened is emitted when a deposit creates a stake.
	TypeStakeOpened = "stake.opened"
	// TypeStakeClaimed is emitted for reward claims on open stakes.
	TypeStakeClaimed = "stake.claimed"
	// TypeStakeClosed is emitted exactly once, on withdrawal.
	TypeStakeClosed = "stake.closed"
	// TypeStakePlanUpdated records an administrator plan revision.
	TypeStakePlanUpdated = "stake.planUpdated"
	// TypePoolFunded is emitted when the reward pool is topped up.
	TypePoolFunded = "pool.funded"
	// TypePoolDrawn is emitted for every reward-pool disbursement.
	TypePoolDrawn = "pool.drawn"
	// TypePoolSwept records an emergency sweep of pool funds.
	TypePoolSwept = "pool.swept"
)

// StakeOpened captures a new deposit.
type StakeOpened struct {
	Owner     [20]byte
	StakeID   uint64
	PlanID    uint8
	Principal *big.Int
	LockEnd   uint64
}

// EventType satisfies the Event interface.
func (StakeOpened) EventType() string { return TypeStakeOpened }

// Event converts the structured payload into a broadcastable event.
func (e StakeOpened) Event() *types.Event {
	return &types.Event{Type: TypeStakeOpened, Attributes: map[string]string{
		"owner":     crypto.MustNewAddress(crypto.HLSPrefix, e.Owner[:]).String(),
		"stakeId":   strconv.FormatUint(e.StakeID, 10),
		"planId":    strconv.FormatUint(uint64(e.PlanID), 10),
		"principal": formatAmount(e.Principal),
		"lockEnd":   strconv.FormatUint(e.LockEnd, 10),
	}}
}

// StakeClaimed captures a reward claim, including zero-payout claims so the
// clamp is observable off-ledger.
type StakeClaimed struct {
	Owner     [20]byte
	StakeID   uint64
	Requested *big.Int
	Paid      *big.Int
}

// EventType satisfies the Event interface.
func (StakeClaimed) EventType() string { return TypeStakeClaimed }

// Event converts the structured payload into a broadcastable event.
func (e StakeClaimed) Event() *types.Event {
	return &types.Event{Type: TypeStakeClaimed, Attributes: map[string]string{
		"owner":     crypto.MustNewAddress(crypto.HLSPrefix, e.Owner[:]).String(),
		"stakeId":   strconv.FormatUint(e.StakeID, 10),
		"requested": formatAmount(e.Requested),
		"paid":      formatAmount(e.Paid),
	}}
}

// StakeClosed captures the terminal withdrawal of a stake.
type StakeClosed struct {
	Owner     [20]byte
	StakeID   uint64
	Principal *big.Int
	Requested *big.Int
	Paid      *big.Int
}

// EventType satisfies the Event interface.
func (StakeClosed) EventType() string { return TypeStakeClosed }

// Event converts the structured payload into a broadcastable event.
func (e StakeClosed) Event() *types.Event {
	return &types.Event{Type: TypeStakeClosed, Attributes: map[string]string{
		"owner":     crypto.MustNewAddress(crypto.HLSPrefix, e.Owner[:]).String(),
		"stakeId":   strconv.FormatUint(e.StakeID, 10),
		"principal": formatAmount(e.Principal),
		"requested": formatAmount(e.Requested),
		"paid":      formatAmount(e.Paid),
	}}
}

// StakePlanUpdated records a live plan parameter change.
type StakePlanUpdated struct {
	PlanID   uint8
	ApyBps   uint64
	BonusBps uint64
	Enabled  bool
}

// EventType satisfies the Event interface.
func (StakePlanUpdated) EventType() string { return TypeStakePlanUpdated }

// Event converts the structured payload into a broadcastable event.
func (e StakePlanUpdated) Event() *types.Event {
	return &types.Event{Type: TypeStakePlanUpdated, Attributes: map[string]string{
		"planId":   strconv.FormatUint(uint64(e.PlanID), 10),
		"apyBps":   strconv.FormatUint(e.ApyBps, 10),
		"bonusBps": strconv.FormatUint(e.BonusBps, 10),
		"enabled":  strconv.FormatBool(e.Enabled),
	}}
}

// PoolFunded captures an administrator deposit into the reward pool.
type PoolFunded struct {
	Funder  [20]byte
	Amount  *big.Int
	Balance *big.Int
}

// EventType satisfies the Event interface.
func (PoolFunded) EventType() string { return TypePoolFunded }

// Event converts the structured payload into a broadcastable event.
func (e PoolFunded) Event() *types.Event {
	return &types.Event{Type: TypePoolFunded, Attributes: map[string]string{
		"funder":  crypto.MustNewAddress(crypto.HLSPrefix, e.Funder[:]).String(),
		"amount":  formatAmount(e.Amount),
		"balance": formatAmount(e.Balance),
	}}
}

// PoolDrawn captures a reward-pool disbursement.
type PoolDrawn struct {
	Amount  *big.Int
	Balance *big.Int
}

// EventType satisfies the Event interface.
func (PoolDrawn) EventType() string { return TypePoolDrawn }

// Event converts the structured payload into a broadcastable event.
func (e PoolDrawn) Event() *types.Event {
	return &types.Event{Type: TypePoolDrawn, Attributes: map[string]string{
		"amount":  formatAmount(e.Amount),
		"balance": formatAmount(e.Balance),
	}}
}

// PoolSwept captures an emergency sweep back to the administrator.
type PoolSwept struct {
	Recipient [20]byte
	Amount    *big.Int
	Balance   *big.Int
}

// EventType satisfies the Event interface.
func (PoolSwept) EventType() string { return TypePoolSwept }

// Event converts the structured payload into a broadcastable event.
func (e PoolSwept) Event() *types.Event {
	return &types.Event{Type: TypePoolSwept, Attributes: map[string]string{
		"recipient": crypto.MustNewAddress(crypto.HLSPrefix, e.Recipient[:]).String(),
		"amount":    formatAmount(e.Amount),
		"balance":   formatAmount(e.Balance),
	}}
}
