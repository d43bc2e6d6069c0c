package staking

import "errors"

var (
	errNilState         = errors.New("staking engine: state not configured")
	errInvalidAmount    = errors.New("staking engine: amount must be positive")
	errInvalidOwner     = errors.New("staking engine: owner address must be set")
	errUnknownPlan      = errors.New("staking engine: unknown plan")
	errPlanDisabled     = errors.New("staking engine: plan disabled")
	errStakeNotFound    = errors.New("staking engine: stake not found")
	errStakeClosed      = errors.New("staking engine: stake already closed")
	errStakeLocked      = errors.New("staking engine: stake still locked")
	errInsufficientHLS  = errors.New("staking engine: insufficient HLS balance")
	errInsufficientPool = errors.New("staking engine: insufficient reward pool")
)
