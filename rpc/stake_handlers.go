package rpc

import (
	"time"

	"helios/native/staking"
)

type stakeCreateParams struct {
	Owner  string `json:"owner"`
	PlanID uint8  `json:"planId"`
	Amount string `json:"amount"`
}

type stakeOpParams struct {
	Owner   string `json:"owner"`
	StakeID uint64 `json:"stakeId"`
}

type stakeResult struct {
	Owner           string `json:"owner"`
	StakeID         uint64 `json:"stakeId"`
	PlanID          uint8  `json:"planId"`
	Principal       string `json:"principal"`
	StartTime       int64  `json:"startTime"`
	LockEndTime     int64  `json:"lockEndTime"`
	LastAccrualTime int64  `json:"lastAccrualTime"`
	Active          bool   `json:"active"`
}

func renderStake(stake *staking.Stake) stakeResult {
	return stakeResult{
		Owner:           stake.Owner.String(),
		StakeID:         stake.ID,
		PlanID:          stake.PlanID,
		Principal:       formatAmount(stake.Principal),
		StartTime:       stake.StartTime,
		LockEndTime:     stake.LockEndTime,
		LastAccrualTime: stake.LastAccrualTime,
		Active:          stake.Active,
	}
}

func (s *Server) handleStakeCreate(req *rpcRequest) (interface{}, *rpcError) {
	var params stakeCreateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddress(params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	stake, err := s.ledger.StakeCreate(owner, params.PlanID, amount, time.Now())
	if err != nil {
		return nil, serverError(err)
	}
	return renderStake(stake), nil
}

type claimResult struct {
	StakeID   uint64 `json:"stakeId"`
	Requested string `json:"requested"`
	Paid      string `json:"paid"`
}

func (s *Server) handleStakeClaim(req *rpcRequest) (interface{}, *rpcError) {
	var params stakeOpParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddress(params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, err := s.ledger.StakeClaim(owner, params.StakeID, time.Now())
	if err != nil {
		return nil, serverError(err)
	}
	return claimResult{
		StakeID:   result.StakeID,
		Requested: formatAmount(result.Requested),
		Paid:      formatAmount(result.Paid),
	}, nil
}

type withdrawResult struct {
	StakeID   uint64 `json:"stakeId"`
	Principal string `json:"principal"`
	Requested string `json:"requested"`
	Paid      string `json:"paid"`
}

func (s *Server) handleStakeWithdraw(req *rpcRequest) (interface{}, *rpcError) {
	var params stakeOpParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddress(params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, err := s.ledger.StakeWithdraw(owner, params.StakeID, time.Now())
	if err != nil {
		return nil, serverError(err)
	}
	return withdrawResult{
		StakeID:   result.StakeID,
		Principal: formatAmount(result.Principal),
		Requested: formatAmount(result.Requested),
		Paid:      formatAmount(result.Paid),
	}, nil
}

type stakeListParams struct {
	Owner string `json:"owner"`
}

func (s *Server) handleStakeList(req *rpcRequest) (interface{}, *rpcError) {
	var params stakeListParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddress(params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	stakes, err := s.ledger.StakeList(owner)
	if err != nil {
		return nil, serverError(err)
	}
	out := make([]stakeResult, 0, len(stakes))
	for _, stake := range stakes {
		out = append(out, renderStake(stake))
	}
	return out, nil
}

type planResult struct {
	ID       uint8  `json:"id"`
	LockDays uint32 `json:"lockDays"`
	ApyBps   uint64 `json:"apyBps"`
	BonusBps uint64 `json:"bonusBps"`
	Enabled  bool   `json:"enabled"`
}

func (s *Server) handleStakePlans(*rpcRequest) (interface{}, *rpcError) {
	plans, err := s.ledger.StakePlans()
	if err != nil {
		return nil, serverError(err)
	}
	out := make([]planResult, 0, len(plans))
	for _, plan := range plans {
		out = append(out, planResult{
			ID:       plan.ID,
			LockDays: uint32(plan.LockDuration / (24 * time.Hour)),
			ApyBps:   plan.ApyBps,
			BonusBps: plan.BonusBps,
			Enabled:  plan.Enabled,
		})
	}
	return out, nil
}
