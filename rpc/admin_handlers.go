package rpc

import (
	"math/big"
	"time"

	"helios/native/pricefeed"
	"helios/native/staking"
)

type setStagePriceParams struct {
	Stage    uint8  `json:"stage"`
	PriceUSD string `json:"priceUSD"`
}

func (s *Server) handleSetStagePrice(req *rpcRequest) (interface{}, *rpcError) {
	var params setStagePriceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmount(params.PriceUSD)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.SetStagePrice(params.Stage, price); err != nil {
		return nil, serverError(err)
	}
	return true, nil
}

type setSaleOpenParams struct {
	Open bool `json:"open"`
}

func (s *Server) handleSetSaleOpen(req *rpcRequest) (interface{}, *rpcError) {
	var params setSaleOpenParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.SetSaleOpen(params.Open); err != nil {
		return nil, serverError(err)
	}
	return true, nil
}

type setMinPurchaseParams struct {
	MinPurchaseUSD string `json:"minPurchaseUSD"`
}

func (s *Server) handleSetMinPurchase(req *rpcRequest) (interface{}, *rpcError) {
	var params setMinPurchaseParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	minimum, rpcErr := parseAmount(params.MinPurchaseUSD)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.SetMinPurchaseUSD(minimum); err != nil {
		return nil, serverError(err)
	}
	return true, nil
}

type setPlanParams struct {
	ID       uint8  `json:"id"`
	LockDays uint32 `json:"lockDays"`
	ApyBps   uint64 `json:"apyBps"`
	BonusBps uint64 `json:"bonusBps"`
	Enabled  bool   `json:"enabled"`
}

func (s *Server) handleSetPlan(req *rpcRequest) (interface{}, *rpcError) {
	var params setPlanParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	plan := staking.Plan{
		ID:           params.ID,
		LockDuration: time.Duration(params.LockDays) * 24 * time.Hour,
		ApyBps:       params.ApyBps,
		BonusBps:     params.BonusBps,
		Enabled:      params.Enabled,
	}
	if err := s.ledger.SetPlan(plan); err != nil {
		return nil, serverError(err)
	}
	return true, nil
}

type amountParams struct {
	Amount string `json:"amount"`
}

type poolBalanceResult struct {
	Balance string `json:"balance"`
}

func (s *Server) handleFundPool(req *rpcRequest) (interface{}, *rpcError) {
	var params amountParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.ledger.FundPool(amount)
	if err != nil {
		return nil, serverError(err)
	}
	return poolBalanceResult{Balance: formatAmount(balance)}, nil
}

func (s *Server) handleSweepPool(req *rpcRequest) (interface{}, *rpcError) {
	var params amountParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.ledger.SweepPool(amount)
	if err != nil {
		return nil, serverError(err)
	}
	return poolBalanceResult{Balance: formatAmount(balance)}, nil
}

func (s *Server) handleFundAllowance(req *rpcRequest) (interface{}, *rpcError) {
	var params amountParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.ledger.FundAllowance(amount)
	if err != nil {
		return nil, serverError(err)
	}
	return poolBalanceResult{Balance: formatAmount(balance)}, nil
}

type setPrivilegedParams struct {
	Address    string `json:"address"`
	Privileged bool   `json:"privileged"`
}

func (s *Server) handleSetPrivileged(req *rpcRequest) (interface{}, *rpcError) {
	var params setPrivilegedParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.SetPrivileged(addr, params.Privileged); err != nil {
		return nil, serverError(err)
	}
	return true, nil
}

type setTierOverrideParams struct {
	Address string `json:"address"`
	RateBps uint64 `json:"rateBps"`
}

func (s *Server) handleSetTierOverride(req *rpcRequest) (interface{}, *rpcError) {
	var params setTierOverrideParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.SetTierOverride(addr, params.RateBps); err != nil {
		return nil, serverError(err)
	}
	return true, nil
}

type setPausedParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleSetPaused(req *rpcRequest) (interface{}, *rpcError) {
	var params setPausedParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.SetPaused(params.Module, params.Paused); err != nil {
		return nil, serverError(err)
	}
	return true, nil
}

func (s *Server) handlePauses(*rpcRequest) (interface{}, *rpcError) {
	return s.ledger.Pauses(), nil
}

type setOracleRoundParams struct {
	RoundID         uint64 `json:"roundId"`
	Answer          string `json:"answer"`
	UpdatedAt       int64  `json:"updatedAt"`
	AnsweredInRound uint64 `json:"answeredInRound"`
}

func (s *Server) handleSetOracleRound(req *rpcRequest) (interface{}, *rpcError) {
	var params setOracleRoundParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	answer, ok := new(big.Int).SetString(params.Answer, 10)
	if !ok {
		return nil, &rpcError{Code: codeInvalidParams, Message: "answer must be a decimal string"}
	}
	round := pricefeed.RoundData{
		RoundID:         params.RoundID,
		Answer:          answer,
		UpdatedAt:       params.UpdatedAt,
		AnsweredInRound: params.AnsweredInRound,
	}
	if round.UpdatedAt == 0 {
		round.UpdatedAt = time.Now().Unix()
	}
	if round.AnsweredInRound == 0 {
		round.AnsweredInRound = round.RoundID
	}
	if err := s.ledger.SetOracleRound(round); err != nil {
		return nil, serverError(err)
	}
	return true, nil
}
