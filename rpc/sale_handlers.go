package rpc

import (
	"time"

	coretypes "helios/core/types"
	"helios/native/affiliate"
	"helios/native/sale"
)

type quoteParams struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type quoteResult struct {
	Units       string `json:"units"`
	USDValue    string `json:"usdValue"`
	ActiveStage uint8  `json:"activeStage"`
	ActivePrice string `json:"activePrice,omitempty"`
}

func (s *Server) handleSaleQuote(req *rpcRequest) (interface{}, *rpcError) {
	var params quoteParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	units, usdValue, err := s.ledger.Quote(coretypes.Currency(params.Currency), amount, time.Now())
	if err != nil {
		return nil, serverError(err)
	}
	info, err := s.ledger.SaleInfo()
	if err != nil {
		return nil, serverError(err)
	}
	result := quoteResult{
		Units:       formatAmount(units),
		USDValue:    formatAmount(usdValue),
		ActiveStage: info.ActiveStage,
	}
	if price := info.ActivePrice(); price != nil {
		result.ActivePrice = price.String()
	}
	return result, nil
}

type buyNativeParams struct {
	Buyer     string `json:"buyer"`
	Referrer  string `json:"referrer,omitempty"`
	AmountWei string `json:"amountWei"`
}

type buyStableParams struct {
	Buyer    string `json:"buyer"`
	Referrer string `json:"referrer,omitempty"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
}

type directTransferParams struct {
	Buyer    string `json:"buyer"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type receiptResult struct {
	Buyer      string            `json:"buyer"`
	Currency   string            `json:"currency"`
	Paid       string            `json:"paid"`
	Units      string            `json:"units"`
	USDValue   string            `json:"usdValue"`
	Skipped    bool              `json:"skipped,omitempty"`
	SkipReason string            `json:"skipReason,omitempty"`
	Commission *commissionResult `json:"commission,omitempty"`
}

type commissionResult struct {
	Outcome  string `json:"outcome"`
	Amount   string `json:"amount"`
	Currency string `json:"currency,omitempty"`
	RateBps  uint64 `json:"rateBps"`
	Reason   string `json:"reason,omitempty"`
}

func renderReceipt(receipt *sale.Receipt) receiptResult {
	result := receiptResult{
		Buyer:      receipt.Buyer.String(),
		Currency:   string(receipt.Currency),
		Paid:       formatAmount(receipt.Paid),
		Units:      formatAmount(receipt.Units),
		USDValue:   formatAmount(receipt.USDValue),
		Skipped:    receipt.Skipped,
		SkipReason: receipt.SkipReason,
	}
	if receipt.Commission != nil && receipt.Commission.Outcome != affiliate.OutcomeNone {
		outcome := "paid"
		if receipt.Commission.Outcome == affiliate.OutcomeSkipped {
			outcome = "skipped"
		}
		result.Commission = &commissionResult{
			Outcome:  outcome,
			Amount:   formatAmount(receipt.Commission.Amount),
			Currency: string(receipt.Commission.Currency),
			RateBps:  receipt.Commission.RateBps,
			Reason:   receipt.Commission.Reason,
		}
	}
	return result
}

func (s *Server) handleBuyNative(req *rpcRequest) (interface{}, *rpcError) {
	var params buyNativeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	buyer, rpcErr := parseAddress(params.Buyer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	referrer, rpcErr := parseOptionalAddress(params.Referrer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.AmountWei)
	if rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.ledger.BuyWithNative(buyer, referrer, amount, time.Now())
	if err != nil {
		return nil, serverError(err)
	}
	return renderReceipt(receipt), nil
}

func (s *Server) handleBuyStable(req *rpcRequest) (interface{}, *rpcError) {
	var params buyStableParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	buyer, rpcErr := parseAddress(params.Buyer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	referrer, rpcErr := parseOptionalAddress(params.Referrer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.ledger.BuyWithStable(buyer, referrer, coretypes.Currency(params.Token), amount, time.Now())
	if err != nil {
		return nil, serverError(err)
	}
	return renderReceipt(receipt), nil
}

func (s *Server) handleDirectTransfer(req *rpcRequest) (interface{}, *rpcError) {
	var params directTransferParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	buyer, rpcErr := parseAddress(params.Buyer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.ledger.HandleDirectTransfer(buyer, coretypes.Currency(params.Currency), amount, time.Now())
	if err != nil {
		return nil, serverError(err)
	}
	return renderReceipt(receipt), nil
}

type stageResult struct {
	Capacity string `json:"capacity"`
	PriceUSD string `json:"priceUSD"`
	Consumed string `json:"consumed"`
}

type saleInfoResult struct {
	Stages         []stageResult `json:"stages"`
	ActiveStage    uint8         `json:"activeStage"`
	ActivePrice    string        `json:"activePrice,omitempty"`
	UnitsSold      string        `json:"unitsSold"`
	RaisedUSD      string        `json:"raisedUSD"`
	RaisedNative   string        `json:"raisedNative"`
	RaisedUSDT     string        `json:"raisedUSDT"`
	RaisedUSDC     string        `json:"raisedUSDC"`
	Open           bool          `json:"open"`
	SaleCapUnits   string        `json:"saleCapUnits"`
	MinPurchaseUSD string        `json:"minPurchaseUSD"`
}

func (s *Server) handleSaleInfo(*rpcRequest) (interface{}, *rpcError) {
	info, err := s.ledger.SaleInfo()
	if err != nil {
		return nil, serverError(err)
	}
	result := saleInfoResult{
		ActiveStage:    info.ActiveStage,
		UnitsSold:      formatAmount(info.UnitsSold),
		RaisedUSD:      formatAmount(info.RaisedUSD),
		RaisedNative:   formatAmount(info.RaisedNative),
		RaisedUSDT:     formatAmount(info.RaisedUSDT),
		RaisedUSDC:     formatAmount(info.RaisedUSDC),
		Open:           info.Open,
		SaleCapUnits:   formatAmount(info.SaleCapUnits),
		MinPurchaseUSD: formatAmount(info.MinPurchaseUSD),
	}
	if price := info.ActivePrice(); price != nil {
		result.ActivePrice = price.String()
	}
	for _, stage := range info.Stages {
		result.Stages = append(result.Stages, stageResult{
			Capacity: formatAmount(stage.Capacity),
			PriceUSD: formatAmount(stage.PriceUSD),
			Consumed: formatAmount(stage.Consumed),
		})
	}
	return result, nil
}

type affiliateGetParams struct {
	Address string `json:"address"`
}

type affiliateResult struct {
	Address               string `json:"address"`
	Tier                  string `json:"tier"`
	RateBps               uint64 `json:"rateBps"`
	LifetimeAttributedUSD string `json:"lifetimeAttributedUSD"`
	TokenRewards          string `json:"tokenRewards"`
	RewardsNative         string `json:"rewardsNative"`
	RewardsUSDT           string `json:"rewardsUSDT"`
	RewardsUSDC           string `json:"rewardsUSDC"`
	ReferralCount         uint64 `json:"referralCount"`
	Privileged            bool   `json:"privileged"`
	TierOverrideBps       uint64 `json:"tierOverrideBps,omitempty"`
}

func (s *Server) handleAffiliateGet(req *rpcRequest) (interface{}, *rpcError) {
	var params affiliateGetParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.ledger.AffiliateGet(addr)
	if err != nil {
		return nil, serverError(err)
	}
	tier := affiliate.TierForVolume(record.LifetimeAttributedUSD)
	rate := affiliate.RateForVolume(record.LifetimeAttributedUSD)
	if record.TierOverrideBps > rate {
		rate = record.TierOverrideBps
	}
	return affiliateResult{
		Address:               record.Address.String(),
		Tier:                  tier.Name,
		RateBps:               rate,
		LifetimeAttributedUSD: formatAmount(record.LifetimeAttributedUSD),
		TokenRewards:          formatAmount(record.TokenRewards),
		RewardsNative:         formatAmount(record.RewardsNative),
		RewardsUSDT:           formatAmount(record.RewardsUSDT),
		RewardsUSDC:           formatAmount(record.RewardsUSDC),
		ReferralCount:         record.ReferralCount,
		Privileged:            record.Privileged,
		TierOverrideBps:       record.TierOverrideBps,
	}, nil
}

type eventsRecentParams struct {
	Limit int `json:"limit"`
}

type eventResult struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Server) handleEventsRecent(req *rpcRequest) (interface{}, *rpcError) {
	params := eventsRecentParams{}
	if len(req.Params) > 0 {
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	events := s.ledger.RecentEvents(params.Limit)
	out := make([]eventResult, 0, len(events))
	for _, evt := range events {
		out = append(out, eventResult{Type: evt.Type, Attributes: evt.Attributes})
	}
	return out, nil
}
