package events

import (
	"math/big"
	"strconv"

	"helios/core/types"
	"helios/crypto"
)

const (
	// TypeSalePurchaseCompleted is emitted after a purchase settles.
	TypeSalePurchaseCompleted = "sale.purchaseCompleted"
	// TypeSalePurchaseSkipped records a passive-receipt purchase that was
	// skipped while the funds were retained.
	TypeSalePurchaseSkipped = "sale.purchaseSkipped"
	// TypeSaleStageAdvanced signals the active stage cursor moving forward.
	TypeSaleStageAdvanced = "sale.stageAdvanced"
	// TypeSaleClosed is emitted once when the global cap is reached or the
	// sale is stopped by the administrator.
	TypeSaleClosed = "sale.closed"
	// TypeSaleStagePriceUpdated records an administrator price revision.
	TypeSaleStagePriceUpdated = "sale.stagePriceUpdated"
)

// PurchaseCompleted captures a settled purchase.
type PurchaseCompleted struct {
	Buyer    [20]byte
	Currency types.Currency
	Paid     *big.Int
	Units    *big.Int
	USDValue *big.Int
}

// EventType satisfies the Event interface.
func (PurchaseCompleted) EventType() string { return TypeSalePurchaseCompleted }

// Event converts the structured payload into a broadcastable event.
func (e PurchaseCompleted) Event() *types.Event {
	return &types.Event{Type: TypeSalePurchaseCompleted, Attributes: map[string]string{
		"buyer":    crypto.MustNewAddress(crypto.HLSPrefix, e.Buyer[:]).String(),
		"currency": string(e.Currency),
		"paid":     formatAmount(e.Paid),
		"units":    formatAmount(e.Units),
		"usd":      formatAmount(e.USDValue),
	}}
}

// PurchaseSkipped captures a passive-receipt purchase that degraded
// silently: the payment was kept, no units were issued.
type PurchaseSkipped struct {
	Buyer    [20]byte
	Currency types.Currency
	Paid     *big.Int
	Reason   string
}

// EventType satisfies the Event interface.
func (PurchaseSkipped) EventType() string { return TypeSalePurchaseSkipped }

// Event converts the structured payload into a broadcastable event.
func (e PurchaseSkipped) Event() *types.Event {
	return &types.Event{Type: TypeSalePurchaseSkipped, Attributes: map[string]string{
		"buyer":    crypto.MustNewAddress(crypto.HLSPrefix, e.Buyer[:]).String(),
		"currency": string(e.Currency),
		"paid":     formatAmount(e.Paid),
		"reason":   e.Reason,
	}}
}

// StageAdvanced captures the ladder cursor moving to a new stage.
type StageAdvanced struct {
	OldStage uint8
	NewStage uint8
	NewPrice *big.Int
}

// EventType satisfies the Event interface.
func (StageAdvanced) EventType() string { return TypeSaleStageAdvanced }

// Event converts the structured payload into a broadcastable event.
func (e StageAdvanced) Event() *types.Event {
	attrs := map[string]string{
		"oldStage": strconv.FormatUint(uint64(e.OldStage), 10),
		"newStage": strconv.FormatUint(uint64(e.NewStage), 10),
	}
	if e.NewPrice != nil {
		attrs["newPrice"] = e.NewPrice.String()
	}
	return &types.Event{Type: TypeSaleStageAdvanced, Attributes: attrs}
}

// SaleClosed marks the terminal closing of the sale.
type SaleClosed struct {
	UnitsSold *big.Int
	RaisedUSD *big.Int
}

// EventType satisfies the Event interface.
func (SaleClosed) EventType() string { return TypeSaleClosed }

// Event converts the structured payload into a broadcastable event.
func (e SaleClosed) Event() *types.Event {
	return &types.Event{Type: TypeSaleClosed, Attributes: map[string]string{
		"unitsSold": formatAmount(e.UnitsSold),
		"raisedUSD": formatAmount(e.RaisedUSD),
	}}
}

// StagePriceUpdated records an administrator revising a stage price.
type StagePriceUpdated struct {
	Stage    uint8
	OldPrice *big.Int
	NewPrice *big.Int
}

// EventType satisfies the Event interface.
func (StagePriceUpdated) EventType() string { return TypeSaleStagePriceUpdated }

// Event converts the structured payload into a broadcastable event.
func (e StagePriceUpdated) Event() *types.Event {
	return &types.Event{Type: TypeSaleStagePriceUpdated, Attributes: map[string]string{
		"stage":    strconv.FormatUint(uint64(e.Stage), 10),
		"oldPrice": formatAmount(e.OldPrice),
		"newPrice": formatAmount(e.NewPrice),
	}}
}
