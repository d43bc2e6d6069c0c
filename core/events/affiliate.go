package events

import (
	"math/big"

	"helios/core/types"
	"helios/crypto"
)

const (
	// TypeCommissionPaid is emitted when a referral commission settles.
	TypeCommissionPaid = "affiliate.commissionPaid"
	// TypeCommissionSkipped is emitted when attribution was recorded but
	// the payout step was skipped. It is the observable counterpart of the
	// silent-degrade path.
	TypeCommissionSkipped = "affiliate.commissionSkipped"
)

// CommissionPaid captures a settled referral commission.
type CommissionPaid struct {
	Referrer [20]byte
	Buyer    [20]byte
	Amount   *big.Int
	Currency types.Currency
	RateBps  uint64
}

// EventType satisfies the Event interface.
func (CommissionPaid) EventType() string { return TypeCommissionPaid }

// Event converts the structured payload into a broadcastable event.
func (e CommissionPaid) Event() *types.Event {
	return &types.Event{Type: TypeCommissionPaid, Attributes: map[string]string{
		"referrer": crypto.MustNewAddress(crypto.HLSPrefix, e.Referrer[:]).String(),
		"buyer":    crypto.MustNewAddress(crypto.HLSPrefix, e.Buyer[:]).String(),
		"amount":   formatAmount(e.Amount),
		"currency": string(e.Currency),
		"rateBps":  formatAmount(new(big.Int).SetUint64(e.RateBps)),
	}}
}

// CommissionSkipped captures a payout that degraded to nothing while the
// attribution still advanced.
type CommissionSkipped struct {
	Referrer [20]byte
	Buyer    [20]byte
	Amount   *big.Int
	Currency types.Currency
	Reason   string
}

// EventType satisfies the Event interface.
func (CommissionSkipped) EventType() string { return TypeCommissionSkipped }

// Event converts the structured payload into a broadcastable event.
func (e CommissionSkipped) Event() *types.Event {
	return &types.Event{Type: TypeCommissionSkipped, Attributes: map[string]string{
		"referrer": crypto.MustNewAddress(crypto.HLSPrefix, e.Referrer[:]).String(),
		"buyer":    crypto.MustNewAddress(crypto.HLSPrefix, e.Buyer[:]).String(),
		"amount":   formatAmount(e.Amount),
		"currency": string(e.Currency),
		"reason":   e.Reason,
	}}
}
