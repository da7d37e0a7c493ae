package domain

import "github.com/shopspring/decimal"

// Account identifies a party in a payment medium (buyer, sink, escrow).
// Identity management is the embedder's problem; here it is just a name.
type Account string

// MediumTraits classifies a payment medium's behavior during Transfer.
// Either flag set makes the medium ineligible for configuration.
type MediumTraits struct {
	// RecipientCallbacks: the medium can run recipient-controlled logic
	// while the transfer is in flight (pre-mutation reentrancy vector).
	RecipientCallbacks bool `json:"recipient_callbacks"`

	// FeeOnTransfer: the medium may deliver less than the requested amount.
	FeeOnTransfer bool `json:"fee_on_transfer"`
}

// Safe reports whether the medium belongs to the accepted safety class.
func (t MediumTraits) Safe() bool {
	return !t.RecipientCallbacks && !t.FeeOnTransfer
}

// PaymentConfig is the single active payment triple. It is replaced
// wholesale on every administrative change, never mutated in place.
type PaymentConfig struct {
	Medium PaymentMedium
	Price  decimal.Decimal
	Sink   Account
}

// Configured reports whether a medium has been set at all.
func (c PaymentConfig) Configured() bool {
	return c.Medium != nil
}
