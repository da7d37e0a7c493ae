package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// FulfillmentHandler delivers a purchased asset to its recipient.
// It is invoked by the engine only after listing state is mutated and
// payment is settled. Implementations own all per-key bookkeeping and
// must fail loudly instead of silently no-oping.
type FulfillmentHandler interface {
	// Name identifies the handler in events and logs.
	Name() string

	// Fulfill delivers the asset described by key to recipient.
	// key is the opaque payload stored at listing time; its structure
	// is private to the handler.
	Fulfill(ctx context.Context, key []byte, recipient Account) error
}

// Describer is an optional handler capability for off-engine tooling.
// The engine never calls it.
type Describer interface {
	Describe(key []byte) (data []byte, schema string, err error)
}

// PaymentMedium moves value between accounts during settlement.
type PaymentMedium interface {
	// ID identifies the medium in events and configuration.
	ID() string

	// Traits reports the medium's safety classification. Media whose
	// traits are not Safe are rejected at configuration time.
	Traits() MediumTraits

	// Transfer moves exactly amount from one account to the other.
	// A short or failed delivery must be reported as an error.
	Transfer(ctx context.Context, from, to Account, amount decimal.Decimal) error
}
