package handler

import (
	"context"
	"fmt"

	"vend_go/internal/domain"
)

// Claimer is the extension point for externally supplied fulfillment.
// Implementations must propagate failure; a silent no-op would strand
// the buyer's payment.
type Claimer interface {
	Claim(ctx context.Context, key []byte, recipient domain.Account) error
}

// ClaimFunc adapts a plain function to Claimer.
type ClaimFunc func(ctx context.Context, key []byte, recipient domain.Account) error

func (f ClaimFunc) Claim(ctx context.Context, key []byte, recipient domain.Account) error {
	return f(ctx, key, recipient)
}

// Claim is the external-claim proxy handler: it forwards (key,
// recipient) to an injected Claimer and owns nothing itself.
type Claim struct {
	name    string
	claimer Claimer
}

// NewClaim creates a claim proxy. name distinguishes multiple proxies
// in events and logs.
func NewClaim(name string, c Claimer) *Claim {
	return &Claim{name: name, claimer: c}
}

// Name implements domain.FulfillmentHandler.
func (h *Claim) Name() string { return h.name }

// Fulfill implements domain.FulfillmentHandler.
func (h *Claim) Fulfill(ctx context.Context, key []byte, recipient domain.Account) error {
	if h.claimer == nil {
		return fmt.Errorf("claim handler %q has no claimer", h.name)
	}
	return h.claimer.Claim(ctx, key, recipient)
}
