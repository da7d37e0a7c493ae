package handler

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"vend_go/internal/domain"
)

// Payout is the native-payout handler: the key is a decimal amount in
// text form, paid from a fixed treasury account.
type Payout struct {
	bank     *domain.BalanceBook
	treasury domain.Account
}

// NewPayout creates a payout handler drawing on treasury.
func NewPayout(bank *domain.BalanceBook, treasury domain.Account) *Payout {
	return &Payout{bank: bank, treasury: treasury}
}

// Name implements domain.FulfillmentHandler.
func (h *Payout) Name() string { return "payout" }

// Fulfill implements domain.FulfillmentHandler.
func (h *Payout) Fulfill(ctx context.Context, key []byte, recipient domain.Account) error {
	amount, err := decimal.NewFromString(string(key))
	if err != nil {
		return fmt.Errorf("malformed payout key %q: %w", string(key), err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("payout amount must be positive: %s", amount)
	}
	return h.bank.Move(h.treasury, recipient, amount)
}
