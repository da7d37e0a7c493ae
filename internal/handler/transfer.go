package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"vend_go/internal/domain"
)

// Grant is one pre-funded delivery: Amount held at Source, waiting for
// a recipient.
type Grant struct {
	Source domain.Account  `json:"source"`
	Amount decimal.Decimal `json:"amount"`
}

// Transfer is the value-transfer-by-lookup handler. At listing time a
// grant is registered under an opaque key; Fulfill moves the granted
// amount from its escrow account to the recipient and retires the
// grant. The engine never sees any of this bookkeeping.
type Transfer struct {
	book *domain.BalanceBook

	mu     sync.Mutex
	grants map[string]Grant
}

// NewTransfer creates a transfer handler over the given balance book.
func NewTransfer(book *domain.BalanceBook) *Transfer {
	return &Transfer{
		book:   book,
		grants: make(map[string]Grant),
	}
}

// Name implements domain.FulfillmentHandler.
func (h *Transfer) Name() string { return "transfer" }

// Register records a grant under a key. Administrative, called when the
// corresponding asset is listed. A key can hold at most one grant.
func (h *Transfer) Register(key []byte, source domain.Account, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("grant amount must be positive: %s", amount)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	k := string(key)
	if _, ok := h.grants[k]; ok {
		return fmt.Errorf("grant already registered for key %q", k)
	}
	h.grants[k] = Grant{Source: source, Amount: amount}
	return nil
}

// Fulfill implements domain.FulfillmentHandler. The grant is retired
// only after the move succeeds, so a failed (and rolled-back) purchase
// leaves it claimable.
func (h *Transfer) Fulfill(ctx context.Context, key []byte, recipient domain.Account) error {
	h.mu.Lock()
	g, ok := h.grants[string(key)]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("no grant registered for key %q", string(key))
	}

	if err := h.book.Move(g.Source, recipient, g.Amount); err != nil {
		return err
	}

	h.mu.Lock()
	delete(h.grants, string(key))
	h.mu.Unlock()
	return nil
}

// Describe implements domain.Describer for off-engine tooling.
func (h *Transfer) Describe(key []byte) ([]byte, string, error) {
	h.mu.Lock()
	g, ok := h.grants[string(key)]
	h.mu.Unlock()
	if !ok {
		return nil, "", fmt.Errorf("no grant registered for key %q", string(key))
	}

	data, err := json.Marshal(g)
	if err != nil {
		return nil, "", err
	}
	return data, "vend.grant.v1", nil
}
