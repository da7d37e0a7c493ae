package medium

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"vend_go/internal/domain"
)

// Token is an in-process ledger token backed by a balance book. It
// delivers exactly what is asked and runs no recipient logic, so it
// sits in the accepted safety class.
type Token struct {
	id   string
	book *domain.BalanceBook
}

// NewToken creates a token medium over the given book.
func NewToken(id string, book *domain.BalanceBook) *Token {
	return &Token{id: id, book: book}
}

// ID implements domain.PaymentMedium.
func (t *Token) ID() string { return t.id }

// Traits implements domain.PaymentMedium.
func (t *Token) Traits() domain.MediumTraits {
	return domain.MediumTraits{}
}

// Transfer implements domain.PaymentMedium.
func (t *Token) Transfer(ctx context.Context, from, to domain.Account, amount decimal.Decimal) error {
	if err := t.book.Move(from, to, amount); err != nil {
		return fmt.Errorf("%s transfer: %w", t.id, err)
	}
	return nil
}

// Book exposes the backing book for funding and balance checks.
func (t *Token) Book() *domain.BalanceBook { return t.book }
