package domain

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// BalanceBook holds per-account balances for one in-process medium or
// handler escrow. Insufficient funds is a normal, reportable failure;
// a negative balance is an invariant break and halts.
type BalanceBook struct {
	mu       sync.RWMutex
	balances map[Account]decimal.Decimal
}

// NewBalanceBook creates an empty balance book.
func NewBalanceBook() *BalanceBook {
	return &BalanceBook{
		balances: make(map[Account]decimal.Decimal),
	}
}

// Mint credits freshly created units to an account. Administrative and
// test funding only; there is no corresponding burn.
func (b *BalanceBook) Mint(acct Account, amount decimal.Decimal) {
	requirePositive("MINT", amount)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[acct] = b.balances[acct].Add(amount)
}

// Credit adds funds to an account.
func (b *BalanceBook) Credit(acct Account, amount decimal.Decimal) {
	requirePositive("CREDIT", amount)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[acct] = b.balances[acct].Add(amount)
}

// Debit removes funds from an account. Returns ErrInsufficientFunds if
// the account cannot cover the amount.
func (b *BalanceBook) Debit(acct Account, amount decimal.Decimal) error {
	requirePositive("DEBIT", amount)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.debitLocked(acct, amount)
}

// Move atomically debits one account and credits another. Either both
// sides land or neither does.
func (b *BalanceBook) Move(from, to Account, amount decimal.Decimal) error {
	requirePositive("MOVE", amount)
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.debitLocked(from, amount); err != nil {
		return err
	}
	b.balances[to] = b.balances[to].Add(amount)
	return nil
}

func (b *BalanceBook) debitLocked(acct Account, amount decimal.Decimal) error {
	have := b.balances[acct]
	if have.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientFunds, acct, have, amount)
	}
	b.balances[acct] = have.Sub(amount)
	return nil
}

// Balance returns the current balance of an account (zero if unknown).
func (b *BalanceBook) Balance(acct Account) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[acct]
}

// Snapshot returns a copy of all balances (for state dump).
func (b *BalanceBook) Snapshot() map[Account]decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make(map[Account]decimal.Decimal, len(b.balances))
	for k, v := range b.balances {
		result[k] = v
	}
	return result
}

// VerifyInvariant checks that no balance has gone negative.
func (b *BalanceBook) VerifyInvariant() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for acct, bal := range b.balances {
		if bal.IsNegative() {
			panic(fmt.Sprintf("BALANCE_INVARIANT_NEGATIVE: %s = %s", acct, bal))
		}
	}
}

func requirePositive(op string, amount decimal.Decimal) {
	if amount.IsNegative() {
		panic(fmt.Sprintf("BALANCE_%s_NEGATIVE_AMOUNT: %s", op, amount))
	}
}
