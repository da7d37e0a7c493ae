package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownAsset is returned when an identifier is not currently listed.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrAlreadyListed is returned when listing an identifier that is already present.
	// Overwriting is disallowed so payment routing is never silently orphaned.
	ErrAlreadyListed = errors.New("asset already listed")

	// ErrUnsafePaymentMedium is returned when configuring a medium outside
	// the accepted safety class.
	ErrUnsafePaymentMedium = errors.New("unsafe payment medium")

	// ErrReentrantCall is returned when an entry point is invoked while
	// another call is in flight on the same engine instance.
	ErrReentrantCall = errors.New("reentrant call")

	// ErrNotConfigured is returned when a purchase arrives before any
	// payment configuration has been set.
	ErrNotConfigured = errors.New("payment not configured")

	// ErrInsufficientFunds is returned by a balance book debit that would
	// go negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// WrongPaymentAmountError is returned when the caller's price guard does
// not match the live configuration.
type WrongPaymentAmountError struct {
	Got      decimal.Decimal
	Expected decimal.Decimal
}

func (e *WrongPaymentAmountError) Error() string {
	return fmt.Sprintf("wrong payment amount: got %s, expected %s", e.Got, e.Expected)
}

// SettlementError wraps a failed payment transfer. The call it aborted
// was fully rolled back.
type SettlementError struct {
	Medium string
	Err    error
}

func (e *SettlementError) Error() string {
	return "settlement failed [" + e.Medium + "]: " + e.Err.Error()
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// FulfillmentError wraps a handler failure. The call it aborted was
// fully rolled back, payment included.
type FulfillmentError struct {
	Handler string
	Err     error
}

func (e *FulfillmentError) Error() string {
	return "fulfillment failed [" + e.Handler + "]: " + e.Err.Error()
}

func (e *FulfillmentError) Unwrap() error {
	return e.Err
}
