package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"vend_go/internal/domain"
	"vend_go/internal/event"
	"vend_go/internal/infra"
)

// EventSink receives every event the engine emits, in sequence order.
// It is called synchronously from inside the guarded call, so it must
// not call back into the engine's mutating surface.
type EventSink func(event.Event)

// Engine is the single-price atomic exchange bucket. It holds the
// listed assets, the accounting ledger and the active payment triple,
// and runs the purchase protocol:
//
//	Validating -> Reserved -> Settled -> Fulfilled
//
// The load-bearing invariant is ordering: listing state is mutated and
// the ledger incremented BEFORE control ever reaches the payment medium
// or the fulfillment handler. Whatever untrusted code does afterwards,
// the identifier cannot be purchased twice. A failure after that point
// is compensated explicitly, so a failed call has no observable effect.
type Engine struct {
	store  *ListingStore
	ledger *Ledger

	mu  sync.RWMutex // external reads of cfg only
	cfg domain.PaymentConfig

	// busy is the in-flight call guard. CAS instead of a mutex so a
	// reentrant call on the same goroutine fails fast instead of
	// deadlocking. Held by Purchase and by every administrative
	// mutator; queries run unguarded.
	busy atomic.Bool

	nextSeq uint64 // event sequence; mutated only while busy is held
	sink    EventSink
}

// NewEngine creates an engine with no listings and no payment
// configuration. sink may be nil.
func NewEngine(sink EventSink) *Engine {
	return &Engine{
		store:   NewListingStore(),
		ledger:  NewLedger(),
		nextSeq: 1,
		sink:    sink,
	}
}

func (e *Engine) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return domain.ErrReentrantCall
	}
	return nil
}

func (e *Engine) exit() {
	e.busy.Store(false)
}

// emit stamps and publishes an event. Caller must hold the busy guard.
func (e *Engine) emit(ev event.Event, base *event.BaseEvent) {
	base.Seq = e.nextSeq
	e.nextSeq++
	base.Ts = time.Now().UnixMicro()
	if e.sink != nil {
		e.sink(ev)
	}
}

// Configure validates the medium's safety class and atomically replaces
// the active payment triple. Administrative.
func (e *Engine) Configure(medium domain.PaymentMedium, price decimal.Decimal, sink domain.Account) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if medium == nil {
		return domain.ErrNotConfigured
	}
	if !medium.Traits().Safe() {
		return fmt.Errorf("%w: %s", domain.ErrUnsafePaymentMedium, medium.ID())
	}
	if price.IsNegative() {
		return fmt.Errorf("price must not be negative: %s", price)
	}
	if sink == "" {
		return fmt.Errorf("sink account is required")
	}

	e.mu.Lock()
	e.cfg = domain.PaymentConfig{Medium: medium, Price: price, Sink: sink}
	e.mu.Unlock()

	ev := &event.ConfigChangedEvent{Medium: medium.ID(), Price: price, Sink: sink}
	e.emit(ev, &ev.BaseEvent)

	slog.Info("payment configured",
		slog.String("medium", medium.ID()),
		slog.String("price", price.String()),
		slog.String("sink", string(sink)))
	return nil
}

// List adds an asset with its fulfillment route. Administrative.
func (e *Engine) List(id domain.AssetID, h domain.FulfillmentHandler, key []byte) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if h == nil {
		return fmt.Errorf("nil handler for %s", id)
	}
	if err := e.store.Insert(id, domain.Listing{Handler: h, Key: key}); err != nil {
		return err
	}

	ev := &event.AssetListedEvent{AssetID: id, Handler: h.Name(), Key: key}
	e.emit(ev, &ev.BaseEvent)

	slog.Info("asset listed",
		slog.String("asset", id.String()),
		slog.String("handler", h.Name()))
	return nil
}

// Remove unlists an asset without purchase. Administrative; the emitted
// event is distinct from the purchase event, so the two terminal paths
// of a listing stay distinguishable downstream.
func (e *Engine) Remove(id domain.AssetID) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if _, err := e.store.Delete(id); err != nil {
		return err
	}

	ev := &event.AssetRemovedEvent{AssetID: id}
	e.emit(ev, &ev.BaseEvent)

	slog.Info("asset removed", slog.String("asset", id.String()))
	return nil
}

// Purchase buys one listed asset at the configured price.
//
// The caller's expectedPrice is an equality guard against configuration
// races between call construction and execution. On any failure the
// call is compensated in full: the listing is re-inserted, the ledger
// decremented, and a settled payment refunded. A failed refund is an
// unrecoverable invariant break and halts.
func (e *Engine) Purchase(ctx context.Context, buyer domain.Account, id domain.AssetID, recipient domain.Account, expectedPrice decimal.Decimal) (decimal.Decimal, error) {
	if err := e.enter(); err != nil {
		return decimal.Zero, err
	}
	defer e.exit()

	// Validating
	listing, err := e.store.Resolve(id)
	if err != nil {
		return decimal.Zero, err
	}

	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()
	if !cfg.Configured() {
		return decimal.Zero, domain.ErrNotConfigured
	}
	if !expectedPrice.Equal(cfg.Price) {
		return decimal.Zero, &domain.WrongPaymentAmountError{Got: expectedPrice, Expected: cfg.Price}
	}

	// Reserved: commit state before any external interaction. From here
	// on the identifier cannot be purchased twice, no matter what the
	// medium or handler does.
	if _, err := e.store.Delete(id); err != nil {
		panic(fmt.Sprintf("RESERVE_AFTER_RESOLVE_FAILED: %s: %v", id, err))
	}
	e.ledger.record(expectedPrice)

	rollback := func() {
		e.ledger.unrecord(expectedPrice)
		if err := e.store.Insert(id, listing); err != nil {
			panic(fmt.Sprintf("ROLLBACK_RELIST_FAILED: %s: %v", id, err))
		}
	}

	// Settled
	if err := cfg.Medium.Transfer(ctx, buyer, cfg.Sink, expectedPrice); err != nil {
		rollback()
		infra.GlobalMetrics.RecordPurchaseFailed()
		slog.Warn("purchase rolled back at settlement",
			slog.String("asset", id.String()),
			slog.Any("error", err))
		return decimal.Zero, &domain.SettlementError{Medium: cfg.Medium.ID(), Err: err}
	}

	// Fulfilled
	if err := listing.Handler.Fulfill(ctx, listing.Key, recipient); err != nil {
		if rerr := cfg.Medium.Transfer(ctx, cfg.Sink, buyer, expectedPrice); rerr != nil {
			panic(fmt.Sprintf("REFUND_FAILED: %v (fulfillment: %v)", rerr, err))
		}
		rollback()
		infra.GlobalMetrics.RecordPurchaseFailed()
		slog.Warn("purchase rolled back at fulfillment",
			slog.String("asset", id.String()),
			slog.String("handler", listing.Handler.Name()),
			slog.Any("error", err))
		return decimal.Zero, &domain.FulfillmentError{Handler: listing.Handler.Name(), Err: err}
	}

	ev := &event.AssetPurchasedEvent{AssetID: id, Buyer: buyer, Recipient: recipient, Paid: expectedPrice}
	e.emit(ev, &ev.BaseEvent)
	infra.GlobalMetrics.RecordPurchase(expectedPrice.Shift(6).IntPart())

	slog.Info("asset purchased",
		slog.String("asset", id.String()),
		slog.String("buyer", string(buyer)),
		slog.String("recipient", string(recipient)),
		slog.String("paid", expectedPrice.String()))
	return expectedPrice, nil
}

// Exists reports whether an identifier is currently listed.
func (e *Engine) Exists(id domain.AssetID) bool {
	return e.store.Exists(id)
}

// Count returns the number of currently listed assets.
func (e *Engine) Count() int {
	return e.store.Count()
}

// At returns the identifier at an enumeration index. Indices are not
// stable across mutating calls.
func (e *Engine) At(i int) (domain.AssetID, bool) {
	return e.store.At(i)
}

// Total returns the cumulative amount collected by purchases.
func (e *Engine) Total() decimal.Decimal {
	return e.ledger.Total()
}

// Resolve returns the handler and opaque key for a listed identifier.
func (e *Engine) Resolve(id domain.AssetID) (domain.FulfillmentHandler, []byte, error) {
	l, err := e.store.Resolve(id)
	if err != nil {
		return nil, nil, err
	}
	return l.Handler, l.Key, nil
}

// Price returns the currently configured price (zero before Configure).
func (e *Engine) Price() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Price
}

// DumpState writes the engine state to a file (for post-mortem).
func (e *Engine) DumpState(filename string) {
	slog.Info("Dumping engine state...", slog.String("file", filename))

	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	medium := ""
	if cfg.Configured() {
		medium = cfg.Medium.ID()
	}

	data := struct {
		NextSeq  uint64            `json:"next_seq"`
		Listings map[string]string `json:"listings"`
		Total    decimal.Decimal   `json:"total"`
		Medium   string            `json:"medium"`
		Price    decimal.Decimal   `json:"price"`
		Sink     domain.Account    `json:"sink"`
	}{
		NextSeq:  e.nextSeq,
		Listings: e.store.Snapshot(),
		Total:    e.ledger.Total(),
		Medium:   medium,
		Price:    cfg.Price,
		Sink:     cfg.Sink,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
