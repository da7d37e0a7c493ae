package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"vend_go/internal/domain"
	"vend_go/internal/event"
	"vend_go/internal/handler"
	"vend_go/internal/medium"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

type eventLog struct {
	events []event.Event
}

func (l *eventLog) sink(ev event.Event) {
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(typ string) []event.Event {
	var out []event.Event
	for _, ev := range l.events {
		if ev.GetType() == typ {
			out = append(out, ev)
		}
	}
	return out
}

// newTestEngine returns an engine configured at price 100 with a token
// medium whose book is empty; tests fund buyers explicitly.
func newTestEngine(t *testing.T) (*Engine, *medium.Token, *eventLog) {
	t.Helper()

	log := &eventLog{}
	e := NewEngine(log.sink)
	tok := medium.NewToken("VUSD", domain.NewBalanceBook())
	if err := e.Configure(tok, d(100), "sink"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	return e, tok, log
}

// listTransferAsset lists id backed by a single-use transfer grant.
func listTransferAsset(t *testing.T, e *Engine, id domain.AssetID, amount decimal.Decimal) (*handler.Transfer, *domain.BalanceBook) {
	t.Helper()

	book := domain.NewBalanceBook()
	book.Mint("escrow", amount)
	tr := handler.NewTransfer(book)
	key := []byte(id.String())
	if err := tr.Register(key, "escrow", amount); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := e.List(id, tr, key); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	return tr, book
}

type failHandler struct{}

func (h *failHandler) Name() string { return "fail" }
func (h *failHandler) Fulfill(ctx context.Context, key []byte, recipient domain.Account) error {
	return errors.New("handler exploded")
}

// reentrantHandler attacks every mutating entry point mid-fulfillment.
type reentrantHandler struct {
	eng     *Engine
	target  domain.AssetID
	recover bool

	purchaseErr error
	listErr     error
	removeErr   error
}

func (h *reentrantHandler) Name() string { return "reentrant" }

func (h *reentrantHandler) Fulfill(ctx context.Context, key []byte, recipient domain.Account) error {
	_, h.purchaseErr = h.eng.Purchase(ctx, "inner-buyer", h.target, recipient, d(100))
	h.listErr = h.eng.List(domain.MustAssetID("0xEE"), &noopHandler{name: "x"}, nil)
	h.removeErr = h.eng.Remove(h.target)
	if h.recover {
		return nil
	}
	return h.purchaseErr
}

// lyingMedium claims to be safe but runs engine calls mid-transfer.
type lyingMedium struct {
	eng   *Engine
	inner error
}

func (m *lyingMedium) ID() string                  { return "HOSTILE" }
func (m *lyingMedium) Traits() domain.MediumTraits { return domain.MediumTraits{} }

func (m *lyingMedium) Transfer(ctx context.Context, from, to domain.Account, amount decimal.Decimal) error {
	_, m.inner = m.eng.Purchase(ctx, from, domain.MustAssetID("0xB2"), to, amount)
	return errors.New("hostile medium aborted transfer")
}

func TestPurchase_Scenario(t *testing.T) {
	e, tok, log := newTestEngine(t)
	id := domain.MustAssetID("0xA1")
	_, grantBook := listTransferAsset(t, e, id, d(5))
	tok.Book().Mint("buyer", d(100))

	paid, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100))
	if err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if !paid.Equal(d(100)) {
		t.Errorf("paid = %s, want 100", paid)
	}

	if e.Exists(id) {
		t.Error("purchased asset should no longer be listed")
	}
	if e.Count() != 0 {
		t.Errorf("Count = %d, want 0", e.Count())
	}
	if !e.Total().Equal(d(100)) {
		t.Errorf("Total = %s, want 100", e.Total())
	}

	// Payment moved exactly once, buyer -> sink.
	if !tok.Book().Balance("buyer").IsZero() {
		t.Errorf("buyer balance = %s, want 0", tok.Book().Balance("buyer"))
	}
	if !tok.Book().Balance("sink").Equal(d(100)) {
		t.Errorf("sink balance = %s, want 100", tok.Book().Balance("sink"))
	}

	// Fulfillment delivered the grant exactly once.
	if !grantBook.Balance("recipient").Equal(d(5)) {
		t.Errorf("recipient grant = %s, want 5", grantBook.Balance("recipient"))
	}
	if !grantBook.Balance("escrow").IsZero() {
		t.Errorf("escrow = %s, want 0", grantBook.Balance("escrow"))
	}

	// One purchased event, zero removed events.
	purchased := log.ofType(event.TypeAssetPurchased)
	if len(purchased) != 1 {
		t.Fatalf("purchased events = %d, want 1", len(purchased))
	}
	pe := purchased[0].(*event.AssetPurchasedEvent)
	if pe.AssetID != id || pe.Buyer != "buyer" || pe.Recipient != "recipient" || !pe.Paid.Equal(d(100)) {
		t.Errorf("unexpected purchased event: %+v", pe)
	}
	if len(log.ofType(event.TypeAssetRemoved)) != 0 {
		t.Error("purchase must not emit a removal event")
	}
}

func TestPurchase_WrongAmount(t *testing.T) {
	e, tok, log := newTestEngine(t)
	id := domain.MustAssetID("0xA1")
	listTransferAsset(t, e, id, d(5))
	tok.Book().Mint("buyer", d(100))
	before := len(log.events)

	_, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(99))

	var wrong *domain.WrongPaymentAmountError
	if !errors.As(err, &wrong) {
		t.Fatalf("expected WrongPaymentAmountError, got %v", err)
	}
	if !wrong.Got.Equal(d(99)) || !wrong.Expected.Equal(d(100)) {
		t.Errorf("guard = {got %s, expected %s}, want {99, 100}", wrong.Got, wrong.Expected)
	}

	if !e.Exists(id) {
		t.Error("asset must remain listed")
	}
	if !e.Total().IsZero() {
		t.Errorf("Total = %s, want 0", e.Total())
	}
	if !tok.Book().Balance("buyer").Equal(d(100)) {
		t.Error("buyer balance must be untouched")
	}
	if len(log.events) != before {
		t.Error("failed purchase must emit no events")
	}
}

func TestPurchase_PriceRace(t *testing.T) {
	e, tok, _ := newTestEngine(t)
	id := domain.MustAssetID("0xA1")
	listTransferAsset(t, e, id, d(5))
	tok.Book().Mint("buyer", d(200))

	// Caller read price 100 and built the call; the configuration then
	// changed underneath them.
	if err := e.Configure(tok, d(120), "sink"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	_, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100))
	var wrong *domain.WrongPaymentAmountError
	if !errors.As(err, &wrong) {
		t.Fatalf("expected WrongPaymentAmountError, got %v", err)
	}
	if !wrong.Expected.Equal(d(120)) {
		t.Errorf("expected live price 120 in guard, got %s", wrong.Expected)
	}
}

func TestPurchase_UnknownAsset(t *testing.T) {
	e, tok, _ := newTestEngine(t)
	tok.Book().Mint("buyer", d(100))

	_, err := e.Purchase(context.Background(), "buyer", domain.MustAssetID("0xA1"), "recipient", d(100))
	if !errors.Is(err, domain.ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
	if !e.Total().IsZero() {
		t.Error("Total must be unchanged")
	}
}

func TestPurchase_NotConfigured(t *testing.T) {
	e := NewEngine(nil)
	id := domain.MustAssetID("0xA1")
	listTransferAsset(t, e, id, d(5))

	_, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100))
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestPurchase_SettlementFailureRollsBack(t *testing.T) {
	e, tok, log := newTestEngine(t)
	id := domain.MustAssetID("0xA1")
	tr, _ := listTransferAsset(t, e, id, d(5))
	tok.Book().Mint("buyer", d(60)) // not enough for price 100
	before := len(log.events)

	_, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100))

	var se *domain.SettlementError
	if !errors.As(err, &se) {
		t.Fatalf("expected SettlementError, got %v", err)
	}
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("expected underlying ErrInsufficientFunds, got %v", err)
	}

	// Pre-call state byte for byte: listed, routed, unpaid.
	if !e.Exists(id) || e.Count() != 1 {
		t.Error("asset must be listed again after rollback")
	}
	if !e.Total().IsZero() {
		t.Errorf("Total = %s, want 0", e.Total())
	}
	h, key, rerr := e.Resolve(id)
	if rerr != nil || h != domain.FulfillmentHandler(tr) || string(key) != id.String() {
		t.Error("rollback must restore the original routing")
	}
	if len(log.events) != before {
		t.Error("rolled-back purchase must emit no events")
	}

	// The identifier is purchasable again, by anyone.
	tok.Book().Mint("buyer", d(40))
	if _, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100)); err != nil {
		t.Fatalf("retry after rollback failed: %v", err)
	}
}

func TestPurchase_FulfillmentFailureRollsBack(t *testing.T) {
	e, tok, log := newTestEngine(t)
	id := domain.MustAssetID("0xA1")
	if err := e.List(id, &failHandler{}, []byte("k")); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	tok.Book().Mint("buyer", d(100))
	before := len(log.events)

	_, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100))

	var fe *domain.FulfillmentError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FulfillmentError, got %v", err)
	}
	if fe.Handler != "fail" {
		t.Errorf("Handler = %q, want %q", fe.Handler, "fail")
	}

	// Settlement was compensated: payment refunded in full.
	if !tok.Book().Balance("buyer").Equal(d(100)) {
		t.Errorf("buyer balance = %s, want 100 after refund", tok.Book().Balance("buyer"))
	}
	if !tok.Book().Balance("sink").IsZero() {
		t.Errorf("sink balance = %s, want 0 after refund", tok.Book().Balance("sink"))
	}

	if !e.Exists(id) {
		t.Error("asset must be listed again after rollback")
	}
	if !e.Total().IsZero() {
		t.Errorf("Total = %s, want 0", e.Total())
	}
	if len(log.events) != before {
		t.Error("rolled-back purchase must emit no events")
	}
}

func TestPurchase_ReentrantHandlerRecovers(t *testing.T) {
	e, tok, log := newTestEngine(t)
	attacked := domain.MustAssetID("0xB2")
	listTransferAsset(t, e, attacked, d(5))

	h := &reentrantHandler{eng: e, target: attacked, recover: true}
	id := domain.MustAssetID("0xA1")
	if err := e.List(id, h, nil); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	tok.Book().Mint("buyer", d(100))

	paid, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100))
	if err != nil {
		t.Fatalf("outer purchase should succeed when handler recovers: %v", err)
	}
	if !paid.Equal(d(100)) {
		t.Errorf("paid = %s, want 100", paid)
	}

	// Every mutating entry point failed fast inside the handler.
	if !errors.Is(h.purchaseErr, domain.ErrReentrantCall) {
		t.Errorf("inner Purchase: expected ErrReentrantCall, got %v", h.purchaseErr)
	}
	if !errors.Is(h.listErr, domain.ErrReentrantCall) {
		t.Errorf("inner List: expected ErrReentrantCall, got %v", h.listErr)
	}
	if !errors.Is(h.removeErr, domain.ErrReentrantCall) {
		t.Errorf("inner Remove: expected ErrReentrantCall, got %v", h.removeErr)
	}

	// The attacked asset is untouched and the ledger saw only the
	// outer settlement.
	if !e.Exists(attacked) {
		t.Error("attacked asset must remain listed")
	}
	if !e.Total().Equal(d(100)) {
		t.Errorf("Total = %s, want 100", e.Total())
	}
	if len(log.ofType(event.TypeAssetPurchased)) != 1 {
		t.Error("exactly one purchase event expected")
	}
}

func TestPurchase_ReentrantHandlerDoesNotRecover(t *testing.T) {
	e, tok, _ := newTestEngine(t)
	attacked := domain.MustAssetID("0xB2")
	listTransferAsset(t, e, attacked, d(5))

	h := &reentrantHandler{eng: e, target: attacked, recover: false}
	id := domain.MustAssetID("0xA1")
	if err := e.List(id, h, nil); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	tok.Book().Mint("buyer", d(100))

	_, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100))
	var fe *domain.FulfillmentError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FulfillmentError, got %v", err)
	}
	if !errors.Is(err, domain.ErrReentrantCall) {
		t.Errorf("expected the handler's reentrancy failure to surface, got %v", err)
	}

	// Whole call rolled back.
	if !e.Exists(id) {
		t.Error("asset must be listed again after rollback")
	}
	if !e.Total().IsZero() {
		t.Errorf("Total = %s, want 0", e.Total())
	}
	if !tok.Book().Balance("buyer").Equal(d(100)) {
		t.Error("buyer must be refunded in full")
	}
}

func TestPurchase_HostileMediumBlocked(t *testing.T) {
	e, _, _ := newTestEngine(t)
	attacked := domain.MustAssetID("0xB2")
	listTransferAsset(t, e, attacked, d(5))

	// The medium lies about its traits, so configuration accepts it.
	hostile := &lyingMedium{eng: e}
	if err := e.Configure(hostile, d(100), "sink"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	id := domain.MustAssetID("0xA1")
	listTransferAsset(t, e, id, d(3))

	_, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100))
	var se *domain.SettlementError
	if !errors.As(err, &se) {
		t.Fatalf("expected SettlementError, got %v", err)
	}

	// Even mid-settlement, before any real state could leak, the
	// reentrant call hit the guard.
	if !errors.Is(hostile.inner, domain.ErrReentrantCall) {
		t.Errorf("expected ErrReentrantCall inside hostile medium, got %v", hostile.inner)
	}
	if !e.Exists(id) || !e.Exists(attacked) {
		t.Error("all listings must survive the hostile settlement")
	}
	if !e.Total().IsZero() {
		t.Errorf("Total = %s, want 0", e.Total())
	}
}

func TestConfigure_UnsafeMediumRejected(t *testing.T) {
	cases := []struct {
		name   string
		traits domain.MediumTraits
	}{
		{"recipient callbacks", domain.MediumTraits{RecipientCallbacks: true}},
		{"fee on transfer", domain.MediumTraits{FeeOnTransfer: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			unsafe := &staticMedium{id: "BAD", traits: tc.traits}

			err := e.Configure(unsafe, d(100), "sink")
			if !errors.Is(err, domain.ErrUnsafePaymentMedium) {
				t.Fatalf("expected ErrUnsafePaymentMedium, got %v", err)
			}
			// Previous configuration stays live.
			if !e.Price().Equal(d(100)) {
				t.Errorf("Price = %s, want previous 100", e.Price())
			}
		})
	}
}

type staticMedium struct {
	id     string
	traits domain.MediumTraits
}

func (m *staticMedium) ID() string                  { return m.id }
func (m *staticMedium) Traits() domain.MediumTraits { return m.traits }
func (m *staticMedium) Transfer(ctx context.Context, from, to domain.Account, amount decimal.Decimal) error {
	return nil
}

func TestConfigure_EmitsFullTriple(t *testing.T) {
	log := &eventLog{}
	e := NewEngine(log.sink)
	tok := medium.NewToken("VUSD", domain.NewBalanceBook())

	if err := e.Configure(tok, d(42), "vault"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	changed := log.ofType(event.TypeConfigChanged)
	if len(changed) != 1 {
		t.Fatalf("config events = %d, want 1", len(changed))
	}
	ce := changed[0].(*event.ConfigChangedEvent)
	if ce.Medium != "VUSD" || !ce.Price.Equal(d(42)) || ce.Sink != "vault" {
		t.Errorf("unexpected config event: %+v", ce)
	}
}

func TestRemove_EmitsDistinctEvent(t *testing.T) {
	e, _, log := newTestEngine(t)
	id := domain.MustAssetID("0xA1")
	listTransferAsset(t, e, id, d(5))

	if err := e.Remove(id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if e.Exists(id) {
		t.Error("removed asset should not be listed")
	}
	if len(log.ofType(event.TypeAssetRemoved)) != 1 {
		t.Error("exactly one removal event expected")
	}
	if len(log.ofType(event.TypeAssetPurchased)) != 0 {
		t.Error("no purchase event expected on the removal path")
	}

	_, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100))
	if !errors.Is(err, domain.ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset after removal, got %v", err)
	}

	if err := e.Remove(id); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset on double removal, got %v", err)
	}
}

func TestList_AlreadyListed(t *testing.T) {
	e, _, _ := newTestEngine(t)
	id := domain.MustAssetID("0xA1")
	listTransferAsset(t, e, id, d(5))

	err := e.List(id, &noopHandler{name: "other"}, nil)
	if !errors.Is(err, domain.ErrAlreadyListed) {
		t.Fatalf("expected ErrAlreadyListed, got %v", err)
	}
}

func TestEvents_SequenceIsContiguous(t *testing.T) {
	e, tok, log := newTestEngine(t)
	id := domain.MustAssetID("0xA1")
	listTransferAsset(t, e, id, d(5))
	tok.Book().Mint("buyer", d(100))
	if _, err := e.Purchase(context.Background(), "buyer", id, "recipient", d(100)); err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}

	for i, ev := range log.events {
		if ev.GetSeq() != uint64(i+1) {
			t.Fatalf("event %d has seq %d, want %d", i, ev.GetSeq(), i+1)
		}
	}
}
