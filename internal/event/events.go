package event

import (
	"github.com/shopspring/decimal"

	"vend_go/internal/domain"
)

// Event type tags, as they appear in the journal and the live feed.
const (
	TypeConfigChanged  = "config-changed"
	TypeAssetListed    = "asset-listed"
	TypeAssetRemoved   = "asset-removed"
	TypeAssetPurchased = "asset-purchased"
)

// Event is the common surface of everything the engine emits.
type Event interface {
	GetSeq() uint64
	GetType() string
	GetTs() int64
}

// BaseEvent carries the fields shared by all events. Seq is assigned by
// the engine and increases by one per emitted event.
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"` // Unix microseconds
}

func (e *BaseEvent) GetSeq() uint64 { return e.Seq }
func (e *BaseEvent) GetTs() int64   { return e.Ts }

// ConfigChangedEvent announces a new active payment triple. It always
// carries the full triple, never a partial change.
type ConfigChangedEvent struct {
	BaseEvent
	Medium string          `json:"medium"`
	Price  decimal.Decimal `json:"price"`
	Sink   domain.Account  `json:"sink"`
}

func (e *ConfigChangedEvent) GetType() string { return TypeConfigChanged }

// AssetListedEvent announces an administrative listing.
type AssetListedEvent struct {
	BaseEvent
	AssetID domain.AssetID `json:"asset_id"`
	Handler string         `json:"handler"`
	Key     []byte         `json:"key"`
}

func (e *AssetListedEvent) GetType() string { return TypeAssetListed }

// AssetRemovedEvent announces an administrative removal. It is never
// emitted on the purchase path.
type AssetRemovedEvent struct {
	BaseEvent
	AssetID domain.AssetID `json:"asset_id"`
}

func (e *AssetRemovedEvent) GetType() string { return TypeAssetRemoved }

// AssetPurchasedEvent announces a completed purchase. Exactly one is
// emitted per successful call; no removal event accompanies it.
type AssetPurchasedEvent struct {
	BaseEvent
	AssetID   domain.AssetID  `json:"asset_id"`
	Buyer     domain.Account  `json:"buyer"`
	Recipient domain.Account  `json:"recipient"`
	Paid      decimal.Decimal `json:"paid"`
}

func (e *AssetPurchasedEvent) GetType() string { return TypeAssetPurchased }
