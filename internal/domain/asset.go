package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// AssetIDLen is the fixed byte length of an asset identifier.
const AssetIDLen = 32

// AssetID is the opaque fixed-size identifier of a claimable asset.
// The engine never interprets its contents; it is only a map key.
type AssetID [AssetIDLen]byte

// ParseAssetID parses a hex identifier with optional "0x" prefix.
// Short input is left-padded with zeros, so "0xA1" and the full
// 64-digit form name the same asset.
func ParseAssetID(s string) (AssetID, error) {
	var id AssetID

	h := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(h)%2 != 0 {
		h = "0" + h
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return id, fmt.Errorf("invalid asset id %q: %w", s, err)
	}
	if len(b) == 0 || len(b) > AssetIDLen {
		return id, fmt.Errorf("invalid asset id %q: length %d", s, len(b))
	}

	copy(id[AssetIDLen-len(b):], b)
	return id, nil
}

// MustAssetID is ParseAssetID that panics. For fixtures and tests.
func MustAssetID(s string) AssetID {
	id, err := ParseAssetID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical "0x"-prefixed hex form.
func (id AssetID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MarshalJSON encodes the identifier as its canonical hex string.
func (id AssetID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the hex string form.
func (id *AssetID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAssetID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Listing binds an asset identifier to its fulfillment route.
// Key is inert data owned by the handler; the engine must never
// branch on its contents.
type Listing struct {
	Handler FulfillmentHandler
	Key     []byte
}
