package domain

import (
	"time"
)

// EventRecord is one row of the append-only event journal consumed by
// external indexers. Payload is the event serialized as JSON.
type EventRecord struct {
	Seq       uint64    `gorm:"primaryKey" json:"seq"`
	ID        string    `gorm:"index" json:"id"` // uuid, for cross-system correlation
	Type      string    `gorm:"index" json:"type"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// AppConfig represents engine-local configuration (Key-Value).
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
