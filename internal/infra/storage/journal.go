package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vend_go/internal/domain"
	"vend_go/internal/event"
	"vend_go/internal/infra"
)

// Journal is the append-only SQLite event log external indexers read.
// It mirrors exactly what the engine emitted, in sequence order.
type Journal struct {
	db *gorm.DB
}

// NewJournal opens (or creates) the journal. An empty path selects the
// per-user default location.
func NewJournal(path string) (*Journal, error) {
	dbPath := path
	if dbPath == "" {
		var err error
		dbPath, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.EventRecord{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Journal{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "VendGo", "data", "vend.db"), nil
}

// Append persists one emitted event. The sequence number is the
// primary key, so replays of an already-journaled event fail instead
// of silently duplicating history.
func (j *Journal) Append(ev event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event %d: %w", ev.GetSeq(), err)
	}

	rec := domain.EventRecord{
		Seq:     ev.GetSeq(),
		ID:      uuid.NewString(),
		Type:    ev.GetType(),
		Payload: string(payload),
	}
	if err := j.db.Create(&rec).Error; err != nil {
		return err
	}

	infra.GlobalMetrics.RecordEventJournaled()
	return nil
}

// LoadAll returns the full journal in sequence order.
func (j *Journal) LoadAll() ([]domain.EventRecord, error) {
	var records []domain.EventRecord
	err := j.db.Order("seq asc").Find(&records).Error
	return records, err
}

// LoadByType returns all journaled events of one type, in sequence order.
func (j *Journal) LoadByType(eventType string) ([]domain.EventRecord, error) {
	var records []domain.EventRecord
	err := j.db.Where("type = ?", eventType).Order("seq asc").Find(&records).Error
	return records, err
}

// LastSeq returns the highest journaled sequence number (0 when empty).
func (j *Journal) LastSeq() (uint64, error) {
	var rec domain.EventRecord
	err := j.db.Order("seq desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return rec.Seq, err
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves an engine-local configuration value
func (j *Journal) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return j.db.Save(&config).Error
}

// LoadConfigMap loads all engine-local configuration as a map
func (j *Journal) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := j.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
