// Package prefs keeps small client-side settings that must survive restarts.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/nibzard/stickyboard/internal/task"
)

// KeyColorIndex holds the next color rotation index as a decimal string.
const KeyColorIndex = "colorIndex"

// Store is a durable string key/value store.
type Store interface {
	// Get returns the value for key and whether it was set.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// Preference is one stored setting.
type Preference struct {
	Name      string `gorm:"primaryKey;size:64"`
	Value     string
	UpdatedAt time.Time
}

// SQLiteStore is a Store backed by a SQLite file.
type SQLiteStore struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite store at path. Messages from
// the database layer go to logw when it is non-nil.
func Open(path string, logw logger.Writer) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("state file path is empty")
	}
	if err := ensureDirForSQLite(path); err != nil {
		return nil, err
	}

	dbLogger := logger.Discard
	if logw != nil {
		dbLogger = logger.New(logw, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		})
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if err := db.AutoMigrate(&Preference{}); err != nil {
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var pref Preference
	err := s.db.WithContext(ctx).Where("name = ?", key).First(&pref).Error
	switch {
	case err == nil:
		return pref.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	pref := Preference{Name: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureDirForSQLite creates the parent dir of a SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir %q: %w", dir, err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// LoadColorIndex reads the stored rotation index. A missing key yields 0.
// A value that is not a valid palette index yields 0 and an error
// describing the bad value.
func LoadColorIndex(ctx context.Context, s Store) (int, error) {
	raw, ok, err := s.Get(ctx, KeyColorIndex)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("stored %s %q is not a number", KeyColorIndex, raw)
	}
	if i < 0 || i >= len(task.Palette) {
		return 0, fmt.Errorf("stored %s %d is out of range", KeyColorIndex, i)
	}
	return i, nil
}

// SaveColorIndex stores the rotation index as a decimal string.
func SaveColorIndex(ctx context.Context, s Store, i int) error {
	return s.Set(ctx, KeyColorIndex, strconv.Itoa(i))
}
