package datastore

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/renalscan/renalscan-go/internal/detection"
	"github.com/renalscan/renalscan-go/internal/errors"
	"github.com/renalscan/renalscan-go/internal/logging"
)

// SQLiteStore mirrors the detection history into a local SQLite file.
type SQLiteStore struct {
	path  string
	debug bool

	mu  sync.Mutex
	db  *gorm.DB
	log *slog.Logger
}

// Open creates the parent directory if needed, opens the database and
// runs the schema migration.
func (s *SQLiteStore) Open() error {
	s.log = logging.ForService("datastore")

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("path", s.path).
				Build()
		}
	}

	logLevel := logger.Silent
	if s.debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", s.path).
			Build()
	}
	if err := db.AutoMigrate(&CachedDetection{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
	s.log.Info("history mirror opened", "path", s.path)
	return nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return sqlDB.Close()
}

// ReplaceAll swaps the mirrored history in one transaction.
func (s *SQLiteStore) ReplaceAll(records []detection.Record) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return errNotOpen()
	}

	start := time.Now()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&CachedDetection{}).Error; err != nil {
			return err
		}
		for i := range records {
			cached, err := toCached(&records[i])
			if err != nil {
				return err
			}
			if err := tx.Create(&cached).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	s.log.Debug("history mirror refreshed",
		"records", len(records), "elapsed", time.Since(start))
	return nil
}

// GetAll returns the mirrored history in stored order.
func (s *SQLiteStore) GetAll() ([]detection.Record, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, errNotOpen()
	}

	var cached []CachedDetection
	if err := db.Order("id asc").Find(&cached).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	records := make([]detection.Record, 0, len(cached))
	for i := range cached {
		r, err := fromCached(&cached[i])
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func errNotOpen() error {
	return errors.Newf("datastore is not open").
		Component("datastore").
		Category(errors.CategoryState).
		Build()
}
