// Package datastore keeps a local mirror of the remote detection history
// so the dashboard can still render the last known records when the
// persistence collaborator is unreachable.
package datastore

import (
	"encoding/json"
	"time"

	"github.com/renalscan/renalscan-go/internal/conf"
	"github.com/renalscan/renalscan-go/internal/detection"
	"github.com/renalscan/renalscan-go/internal/errors"
)

// Interface is the storage contract the history service consumes.
type Interface interface {
	Open() error
	Close() error
	// ReplaceAll swaps the mirrored history for the given records in one
	// transaction, preserving the remote ordering.
	ReplaceAll(records []detection.Record) error
	// GetAll returns the mirrored history in stored order.
	GetAll() ([]detection.Record, error)
}

// CachedDetection is the mirrored record. The prediction is stored as a
// JSON blob since its shape varies between image and tabular records.
type CachedDetection struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RemoteID   string `gorm:"index"`
	CreatedAt  time.Time
	RecordedAt time.Time // collaborator timestamp, kept verbatim
	Image      []byte
	Prediction []byte
}

// New returns the datastore configured in settings, or nil when the local
// mirror is disabled.
func New(settings *conf.Settings) Interface {
	if settings == nil || !settings.Datastore.Enabled {
		return nil
	}
	return &SQLiteStore{path: settings.Datastore.Path, debug: settings.Debug}
}

func toCached(r *detection.Record) (CachedDetection, error) {
	c := CachedDetection{
		RemoteID:   r.ID,
		RecordedAt: r.CreatedAt,
		Image:      r.Image,
	}
	if r.Prediction != nil {
		blob, err := json.Marshal(r.Prediction)
		if err != nil {
			return CachedDetection{}, errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Build()
		}
		c.Prediction = blob
	}
	return c, nil
}

func fromCached(c *CachedDetection) (detection.Record, error) {
	r := detection.Record{
		ID:        c.RemoteID,
		CreatedAt: c.RecordedAt,
		Image:     c.Image,
	}
	if len(c.Prediction) > 0 {
		var pred detection.Prediction
		if err := json.Unmarshal(c.Prediction, &pred); err != nil {
			return detection.Record{}, errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("remote_id", c.RemoteID).
				Build()
		}
		r.Prediction = &pred
	}
	return r, nil
}
