// Package history serves the detection history view: it fetches records
// from the persistence collaborator, partitions them into image-based and
// tabular-based groups, and keeps a short-lived cache plus an optional
// local mirror for offline rendering.
package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/renalscan/renalscan-go/internal/apiclient"
	"github.com/renalscan/renalscan-go/internal/datastore"
	"github.com/renalscan/renalscan-go/internal/detection"
	"github.com/renalscan/renalscan-go/internal/errors"
	"github.com/renalscan/renalscan-go/internal/logging"
	"github.com/renalscan/renalscan-go/internal/observability"
)

const (
	cacheKey = "detections"

	// DefaultTTL bounds how stale the history view may get between
	// explicit refreshes.
	DefaultTTL = 60 * time.Second
)

// Lister is the collaborator call the service depends on. Satisfied by
// *apiclient.Client.
type Lister interface {
	ListDetections(ctx context.Context) apiclient.Result[[]detection.Record]
}

// View is the partitioned history the dashboard renders. Both groups
// preserve the collaborator's ordering.
type View struct {
	ImageBased   []detection.Record `json:"imageBased"`
	TabularBased []detection.Record `json:"tabularBased"`
}

// Service owns the cached history state.
type Service struct {
	lister  Lister
	cache   *gocache.Cache
	mirror  datastore.Interface // optional
	metrics *observability.Metrics
	log     *slog.Logger

	// single-flight: concurrent refreshes collapse into one remote call
	mu sync.Mutex
}

// New creates the history service. mirror and metrics may be nil; a zero
// ttl falls back to DefaultTTL.
func New(lister Lister, mirror datastore.Interface, ttl, cleanup time.Duration, metrics *observability.Metrics) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanup <= 0 {
		cleanup = 2 * ttl
	}
	return &Service{
		lister:  lister,
		cache:   gocache.New(ttl, cleanup),
		mirror:  mirror,
		metrics: metrics,
		log:     logging.ForService("history"),
	}
}

// Records returns the full history, serving the cache when fresh.
func (s *Service) Records(ctx context.Context) ([]detection.Record, error) {
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]detection.Record), nil
	}
	return s.Refresh(ctx)
}

// Refresh bypasses the cache and fetches the history from the
// collaborator. On success the cache and the local mirror are updated; on
// failure the mirror's last known records are served instead, and only
// when no mirror is available does the error propagate.
func (s *Service) Refresh(ctx context.Context) ([]detection.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.lister.ListDetections(ctx)
	if res.OK() {
		records := *res.Data
		s.cache.SetDefault(cacheKey, records)
		s.writeMirror(records)
		if s.metrics != nil {
			s.metrics.HistoryRefreshes.Inc()
		}
		return records, nil
	}

	s.log.Warn("history refresh failed", "error", res.Error)
	if s.mirror != nil {
		records, err := s.mirror.GetAll()
		if err == nil {
			s.log.Info("serving mirrored history", "records", len(records))
			return records, nil
		}
		s.log.Warn("history mirror read failed", "error", err)
	}
	return nil, errors.Newf("%s", res.Error).
		Component("history").
		Category(errors.CategoryHistory).
		Build()
}

// Partitioned returns the history split into image-based and
// tabular-based groups. The image payload being present is the sole
// partition key.
func (s *Service) Partitioned(ctx context.Context) (View, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return View{}, err
	}
	imageBased, tabularBased := detection.Partition(records)
	return View{ImageBased: imageBased, TabularBased: tabularBased}, nil
}

// Overview returns the aggregate counts for the dashboard landing view.
func (s *Service) Overview(ctx context.Context) (detection.Overview, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return detection.Overview{}, err
	}
	return detection.Summarize(records), nil
}

// Invalidate drops the cached history so the next read refetches.
func (s *Service) Invalidate() {
	s.cache.Delete(cacheKey)
}

func (s *Service) writeMirror(records []detection.Record) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.ReplaceAll(records); err != nil {
		s.log.Warn("updating history mirror", "error", err)
	}
}
