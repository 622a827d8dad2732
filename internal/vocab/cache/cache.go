// Package cache holds the in-memory vocabulary snapshot cache: one slot per
// vocabulary, refreshed lazily from the reference store when the TTL lapses.
// Snapshots are immutable, so readers share them without locks; replacement
// is an atomic pointer swap. Concurrent misses on the same vocabulary
// collapse into a single store fetch, and a failed refresh falls back to the
// previous snapshot when one exists.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab/store"
	"github.com/markahope-aag/labelcheck-sub001/pkg/config"
	errs "github.com/markahope-aag/labelcheck-sub001/pkg/errors"
	"github.com/markahope-aag/labelcheck-sub001/pkg/metrics"
	"github.com/markahope-aag/labelcheck-sub001/pkg/resilience"
)

// RefreshEvent is the structured observability event emitted once per cache
// refresh attempt. The cache defines the shape; the transport is whatever
// tracker the service wires in.
type RefreshEvent struct {
	Type        string        `json:"type"`
	Vocabulary  string        `json:"vocabulary"`
	Outcome     string        `json:"outcome"`
	RecordCount int           `json:"record_count"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Refresh outcomes.
const (
	OutcomeRefreshed   = "refreshed"
	OutcomeStaleServed = "stale_served"
	OutcomeFailed      = "failed"
	OutcomeInvalidData = "invalid_data"
)

// EventTracker receives observability events. Implemented by audit.Collector.
type EventTracker interface {
	Track(event any)
}

type slot struct {
	current     atomic.Pointer[vocab.Snapshot]
	invalidated atomic.Bool
	hits        atomic.Int64
	misses      atomic.Int64
}

// Cache serves vocabulary snapshots. Safe for concurrent use.
type Cache struct {
	store   store.Store
	cfg     config.VocabularyConfig
	slots   map[vocab.ID]*slot
	group   singleflight.Group
	metrics *metrics.Metrics
	tracker EventTracker
	logger  *slog.Logger
}

// Option configures optional cache collaborators.
type Option func(*Cache)

// WithMetrics wires Prometheus collectors into the cache.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithTracker wires an observability event sink into the cache.
func WithTracker(t EventTracker) Option {
	return func(c *Cache) { c.tracker = t }
}

// New creates a Cache with one empty slot per vocabulary.
func New(st store.Store, cfg config.VocabularyConfig, opts ...Option) *Cache {
	c := &Cache{
		store:  st,
		cfg:    cfg,
		slots:  make(map[vocab.ID]*slot, len(vocab.All())),
		logger: slog.Default().With("component", "vocab-cache"),
	}
	for _, id := range vocab.All() {
		c.slots[id] = &slot{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a live snapshot for the vocabulary, refreshing it from the
// store when the slot is empty, expired, or invalidated. A failed refresh
// serves the previous snapshot (even past its TTL) when one exists; Get only
// fails when no snapshot has ever been loaded.
func (c *Cache) Get(ctx context.Context, id vocab.ID) (*vocab.Snapshot, error) {
	s, ok := c.slots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrVocabularyNotFound, id)
	}

	if snap := c.fresh(s); snap != nil {
		s.hits.Add(1)
		c.countGet(id, "hit")
		return snap, nil
	}
	s.misses.Add(1)
	c.countGet(id, "miss")

	v, err, _ := c.group.Do(string(id), func() (any, error) {
		// Another caller may have completed the refresh while this one
		// waited on the flight group.
		if snap := c.fresh(s); snap != nil {
			return snap, nil
		}
		return c.refresh(ctx, s, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*vocab.Snapshot), nil
}

// Invalidate forces the next Get on the vocabulary to refresh, regardless of
// TTL. Readers holding the current snapshot are unaffected.
func (c *Cache) Invalidate(id vocab.ID) error {
	s, ok := c.slots[id]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrVocabularyNotFound, id)
	}
	s.invalidated.Store(true)
	c.logger.Info("vocabulary invalidated", "vocabulary", id)
	return nil
}

// InvalidateAll invalidates every vocabulary slot.
func (c *Cache) InvalidateAll() {
	for id := range c.slots {
		s := c.slots[id]
		s.invalidated.Store(true)
	}
	c.logger.Info("all vocabularies invalidated")
}

// Stats returns hit/miss counters for one vocabulary slot.
func (c *Cache) Stats(id vocab.ID) (hits, misses int64, ok bool) {
	s, found := c.slots[id]
	if !found {
		return 0, 0, false
	}
	return s.hits.Load(), s.misses.Load(), true
}

// fresh returns the slot's snapshot when it is live, nil otherwise.
func (c *Cache) fresh(s *slot) *vocab.Snapshot {
	snap := s.current.Load()
	if snap == nil || s.invalidated.Load() || snap.Expired(time.Now()) {
		return nil
	}
	return snap
}

// refresh fetches records from the store and swaps in a new snapshot. On any
// failure it falls back to the prior snapshot when one is held.
func (c *Cache) refresh(ctx context.Context, s *slot, id vocab.ID) (*vocab.Snapshot, error) {
	start := time.Now()
	snap, err := c.buildSnapshot(ctx, id)
	duration := time.Since(start)

	if err != nil {
		outcome := OutcomeFailed
		if isInvalidData(err) {
			outcome = OutcomeInvalidData
		}
		c.logger.Error("snapshot refresh failed",
			"vocabulary", id,
			"outcome", outcome,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		c.countRefresh(id, outcome)

		if prior := s.current.Load(); prior != nil {
			c.logger.Warn("serving stale snapshot",
				"vocabulary", id,
				"loaded_at", prior.LoadedAt,
				"ttl", prior.TTL,
			)
			c.countRefresh(id, OutcomeStaleServed)
			if c.metrics != nil {
				c.metrics.SnapshotStaleServed.WithLabelValues(string(id)).Inc()
			}
			c.emit(RefreshEvent{
				Type:        "vocabulary_refresh",
				Vocabulary:  string(id),
				Outcome:     OutcomeStaleServed,
				RecordCount: prior.Len(),
				Duration:    duration,
				Error:       err.Error(),
				Timestamp:   time.Now().UTC(),
			})
			return prior, nil
		}
		c.emit(RefreshEvent{
			Type:       "vocabulary_refresh",
			Vocabulary: string(id),
			Outcome:    outcome,
			Duration:   duration,
			Error:      err.Error(),
			Timestamp:  time.Now().UTC(),
		})
		return nil, err
	}

	s.current.Store(snap)
	s.invalidated.Store(false)
	c.countRefresh(id, OutcomeRefreshed)
	if c.metrics != nil {
		c.metrics.SnapshotRefreshDuration.WithLabelValues(string(id)).Observe(duration.Seconds())
		c.metrics.SnapshotRecordCount.WithLabelValues(string(id)).Set(float64(snap.Len()))
	}
	c.logger.Info("snapshot refreshed",
		"vocabulary", id,
		"records", snap.Len(),
		"ttl", snap.TTL,
		"duration_ms", duration.Milliseconds(),
	)
	c.emit(RefreshEvent{
		Type:        "vocabulary_refresh",
		Vocabulary:  string(id),
		Outcome:     OutcomeRefreshed,
		RecordCount: snap.Len(),
		Duration:    duration,
		Timestamp:   time.Now().UTC(),
	})
	return snap, nil
}

// buildSnapshot fetches records with bounded retries under the configured
// refresh timeout, then constructs the indexed snapshot. Snapshot build
// errors (conflicting reference data) are not retried.
func (c *Cache) buildSnapshot(ctx context.Context, id vocab.ID) (*vocab.Snapshot, error) {
	ttl := c.cfg.TTLFor(string(id))
	retryCfg := resilience.RetryConfig{MaxAttempts: c.cfg.RefreshMaxRetries}

	if id == vocab.Allergens {
		var records []vocab.AllergenRecord
		err := resilience.WithTimeout(ctx, c.cfg.RefreshTimeout, "allergen refresh", func(ctx context.Context) error {
			return resilience.Retry(ctx, "list allergens", retryCfg, func() error {
				var ferr error
				records, ferr = c.store.ListAllergens(ctx)
				return ferr
			})
		})
		if err != nil {
			return nil, err
		}
		return vocab.NewAllergenSnapshot(records, ttl)
	}

	var records []vocab.IngredientRecord
	err := resilience.WithTimeout(ctx, c.cfg.RefreshTimeout, string(id)+" refresh", func(ctx context.Context) error {
		return resilience.Retry(ctx, "list "+string(id), retryCfg, func() error {
			var ferr error
			records, ferr = c.store.ListIngredients(ctx, id)
			return ferr
		})
	})
	if err != nil {
		return nil, err
	}
	return vocab.NewIngredientSnapshot(id, records, ttl)
}

func (c *Cache) countGet(id vocab.ID, result string) {
	if c.metrics != nil {
		c.metrics.SnapshotCacheHitsTotal.WithLabelValues(string(id), result).Inc()
	}
}

func (c *Cache) countRefresh(id vocab.ID, outcome string) {
	if c.metrics != nil {
		c.metrics.SnapshotRefreshTotal.WithLabelValues(string(id), outcome).Inc()
	}
}

func (c *Cache) emit(ev RefreshEvent) {
	if c.tracker != nil {
		c.tracker.Track(ev)
	}
}

func isInvalidData(err error) bool {
	return errors.Is(err, errs.ErrInvalidReferenceData)
}
