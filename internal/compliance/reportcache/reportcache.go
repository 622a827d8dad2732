// Package reportcache is an optional Redis layer in front of the aggregator:
// finished reports are cached by vocabulary and ingredient-list fingerprint
// so repeated checks of the same label skip the matching pass entirely. The
// engine stays correct without it.
package reportcache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/markahope-aag/labelcheck-sub001/internal/allergen"
	"github.com/markahope-aag/labelcheck-sub001/internal/compliance"
	"github.com/markahope-aag/labelcheck-sub001/internal/normalize"
	"github.com/markahope-aag/labelcheck-sub001/pkg/config"
	"github.com/markahope-aag/labelcheck-sub001/pkg/metrics"
	pkgredis "github.com/markahope-aag/labelcheck-sub001/pkg/redis"
)

const keyPrefix = "report:"

// ReportCache caches finished compliance and allergen reports in Redis with
// single-flight computation on miss.
type ReportCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a ReportCache over the given Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *ReportCache {
	return &ReportCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "report-cache"),
	}
}

// GetOrCompute returns the cached compliance report for the ingredient list,
// computing and storing it on miss. Concurrent misses on the same key
// collapse into one computation.
func (c *ReportCache) GetOrCompute(
	ctx context.Context,
	vocabulary string,
	ingredients []string,
	computeFn func() (*compliance.Report, error),
) (*compliance.Report, bool, error) {
	key := c.buildKey(vocabulary, ingredients)

	var cached compliance.Report
	if c.lookup(ctx, key, &cached) {
		return &cached, true, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		var again compliance.Report
		if c.lookup(ctx, key, &again) {
			return &again, nil
		}
		report, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, report)
		return report, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*compliance.Report), false, nil
}

// GetOrComputeAllergen is GetOrCompute for allergen reports.
func (c *ReportCache) GetOrComputeAllergen(
	ctx context.Context,
	ingredients []string,
	computeFn func() (*allergen.Report, error),
) (*allergen.Report, bool, error) {
	key := c.buildKey("allergens", ingredients)

	var cached allergen.Report
	if c.lookup(ctx, key, &cached) {
		return &cached, true, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		var again allergen.Report
		if c.lookup(ctx, key, &again) {
			return &again, nil
		}
		report, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, report)
		return report, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*allergen.Report), false, nil
}

// Invalidate drops every cached report. Called alongside vocabulary
// invalidation so stale reports never outlive fresh reference data.
func (c *ReportCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating report cache: %w", err)
	}
	c.logger.Info("report cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counters.
func (c *ReportCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ReportCache) lookup(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("report cache get failed", "key", key, "error", err)
		}
		c.miss()
		return false
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		c.logger.Error("report cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.ReportCacheHitsTotal.Inc()
	}
	return true
}

func (c *ReportCache) store(ctx context.Context, key string, report any) {
	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Error("report cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.ReportTTL); err != nil {
		c.logger.Error("report cache set failed", "key", key, "error", err)
	}
}

func (c *ReportCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.ReportCacheMissesTotal.Inc()
	}
}

// buildKey fingerprints the vocabulary and the normalized ingredient list.
// Order is preserved: reports are order-sensitive.
func (c *ReportCache) buildKey(vocabulary string, ingredients []string) string {
	normalized := make([]string, len(ingredients))
	for i, ing := range ingredients {
		normalized[i] = normalize.Name(ing)
	}
	raw := vocabulary + "|" + strings.Join(normalized, "|")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
