package fetch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/msalah0e/trustmap/internal/cache"
	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/metrics"
)

// CachedSource serves relationship queries from a cache.Store and falls
// back to the wrapped source on a miss. Errors are never cached.
type CachedSource struct {
	source  graph.Source
	store   cache.Store
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCachedSource wraps src. A nil logger discards logs.
func NewCachedSource(src graph.Source, store cache.Store, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{source: src, store: store, ttl: ttl, logger: logger.Named("cache"), metrics: m}
}

func (c *CachedSource) Relationships(ctx context.Context, kind graph.Kind, q graph.Query) ([]graph.Record, error) {
	key := cacheKey(kind, q)

	var records []graph.Record
	if c.store.Get(key, c.ttl, &records) {
		c.metrics.CacheHit(true)
		return records, nil
	}
	c.metrics.CacheHit(false)

	records, err := c.source.Relationships(ctx, kind, q)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(key, records); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return records, nil
}

// cacheKey identifies a query by kind, direction, profile ids and page.
func cacheKey(kind graph.Kind, q graph.Query) string {
	return fmt.Sprintf("%s:author=%s:subject=%s:limit=%d:offset=%d",
		kind, joinIDs(q.AuthorProfileIDs), joinIDs(q.SubjectProfileIDs), q.Limit, q.Offset)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
